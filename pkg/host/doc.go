// Package host defines the call sites that acceleration substitutes.
//
// A host API client routes token counting, rate limiting and connection
// checkout through Hooks. Each hook is a Site holding the current strategy;
// the substitution controller swaps accelerated strategies in and restores
// the exact previous ones on removal.
//
//	hooks := host.NewHooks(host.Defaults{
//	    Tokens:    host.NewEstimateCounter(nil),
//	    RateLimit: host.NewLogLimiter(),
//	    Connect:   host.NewDirectConnector(&pool.TCPDialer{}),
//	})
//	n, err := hooks.CountTokens("hello", "claude-3")
//
// The defaults in this package are the unaccelerated reference behaviour.
// Accelerated engines must produce the same results for the same inputs.
package host
