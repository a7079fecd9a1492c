package host

import (
	"context"

	"fastllm-hq/turbine/pkg/engine"
)

// Site names. They appear in binding records and diagnostics.
const (
	SiteCountTokens    = "count_tokens"
	SiteCheckRateLimit = "check_rate_limit"
	SiteCheckout       = "checkout"
)

// TokenCounter counts tokens for a model.
type TokenCounter interface {
	CountTokens(text, model string) (int, error)
}

// RateLimiter admits or rejects calls per key.
type RateLimiter interface {
	CheckRateLimit(key string, limit, windowSeconds int) (bool, error)
}

// Connector checks out connections to endpoints.
type Connector interface {
	Checkout(ctx context.Context, endpoint string) (engine.Handle, error)
}

// Hooks are the host's substitutable call sites. Host code always calls
// through Hooks, never through a captured strategy, so a swap takes effect
// on the next call.
type Hooks struct {
	Tokens    *Site[TokenCounter]
	RateLimit *Site[RateLimiter]
	Connect   *Site[Connector]
}

// Defaults holds the unaccelerated strategies for a Hooks.
type Defaults struct {
	Tokens    TokenCounter
	RateLimit RateLimiter
	Connect   Connector
}

// NewHooks creates hooks bound to the given defaults.
func NewHooks(d Defaults) *Hooks {
	return &Hooks{
		Tokens:    NewSite(SiteCountTokens, d.Tokens),
		RateLimit: NewSite(SiteCheckRateLimit, d.RateLimit),
		Connect:   NewSite(SiteCheckout, d.Connect),
	}
}

// CountTokens calls the current token counting strategy.
func (h *Hooks) CountTokens(text, model string) (int, error) {
	return h.Tokens.Get().CountTokens(text, model)
}

// CheckRateLimit calls the current rate limiting strategy.
func (h *Hooks) CheckRateLimit(key string, limit, windowSeconds int) (bool, error) {
	return h.RateLimit.Get().CheckRateLimit(key, limit, windowSeconds)
}

// Checkout calls the current connection strategy.
func (h *Hooks) Checkout(ctx context.Context, endpoint string) (engine.Handle, error) {
	return h.Connect.Get().Checkout(ctx, endpoint)
}

// Reset reinstalls every default strategy.
func (h *Hooks) Reset() {
	h.Tokens.Reset()
	h.RateLimit.Reset()
	h.Connect.Reset()
}
