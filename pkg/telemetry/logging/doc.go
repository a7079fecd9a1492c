// Package logging provides structured logging with key redaction.
//
// # Overview
//
// The package wraps log/slog:
//   - JSON or text output
//   - Runtime-adjustable level
//   - Redaction of credential-like values, including rate limit keys
//   - Context fields (operation, engine, endpoint, lease ID, trace ID)
//
// # Usage
//
//	logger, err := logging.New(logging.Config{
//	    Level:      "info",
//	    Format:     "json",
//	    RedactKeys: true,
//	})
//	if err != nil {
//	    return err
//	}
//	logger.SetDefault()
//
//	ctx = logging.WithEndpoint(ctx, "db:5432")
//	slog.WarnContext(ctx, "rate limit rejected",
//	    "key", "apikey:sk-abc123xyz", // logged as "apikey:sk-***"
//	    "limit", 100,
//	) // also carries endpoint=db:5432
//
// Components that accept a *slog.Logger should be given logger.Slog().
// Context fields stored with WithOperation, WithEngine, WithEndpoint,
// WithLeaseID and WithTraceID are added to every record logged through a
// Context method.
//
// # Redaction
//
//   - API keys: sk-abc123xyz becomes sk-***
//   - Emails: user@example.com becomes ***@example.com
//   - IPv4 addresses: 192.168.1.100 becomes 192.*.*.*
//   - Bearer tokens and password assignments
//
// A rate limit key logged under "key" keeps its namespace prefix; an
// opaque remainder is cut to its first four characters.
package logging
