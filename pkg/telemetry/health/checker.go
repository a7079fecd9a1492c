package health

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Status values reported by checks.
const (
	StatusOK        = "ok"
	StatusUnhealthy = "unhealthy"
	StatusReady     = "ready"
	StatusDegraded  = "degraded"
)

// CheckFunc is a function that performs a health check for a component.
// It returns nil if the component is healthy, or an error describing the problem.
type CheckFunc func(ctx context.Context) error

// CheckResult represents the result of a single health check.
type CheckResult struct {
	// Status is "ok" or "unhealthy".
	Status string `json:"status"`

	// Message describes the failure, if any.
	Message string `json:"message,omitempty"`

	// Err is the error the check returned, including timeouts and
	// recovered panics.
	Err error `json:"-"`

	// Duration is how long the check took.
	Duration time.Duration `json:"duration_ms,omitempty"`
}

// Healthy reports whether the check passed.
func (r CheckResult) Healthy() bool {
	return r.Status == StatusOK
}

// HealthStatus represents the aggregated status of all checks.
type HealthStatus struct {
	// Status is "ok" for liveness, "ready" or "degraded" for readiness.
	Status string `json:"status"`

	// Checks contains the status of individual components.
	Checks map[string]CheckResult `json:"checks,omitempty"`

	// Timestamp is when the health check was performed.
	Timestamp time.Time `json:"timestamp"`
}

var (
	// ErrCheckTimeout is returned when a health check exceeds its timeout.
	ErrCheckTimeout = errors.New("health check timeout")

	// ErrCheckPanic is returned when a health check panics.
	ErrCheckPanic = errors.New("health check panicked")

	// ErrUnknownCheck is returned by Run for an unregistered name.
	ErrUnknownCheck = errors.New("unknown health check")
)

// Checker runs named health checks with a per-check timeout. A check that
// panics or outlives its timeout is reported as unhealthy; neither escapes
// to the caller.
type Checker struct {
	mu     sync.RWMutex
	checks map[string]CheckFunc

	checkTimeout time.Duration
}

// New creates a new health checker with the specified check timeout.
// If timeout is 0, defaults to 5 seconds per check.
func New(checkTimeout time.Duration) *Checker {
	if checkTimeout == 0 {
		checkTimeout = 5 * time.Second
	}

	return &Checker{
		checks:       make(map[string]CheckFunc),
		checkTimeout: checkTimeout,
	}
}

// RegisterCheck registers a health check function for a named component.
// If a check with the same name already exists, it will be replaced.
func (c *Checker) RegisterCheck(name string, check CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.checks[name] = check
}

// Run executes one registered check.
func (c *Checker) Run(ctx context.Context, name string) CheckResult {
	c.mu.RLock()
	check, ok := c.checks[name]
	c.mu.RUnlock()

	if !ok {
		err := fmt.Errorf("%w: %s", ErrUnknownCheck, name)
		return CheckResult{Status: StatusUnhealthy, Message: err.Error(), Err: err}
	}
	return c.Execute(ctx, check)
}

// RunAll executes every registered check concurrently.
func (c *Checker) RunAll(ctx context.Context) map[string]CheckResult {
	c.mu.RLock()
	checks := make(map[string]CheckFunc, len(c.checks))
	for name, check := range c.checks {
		checks[name] = check
	}
	c.mu.RUnlock()

	results := make(map[string]CheckResult, len(checks))
	var resultMu sync.Mutex
	var wg sync.WaitGroup

	for name, check := range checks {
		wg.Add(1)
		go func(name string, check CheckFunc) {
			defer wg.Done()

			result := c.Execute(ctx, check)

			resultMu.Lock()
			results[name] = result
			resultMu.Unlock()
		}(name, check)
	}

	wg.Wait()
	return results
}

// CheckLiveness reports that the process is running.
func (c *Checker) CheckLiveness(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    StatusOK,
		Timestamp: time.Now(),
	}
}

// CheckReadiness runs every check and aggregates the result.
// With no registered checks the system is ready.
func (c *Checker) CheckReadiness(ctx context.Context) HealthStatus {
	results := c.RunAll(ctx)

	status := StatusReady
	for _, result := range results {
		if !result.Healthy() {
			status = StatusDegraded
		}
	}

	return HealthStatus{
		Status:    status,
		Checks:    results,
		Timestamp: time.Now(),
	}
}

// Execute runs check with the checker's timeout and panic containment.
func (c *Checker) Execute(ctx context.Context, check CheckFunc) CheckResult {
	checkCtx, cancel := context.WithTimeout(ctx, c.checkTimeout)
	defer cancel()

	start := time.Now()

	// Buffered so a check that outlives its timeout does not leak a
	// blocked sender.
	errChan := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				errChan <- fmt.Errorf("%w: %v", ErrCheckPanic, r)
			}
		}()
		errChan <- check(checkCtx)
	}()

	select {
	case err := <-errChan:
		duration := time.Since(start)
		if err != nil {
			return CheckResult{
				Status:   StatusUnhealthy,
				Message:  err.Error(),
				Err:      err,
				Duration: duration,
			}
		}
		return CheckResult{
			Status:   StatusOK,
			Duration: duration,
		}

	case <-checkCtx.Done():
		return CheckResult{
			Status:   StatusUnhealthy,
			Message:  ErrCheckTimeout.Error(),
			Err:      ErrCheckTimeout,
			Duration: time.Since(start),
		}
	}
}
