package cli

import (
	"errors"
	"fmt"
	"testing"

	"fastllm-hq/turbine/pkg/config"
)

func TestConfigError(t *testing.T) {
	err := NewConfigError("engines.pool.max_size", "must be positive")

	want := "config error in engines.pool.max_size: must be positive"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestCommandError(t *testing.T) {
	inner := errors.New("dial refused")
	err := NewCommandError("serve", inner)

	if err.Error() != "command serve failed: dial refused" {
		t.Errorf("Error() = %q", err.Error())
	}
	if !errors.Is(err, inner) {
		t.Error("expected CommandError to unwrap to inner error")
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"plain", errors.New("boom"), ExitFailure},
		{"config error", NewConfigError("output", "bad"), ExitConfig},
		{"validation error", fmt.Errorf("load: %w", config.ValidationError{}), ExitConfig},
		{"unhealthy", NewCommandError("health", ErrUnhealthy), ExitUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}
