package tracing

import (
	"fmt"
	"strings"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Sampler strategies accepted in telemetry.tracing.sampler.
const (
	SamplerAlways = "always"
	SamplerNever  = "never"
	SamplerRatio  = "ratio"
)

// substitutionSpanPrefix names the spans that are always kept, under every
// strategy except "never". Apply and remove happen a handful of times per
// process and explain every later change in behaviour.
const substitutionSpanPrefix = "substitution."

// createSampler builds the configured sampler. Root spans follow the
// strategy; child spans follow their parent.
func createSampler(strategy string, ratio float64) (sdktrace.Sampler, error) {
	var base sdktrace.Sampler

	switch strategy {
	case SamplerAlways:
		return sdktrace.ParentBased(sdktrace.AlwaysSample()), nil
	case SamplerNever:
		return sdktrace.ParentBased(sdktrace.NeverSample()), nil
	case SamplerRatio:
		if ratio < 0.0 || ratio > 1.0 {
			return nil, fmt.Errorf("sample ratio must be between 0.0 and 1.0, got %f", ratio)
		}
		base = sdktrace.TraceIDRatioBased(ratio)
	default:
		return nil, fmt.Errorf("unknown sampler strategy: %s (valid: always, never, ratio)", strategy)
	}

	return sdktrace.ParentBased(substitutionSampler{ratio: base}), nil
}

// substitutionSampler keeps every substitution span and samples the rest
// (pool checkouts, HTTP requests) by ratio.
type substitutionSampler struct {
	ratio sdktrace.Sampler
}

func (s substitutionSampler) ShouldSample(p sdktrace.SamplingParameters) sdktrace.SamplingResult {
	if strings.HasPrefix(p.Name, substitutionSpanPrefix) {
		return sdktrace.AlwaysSample().ShouldSample(p)
	}
	return s.ratio.ShouldSample(p)
}

func (s substitutionSampler) Description() string {
	return "SubstitutionSampler{" + s.ratio.Description() + "}"
}
