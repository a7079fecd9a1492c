package features

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Built-in flag names.
const (
	TokenCounter        = "token_counter"
	RateLimiter         = "rate_limiter"
	ConnectionPool      = "connection_pool"
	Substitution        = "substitution"
	PerformanceTracking = "performance_tracking"
)

// EnvPrefix is the prefix of per-flag environment overrides.
const EnvPrefix = "TURBINE_FEATURE_"

// Builtin returns the built-in flags and their defaults.
func Builtin() map[string]bool {
	return map[string]bool{
		TokenCounter:        true,
		RateLimiter:         true,
		ConnectionPool:      true,
		Substitution:        true,
		PerformanceTracking: true,
	}
}

// File is the on-disk flag format.
type File struct {
	Features map[string]bool `yaml:"features"`
}

// Registry holds named boolean flags for the life of the process.
//
// Effective values are layered, later layers winning: built-in defaults,
// configured values, the flag file, TURBINE_FEATURE_<NAME> environment
// variables, and finally values set through Set.
type Registry struct {
	logger *slog.Logger

	mu       sync.RWMutex
	base     map[string]bool
	file     map[string]bool
	admin    map[string]bool
	lookup   func(string) (string, bool)
	environ  func() []string
	resolved map[string]bool
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithEnviron replaces the process environment. It is intended for tests.
func WithEnviron(env map[string]string) Option {
	return func(r *Registry) {
		r.lookup = func(k string) (string, bool) {
			v, ok := env[k]
			return v, ok
		}
		r.environ = func() []string {
			out := make([]string, 0, len(env))
			for k, v := range env {
				out = append(out, k+"="+v)
			}
			return out
		}
	}
}

// New creates a registry from the built-in flags overlaid with configured.
func New(configured map[string]bool, opts ...Option) *Registry {
	r := &Registry{
		logger:  slog.Default().With("component", "features"),
		base:    Builtin(),
		file:    map[string]bool{},
		admin:   map[string]bool{},
		lookup:  os.LookupEnv,
		environ: os.Environ,
	}
	for _, opt := range opts {
		opt(r)
	}
	for name, enabled := range configured {
		r.base[normalize(name)] = enabled
	}

	r.mu.Lock()
	r.resolveLocked()
	r.mu.Unlock()
	return r
}

// IsEnabled reports whether name is enabled. Unknown flags are disabled.
func (r *Registry) IsEnabled(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.resolved[normalize(name)]
}

// Status returns a copy of every flag's effective value.
func (r *Registry) Status() map[string]bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]bool, len(r.resolved))
	for k, v := range r.resolved {
		out[k] = v
	}
	return out
}

// Names returns the sorted flag names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.resolved))
	for k := range r.resolved {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Set overrides a flag. It takes precedence over every other source and
// survives reloads. Engines never call Set.
func (r *Registry) Set(name string, enabled bool) {
	name = normalize(name)

	r.mu.Lock()
	r.admin[name] = enabled
	r.resolveLocked()
	r.mu.Unlock()

	r.logger.Info("feature flag set", "flag", name, "enabled", enabled)
}

// Load replaces the file layer with the contents of path.
// On error the current flags are unchanged.
func (r *Registry) Load(path string) error {
	flags, err := LoadFile(path)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.file = flags
	r.resolveLocked()
	r.mu.Unlock()

	r.logger.Info("feature flags loaded", "path", path, "count", len(flags))
	return nil
}

// resolveLocked recomputes effective values. Caller must hold mu.
func (r *Registry) resolveLocked() {
	resolved := make(map[string]bool, len(r.base)+len(r.file))
	for k, v := range r.base {
		resolved[k] = v
	}
	for k, v := range r.file {
		resolved[k] = v
	}
	for k, v := range r.envFlags() {
		resolved[k] = v
	}
	for k, v := range r.admin {
		resolved[k] = v
	}
	r.resolved = resolved
}

// envFlags collects TURBINE_FEATURE_<NAME> overrides. Unparseable values
// are logged and ignored.
func (r *Registry) envFlags() map[string]bool {
	out := map[string]bool{}
	for _, kv := range r.environ() {
		key, _, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, EnvPrefix) {
			continue
		}
		val, _ := r.lookup(key)
		enabled, err := strconv.ParseBool(val)
		if err != nil {
			r.logger.Warn("ignoring invalid feature override", "variable", key, "value", val)
			continue
		}
		out[normalize(strings.TrimPrefix(key, EnvPrefix))] = enabled
	}
	return out
}

// LoadFile reads a flag file.
func LoadFile(path string) (map[string]bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read feature file %q: %w", path, err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse feature file %q: %w", path, err)
	}

	out := make(map[string]bool, len(f.Features))
	for name, enabled := range f.Features {
		if strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("feature file %q: empty flag name", path)
		}
		out[normalize(name)] = enabled
	}
	return out, nil
}

// SaveFile writes flags to path in the format LoadFile reads. The file is
// replaced by rename, so a concurrent Watch sees one complete update.
func SaveFile(path string, flags map[string]bool) error {
	out := make(map[string]bool, len(flags))
	for name, enabled := range flags {
		out[normalize(name)] = enabled
	}

	data, err := yaml.Marshal(File{Features: out})
	if err != nil {
		return fmt.Errorf("failed to encode feature file: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".features-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to write feature file %q: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write feature file %q: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write feature file %q: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace feature file %q: %w", path, err)
	}
	return nil
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
