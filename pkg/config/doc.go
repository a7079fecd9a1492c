// Package config provides configuration loading, validation, and management
// for turbine.
//
// # Overview
//
// Configuration is read from a YAML file, decoded over a fully populated
// default configuration, overridden from the environment and then validated.
// All validation errors are collected and reported together.
//
// # Loading
//
//	cfg, err := config.LoadConfigWithEnvOverrides("turbine.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// An empty path yields Default with environment overrides applied.
//
// # Environment Variables
//
// Every override follows TURBINE_SECTION_FIELD, for example:
//
//	TURBINE_POOL_MAX_SIZE=32
//	TURBINE_POOL_POLICY=fail_fast
//	TURBINE_ACCEL_REQUIRED_ENGINES=token_counter,rate_limiter
//	TURBINE_TELEMETRY_LOGGING_LEVEL=debug
//
// Feature flags are overridden separately with TURBINE_FEATURE_<NAME>
// (see package features).
//
// # Example
//
//	accel:
//	  auto_apply: true
//	  required_engines: [token_counter, rate_limiter]
//	engines:
//	  tokens:
//	    cache_size: 4096
//	    models:
//	      default: 4.0
//	      claude: 3.5
//	  pool:
//	    max_size: 16
//	    policy: wait
//	    wait_timeout: 2s
//	features:
//	  file: features.yaml
//	  watch: true
//
// # Global Configuration
//
// ReloadConfig and SetConfig store a process-wide instance; GetConfig and
// GetOrDefault read it. Library code should prefer an
// explicit *Config.
package config
