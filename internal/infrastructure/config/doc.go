// Package config handles loading and validating patient registry configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Populating the environment from an optional .env file
//   - Overriding with PATIENTREG_* environment variables
//   - Validation of required fields
//
// Security Considerations:
//   - Broker passwords and InfluxDB tokens should be set via environment variables
//   - The config file should have restricted permissions (0600)
//   - query.allow_raw exposes arbitrary SQL over HTTP and defaults to false
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Database.Path)
package config
