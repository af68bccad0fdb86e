// Package config handles loading and validating Communities Core configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - Sensitive values (signing secret, SMTP and broker passwords) should be
//     set via environment variables
//   - The config file should have restricted permissions (0600)
//   - The bearer signing secret must be at least 64 bytes (HMAC-SHA-512 key size)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.API.Port)
package config
