// Package config loads application configuration from environment variables
// with an optional YAML file overlay.
//
// # Precedence
//
// Defaults are applied first, then the YAML file named by ARBOR_CONFIG_FILE
// (if set), then ARBOR_* environment variables. Environment always wins.
//
// # Usage
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println(cfg.Server.Port)
//
// # Key Variables
//
//   - ARBOR_POSTGRES_URL: primary database (required)
//   - ARBOR_POSTGRES_REPLICA_URLS: comma-separated read replicas
//   - ARBOR_REDIS_URL: entity cache, empty disables caching
//   - ARBOR_RENDER_PRINCIPAL: principal id with the read-only view bypass
//   - ARBOR_LOG_LEVEL: debug, info, warn or error
package config
