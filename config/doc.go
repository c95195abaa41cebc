// Package config loads service configuration with viper.
//
// LoadConfig looks for cmd/<service>/config.yml (and a few fallbacks), loads
// an optional .env file with godotenv, then lets environment variables
// override any key: UPSTREAMS_DEFAULTS_MAX_ATTEMPTS sets
// upstreams.defaults.max_attempts.
package config
