// Package config loads the air purifier service configuration.
//
// Values come from three layers, later ones winning: built-in defaults, the
// YAML file, and AIRPURIFIER_* environment variables. Secrets (the JWT
// secret, broker password, InfluxDB token) are expected to arrive through
// the environment.
//
// The per-device bridge configuration (device address, token, accessory
// names) lives in a separate file named by protocols.miio.config_file and is
// loaded by the miio bridge package.
//
// Usage:
//
//	cfg, err := config.Load(config.PathFromEnv("configs/config.yaml"))
//	if err != nil {
//	    return err
//	}
package config
