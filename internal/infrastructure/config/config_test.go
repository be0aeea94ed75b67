package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testSecret = "test-secret-key-at-least-32-chars!"

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
database:
  path: "/tmp/test.db"
mqtt:
  broker:
    host: "broker.local"
    port: 1884
    client_id: "purifier-test"
  qos: 0
api:
  port: 9000
influxdb:
  enabled: true
  url: "http://127.0.0.1:8086"
  org: "home"
  bucket: "air"
security:
  jwt:
    secret: "`+testSecret+`"
history:
  retention_days: 7
protocols:
  miio:
    enabled: true
    config_file: "/etc/airpurifier/miio.yaml"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
	if cfg.MQTT.Broker.Host != "broker.local" || cfg.MQTT.Broker.Port != 1884 || cfg.MQTT.QoS != 0 {
		t.Errorf("MQTT = %+v", cfg.MQTT)
	}
	if cfg.API.Port != 9000 {
		t.Errorf("API.Port = %d, want 9000", cfg.API.Port)
	}
	if !cfg.InfluxDB.Enabled || cfg.InfluxDB.Bucket != "air" {
		t.Errorf("InfluxDB = %+v", cfg.InfluxDB)
	}
	if cfg.GetHistoryRetention() != 7*24*time.Hour {
		t.Errorf("GetHistoryRetention() = %v", cfg.GetHistoryRetention())
	}
	if cfg.Protocols.Miio.ConfigFile != "/etc/airpurifier/miio.yaml" {
		t.Errorf("Miio.ConfigFile = %q", cfg.Protocols.Miio.ConfigFile)
	}
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
security:
  jwt:
    secret: "`+testSecret+`"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Path != "./data/airpurifier.db" || !cfg.Database.WALMode {
		t.Errorf("Database = %+v", cfg.Database)
	}
	if cfg.MQTT.Broker.ClientID != "airpurifier" || cfg.MQTT.QoS != 1 {
		t.Errorf("MQTT = %+v", cfg.MQTT)
	}
	if !cfg.API.Enabled || cfg.API.Port != 8090 {
		t.Errorf("API = %+v", cfg.API)
	}
	if cfg.InfluxDB.Enabled {
		t.Error("InfluxDB enabled by default")
	}
	if cfg.History.RetentionDays != 30 || cfg.History.QueueSize != 256 {
		t.Errorf("History = %+v", cfg.History)
	}
	if cfg.GetReadTimeout() != 30*time.Second || cfg.GetIdleTimeout() != 60*time.Second {
		t.Errorf("timeouts = %v/%v", cfg.GetReadTimeout(), cfg.GetIdleTimeout())
	}
	if cfg.GetTokenTTL() != 24*time.Hour {
		t.Errorf("GetTokenTTL() = %v", cfg.GetTokenTTL())
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/path/config.yaml"); err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "invalid: [yaml: content")
	if _, err := Load(path); err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
database:
  path: "/tmp/file.db"
`)

	t.Setenv("AIRPURIFIER_DATABASE_PATH", "/tmp/env.db")
	t.Setenv("AIRPURIFIER_MQTT_HOST", "mqtt.env")
	t.Setenv("AIRPURIFIER_MQTT_PORT", "8883")
	t.Setenv("AIRPURIFIER_MQTT_PASSWORD", "env-pass")
	t.Setenv("AIRPURIFIER_API_PORT", "not-a-number")
	t.Setenv("AIRPURIFIER_JWT_SECRET", testSecret)
	t.Setenv("AIRPURIFIER_MIIO_CONFIG_FILE", "/env/miio.yaml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Path != "/tmp/env.db" {
		t.Errorf("Database.Path = %q, want env value", cfg.Database.Path)
	}
	if cfg.MQTT.Broker.Host != "mqtt.env" || cfg.MQTT.Broker.Port != 8883 {
		t.Errorf("MQTT.Broker = %+v", cfg.MQTT.Broker)
	}
	if cfg.MQTT.Auth.Password != "env-pass" {
		t.Errorf("MQTT.Auth.Password not overridden")
	}
	if cfg.API.Port != 8090 {
		t.Errorf("API.Port = %d, want default for unparsable override", cfg.API.Port)
	}
	if cfg.Security.JWT.Secret != testSecret {
		t.Error("JWT secret not taken from environment")
	}
	if cfg.Protocols.Miio.ConfigFile != "/env/miio.yaml" {
		t.Errorf("Miio.ConfigFile = %q", cfg.Protocols.Miio.ConfigFile)
	}
}

func TestPathFromEnv(t *testing.T) {
	if got := PathFromEnv("configs/config.yaml"); got != "configs/config.yaml" {
		t.Errorf("PathFromEnv() = %q, want fallback", got)
	}
	t.Setenv(EnvConfigPath, "/etc/airpurifier.yaml")
	if got := PathFromEnv("configs/config.yaml"); got != "/etc/airpurifier.yaml" {
		t.Errorf("PathFromEnv() = %q, want env value", got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing database path", func(c *Config) { c.Database.Path = "" }, "database.path"},
		{"bad qos", func(c *Config) { c.MQTT.QoS = 3 }, "mqtt.qos"},
		{"bad broker port", func(c *Config) { c.MQTT.Broker.Port = 0 }, "mqtt.broker.port"},
		{"bad api port", func(c *Config) { c.API.Port = 70000 }, "api.port"},
		{"missing secret", func(c *Config) { c.Security.JWT.Secret = "" }, "security.jwt.secret is required"},
		{"short secret", func(c *Config) { c.Security.JWT.Secret = "short" }, "at least 32"},
		{"api disabled needs no secret", func(c *Config) {
			c.API.Enabled = false
			c.Security.JWT.Secret = ""
		}, ""},
		{"influx without url", func(c *Config) { c.InfluxDB.Enabled = true }, "influxdb.url"},
		{"negative retention", func(c *Config) { c.History.RetentionDays = -1 }, "history.retention_days"},
		{"miio without file", func(c *Config) { c.Protocols.Miio.ConfigFile = "" }, "protocols.miio.config_file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			cfg.Security.JWT.Secret = testSecret
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_ReportsAllErrors(t *testing.T) {
	cfg := defaultConfig()
	cfg.Database.Path = ""
	cfg.MQTT.QoS = 5

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() error = nil")
	}
	for _, want := range []string{"database.path", "mqtt.qos", "security.jwt.secret"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
}
