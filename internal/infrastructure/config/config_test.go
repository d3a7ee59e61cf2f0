package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "grapher.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, `
database:
  driver: "sqlite3"
  path: "/tmp/test.db"
  wal_mode: true
  busy_timeout: 5
  query_timeout: 3
api:
  host: "127.0.0.1"
  port: 3001
session:
  cookie_name: "token"
static:
  dir: "/srv/www"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}

	if cfg.API.Port != 3001 {
		t.Errorf("API.Port = %d, want 3001", cfg.API.Port)
	}

	if cfg.Static.Dir != "/srv/www" {
		t.Errorf("Static.Dir = %q, want %q", cfg.Static.Dir, "/srv/www")
	}

	// Unset keys keep their defaults.
	if cfg.Static.Index != "index.html" {
		t.Errorf("Static.Index = %q, want index.html", cfg.Static.Index)
	}

	if got := cfg.GetQueryTimeout().Seconds(); got != 3 {
		t.Errorf("GetQueryTimeout() = %v, want 3", got)
	}
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error = %v", err)
	}

	if cfg.API.Port != 3000 {
		t.Errorf("API.Port = %d, want 3000", cfg.API.Port)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/grapher.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := writeConfig(t, "invalid: [yaml: content")

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	configPath := writeConfig(t, `
database:
  driver: "oracle"
api:
  port: 3000
`)

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected validation error for unsupported driver, got nil")
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config { return defaultConfig() }

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "defaults are valid",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:    "missing sqlite path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: true,
		},
		{
			name: "postgres with dsn",
			mutate: func(c *Config) {
				c.Database.Driver = DriverPostgres
				c.Database.DSN = "postgres://grapher@localhost/grapher"
			},
			wantErr: false,
		},
		{
			name:    "mysql without dsn",
			mutate:  func(c *Config) { c.Database.Driver = DriverMySQL },
			wantErr: true,
		},
		{
			name:    "unknown driver",
			mutate:  func(c *Config) { c.Database.Driver = "mssql" },
			wantErr: true,
		},
		{
			name:    "negative query timeout",
			mutate:  func(c *Config) { c.Database.QueryTimeout = -1 },
			wantErr: true,
		},
		{
			name:    "invalid QoS",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: true,
		},
		{
			name:    "invalid port low",
			mutate:  func(c *Config) { c.API.Port = 0 },
			wantErr: true,
		},
		{
			name:    "invalid port high",
			mutate:  func(c *Config) { c.API.Port = 70000 },
			wantErr: true,
		},
		{
			name:    "tls without cert",
			mutate:  func(c *Config) { c.API.TLS.Enabled = true },
			wantErr: true,
		},
		{
			name:    "empty cookie name",
			mutate:  func(c *Config) { c.Session.CookieName = "" },
			wantErr: true,
		},
		{
			name:    "influxdb enabled without url",
			mutate:  func(c *Config) { c.InfluxDB.Enabled = true },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := &Config{
		API: APIConfig{
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 45,
				Idle:  60,
			},
		},
	}

	if got := cfg.GetReadTimeout().Seconds(); got != 30 {
		t.Errorf("GetReadTimeout() = %v, want 30", got)
	}

	if got := cfg.GetWriteTimeout().Seconds(); got != 45 {
		t.Errorf("GetWriteTimeout() = %v, want 45", got)
	}

	if got := cfg.GetIdleTimeout().Seconds(); got != 60 {
		t.Errorf("GetIdleTimeout() = %v, want 60", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("GRAPHER_DATABASE_DRIVER", "postgres")
	t.Setenv("GRAPHER_DATABASE_DSN", "postgres://db/grapher")
	t.Setenv("GRAPHER_API_HOST", "192.168.1.1")
	t.Setenv("GRAPHER_API_PORT", "8443")
	t.Setenv("GRAPHER_STATIC_DIR", "/srv/app")
	t.Setenv("GRAPHER_MQTT_HOST", "mqtt.example.com")
	t.Setenv("GRAPHER_MQTT_USERNAME", "testuser")
	t.Setenv("GRAPHER_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("GRAPHER_LOGGING_LEVEL", "debug")

	applyEnvOverrides(cfg)

	if cfg.Database.Driver != DriverPostgres {
		t.Errorf("Database.Driver = %q, want %q", cfg.Database.Driver, DriverPostgres)
	}

	if cfg.Database.DSN != "postgres://db/grapher" {
		t.Errorf("Database.DSN = %q", cfg.Database.DSN)
	}

	if cfg.API.Host != "192.168.1.1" {
		t.Errorf("API.Host = %q, want %q", cfg.API.Host, "192.168.1.1")
	}

	if cfg.API.Port != 8443 {
		t.Errorf("API.Port = %d, want 8443", cfg.API.Port)
	}

	if cfg.Static.Dir != "/srv/app" {
		t.Errorf("Static.Dir = %q, want %q", cfg.Static.Dir, "/srv/app")
	}

	if cfg.MQTT.Broker.Host != "mqtt.example.com" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "mqtt.example.com")
	}

	if cfg.MQTT.Auth.Username != "testuser" {
		t.Errorf("MQTT.Auth.Username = %q, want %q", cfg.MQTT.Auth.Username, "testuser")
	}

	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q, want %q", cfg.InfluxDB.Token, "secret-token")
	}

	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
}

func TestApplyEnvOverrides_BadPortIgnored(t *testing.T) {
	cfg := defaultConfig()
	t.Setenv("GRAPHER_API_PORT", "not-a-port")

	applyEnvOverrides(cfg)

	if cfg.API.Port != 3000 {
		t.Errorf("API.Port = %d, want unchanged 3000", cfg.API.Port)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Database.Driver != DriverSQLite {
		t.Errorf("defaultConfig Database.Driver = %q, want %q", cfg.Database.Driver, DriverSQLite)
	}

	if cfg.Database.Path == "" {
		t.Error("defaultConfig should have non-empty Database.Path")
	}

	if cfg.Session.CookieName != "token" {
		t.Errorf("defaultConfig Session.CookieName = %q, want token", cfg.Session.CookieName)
	}

	if cfg.API.Port != 3000 {
		t.Errorf("defaultConfig API.Port = %d, want 3000", cfg.API.Port)
	}

	if cfg.MQTT.Enabled || cfg.InfluxDB.Enabled {
		t.Error("defaultConfig should not enable optional integrations")
	}
}
