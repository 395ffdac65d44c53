package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad_ValidConfig(t *testing.T) {
	content := `
database:
  driver: "sqlite"
  path: "/tmp/patients-test.db"
  wal_mode: true
  busy_timeout: 5
query:
  allow_raw: true
api:
  host: "0.0.0.0"
  port: 8080
mqtt:
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  qos: 1
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Path != "/tmp/patients-test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/patients-test.db")
	}
	if cfg.Database.Driver != DriverPureGo {
		t.Errorf("Database.Driver = %q, want %q", cfg.Database.Driver, DriverPureGo)
	}
	if !cfg.Query.AllowRaw {
		t.Error("Query.AllowRaw = false, want true")
	}

	// Unset keys keep their defaults
	if cfg.Query.MaxRows != 1000 {
		t.Errorf("Query.MaxRows = %d, want default 1000", cfg.Query.MaxRows)
	}
	if cfg.Engine.QueueSize != 64 {
		t.Errorf("Engine.QueueSize = %d, want default 64", cfg.Engine.QueueSize)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("invalid: [yaml: content"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
database:
  driver: "postgres"
  path: "/tmp/test.db"
api:
  port: 8080
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Load() expected validation error for unsupported driver, got nil")
	}
	if !strings.Contains(err.Error(), "database.driver") {
		t.Errorf("error = %v, want mention of database.driver", err)
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
			name:    "missing database path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: true,
		},
		{
			name:    "unknown driver",
			mutate:  func(c *Config) { c.Database.Driver = "mysql" },
			wantErr: true,
		},
		{
			name:    "pure go driver",
			mutate:  func(c *Config) { c.Database.Driver = DriverPureGo },
			wantErr: false,
		},
		{
			name:    "negative busy timeout",
			mutate:  func(c *Config) { c.Database.BusyTimeout = -1 },
			wantErr: true,
		},
		{
			name:    "zero queue size",
			mutate:  func(c *Config) { c.Engine.QueueSize = 0 },
			wantErr: true,
		},
		{
			name:    "zero max rows",
			mutate:  func(c *Config) { c.Query.MaxRows = 0 },
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
			name: "mqtt enabled without host",
			mutate: func(c *Config) {
				c.MQTT.Enabled = true
				c.MQTT.Broker.Host = ""
			},
			wantErr: true,
		},
		{
			name: "influxdb enabled without url",
			mutate: func(c *Config) {
				c.InfluxDB.Enabled = true
				c.InfluxDB.Bucket = "ops"
			},
			wantErr: true,
		},
		{
			name: "influxdb enabled and complete",
			mutate: func(c *Config) {
				c.InfluxDB.Enabled = true
				c.InfluxDB.URL = "http://localhost:8086"
				c.InfluxDB.Bucket = "ops"
			},
			wantErr: false,
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

func TestConfig_ValidateCollectsAllErrors(t *testing.T) {
	cfg := defaultConfig()
	cfg.Database.Path = ""
	cfg.API.Port = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error, got nil")
	}
	for _, want := range []string{"database.path", "api.port"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err.Error(), want)
		}
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

	t.Setenv("PATIENTREG_DATABASE_PATH", "/custom/patients.db")
	t.Setenv("PATIENTREG_DATABASE_DRIVER", "sqlite")
	t.Setenv("PATIENTREG_QUERY_ALLOW_RAW", "true")
	t.Setenv("PATIENTREG_API_HOST", "192.168.1.1")
	t.Setenv("PATIENTREG_API_PORT", "9090")
	t.Setenv("PATIENTREG_MQTT_HOST", "mqtt.example.com")
	t.Setenv("PATIENTREG_MQTT_USERNAME", "testuser")
	t.Setenv("PATIENTREG_MQTT_PASSWORD", "testpass")
	t.Setenv("PATIENTREG_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("PATIENTREG_LOG_LEVEL", "debug")

	applyEnvOverrides(cfg)

	if cfg.Database.Path != "/custom/patients.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/custom/patients.db")
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("Database.Driver = %q, want %q", cfg.Database.Driver, "sqlite")
	}
	if !cfg.Query.AllowRaw {
		t.Error("Query.AllowRaw = false, want true")
	}
	if cfg.API.Host != "192.168.1.1" {
		t.Errorf("API.Host = %q, want %q", cfg.API.Host, "192.168.1.1")
	}
	if cfg.API.Port != 9090 {
		t.Errorf("API.Port = %d, want 9090", cfg.API.Port)
	}
	if cfg.MQTT.Broker.Host != "mqtt.example.com" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "mqtt.example.com")
	}
	if cfg.MQTT.Auth.Username != "testuser" {
		t.Errorf("MQTT.Auth.Username = %q, want %q", cfg.MQTT.Auth.Username, "testuser")
	}
	if cfg.MQTT.Auth.Password != "testpass" {
		t.Errorf("MQTT.Auth.Password = %q, want %q", cfg.MQTT.Auth.Password, "testpass")
	}
	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q, want %q", cfg.InfluxDB.Token, "secret-token")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
}

func TestApplyEnvOverrides_IgnoresMalformed(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("PATIENTREG_API_PORT", "not-a-port")
	t.Setenv("PATIENTREG_QUERY_ALLOW_RAW", "maybe")

	applyEnvOverrides(cfg)

	if cfg.API.Port != 8080 {
		t.Errorf("API.Port = %d, want unchanged 8080", cfg.API.Port)
	}
	if cfg.Query.AllowRaw {
		t.Error("Query.AllowRaw = true, want unchanged false")
	}
}

func TestLoadDotEnv(t *testing.T) {
	t.Run("missing file is ignored", func(t *testing.T) {
		if err := loadDotEnv(filepath.Join(t.TempDir(), ".env")); err != nil {
			t.Errorf("loadDotEnv() error = %v, want nil", err)
		}
	})

	t.Run("populates environment", func(t *testing.T) {
		const key = "PATIENTREG_DOTENV_TEST_TOKEN"
		os.Unsetenv(key) //nolint:errcheck // Test setup
		t.Cleanup(func() { os.Unsetenv(key) }) //nolint:errcheck // Test cleanup

		path := filepath.Join(t.TempDir(), ".env")
		if err := os.WriteFile(path, []byte(key+"=from-dotenv\n"), 0600); err != nil {
			t.Fatalf("failed to write .env: %v", err)
		}

		if err := loadDotEnv(path); err != nil {
			t.Fatalf("loadDotEnv() error = %v", err)
		}
		if got := os.Getenv(key); got != "from-dotenv" {
			t.Errorf("%s = %q, want %q", key, got, "from-dotenv")
		}
	})
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Database.Path == "" {
		t.Error("defaultConfig should have non-empty Database.Path")
	}
	if cfg.Database.Driver != DriverCGO {
		t.Errorf("defaultConfig Database.Driver = %q, want %q", cfg.Database.Driver, DriverCGO)
	}
	if cfg.Query.AllowRaw {
		t.Error("defaultConfig should not allow raw queries")
	}
	if cfg.MQTT.Enabled {
		t.Error("defaultConfig should not enable MQTT")
	}
	if cfg.API.Port != 8080 {
		t.Errorf("defaultConfig API.Port = %d, want 8080", cfg.API.Port)
	}
}
