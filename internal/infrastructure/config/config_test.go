package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, `
store:
  dir: "/tmp/graystore"
  strict_decode: true
database:
  wal_mode: false
  busy_timeout: 2
keystore:
  type: "none"
api:
  port: 9000
mqtt:
  enabled: true
  broker:
    host: "broker.local"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Store.Dir != "/tmp/graystore" {
		t.Errorf("Store.Dir = %q, want %q", cfg.Store.Dir, "/tmp/graystore")
	}
	if !cfg.Store.StrictDecode {
		t.Error("Store.StrictDecode = false, want true")
	}
	if cfg.Store.DefaultDatabase != "orm_default.sqlite" {
		t.Errorf("Store.DefaultDatabase = %q, want default", cfg.Store.DefaultDatabase)
	}
	if cfg.Database.WALMode || cfg.Database.BusyTimeout != 2 {
		t.Errorf("Database = %+v", cfg.Database)
	}
	if cfg.API.Port != 9000 {
		t.Errorf("API.Port = %d, want 9000", cfg.API.Port)
	}
	if cfg.MQTT.Broker.Host != "broker.local" || cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("MQTT.Broker = %+v", cfg.MQTT.Broker)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "invalid: [yaml: content"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	_, err := Load(writeConfig(t, `
keystore:
  type: "vault"
`))
	if err == nil {
		t.Error("Load() expected validation error for unknown keystore type, got nil")
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config { return defaultConfig() }

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"missing dir", func(c *Config) { c.Store.Dir = "" }, true},
		{"missing default database", func(c *Config) { c.Store.DefaultDatabase = "" }, true},
		{"negative busy timeout", func(c *Config) { c.Database.BusyTimeout = -1 }, true},
		{"no keystore", func(c *Config) { c.KeyStore = KeyStoreConfig{Type: KeyStoreNone} }, false},
		{"file keystore without path", func(c *Config) { c.KeyStore.Path = "" }, true},
		{"passphrase without passphrase", func(c *Config) { c.KeyStore.Type = KeyStorePassphrase }, true},
		{"passphrase", func(c *Config) {
			c.KeyStore.Type = KeyStorePassphrase
			c.KeyStore.Passphrase = "correct horse"
		}, false},
		{"unknown keystore", func(c *Config) { c.KeyStore.Type = "vault" }, true},
		{"invalid port low", func(c *Config) { c.API.Port = 0 }, true},
		{"invalid port high", func(c *Config) { c.API.Port = 70000 }, true},
		{"port ignored when api disabled", func(c *Config) {
			c.API.Enabled = false
			c.API.Port = 0
		}, false},
		{"invalid QoS", func(c *Config) {
			c.MQTT.Enabled = true
			c.MQTT.QoS = 3
		}, true},
		{"influxdb without url", func(c *Config) { c.InfluxDB.Enabled = true }, true},
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

	t.Setenv("GRAYSTORE_STORE_DIR", "/custom/data")
	t.Setenv("GRAYSTORE_KEYSTORE_TYPE", "passphrase")
	t.Setenv("GRAYSTORE_KEYSTORE_PASSPHRASE", "s3cret")
	t.Setenv("GRAYSTORE_API_PORT", "9100")
	t.Setenv("GRAYSTORE_MQTT_HOST", "mqtt.example.com")
	t.Setenv("GRAYSTORE_MQTT_USERNAME", "testuser")
	t.Setenv("GRAYSTORE_MQTT_PASSWORD", "testpass")
	t.Setenv("GRAYSTORE_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("GRAYSTORE_LOGGING_LEVEL", "debug")

	applyEnvOverrides(cfg)

	if cfg.Store.Dir != "/custom/data" {
		t.Errorf("Store.Dir = %q, want %q", cfg.Store.Dir, "/custom/data")
	}
	if cfg.KeyStore.Type != KeyStorePassphrase || cfg.KeyStore.Passphrase != "s3cret" {
		t.Errorf("KeyStore = %+v", cfg.KeyStore)
	}
	if cfg.API.Port != 9100 {
		t.Errorf("API.Port = %d, want 9100", cfg.API.Port)
	}
	if cfg.MQTT.Broker.Host != "mqtt.example.com" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "mqtt.example.com")
	}
	if cfg.MQTT.Auth.Username != "testuser" || cfg.MQTT.Auth.Password != "testpass" {
		t.Errorf("MQTT.Auth = %+v", cfg.MQTT.Auth)
	}
	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q, want %q", cfg.InfluxDB.Token, "secret-token")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
}

func TestApplyEnvOverrides_InvalidPort(t *testing.T) {
	cfg := defaultConfig()
	t.Setenv("GRAYSTORE_API_PORT", "not-a-port")
	applyEnvOverrides(cfg)
	if cfg.API.Port != 8090 {
		t.Errorf("API.Port = %d, want default 8090", cfg.API.Port)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Store.Dir == "" {
		t.Error("defaultConfig should have non-empty Store.Dir")
	}
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("defaultConfig MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
	if cfg.MQTT.Enabled || cfg.InfluxDB.Enabled {
		t.Error("defaultConfig should leave MQTT and InfluxDB disabled")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaultConfig Validate() error = %v", err)
	}
}
