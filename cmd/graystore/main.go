// graystore runs the record store as a service: it owns the database
// directory, serves the read-only admin API and forwards change events to
// MQTT and operation metrics to InfluxDB when those are enabled.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nerrad567/graystore/internal/api"
	"github.com/nerrad567/graystore/internal/infrastructure/config"
	"github.com/nerrad567/graystore/internal/infrastructure/influxdb"
	"github.com/nerrad567/graystore/internal/infrastructure/logging"
	"github.com/nerrad567/graystore/internal/infrastructure/mqtt"
	"github.com/nerrad567/graystore/internal/keystore"
	"github.com/nerrad567/graystore/orm"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the application logic, separated from main for testability.
// It returns nil on a clean shutdown.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting graystore",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	if err := os.MkdirAll(cfg.Store.Dir, 0o750); err != nil {
		return fmt.Errorf("creating store directory: %w", err)
	}

	manager := orm.New(orm.Config{
		Dir:             cfg.Store.Dir,
		DefaultDatabase: cfg.Store.DefaultDatabase,
		WALMode:         cfg.Database.WALMode,
		BusyTimeout:     cfg.Database.BusyTimeout,
		StrictDecode:    cfg.Store.StrictDecode,
	})
	manager.SetLogger(log.Component("orm"))
	if ks := newKeyStore(cfg.KeyStore); ks != nil {
		manager.SetKeyStore(ks)
	}
	defer func() {
		log.Info("closing databases")
		if closeErr := manager.Close(); closeErr != nil {
			log.Error("error closing databases", "error", closeErr)
		}
	}()
	log.Info("store ready", "dir", cfg.Store.Dir, "keystore", cfg.KeyStore.Type)

	checks := map[string]api.HealthChecker{}

	if cfg.MQTT.Enabled {
		mqttClient, mqttErr := mqtt.Connect(cfg.MQTT)
		if mqttErr != nil {
			return fmt.Errorf("connecting to MQTT: %w", mqttErr)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log.Component("mqtt"))
		manager.SetNotifier(mqtt.NewChangeFeed(mqttClient, mqttClient.Topics(), byte(cfg.MQTT.QoS)))
		checks["mqtt"] = mqttClient
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	} else {
		log.Info("MQTT change feed disabled")
	}

	if cfg.InfluxDB.Enabled {
		influxClient, influxErr := influxdb.Connect(cfg.InfluxDB)
		if influxErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", influxErr)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		manager.SetRecorder(influxClient)
		checks["influxdb"] = influxClient
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	if cfg.API.Enabled {
		server, apiErr := api.New(api.Deps{
			Config:  cfg.API,
			Logger:  log.Component("api"),
			Store:   manager,
			Checks:  checks,
			Version: version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := server.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("API server disabled")
	}

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	log.Info("graystore stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses GRAYSTORE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("GRAYSTORE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// newKeyStore builds the key store selected by the configuration, or nil
// when databases are stored unencrypted.
func newKeyStore(cfg config.KeyStoreConfig) keystore.KeyStore {
	switch cfg.Type {
	case config.KeyStoreFile:
		return keystore.NewFile(cfg.Path)
	case config.KeyStorePassphrase:
		return keystore.NewPassphrase(cfg.Path, cfg.Passphrase)
	default:
		return nil
	}
}
