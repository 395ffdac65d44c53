// Patient registry service.
//
// This is the main entry point for the patient registry: an HTTP API over an
// embedded SQLite database, with optional MQTT registration events and
// InfluxDB operation telemetry.
//
// The database is not opened at startup. The engine starts, and the schema
// is provisioned, on the first request that needs it.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/agentpppp/medRec/internal/api"
	"github.com/agentpppp/medRec/internal/audit"
	"github.com/agentpppp/medRec/internal/engine"
	"github.com/agentpppp/medRec/internal/infrastructure/config"
	"github.com/agentpppp/medRec/internal/infrastructure/database"
	"github.com/agentpppp/medRec/internal/infrastructure/influxdb"
	"github.com/agentpppp/medRec/internal/infrastructure/logging"
	"github.com/agentpppp/medRec/internal/infrastructure/mqtt"
	"github.com/agentpppp/medRec/internal/patient"
	"github.com/agentpppp/medRec/migrations"
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
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting patient registry",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded",
		"path", configPath,
		"database", cfg.Database.Path,
		"driver", cfg.Database.Driver,
	)

	// Connection manager: owns the engine, started lazily
	manager := patient.NewManager(
		patient.EngineOpener(engineConfig(cfg), log),
		patient.MigrationProvisioner{Source: migrations.Source()},
		log,
	)
	defer func() {
		log.Info("closing database engine")
		if closeErr := manager.Close(); closeErr != nil {
			log.Error("error closing database engine", "error", closeErr)
		}
	}()

	service := patient.NewService(manager, log)
	auditRepo := audit.NewSQLiteRepository(manager)

	// MQTT registration events (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient = connectMQTT(cfg.MQTT, log)
		if mqttClient != nil {
			defer func() {
				log.Info("disconnecting from MQTT")
				if closeErr := mqttClient.Close(); closeErr != nil {
					log.Error("error closing MQTT", "error", closeErr)
				}
			}()
			service.SetPublisher(mqtt.NewEventPublisher(mqttClient))
		}
	} else {
		log.Info("MQTT events disabled")
	}

	// InfluxDB operation telemetry (optional)
	var recorder patient.Recorder
	influxClient, err := influxdb.Connect(cfg.InfluxDB)
	switch {
	case errors.Is(err, influxdb.ErrDisabled):
		log.Info("InfluxDB disabled")
	case err != nil:
		log.Warn("InfluxDB unavailable, running without telemetry", "error", err)
	default:
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
		recorder = influxClient
		service.SetRecorder(recorder)
	}

	// Raw SQL console, only when explicitly allowed
	var console *patient.Console
	if cfg.Query.AllowRaw {
		console = patient.NewTrustedConsole(manager, patient.ConsoleConfig{
			MaxRows:  cfg.Query.MaxRows,
			Auditor:  auditRepo,
			Recorder: recorder,
			Logger:   log,
		})
	}

	deps := api.Deps{
		Config:   cfg.API,
		Query:    cfg.Query,
		Logger:   log,
		Manager:  manager,
		Patients: service,
		Console:  console,
		Audit:    auditRepo,
		Version:  version,
	}
	if mqttClient != nil {
		deps.MQTT = mqttClient
	}

	server, err := api.New(deps)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}

	log.Info("initialisation complete, waiting for shutdown signal", "address", server.Addr())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received, cleaning up")
		return server.Close()
	})

	if err := g.Wait(); err != nil {
		return err
	}

	// Deferred Close() calls run in reverse order:
	// InfluxDB, MQTT, then the database engine.
	log.Info("patient registry stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses PATIENTREG_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("PATIENTREG_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// engineConfig maps the loaded configuration to engine settings.
func engineConfig(cfg *config.Config) engine.Config {
	return engine.Config{
		Database: database.Config{
			Driver:      cfg.Database.Driver,
			Path:        cfg.Database.Path,
			WALMode:     cfg.Database.WALMode,
			BusyTimeout: cfg.Database.BusyTimeout,
		},
		QueueSize: cfg.Engine.QueueSize,
	}
}

// connectMQTT connects to the broker. Events are best-effort, so a failure
// is logged and nil returned.
func connectMQTT(cfg config.MQTTConfig, log *logging.Logger) *mqtt.Client {
	client, err := mqtt.Connect(cfg)
	if err != nil {
		log.Warn("MQTT unavailable, registration events disabled", "error", err)
		return nil
	}
	client.SetLogger(log)
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.Broker.Host, cfg.Broker.Port),
		"client_id", cfg.Broker.ClientID,
	)
	return client
}
