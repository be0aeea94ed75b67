// Air purifier bridge
//
// Exposes a Xiaomi miio air purifier as a set of accessories: an MQTT
// command/state bridge, a REST and WebSocket API, a local change history
// in SQLite and optional telemetry in InfluxDB.
//
// Device calls are relayed over MQTT to the gateway that owns the encrypted
// miio session with the appliance.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/nerrad567/gray-logic-airpurifier/internal/accessory"
	"github.com/nerrad567/gray-logic-airpurifier/internal/api"
	"github.com/nerrad567/gray-logic-airpurifier/internal/bridges/miio"
	"github.com/nerrad567/gray-logic-airpurifier/internal/history"
	"github.com/nerrad567/gray-logic-airpurifier/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-airpurifier/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-airpurifier/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-airpurifier/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-airpurifier/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-airpurifier/migrations"
)

// Version information, set at build time via ldflags:
// go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const defaultConfigPath = "configs/config.yaml"

func main() {
	issueFor := flag.String("issue-token", "", "print an API token for the given subject and exit")
	flag.Parse()

	if *issueFor != "" {
		if err := issueToken(os.Stdout, *issueFor); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// issueToken signs a bearer token with the configured secret and TTL.
func issueToken(w io.Writer, subject string) error {
	cfg, err := config.Load(config.PathFromEnv(defaultConfigPath))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	token, err := api.IssueToken([]byte(cfg.Security.JWT.Secret), subject, cfg.GetTokenTTL())
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, token)
	return err
}

// run starts every component and blocks until ctx is cancelled. Components
// are torn down in reverse start order by the deferred calls.
//
// Parameters:
//   - ctx: Cancelled on SIGINT/SIGTERM
//
// Returns:
//   - error: nil on clean shutdown, or the first startup failure
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting air purifier bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := config.PathFromEnv(defaultConfigPath)
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if !cfg.Protocols.Miio.Enabled {
		return errors.New("protocols.miio.enabled is false, nothing to expose")
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded", "path", configPath, "level", cfg.Logging.Level)

	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()

	if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database ready", "path", cfg.Database.Path)

	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log)
	mqttClient.SetOnConnect(func() { log.Info("MQTT reconnected") })
	mqttClient.SetOnDisconnect(func(err error) { log.Warn("MQTT disconnected", "error", err) })
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
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
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	bus := &mqttBridgeAdapter{client: mqttClient}
	p, err := startPurifier(ctx, cfg, bus, registry, log)
	if err != nil {
		return err
	}
	defer p.stop(log)

	historyRepo := history.NewSQLiteRepository(db.DB)
	recorder := history.NewRecorder(history.RecorderConfig{
		Repository: historyRepo,
		Retention:  cfg.GetHistoryRetention(),
		QueueSize:  cfg.History.QueueSize,
		Logger:     log,
	})
	recorder.Start(ctx)
	defer func() {
		log.Info("stopping history recorder")
		recorder.Stop()
		if n := recorder.Dropped(); n > 0 {
			log.Warn("history events dropped", "count", n)
		}
	}()
	p.platform.Observe(recorder.Observe)

	if influxClient != nil {
		p.platform.Observe(func(e accessory.Event) {
			influxClient.WriteCharacteristic(e.AccessoryID, e.Service, e.Characteristic, e.Value, e.Timestamp)
		})
	}

	if cfg.API.Enabled {
		checks := map[string]api.HealthCheckFunc{
			"database": db.HealthCheck,
			"mqtt":     mqttClient.HealthCheck,
		}
		if influxClient != nil {
			checks["influxdb"] = influxClient.HealthCheck
		}

		server, apiErr := api.New(api.Deps{
			Config:       cfg.API,
			WS:           cfg.WebSocket,
			Security:     cfg.Security,
			Logger:       log,
			Accessories:  p.platform,
			History:      historyRepo,
			Gatherer:     registry,
			Registerer:   registry,
			HealthChecks: checks,
			Version:      version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		p.platform.Observe(server.PublishEvent)

		if startErr := server.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("API disabled")
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	return nil
}

// purifier holds the device chain and the MQTT bridge for one appliance.
type purifier struct {
	relay    *miio.RelayDevice
	platform *miio.Platform
	bridge   *miio.Bridge
}

// startPurifier builds relay → rate limiter → instrumentation, the
// accessory platform on top of it and the MQTT bridge in front of it.
func startPurifier(ctx context.Context, cfg *config.Config, bus miio.MQTTClient, reg prometheus.Registerer, log *logging.Logger) (*purifier, error) {
	miioCfg, err := miio.LoadConfig(cfg.Protocols.Miio.ConfigFile)
	if err != nil {
		return nil, fmt.Errorf("loading miio config: %w", err)
	}
	log.Info("miio config loaded",
		"path", cfg.Protocols.Miio.ConfigFile,
		"device", miioCfg.Device.String(),
	)

	relay, err := miio.NewRelayDevice(miio.RelayOptions{
		Client:   bus,
		DeviceID: miioCfg.Device.ID,
		IP:       miioCfg.Device.IP,
		Token:    miioCfg.Device.Token,
		Timeout:  miioCfg.GetCallTimeout(),
		Logger:   log,
	})
	if err != nil {
		return nil, fmt.Errorf("creating relay device: %w", err)
	}
	if err := relay.Start(); err != nil {
		return nil, fmt.Errorf("starting relay device: %w", err)
	}

	metrics := miio.NewMetricsCollector()
	if err := reg.Register(metrics); err != nil {
		relay.Close()
		return nil, fmt.Errorf("registering miio metrics: %w", err)
	}
	device := miio.NewInstrumentedDevice(
		miio.NewRateLimitedDevice(relay, miioCfg.Device.RateLimit, miioCfg.Device.RateBurst),
		metrics,
	)

	platform, err := miio.NewPlatform(miio.PlatformOptions{
		Config:   miioCfg,
		Device:   device,
		Registry: accessory.DefaultRegistry(),
		Logger:   log,
	})
	if err != nil {
		relay.Close()
		return nil, fmt.Errorf("creating accessories: %w", err)
	}

	bridge, err := miio.NewBridge(miio.BridgeOptions{
		Config:     miioCfg,
		MQTTClient: bus,
		Platform:   platform,
		Stats:      device,
		Version:    version,
		Logger:     log,
	})
	if err != nil {
		relay.Close()
		return nil, fmt.Errorf("creating miio bridge: %w", err)
	}
	if err := bridge.Start(ctx); err != nil {
		bridge.Stop()
		relay.Close()
		return nil, fmt.Errorf("starting miio bridge: %w", err)
	}
	log.Info("miio bridge started", "accessories", len(platform.Accessories()))

	return &purifier{relay: relay, platform: platform, bridge: bridge}, nil
}

func (p *purifier) stop(log *logging.Logger) {
	log.Info("stopping miio bridge")
	p.bridge.Stop()
	p.relay.Close()
}

// healthCheck verifies the infrastructure connections once at startup.
// influxClient may be nil when telemetry is disabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}

// mqttBridgeAdapter adapts the infrastructure MQTT client to miio.MQTTClient,
// whose handlers do not return errors.
type mqttBridgeAdapter struct {
	client *mqtt.Client
}

func (a *mqttBridgeAdapter) Publish(topic string, payload []byte, qos byte, retained bool) error {
	return a.client.Publish(topic, payload, qos, retained)
}

func (a *mqttBridgeAdapter) Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error {
	return a.client.Subscribe(topic, qos, func(t string, p []byte) error {
		handler(t, p)
		return nil
	})
}

func (a *mqttBridgeAdapter) IsConnected() bool {
	return a.client.IsConnected()
}

// Compile-time check
var _ miio.MQTTClient = (*mqttBridgeAdapter)(nil)
