// Dolphin Core - MQTT supervisory ingester for traffic-signal equipment.
//
// Dolphin subscribes to controller and display-device telemetry, classifies
// LED channel currents against learned per-duty baselines, persists status
// history to MariaDB, mirrors display datasets to Firestore, watches for
// silent (LTE-faulted) devices, and broadcasts operator SMS alerts.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/dolphin-iot/dolphin-core/internal/alert"
	"github.com/dolphin-iot/dolphin-core/internal/baseline"
	"github.com/dolphin-iot/dolphin-core/internal/equipment"
	"github.com/dolphin-iot/dolphin-core/internal/heartbeat"
	"github.com/dolphin-iot/dolphin-core/internal/infrastructure/config"
	"github.com/dolphin-iot/dolphin-core/internal/infrastructure/database"
	"github.com/dolphin-iot/dolphin-core/internal/infrastructure/docstore"
	"github.com/dolphin-iot/dolphin-core/internal/infrastructure/influxdb"
	"github.com/dolphin-iot/dolphin-core/internal/infrastructure/logging"
	"github.com/dolphin-iot/dolphin-core/internal/infrastructure/mqtt"
	"github.com/dolphin-iot/dolphin-core/internal/monitor"
	"github.com/dolphin-iot/dolphin-core/internal/sms"
	"github.com/dolphin-iot/dolphin-core/internal/telemetry"
)

// version is the release version reported by --version and attached to
// every log line.
const version = "0.2.2"

// connectNoticeDelay is how long after a broker (re)connect the
// connection notice is sent. The short pause lets the subscription
// restore finish first.
const connectNoticeDelay = 125 * time.Millisecond

func main() {
	if len(os.Args) > 1 && (os.Args[1] == "--version" || os.Args[1] == "-v") {
		fmt.Println(versionString())
		return
	}

	if missing := config.MissingRequired(); len(missing) > 0 {
		fmt.Fprintln(os.Stderr, usageMessage(missing))
		os.Exit(1)
	}

	// Cancel on interrupt signals (Ctrl+C, SIGTERM) for graceful shutdown.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// versionString renders the --version output.
func versionString() string {
	return fmt.Sprintf("dolphin version: dolphin/%s (%s)", version, runtime.GOOS)
}

// usageMessage names the required environment variables that are absent.
func usageMessage(missing []string) string {
	return "USAGE: Must be set " + strings.Join(missing, ", ")
}

// run is the actual application logic, separated from main for
// testability. Returning an error allows main to handle exit codes
// consistently.
func run(ctx context.Context) error {
	log := logging.Default()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Reinitialise logger with config settings.
	log = logging.New(cfg.Logging, version)
	log.Info("starting dolphin", "version", version, "os", runtime.GOOS)

	// Open the relational store.
	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "host", cfg.Database.Host, "database", cfg.Database.Database)

	repo := equipment.NewMySQLRepository(db.DB)

	// Outbound SMS and the alert fan-out.
	sender, err := sms.NewSender(cfg.SMS, log)
	if err != nil {
		return fmt.Errorf("configuring SMS sender: %w", err)
	}
	notifier := alert.NewNotifier(sender, cfg.Alert, log)
	notifier.Start(ctx)
	defer notifier.Stop()
	log.Info("alert notifier started",
		"provider", cfg.SMS.Provider,
		"recipients", len(cfg.Alert.Numbers),
	)

	// Baseline cache: an immediate build, then periodic refreshes.
	cache := baseline.NewCache()
	refresher := baseline.NewRefresher(cache, repo,
		time.Duration(cfg.Pipeline.BaselineRefreshMinutes)*time.Minute, log)
	go refresher.Run(ctx)

	// Liveness sweep for devices that stop reporting.
	mon := monitor.New(repo, notifier,
		time.Duration(cfg.Pipeline.LivenessSweepMinutes)*time.Minute, log)
	go mon.Run(ctx)

	// Optional InfluxDB telemetry mirror.
	var metrics telemetry.MetricsSink
	influxClient, err := influxdb.Connect(cfg.InfluxDB)
	switch {
	case errors.Is(err, influxdb.ErrDisabled):
		log.Info("influxdb mirror disabled")
	case err != nil:
		return fmt.Errorf("connecting to InfluxDB: %w", err)
	default:
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("influxdb write error", "error", err)
		})
		metrics = influxClient
		log.Info("influxdb mirror connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	}

	// Optional Firestore mirror for display datasets.
	var docs telemetry.DocSink
	store, err := docstore.Connect(ctx, cfg.DocStore)
	switch {
	case errors.Is(err, docstore.ErrDisabled):
		log.Info("document mirror disabled")
	case err != nil:
		return fmt.Errorf("connecting to Firestore: %w", err)
	default:
		defer func() {
			log.Info("closing Firestore connection")
			if closeErr := store.Close(); closeErr != nil {
				log.Error("error closing Firestore", "error", closeErr)
			}
		}()
		docs = store
		log.Info("document mirror connected",
			"project", cfg.DocStore.ProjectID,
			"collection", cfg.DocStore.Collection,
		)
	}

	// Message handlers behind a bounded worker pool: broker deliveries
	// enqueue and return, the pool does the database and HTTP work.
	pool := telemetry.NewPool(cfg.Pipeline.Workers, cfg.Pipeline.QueueSize, log)
	pool.Start(ctx)
	defer pool.Stop()

	controller := telemetry.NewControllerHandler(repo, cache, notifier,
		cfg.Alert.ExcludeDevices, metrics, log)
	display := telemetry.NewDisplayHandler(repo, docs, log)

	router := mqtt.NewRouter()
	router.SetLogger(log)
	router.Handle(mqtt.PatternControllerStatus, submitTo(pool, log, controller.Handle))
	router.Handle(mqtt.PatternDisplayDeviceStatus, submitTo(pool, log, display.Handle))

	// Connect to the broker, retrying until it comes up or we are told
	// to stop. The ingester is useless without it, but the broker may
	// start after us.
	client, err := connectBroker(ctx, cfg.MQTT, log)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := client.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	client.SetLogger(log)
	log.Info("MQTT connected", "host", cfg.MQTT.Host)

	if err := client.Bind(router); err != nil {
		return fmt.Errorf("subscribing: %w", err)
	}

	// Heartbeat publishers run for the life of the process; they pause
	// themselves while the broker is unreachable.
	heart := heartbeat.New(client,
		time.Duration(cfg.Pipeline.HeartbeatMinutes)*time.Minute,
		byte(cfg.MQTT.QoS), log)
	go heart.Run(ctx)

	connectNotice := func() {
		go func() {
			if !sleepCtx(ctx, connectNoticeDelay) {
				return
			}
			notifier.Notify(alert.BrokerConnected)
		}()
	}
	client.SetOnConnect(func() {
		log.Info("MQTT reconnected")
		connectNotice()
	})
	client.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
		notifier.Notify(alert.BrokerDisconnected)
	})

	// The initial connection predates the callback registration; send
	// its notice by hand. The notifier dedupes if both paths fire.
	connectNotice()

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	return nil
}

// connectBroker dials the MQTT broker, retrying with the configured
// delay until it succeeds or ctx is cancelled.
func connectBroker(ctx context.Context, cfg config.MQTTConfig, log *logging.Logger) (*mqtt.Client, error) {
	retry := time.Duration(cfg.ReconnectDelay) * time.Second
	if retry <= 0 {
		retry = 10 * time.Second
	}

	for {
		client, err := mqtt.Connect(cfg)
		if err == nil {
			return client, nil
		}
		log.Warn("MQTT connect failed, retrying", "host", cfg.Host, "retry", retry, "error", err)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("connecting to MQTT: %w", ctx.Err())
		case <-time.After(retry):
		}
	}
}

// submitTo adapts a telemetry handler into a router handler that runs
// on the worker pool. Messages arriving while the queue is full are
// dropped; the pool logs the drop.
func submitTo(pool *telemetry.Pool, log *logging.Logger, handle func(ctx context.Context, topic string, payload []byte) error) mqtt.MessageHandler {
	return func(topic string, payload []byte) error {
		pool.Submit(func() {
			if err := handle(context.Background(), topic, payload); err != nil {
				log.Error("message handler failed", "topic", topic, "error", err)
			}
		})
		return nil
	}
}

// sleepCtx sleeps for d unless ctx is cancelled first. Returns false on
// cancellation.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
