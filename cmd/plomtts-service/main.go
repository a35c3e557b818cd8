// main package for the plomtts-service
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/book-expert/logger"
	"github.com/book-expert/plomtts-service/internal/config"
	"github.com/book-expert/plomtts-service/internal/entrystore"
	"github.com/book-expert/plomtts-service/internal/integration"
	"github.com/book-expert/plomtts-service/internal/metrics"
	"github.com/book-expert/plomtts-service/internal/objectstore"
	"github.com/book-expert/plomtts-service/internal/setup"
	"github.com/book-expert/plomtts-service/internal/tts"
	"github.com/book-expert/plomtts-service/internal/worker"
	"github.com/nats-io/nats.go"
	"golang.org/x/sync/errgroup"
)

func setupLogger(logPath, fileName string) (*logger.Logger, error) {
	log, err := logger.New(logPath, fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return log, nil
}

func run() error {
	// 1. Create a temporary logger for the bootstrap process
	bootstrapLog, err := setupLogger(os.TempDir(), "plomtts-service-bootstrap.log")
	if err != nil {
		// If bootstrap logger fails, we can only print to stderr
		fmt.Fprintf(os.Stderr, "FATAL: Failed to create bootstrap logger: %v\n", err)

		return err
	}

	defer func() { _ = bootstrapLog.Close() }()

	bootstrapLog.Info("Bootstrap logger created.")

	// 2. Load configuration using the central configurator
	cfg, err := config.Load(bootstrapLog)
	if err != nil {
		bootstrapLog.Error("Failed to load configuration: %v", err)

		return fmt.Errorf("failed to load configuration: %w", err)
	}

	bootstrapLog.Info("Configuration loaded successfully.")

	// 3. Initialize the final logger based on the loaded configuration
	finalLog, err := setupLogger(cfg.Paths.BaseLogsDir, "plomtts-service.log")
	if err != nil {
		bootstrapLog.Error("Failed to create final logger: %v", err)

		return fmt.Errorf("failed to create final logger: %w", err)
	}

	defer func() {
		closeErr := finalLog.Close()
		if closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing final logger: %v\n", closeErr)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg, finalLog)
}

func serve(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	natsConnection, err := nats.Connect(cfg.NATS.URL, nats.Name("plomtts-service"))
	if err != nil {
		return fmt.Errorf("failed to connect to NATS at %s: %w", cfg.NATS.URL, err)
	}

	defer natsConnection.Close()

	jetstreamContext, err := natsConnection.JetStream()
	if err != nil {
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	entries, err := entrystore.New(jetstreamContext, cfg.NATS.EntryBucket, log)
	if err != nil {
		return err
	}

	audio, err := objectstore.New(jetstreamContext, cfg.NATS.AudioObjectStoreBucket)
	if err != nil {
		return err
	}

	registry := metrics.NewRegistry()
	serviceMetrics := metrics.New(registry)
	newClient := tts.NewFactory(cfg.PlomTTS.Timeout())

	integ := integration.New(newClient, log, serviceMetrics, cfg.PlomTTS.DefaultVoice)

	manager := setup.NewManager(entries, newClient, log, serviceMetrics)
	manager.SetDefaultServerURL(cfg.PlomTTS.ServerURL)

	speechWorker := worker.NewNatsWorker(
		natsConnection, cfg.NATS.SpeechRequestSubject, integ, audio, log, serviceMetrics,
	)
	flowWorker := worker.NewFlowWorker(
		natsConnection, cfg.NATS.FlowStartSubject, cfg.NATS.FlowStepSubject, manager, log,
	)

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error { return speechWorker.Run(groupCtx) })
	group.Go(func() error { return flowWorker.Run(groupCtx) })
	group.Go(func() error { return integ.Watch(groupCtx, entries) })
	group.Go(func() error { return manager.Run(groupCtx) })

	if cfg.Metrics.ListenAddr != "" {
		exporter := metrics.NewExporter(cfg.Metrics.ListenAddr, registry)

		group.Go(func() error { return exporter.Run(groupCtx) })
	}

	logMessage := "PlomTTS service initialized. Listening for speech on %s and flows on %s, %s"
	log.System(logMessage, cfg.NATS.SpeechRequestSubject, cfg.NATS.FlowStartSubject, cfg.NATS.FlowStepSubject)

	err = group.Wait()
	if err != nil {
		return fmt.Errorf("service stopped: %w", err)
	}

	log.System("PlomTTS service stopped.")

	return nil
}

func main() {
	err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Service exited with error: %v\n", err)
		os.Exit(1)
	}
}
