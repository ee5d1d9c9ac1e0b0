package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tejusbharadwaj/itemhistory/internal/api"
	"github.com/tejusbharadwaj/itemhistory/internal/config"
	"github.com/tejusbharadwaj/itemhistory/internal/database"
	server "github.com/tejusbharadwaj/itemhistory/internal/grpc"
	middleware "github.com/tejusbharadwaj/itemhistory/internal/grpc/middlewares"
	"github.com/tejusbharadwaj/itemhistory/internal/ingest"
	"github.com/tejusbharadwaj/itemhistory/internal/item"
	"github.com/tejusbharadwaj/itemhistory/internal/models"
	"github.com/tejusbharadwaj/itemhistory/internal/persistence"
	"github.com/tejusbharadwaj/itemhistory/internal/scheduler"
)

const (
	shutdownTimeout = 10 * time.Second
	importSpec      = "*/5 * * * *"
	importWindow    = 5 * time.Minute
)

func newServeCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the gRPC and REST query service and the state recorder",
		RunE: func(cmd *cobra.Command, args []string) error {
			appConfig, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			return serve(appConfig)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "config.yaml", "path to config file")
	return cmd
}

// source is a live state feed.
type source interface {
	Run(ctx context.Context, out chan<- models.StateUpdate) error
	Close() error
}

func serve(appConfig *config.Config) error {
	logger, err := newLogger(appConfig.Logging)
	if err != nil {
		return err
	}

	// Writes to any store drop the cached gRPC answers they affect.
	cache, err := middleware.NewCache(appConfig.Server.CacheSize)
	if err != nil {
		return err
	}
	stores, err := buildStores(appConfig.Persistence, server.PurgeOnWrite(cache))
	if err != nil {
		return err
	}
	defer stores.Close()

	items, err := buildItems(appConfig.Items)
	if err != nil {
		return err
	}

	loc, err := appConfig.Location()
	if err != nil {
		return err
	}
	ext := persistence.New(stores,
		persistence.WithLogger(logger),
		persistence.WithClock(persistence.SystemClock{Location: loc}),
		persistence.WithPageSize(appConfig.Persistence.PageSize),
	)

	// Create a context that will be canceled on shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := middleware.Register(prometheus.DefaultRegisterer, ingest.Updates, ingest.Persisted); err != nil {
		return err
	}

	health := server.NewHealthChecker()
	svc := server.NewPersistenceQueryService(items, ext, logger)
	grpcServer, err := server.SetupServer(svc, server.ServerConfig{
		CacheSize:      appConfig.Server.CacheSize,
		RateLimit:      appConfig.Server.RateLimit,
		RateLimitBurst: appConfig.Server.RateLimitBurst,
		Cache:          cache,
	}, health, logger)
	if err != nil {
		return fmt.Errorf("failed to setup server: %w", err)
	}

	router := api.NewRouter(api.NewHandler(items, ext, health.IsServing, logger), promhttp.Handler())
	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", appConfig.Server.Host, appConfig.Server.HTTPPort),
		Handler:           api.Wrap(router, logger.Writer()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lis, err := net.Listen("tcp", fmt.Sprintf("%s:%d", appConfig.Server.Host, appConfig.Server.GRPCPort))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	strategy, err := ingest.ParseStrategy(appConfig.Recorder.Strategy)
	if err != nil {
		return err
	}
	recorder := ingest.NewRecorder(items, stores, strategy, logger)
	sched := scheduler.NewScheduler(ctx, logger)
	if err := scheduleJobs(ctx, sched, appConfig, stores, items, recorder, logger); err != nil {
		return err
	}

	errChan := make(chan error, 4)
	updates := make(chan models.StateUpdate, 256)
	sources := liveSources(appConfig, logger)
	for _, src := range sources {
		go func(src source) {
			if err := src.Run(ctx, updates); err != nil {
				errChan <- fmt.Errorf("state source: %w", err)
			}
		}(src)
	}
	go recorder.Run(ctx, updates)

	sched.Start()

	go func() {
		logger.WithField("addr", lis.Addr().String()).Info("Starting gRPC server")
		if err := grpcServer.Serve(lis); err != nil {
			errChan <- fmt.Errorf("grpc server error: %w", err)
		}
	}()
	go func() {
		logger.WithField("addr", httpServer.Addr).Info("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()
	health.Serving()

	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case err = <-errChan:
		logger.WithError(err).Error("Service error")
	}

	shutdown(grpcServer.GracefulStop, httpServer, sched, sources, health, logger)
	return err
}

func liveSources(appConfig *config.Config, logger *logrus.Logger) []source {
	var sources []source
	if appConfig.MQTT.Broker != "" {
		sources = append(sources, ingest.NewMQTTSource(appConfig.MQTT, logger))
	}
	if len(appConfig.Kafka.Brokers) > 0 {
		sources = append(sources, ingest.NewKafkaSource(appConfig.Kafka, logger))
	}
	return sources
}

// scheduleJobs sets up cron snapshots and the history import. The initial
// import runs in the background.
func scheduleJobs(
	ctx context.Context,
	sched *scheduler.Scheduler,
	appConfig *config.Config,
	stores *database.Registry,
	items *item.Registry,
	recorder *ingest.Recorder,
	logger *logrus.Logger,
) error {
	if appConfig.Recorder.Cron != "" {
		if err := sched.Add("snapshot", appConfig.Recorder.Cron, recorder.Snapshot); err != nil {
			return fmt.Errorf("recorder cron: %w", err)
		}
	}

	if appConfig.Importer.URL == "" {
		return nil
	}
	store, ok := stores.Default()
	if !ok {
		return errors.New("importer needs a default persistence service")
	}
	importer := ingest.NewImporter(appConfig.Importer.URL, store, logger)
	names := appConfig.Importer.Items
	if len(names) == 0 {
		names = itemNames(items)
	}

	go func() {
		if err := importer.BootstrapHistoricalData(ctx, names, appConfig.Importer.Lookback); err != nil {
			logger.WithError(err).Warn("history bootstrap incomplete")
		}
	}()

	return sched.Add("import", importSpec, func(ctx context.Context) error {
		end := time.Now().UTC()
		var errs []error
		for _, name := range names {
			if _, err := importer.FetchData(ctx, name, end.Add(-importWindow), end); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
			}
		}
		return errors.Join(errs...)
	})
}

// shutdown stops accepting work first and releases resources last.
func shutdown(stopGRPC func(), httpServer *http.Server, sched *scheduler.Scheduler, sources []source, health *server.HealthChecker, logger *logrus.Logger) {
	logger.Info("Gracefully stopping server...")
	health.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.WithError(err).Warn("http shutdown")
	}
	stopGRPC()
	sched.Stop()
	for _, src := range sources {
		if err := src.Close(); err != nil {
			logger.WithError(err).Warn("closing state source")
		}
	}
	logger.Info("Server stopped")
}
