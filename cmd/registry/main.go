package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/flashlightplugins/registry/pkg/api"
	"github.com/flashlightplugins/registry/pkg/appcast"
	"github.com/flashlightplugins/registry/pkg/async"
	"github.com/flashlightplugins/registry/pkg/config"
	"github.com/flashlightplugins/registry/pkg/consolekey"
	"github.com/flashlightplugins/registry/pkg/directory"
	"github.com/flashlightplugins/registry/pkg/middleware"
	"github.com/flashlightplugins/registry/pkg/observability"
	"github.com/flashlightplugins/registry/pkg/registry"
	"github.com/flashlightplugins/registry/pkg/search"
	"github.com/flashlightplugins/registry/pkg/storage/postgres"
)

const fetchTimeout = 30 * time.Second

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.WithError(err).Fatal("Configuration load failed")
	}

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	if level, err := logrus.ParseLevel(cfg.Observability.LogLevel.String()); err == nil {
		log.SetLevel(level)
	}

	slogger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	ctx := context.Background()
	otelProviders, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, slogger)
	if err != nil {
		log.WithError(err).Fatal("OpenTelemetry initialization failed")
	}

	store, err := postgres.NewStore(cfg.Storage)
	if err != nil {
		log.WithError(err).Fatal("Database connection failed")
	}
	defer store.Close()

	blobs, err := postgres.NewS3BlobStore(cfg.Storage)
	if err != nil {
		log.WithError(err).Fatal("Blob store initialization failed")
	}

	redisClient, err := postgres.NewRedisClient(cfg.Storage)
	if err != nil {
		log.WithError(err).Fatal("Redis connection failed")
	}
	defer redisClient.Close()

	keys := consolekey.NewIssuer(redisClient, log)

	serveURL := func(key string) string {
		return cfg.Service.PublicBaseURL + "/serve/" + key
	}
	assets := registry.NewAssetPublisher(blobs, serveURL)
	fetcher := registry.NewHTTPFetcher(fetchTimeout)
	uploads := registry.NewUploader(store, fetcher, assets, keys, log)

	searcher := search.NewSQLSearcher(store.DB())
	dir := directory.NewService(store, searcher, redisClient, cfg.Storage, log)
	if schedule := cfg.Service.CategoriesWarmSchedule; schedule != "" {
		warmer, err := dir.StartCategoryWarmer(schedule)
		if err != nil {
			log.WithError(err).Fatal("Category warmer schedule is invalid")
		}
		defer warmer.Stop()
	}

	var feed *appcast.Resolver
	if cfg.Service.AppcastURL != "" {
		feed = appcast.NewResolver(cfg.Service.AppcastURL, redisClient, log)
	}

	var metrics *observability.Metrics
	var promRegistry *prometheus.Registry
	if cfg.Observability.MetricsEnabled {
		promRegistry = prometheus.NewRegistry()
		metrics = observability.NewMetrics(promRegistry)
		dir.Instrument(metrics)
	}
	async.SafeGo(ctx, fetchTimeout, "startup category warm", log, dir.RefreshCategories)
	health := observability.NewHealthChecker(store.DB(), redisClient.Client(), blobs)

	server := api.NewServer(api.Options{
		Uploads:        uploads,
		Store:          store,
		Directory:      dir,
		Blobs:          blobs,
		ConsoleKeys:    keys,
		Appcast:        feed,
		AdminAuth:      middleware.NewAdminAuth(cfg.Service.AdminTokens),
		Health:         health,
		Metrics:        metrics,
		Registry:       promRegistry,
		Log:            log,
		PublicBaseURL:  cfg.Service.PublicBaseURL,
		UploadMaxBytes: cfg.Service.UploadMaxBytes,
	})

	addr := cfg.Server.Host + ":" + cfg.Server.Port
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      server.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := observability.NewShutdownManager(slogger, httpServer, cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return observability.ShutdownOTel(ctx, otelProviders, slogger)
	})

	go func() {
		log.WithField("addr", addr).Info("Plugin registry listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("Server failed")
		}
	}()

	if err := shutdown.WaitForShutdown(); err != nil {
		log.WithError(err).Error("Shutdown finished with errors")
	}
}
