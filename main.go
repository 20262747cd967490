package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver for migrations
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mindcase/mindcase-core/pkg/auth"
	"github.com/mindcase/mindcase-core/pkg/config"
	"github.com/mindcase/mindcase-core/pkg/database"
	"github.com/mindcase/mindcase-core/pkg/handlers"
	"github.com/mindcase/mindcase-core/pkg/logging"
	"github.com/mindcase/mindcase-core/pkg/metrics"
	"github.com/mindcase/mindcase-core/pkg/outbox"
	"github.com/mindcase/mindcase-core/pkg/regions"
	"github.com/mindcase/mindcase-core/pkg/repositories"
	"github.com/mindcase/mindcase-core/pkg/retry"
	"github.com/mindcase/mindcase-core/pkg/services"
	"github.com/mindcase/mindcase-core/pkg/syncengine"
	"github.com/mindcase/mindcase-core/pkg/telemetry"
	"github.com/mindcase/mindcase-core/pkg/trust"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("startup failed", zap.Error(err))
	}
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "local" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	m := metrics.New(nil)

	weights := trust.DefaultWeights()
	if cfg.TrustWeightsPath != "" {
		loaded, err := trust.LoadWeights(cfg.TrustWeightsPath)
		if err != nil {
			return err
		}
		weights = loaded
	}
	engine := trust.NewEngine(weights)

	handles := make(map[string]*regions.StoreHandle, len(cfg.Regions.Shards))
	for region, url := range cfg.Regions.Shards {
		migrationsDB, err := sql.Open("pgx", url)
		if err != nil {
			return fmt.Errorf("open shard %s for migrations: %w", region, err)
		}
		if err := database.RunMigrations(migrationsDB, cfg.MigrationsPath, logger); err != nil {
			migrationsDB.Close()
			return fmt.Errorf("migrate shard %s: %w", region, err)
		}
		migrationsDB.Close()

		db, err := retry.DoWithResult(ctx, nil, func() (*database.DB, error) {
			return database.NewConnection(ctx, &database.Config{Region: region, URL: url})
		})
		if err != nil {
			logger.Error("shard unreachable",
				zap.String("region", region),
				zap.String("url", logging.SanitizeConnectionString(url)),
				zap.String("cause", logging.SanitizeError(err)))
			return fmt.Errorf("connect shard %s: %w", region, err)
		}
		defer db.Close()

		handles[region] = &regions.StoreHandle{
			Region:    region,
			Records:   repositories.NewPostgresRecordStore(db),
			Documents: repositories.NewPostgresDocumentStore(db),
		}
		logger.Info("regional shard online", zap.String("region", region))
	}

	resolver := regions.NewHandleResolver(
		regions.NewStaticProvider(handles),
		regions.NewStaticDirectory(cfg.Regions.Tenants, cfg.Regions.DefaultRegion),
	)

	blobs, err := services.NewLocalBlobStore(filepath.Join(cfg.DataDir, "blobs"))
	if err != nil {
		return err
	}

	recordService := services.NewRecordService(resolver, engine, m, logger)
	documentService := services.NewDocumentService(resolver, blobs, m, logger)

	storage, err := newQueueStorage(ctx, cfg)
	if err != nil {
		return err
	}

	// Connectivity starts online; deployments flip the signal from their
	// network detector.
	conn := syncengine.NewSignal(true)

	queue, err := outbox.New(ctx, storage, telemetry.NewLogSink(logger), logger,
		outbox.WithMaxRetries(cfg.Queue.MaxRetries),
		outbox.WithMetrics(m),
		outbox.WithOnlineProbe(conn.Online),
		outbox.WithKeyPrefix(cfg.Queue.Session+"-"),
	)
	if err != nil {
		return err
	}
	services.RegisterReplayHandlers(queue, recordService, documentService)

	sync := syncengine.New(queue, conn, m, logger)
	sync.Start(ctx)
	defer sync.Stop()

	// Drain anything that survived the last shutdown.
	if err := sync.Flush(ctx); err != nil {
		logger.Warn("initial flush failed", zap.Error(err))
	}

	actors := newActorProvider(cfg, logger)

	mux := http.NewServeMux()
	handlers.NewRecordHandler(recordService, sync, actors, logger).RegisterRoutes(mux)
	handlers.NewDocumentHandler(documentService, sync, actors, logger).RegisterRoutes(mux)
	handlers.NewSyncHandler(sync, queue, logger).RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: ":9090", Handler: mux}
	go func() {
		<-ctx.Done()
		_ = server.Shutdown(context.Background())
	}()

	logger.Info("mindcase-core started",
		zap.String("version", cfg.Version),
		zap.String("env", cfg.Env),
		zap.Int("regions", len(handles)))
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// newActorProvider resolves actors from bearer tokens when a signing secret
// is configured. Without one, local deployments run as a fixed actor.
func newActorProvider(cfg *config.Config, logger *zap.Logger) auth.ActorProvider {
	if cfg.ActorTokenSecret != "" {
		return auth.NewJWTProvider([]byte(cfg.ActorTokenSecret))
	}
	logger.Warn("ACTOR_TOKEN_SECRET not set, all writes attributed to the local actor")
	return auth.StaticProvider{ID: "local"}
}

func newQueueStorage(ctx context.Context, cfg *config.Config) (outbox.DurableStorage, error) {
	if cfg.Queue.Backend == "redis" {
		client, err := database.NewRedisClient(ctx, &database.RedisConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, err
		}
		return outbox.NewRedisStorage(client, "outbox:"+cfg.Queue.Session), nil
	}
	return outbox.NewFileStorage(filepath.Join(cfg.DataDir, "outbox"))
}
