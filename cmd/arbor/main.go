package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/arborcms/arbor/pkg/api"
	"github.com/arborcms/arbor/pkg/async"
	"github.com/arborcms/arbor/pkg/authz"
	"github.com/arborcms/arbor/pkg/config"
	"github.com/arborcms/arbor/pkg/content"
	"github.com/arborcms/arbor/pkg/httputil"
	"github.com/arborcms/arbor/pkg/middleware"
	"github.com/arborcms/arbor/pkg/observability"
	"github.com/arborcms/arbor/pkg/storage"
	"github.com/arborcms/arbor/pkg/tree"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	purgeSchedule  = flag.String("purge-schedule", "30 3 * * *", "Cron schedule for purging finalized deletions")
	purgeRetention = flag.Duration("purge-retention", 30*24*time.Hour, "How long finalized deletions are kept before purging")
	skipMigrations = flag.Bool("skip-migrations", false, "Do not run schema migrations on startup")
)

func main() {
	flag.Parse()

	startup := logrus.New()
	startup.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.LoadConfig()
	if err != nil {
		startup.WithError(err).Fatal("Failed to load configuration")
	}

	log := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	cm, err := storage.NewConnectionManager(storage.ConnectionConfig{
		PrimaryURL:  cfg.Database.URL,
		ReplicaURLs: cfg.Database.ReplicaURLs,
		MaxConns:    cfg.Database.MaxConns,
		MinConns:    cfg.Database.MinConns,
		Timeout:     cfg.Database.Timeout,
		MaxLifetime: cfg.Database.MaxLifetime,
		MaxIdleTime: cfg.Database.MaxIdleTime,
	}, log)
	if err != nil {
		startup.WithError(err).Fatal("Failed to connect to database")
	}
	defer cm.Close()

	ctx := context.Background()
	if !*skipMigrations {
		if err := storage.RunMigrations(ctx, cm.Primary()); err != nil {
			startup.WithError(err).Fatal("Failed to run migrations")
		}
		startup.Info("Schema migrations applied")
	}
	cm.StartHealthCheckRoutine(ctx, 30*time.Second)

	ruleStore := authz.NewStore(cm.Primary())
	groups := authz.NewGroupService(ruleStore,
		cfg.Authz.GroupRefreshInterval, 2*cfg.Authz.GroupRefreshInterval)
	factory := authz.NewServiceFactory(ruleStore, groups, cfg.Authz.RenderPrincipal)

	// Warm the group graph so the first requests do not pay the load.
	async.SafeGo(ctx, log, 30*time.Second, "group graph warmup", groups.Refresh)

	var entityCache *tree.EntityCache
	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		entityCache, err = tree.NewEntityCache(cfg.Redis.URL, cfg.Redis.TTL)
		if err != nil {
			startup.WithError(err).Fatal("Failed to connect to redis")
		}
		defer entityCache.Close()

		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			startup.WithError(err).Fatal("Invalid redis URL")
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()
	}

	registry := content.NewCachedRegistry(content.NewSQLRegistry(cm.Primary()),
		cfg.Authz.TemplateCacheSize, cfg.Authz.TemplateCacheTTL)

	treeStore := tree.NewSQLStore(cm.Primary(), tree.DialectPostgres)
	mutator := tree.NewMutator(treeStore, registry, entityCache, log)
	reader := tree.NewReader(treeStore, entityCache, log)

	promRegistry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(promRegistry)

	// Shared rate limits when Redis is around, per-process otherwise.
	rateLimit := middleware.NewRateLimitMiddleware().Handler
	if redisClient != nil {
		rateLimit = middleware.NewDistributedRateLimitMiddleware(redisClient).Handler
	}

	var handler http.Handler = api.NewServer(reader, mutator, log)
	handler = httputil.Chain(
		observability.RecoveryMiddleware(log),
		middleware.RequestIDMiddleware(log),
		httputil.MaxBytesMiddleware(1<<20),
		httputil.ContentTypeMiddleware,
		middleware.NewPrincipalMiddleware(factory).Handler,
		rateLimit,
		observability.HTTPMetricsMiddleware(metrics),
	)(handler)

	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, observability.NewHealthChecker(cm.Primary(), redisClient))
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(healthMux, promRegistry)
	}
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthMux,
	}
	go func() {
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("health server failed")
		}
	}()

	jobs := cron.New()
	if _, err := jobs.AddFunc("@every "+cfg.Authz.GroupRefreshInterval.String(), func() {
		if err := groups.Refresh(context.Background()); err != nil {
			log.WithError(err).Warn("group graph refresh failed")
			metrics.GroupGraphRefreshTotal.WithLabelValues("error").Inc()
			return
		}
		metrics.GroupGraphRefreshTotal.WithLabelValues("ok").Inc()
	}); err != nil {
		startup.WithError(err).Fatal("Failed to schedule group graph refresh")
	}
	if _, err := jobs.AddFunc(*purgeSchedule, func() {
		cutoff := time.Now().UTC().Add(-*purgeRetention)
		purged, err := treeStore.PurgeDeleted(context.Background(), cutoff)
		if err != nil {
			log.WithError(err).Error("purge of finalized deletions failed")
			return
		}
		log.WithField("purged", purged).Info("purged finalized deletions")
	}); err != nil {
		startup.WithError(err).Fatal("Failed to schedule deletion purge")
	}
	jobs.Start()

	sm := observability.NewShutdownManager(log, server, cfg.Server.ShutdownTimeout)
	sm.RegisterShutdownFunc(func(ctx context.Context) error {
		return healthServer.Shutdown(ctx)
	})
	sm.RegisterShutdownFunc(func(ctx context.Context) error {
		stopped := jobs.Stop()
		select {
		case <-stopped.Done():
		case <-ctx.Done():
		}
		return nil
	})

	go func() {
		startup.WithField("addr", server.Addr).Info("Arbor content tree service listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			startup.WithError(err).Fatal("Server failed")
		}
	}()

	if err := sm.WaitForShutdown(); err != nil {
		startup.WithError(err).Error("Shutdown finished with errors")
		os.Exit(1)
	}
}
