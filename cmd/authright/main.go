package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/authright-test/iga-test-sub000/pkg/audit"
	"github.com/authright-test/iga-test-sub000/pkg/config"
	"github.com/authright-test/iga-test-sub000/pkg/github"
	"github.com/authright-test/iga-test-sub000/pkg/httputil"
	"github.com/authright-test/iga-test-sub000/pkg/observability"
	"github.com/authright-test/iga-test-sub000/pkg/orgs"
	"github.com/authright-test/iga-test-sub000/pkg/policy"
	"github.com/authright-test/iga-test-sub000/pkg/rbac"
	"github.com/authright-test/iga-test-sub000/pkg/webhooks"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "authright: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	httpLogger := logrus.New()
	httpLogger.SetFormatter(&logrus.JSONFormatter{})

	registry := prometheus.NewRegistry()
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnLifetime)
	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	defer redisClient.Close()

	// The organizations table is referenced by every other schema, so
	// the org store initializes first.
	orgStore, err := orgs.NewStore(db)
	if err != nil {
		return err
	}
	if err := rbac.RunMigrations(context.Background(), db); err != nil {
		return fmt.Errorf("failed to run rbac migrations: %w", err)
	}
	recorder, err := audit.NewRecorder(db)
	if err != nil {
		return err
	}
	policyStore, err := policy.NewStore(db)
	if err != nil {
		return err
	}

	privateKey, err := os.ReadFile(cfg.GitHub.PrivateKeyPath)
	if err != nil {
		return fmt.Errorf("failed to read github app private key: %w", err)
	}
	appAuth, err := github.NewAppAuth(cfg.GitHub.AppID, privateKey)
	if err != nil {
		return err
	}
	githubClient := github.NewClient(appAuth, logger, metrics,
		github.WithBaseURL(cfg.GitHub.BaseURL),
		github.WithTimeout(cfg.GitHub.RequestTimeout),
	)

	rbacStore := rbac.NewStore(db)
	cache := rbac.NewCache(redisClient)
	checker := rbac.NewChecker(rbacStore, cache, logger, metrics)
	manager := rbac.NewAssignmentManager(rbacStore, cache, logger, metrics)

	evaluator := policy.NewEvaluator(logger, metrics)
	executor := policy.NewExecutor(githubClient, recorder, logger, metrics)

	dispatcher := webhooks.NewDispatcher(cfg.Webhook.Secret, logger, metrics)
	enforcer := webhooks.NewEnforcer(policyStore, evaluator, executor, orgStore, logger)
	dispatcher.Register(webhooks.EventRepository, enforcer.Handle)
	dispatcher.Register(webhooks.EventMember, enforcer.Handle)
	dispatcher.Register(webhooks.EventOrganization, enforcer.Handle)
	dispatcher.Register(webhooks.EventTeam, enforcer.Handle)
	dispatcher.Register(webhooks.EventInstallation, orgs.NewInstallationHandler(orgStore))

	router := mux.NewRouter()
	router.Use(httputil.RequestID)
	router.Use(httputil.Identity)
	router.Use(httputil.Logging(httpLogger))
	router.Use(httputil.Recovery(httpLogger))
	api := router.PathPrefix("/api/v1").Subrouter()
	rbac.NewHandlers(manager, checker, rbacStore, httpLogger).RegisterRoutes(api)
	policy.NewHandlers(policyStore, httpLogger).RegisterRoutes(api)
	auditAPI := api.NewRoute().Subrouter()
	auditAPI.Use(rbac.RequirePermission(checker, "view:audit_logs"))
	audit.NewHandlers(recorder, httpLogger).RegisterRoutes(auditAPI)
	orgs.NewHandlers(orgStore, httpLogger).RegisterRoutes(api)
	webhooks.NewHandlers(dispatcher, httpLogger).RegisterRoutes(router)

	healthMux := http.NewServeMux()
	healthMux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		if err := cache.Ping(r.Context()); err != nil {
			http.Error(w, "cache unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	if cfg.Observability.MetricsEnabled {
		healthMux.Handle("/metrics", observability.Handler(registry))
	}

	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthMux,
	}

	var syncer *orgs.Syncer
	if cfg.Sync.Enabled {
		syncer = orgs.NewSyncer(orgStore, githubClient, recorder, logger)
		if err := syncer.Start(cfg.Sync.Schedule); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.WithField("addr", server.Addr).Info("api server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	group.Go(func() error {
		logger.WithField("addr", healthServer.Addr).Info("health server listening")
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")

		if syncer != nil {
			syncer.Stop()
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("api server shutdown failed")
		}
		if err := healthServer.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("health server shutdown failed")
		}
		return nil
	})

	if err := group.Wait(); err != nil {
		return err
	}

	logger.Info("stopped")
	return nil
}
