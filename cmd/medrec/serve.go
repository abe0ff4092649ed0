package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/doshi-kevin/medrec/internal/config"
	"github.com/doshi-kevin/medrec/internal/db"
	dbRedis "github.com/doshi-kevin/medrec/internal/db/redis"
	"github.com/doshi-kevin/medrec/internal/domain"
	"github.com/doshi-kevin/medrec/internal/domain/symptom"
	logpkg "github.com/doshi-kevin/medrec/internal/logger"
	"github.com/doshi-kevin/medrec/internal/metrics"
	"github.com/doshi-kevin/medrec/internal/model"
	"github.com/doshi-kevin/medrec/internal/repository/artifacts"
	budgetrepo "github.com/doshi-kevin/medrec/internal/repository/budget"
	"github.com/doshi-kevin/medrec/internal/repository/dataset"
	"github.com/doshi-kevin/medrec/internal/repository/rankcache"
	"github.com/doshi-kevin/medrec/internal/repository/results"
	anthropicGen "github.com/doshi-kevin/medrec/internal/transport/anthropic"
	chiTransport "github.com/doshi-kevin/medrec/internal/transport/chi"
	openaiGen "github.com/doshi-kevin/medrec/internal/transport/openai"
	ensembleuc "github.com/doshi-kevin/medrec/internal/usecase/ensemble"
	"github.com/doshi-kevin/medrec/internal/usecase/features"
	healthuc "github.com/doshi-kevin/medrec/internal/usecase/health"
	"github.com/doshi-kevin/medrec/internal/usecase/normalize"
	rankinguc "github.com/doshi-kevin/medrec/internal/usecase/ranking"
	recommenduc "github.com/doshi-kevin/medrec/internal/usecase/recommend"
	"github.com/doshi-kevin/medrec/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, err := logpkg.NewLogger(flagEnv, cfg.Logging.Level)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting medrec API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", flagEnv),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("dataset", cfg.Dataset.Path),
		zap.String("ranking_provider", cfg.Ranking.Provider),
	)

	// Register pipeline metrics explicitly (no init())
	metrics.RegisterPipelineMetrics()

	// Optional KV store for the rank cache and budget counters
	ctx := context.Background()
	var store db.Store
	if cfg.Cache.Enabled {
		store, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Cache.Addrs,
			Password: cfg.Cache.Password,
		})
		if err != nil {
			return fmt.Errorf("create cache store: %w", err)
		}
		defer store.Close()

		readiness := time.Duration(cfg.Cache.ReadinessTimeout) * time.Second
		if err := store.WaitForReady(ctx, readiness); err != nil {
			return fmt.Errorf("cache store not ready: %w", err)
		}
		logger.Info("Connected to cache store", zap.Strings("addrs", cfg.Cache.Addrs))
	}

	// Reference dataset — startup-fatal when missing or malformed
	vocab := symptom.Default()
	repo, err := dataset.Load(cfg.Dataset.Path, vocab, cfg.Dataset.MaxRecords)
	if err != nil {
		return err
	}
	logger.Info("Dataset loaded",
		zap.Int("medicines", repo.Count()),
		zap.Int("skipped_rows", repo.Skipped()),
	)

	builder := features.New(vocab, repo)
	models, weights, clusterModel, err := buildModels(cfg, repo, builder, logger)
	if err != nil {
		return err
	}

	ens := ensembleuc.New(models, weights, repo, repo,
		cfg.Ensemble.PoolSize, cfg.Ensemble.TopK, logger)
	logger.Info("Ensemble assembled",
		zap.Strings("models", ens.ReadyModels()),
		zap.Int("pool_size", ens.PoolSize()),
		zap.Int("top_k", ens.DefaultTopK()),
	)

	norm := normalize.New(vocab, logger)
	recommender := recommenduc.New(norm, builder, ens, repo, logger)
	health := healthuc.New(repo, ens)
	status := domain.Status{
		DatasetLoaded:  true,
		TotalMedicines: repo.Count(),
		SchemaVersion:  builder.SchemaVersion(),
		ModelsLoaded:   ens.ReadyModels(),
		CacheEnabled:   cfg.Cache.Enabled,
		ResultsEnabled: cfg.Results.Enabled,
	}
	if store != nil {
		health.WithCache(store)
	}
	if clusterModel != nil {
		recommender.WithClassContext(clusterModel)
	}

	// Ranking chain: provider -> agent -> cache -> budget/instrumentation
	if cfg.Ranking.Provider != "" && cfg.Ranking.Provider != "none" {
		gen, checker, err := buildServeGenerator(cfg.Ranking, logger)
		if err != nil {
			return err
		}

		agent := rankinguc.NewAgent(gen, rankinguc.Config{
			Provider:           cfg.Ranking.Provider,
			Model:              cfg.Ranking.Model,
			Timeout:            time.Duration(cfg.Ranking.TimeoutSec) * time.Second,
			MaxAttempts:        cfg.Ranking.MaxAttempts,
			BackoffBase:        time.Duration(cfg.Ranking.BackoffMs) * time.Millisecond,
			RateLimitRPS:       cfg.Ranking.RateLimitRPS,
			BreakerEnabled:     cfg.Ranking.Breaker.Enabled,
			BreakerMinRequests: uint32(cfg.Ranking.Breaker.MinRequests),
			BreakerOpenTimeout: time.Duration(cfg.Ranking.Breaker.OpenSec) * time.Second,
		}, logger)

		var ranker domain.Ranker = agent
		if store != nil {
			ttl := time.Duration(cfg.Cache.TTLSec) * time.Second
			ranker = rankcache.New(agent, store, ttl, metrics.RankCacheTotal, logger)
		}

		// Pass nil interface (not typed nil pointer!) if budget is not configured.
		var budgetChecker rankinguc.BudgetChecker
		if cfg.Ranking.Budget.DailyCallLimit > 0 {
			action := rankinguc.BudgetActionWarn
			if cfg.Ranking.Budget.Action == "reject" {
				action = rankinguc.BudgetActionReject
			}
			budget := rankinguc.NewCallBudget(cfg.Ranking.Provider,
				cfg.Ranking.Budget.DailyCallLimit, action, logger)
			if store != nil {
				budget.WithStore(ctx, budgetrepo.New(store, 48*time.Hour))
			}
			budgetChecker = budget
		}

		inst := rankinguc.NewInstrumentedRanker(ranker, agent,
			cfg.Ranking.Provider, budgetChecker, logger)
		recommender.WithRanker(inst).WithSafety(inst)
		health.WithRanking(checker)
		status.RankingProvider = cfg.Ranking.Provider
		status.RankingModel = cfg.Ranking.Model
	}

	if cfg.Results.Enabled {
		res, err := results.Open(cfg.Results.Path, logger)
		if err != nil {
			return fmt.Errorf("open results store: %w", err)
		}
		defer func() { _ = res.Close() }()
		recommender.WithStore(res)
		health.WithResults(res)
		logger.Info("Results store opened", zap.String("path", cfg.Results.Path))
	}

	server := chiTransport.NewServer(recommender, health, staticStatus{status}, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-quit:
		logger.Info("Received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
	return nil
}

// buildModels assembles the ensemble models from the artifact bundle. The
// lexical model derives from the live dataset and is always present; bayes
// and cluster load from artifacts and are skipped when absent. A schema
// version drift in any artifact aborts startup.
func buildModels(
	cfg config.Config, repo *dataset.Repo, builder *features.Builder, logger *zap.Logger,
) ([]domain.Model, map[string]float64, *model.Cluster, error) {
	models := []domain.Model{model.NewLexical(repo, builder.SchemaVersion())}
	if cfg.Artifacts.Dir == "" {
		logger.Info("No artifacts directory configured, running with the lexical model only")
		return models, nil, nil, nil
	}

	store := artifacts.New(cfg.Artifacts.Dir)

	var weights map[string]float64
	manifest, err := store.LoadManifest()
	switch {
	case err == nil:
		if err := builder.VerifyArtifactVersion(manifest.SchemaVersion); err != nil {
			return nil, nil, nil, err
		}
		weights = manifest.Weights
	case errors.Is(err, artifacts.ErrMissing):
		logger.Info("No artifact manifest, using equal model weights")
	default:
		return nil, nil, nil, err
	}

	bayes, err := store.LoadBayes()
	switch {
	case err == nil:
		m, err := model.NewBayes(bayes.ClassPriors, bayes.TokenLikelihoods,
			bayes.Smoothing, repo, bayes.SchemaVersion, builder.SchemaVersion())
		if err != nil {
			return nil, nil, nil, err
		}
		models = append(models, m)
	case errors.Is(err, artifacts.ErrMissing):
		logger.Info("No bayes artifact, model skipped")
	default:
		return nil, nil, nil, err
	}

	var clusterModel *model.Cluster
	clusters, err := store.LoadClusters()
	switch {
	case err == nil:
		groups := make([]model.ClusterGroup, 0, len(clusters.Clusters))
		for _, cl := range clusters.Clusters {
			groups = append(groups, model.ClusterGroup{
				Size:         cl.Size,
				PrimaryClass: cl.PrimaryClass,
				Classes:      cl.Classes,
			})
		}
		m, err := model.NewCluster(groups, repo, clusters.SchemaVersion, builder.SchemaVersion())
		if err != nil {
			return nil, nil, nil, err
		}
		models = append(models, m)
		clusterModel = m
	case errors.Is(err, artifacts.ErrMissing):
		logger.Info("No clusters artifact, model skipped")
	default:
		return nil, nil, nil, err
	}

	return models, weights, clusterModel, nil
}

func buildServeGenerator(
	cfg config.RankingConfig, logger *zap.Logger,
) (domain.Generator, domain.HealthChecker, error) {
	switch cfg.Provider {
	case "openai":
		g := openaiGen.NewGenerator(&openaiGen.Config{
			APIKey:   cfg.APIKey,
			BaseURL:  cfg.BaseURL,
			Model:    cfg.Model,
			Provider: cfg.Provider,
			Logger:   logger,
		})
		return g, g, nil
	case "anthropic":
		g := anthropicGen.NewGenerator(&anthropicGen.Config{
			APIKey:   cfg.APIKey,
			BaseURL:  cfg.BaseURL,
			Model:    cfg.Model,
			Provider: cfg.Provider,
			Logger:   logger,
		})
		return g, g, nil
	default:
		return nil, nil, fmt.Errorf("unknown ranking provider %q", cfg.Provider)
	}
}

// staticStatus serves the immutable startup snapshot.
type staticStatus struct {
	status domain.Status
}

func (s staticStatus) Status() domain.Status { return s.status }

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
