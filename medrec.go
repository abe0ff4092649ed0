// Package medrec recommends medicines for patient-reported symptoms. A
// request flows through a fixed pipeline: free text is normalized to
// canonical symptom tokens, a versioned feature vector is built, an
// ensemble of local models scores a candidate pool from the reference
// dataset, and an external generative-AI service re-ranks and explains the
// top candidates. The external service is optional: without it (or when it
// fails) results keep the ensemble's own order and explanations are marked
// unavailable.
package medrec

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/doshi-kevin/medrec/internal/db"
	dbredis "github.com/doshi-kevin/medrec/internal/db/redis"
	"github.com/doshi-kevin/medrec/internal/domain"
	"github.com/doshi-kevin/medrec/internal/domain/recommendation"
	"github.com/doshi-kevin/medrec/internal/domain/symptom"
	"github.com/doshi-kevin/medrec/internal/metrics"
	"github.com/doshi-kevin/medrec/internal/model"
	"github.com/doshi-kevin/medrec/internal/repository/artifacts"
	budgetrepo "github.com/doshi-kevin/medrec/internal/repository/budget"
	"github.com/doshi-kevin/medrec/internal/repository/dataset"
	"github.com/doshi-kevin/medrec/internal/repository/rankcache"
	"github.com/doshi-kevin/medrec/internal/repository/results"
	anthropicgen "github.com/doshi-kevin/medrec/internal/transport/anthropic"
	openaigen "github.com/doshi-kevin/medrec/internal/transport/openai"
	ensembleuc "github.com/doshi-kevin/medrec/internal/usecase/ensemble"
	"github.com/doshi-kevin/medrec/internal/usecase/features"
	healthuc "github.com/doshi-kevin/medrec/internal/usecase/health"
	"github.com/doshi-kevin/medrec/internal/usecase/normalize"
	rankinguc "github.com/doshi-kevin/medrec/internal/usecase/ranking"
	recommenduc "github.com/doshi-kevin/medrec/internal/usecase/recommend"
)

const storeReadinessTimeout = 10 * time.Second

// Recommendation is one final recommended medicine.
type Recommendation struct {
	Rank              int
	MedicineID        string
	Name              string
	TherapeuticClass  string
	Manufacturer      string
	Confidence        float64
	ModelScores       map[string]float64
	Explanation       string
	Contraindications []string
	RelatedClasses    []string
	SideEffects       []string
	Substitutes       []string
}

// Result is the assembled outcome of one recommendation request.
type Result struct {
	ID        string
	CreatedAt time.Time
	// Symptoms are the canonical tokens the input normalized to.
	Symptoms []string
	// Recommendations are in authoritative final order.
	Recommendations []Recommendation
	// ModelsUsed names the ensemble models that contributed scores.
	ModelsUsed []string
	// ExplanationsAvailable is false when the ranking service was skipped
	// or failed and the ensemble order was kept.
	ExplanationsAvailable bool
	// OrderSource is "ranking-service" or "ensemble-order".
	OrderSource string
}

// PatientProfile is the context for an interaction check.
type PatientProfile struct {
	Medicines  []string
	Allergies  []string
	Conditions []string
}

// SafetyReport is the outcome of an interaction check. Status is "safe",
// "caution", or "unknown" when the check could not be performed.
type SafetyReport struct {
	Status   string
	Warnings []string
}

// Status reports what the pipeline has loaded.
type Status struct {
	DatasetLoaded   bool
	TotalMedicines  int
	SchemaVersion   int
	ModelsLoaded    []string
	RankingProvider string
	RankingModel    string
	CacheEnabled    bool
	ResultsEnabled  bool
}

// HealthReport aggregates per-component health checks. Status is "ok",
// "degraded", or "error"; Checks maps component names to "ok"/"error".
type HealthReport struct {
	Status string
	Checks map[string]string
}

// Client is the embeddable entry point to the recommendation pipeline.
// It is safe for concurrent use: all loaded state is read-only and every
// request is scoped to its own call.
type Client struct {
	recommender *recommenduc.Service
	health      *healthuc.Service
	store       db.Store
	results     *results.Store
	status      domain.Status
	logger      *zap.Logger
}

// New loads the reference dataset and model artifacts and wires the
// pipeline. At minimum WithDataset is required; everything else degrades:
// no artifacts means lexical scoring only, no ranking provider means
// ensemble order with explanations unavailable.
func New(opts ...Option) (*Client, error) {
	cfg := defaultClientConfig()
	for _, o := range opts {
		o(cfg)
	}
	if cfg.datasetPath == "" {
		return nil, errors.New("medrec: dataset path required (use WithDataset)")
	}
	logger := cfg.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	vocab := symptom.Default()
	repo, err := dataset.Load(cfg.datasetPath, vocab, cfg.maxRecords)
	if err != nil {
		return nil, fmt.Errorf("medrec: %w", err)
	}
	builder := features.New(vocab, repo)

	models, weights, clusterModel, err := loadModels(cfg, repo, builder, logger)
	if err != nil {
		return nil, fmt.Errorf("medrec: load artifacts: %w", err)
	}

	ens := ensembleuc.New(models, weights, repo, repo, cfg.poolSize, cfg.topK, logger)
	norm := normalize.New(vocab, logger)
	svc := recommenduc.New(norm, builder, ens, repo, logger)
	health := healthuc.New(repo, ens)

	c := &Client{
		recommender: svc,
		health:      health,
		logger:      logger,
		status: domain.Status{
			DatasetLoaded:  true,
			TotalMedicines: repo.Count(),
			SchemaVersion:  builder.SchemaVersion(),
			ModelsLoaded:   ens.ReadyModels(),
		},
	}

	if len(cfg.cacheAddrs) > 0 {
		store, err := dbredis.NewStore(dbredis.Config{
			Addrs:    cfg.cacheAddrs,
			Password: cfg.cachePassword,
		})
		if err != nil {
			return nil, fmt.Errorf("medrec: create cache store: %w", err)
		}
		if err := store.WaitForReady(context.Background(), storeReadinessTimeout); err != nil {
			store.Close()
			return nil, fmt.Errorf("medrec: cache store not ready: %w", err)
		}
		c.store = store
		c.status.CacheEnabled = true
		health.WithCache(store)
	}

	if cfg.ranking.provider != "" {
		if err := c.wireRanking(cfg, svc, health, logger); err != nil {
			c.Close()
			return nil, err
		}
	}

	if clusterModel != nil {
		svc.WithClassContext(clusterModel)
	}

	if cfg.resultsPath != "" {
		res, err := results.Open(cfg.resultsPath, logger)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("medrec: open results store: %w", err)
		}
		c.results = res
		c.status.ResultsEnabled = true
		svc.WithStore(res)
		health.WithResults(res)
	}

	return c, nil
}

// wireRanking assembles the ranking chain: provider -> agent -> cache ->
// budget/instrumentation, then hands it to the orchestrator.
func (c *Client) wireRanking(
	cfg *clientConfig, svc *recommenduc.Service, health *healthuc.Service, logger *zap.Logger,
) error {
	gen, checker, err := buildGenerator(cfg.ranking, logger)
	if err != nil {
		return err
	}

	agent := rankinguc.NewAgent(gen, rankinguc.Config{
		Provider:           cfg.ranking.provider,
		Model:              cfg.ranking.model,
		Timeout:            cfg.ranking.timeout,
		MaxAttempts:        cfg.ranking.maxAttempts,
		BackoffBase:        cfg.ranking.backoffBase,
		RateLimitRPS:       cfg.ranking.rateLimitRPS,
		BreakerEnabled:     cfg.ranking.breakerEnabled,
		BreakerMinRequests: cfg.ranking.breakerMinRequests,
		BreakerOpenTimeout: cfg.ranking.breakerOpenFor,
	}, logger)

	var ranker domain.Ranker = agent
	if c.store != nil {
		ranker = rankcache.New(agent, c.store, cfg.cacheTTL, metrics.RankCacheTotal, logger)
	}

	// Typed-nil gotcha: assign the budget to the interface var only when
	// one is configured, so the nil check downstream stays meaningful.
	var budgetChecker rankinguc.BudgetChecker
	if cfg.budgetDailyLimit > 0 {
		action := rankinguc.BudgetActionWarn
		if cfg.budgetReject {
			action = rankinguc.BudgetActionReject
		}
		budget := rankinguc.NewCallBudget(cfg.ranking.provider, cfg.budgetDailyLimit, action, logger)
		if c.store != nil {
			budget.WithStore(context.Background(), budgetrepo.New(c.store, 48*time.Hour))
		}
		budgetChecker = budget
	}

	inst := rankinguc.NewInstrumentedRanker(ranker, agent, cfg.ranking.provider, budgetChecker, logger)
	svc.WithRanker(inst).WithSafety(inst)
	health.WithRanking(checker)

	c.status.RankingProvider = cfg.ranking.provider
	c.status.RankingModel = cfg.ranking.model
	return nil
}

func buildGenerator(cfg rankingConfig, logger *zap.Logger) (domain.Generator, domain.HealthChecker, error) {
	switch cfg.provider {
	case "openai":
		g := openaigen.NewGenerator(&openaigen.Config{
			APIKey:   cfg.apiKey,
			BaseURL:  cfg.baseURL,
			Model:    cfg.model,
			Provider: cfg.provider,
			Logger:   logger,
		})
		return g, g, nil
	case "anthropic":
		g := anthropicgen.NewGenerator(&anthropicgen.Config{
			APIKey:   cfg.apiKey,
			BaseURL:  cfg.baseURL,
			Model:    cfg.model,
			Provider: cfg.provider,
			Logger:   logger,
		})
		return g, g, nil
	default:
		return nil, nil, fmt.Errorf("medrec: unknown ranking provider %q", cfg.provider)
	}
}

// loadModels builds the ensemble models. The lexical model derives from the
// live dataset and is always present; the bayes and cluster models need the
// artifact bundle and are skipped when their files are absent. A schema
// version drift in any artifact is a hard error.
func loadModels(
	cfg *clientConfig, repo *dataset.Repo, builder *features.Builder, logger *zap.Logger,
) ([]domain.Model, map[string]float64, *model.Cluster, error) {
	models := []domain.Model{model.NewLexical(repo, builder.SchemaVersion())}
	if cfg.artifactsDir == "" {
		return models, nil, nil, nil
	}

	store := artifacts.New(cfg.artifactsDir)

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
		m, err := model.NewBayes(
			bayes.ClassPriors, bayes.TokenLikelihoods, bayes.Smoothing,
			repo, bayes.SchemaVersion, builder.SchemaVersion(),
		)
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

// Recommend runs one request through the pipeline. topK overrides the
// configured final list size when positive. Use errors.Is against the
// package sentinels to classify failures; FailedStage reports where a
// failed request stopped.
func (c *Client) Recommend(ctx context.Context, symptoms string, topK int) (Result, error) {
	outcome, err := c.recommender.Recommend(ctx, recommenduc.Request{Text: symptoms, TopK: topK})
	if err != nil {
		return Result{}, err
	}
	return resultFrom(outcome), nil
}

// CheckInteractions verifies a patient profile against proposed medicine
// ids. Without a ranking provider the report status is "unknown".
func (c *Client) CheckInteractions(
	ctx context.Context, profile PatientProfile, medicineIDs []string,
) (SafetyReport, error) {
	report, err := c.recommender.CheckInteractions(ctx, domain.PatientProfile{
		Medicines:  profile.Medicines,
		Allergies:  profile.Allergies,
		Conditions: profile.Conditions,
	}, medicineIDs)
	if err != nil {
		return SafetyReport{}, err
	}
	return SafetyReport{Status: string(report.Status), Warnings: report.Warnings}, nil
}

// Recommendation returns a persisted result by request id. Requires
// WithResults; otherwise every id reports ErrRecommendationNotFound.
func (c *Client) Recommendation(ctx context.Context, id string) (Result, error) {
	outcome, err := c.recommender.Get(ctx, id)
	if err != nil {
		return Result{}, err
	}
	return resultFrom(outcome), nil
}

// Recent returns the most recently persisted results, newest first.
func (c *Client) Recent(ctx context.Context, limit int) ([]Result, error) {
	outcomes, err := c.recommender.Recent(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]Result, 0, len(outcomes))
	for _, o := range outcomes {
		out = append(out, resultFrom(o))
	}
	return out, nil
}

// Status reports what the pipeline has loaded.
func (c *Client) Status() Status {
	return Status{
		DatasetLoaded:   c.status.DatasetLoaded,
		TotalMedicines:  c.status.TotalMedicines,
		SchemaVersion:   c.status.SchemaVersion,
		ModelsLoaded:    c.status.ModelsLoaded,
		RankingProvider: c.status.RankingProvider,
		RankingModel:    c.status.RankingModel,
		CacheEnabled:    c.status.CacheEnabled,
		ResultsEnabled:  c.status.ResultsEnabled,
	}
}

// Health runs health checks against all configured components.
func (c *Client) Health(ctx context.Context) HealthReport {
	report := c.health.Check(ctx)
	checks := make(map[string]string, len(report.Checks))
	for name, res := range report.Checks {
		checks[name] = string(res)
	}
	return HealthReport{Status: string(report.Status), Checks: checks}
}

// Close releases the cache connection and the results store.
func (c *Client) Close() {
	if c.store != nil {
		c.store.Close()
	}
	if c.results != nil {
		if err := c.results.Close(); err != nil {
			c.logger.Warn("Failed to close results store", zap.Error(err))
		}
	}
}

// FailedStage reports the pipeline stage a failed Recommend stopped at.
func FailedStage(err error) (string, bool) {
	stage, ok := domain.StageOf(err)
	return string(stage), ok
}

func resultFrom(o recommendation.Outcome) Result {
	items := make([]Recommendation, 0, len(o.Items()))
	for _, it := range o.Items() {
		med := it.Medicine()
		items = append(items, Recommendation{
			Rank:              it.Rank(),
			MedicineID:        med.ID(),
			Name:              med.Name(),
			TherapeuticClass:  med.TherapeuticClass(),
			Manufacturer:      med.Manufacturer(),
			Confidence:        it.Confidence(),
			ModelScores:       it.ModelScores(),
			Explanation:       it.Explanation(),
			Contraindications: it.Contraindications(),
			RelatedClasses:    it.RelatedClasses(),
			SideEffects:       med.SideEffects(),
			Substitutes:       med.Substitutes(),
		})
	}
	return Result{
		ID:                    o.ID(),
		CreatedAt:             o.CreatedAt(),
		Symptoms:              o.Symptoms(),
		Recommendations:       items,
		ModelsUsed:            o.ModelsUsed(),
		ExplanationsAvailable: o.ExplanationsAvailable(),
		OrderSource:           string(o.OrderSource()),
	}
}
