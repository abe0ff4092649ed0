package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates an optional component is failing.
	Degraded Status = "degraded"
	// Unhealthy indicates the serving core is down.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks. The dataset and the model ensemble are
// the serving core: if either is empty the service cannot answer and reports
// Unhealthy. Cache, results store and ranking provider are optional and only
// degrade.
type Service struct {
	dataset DatasetCounter
	models  ModelLister
	cache   Pinger
	results Pinger
	ranking ProviderChecker
}

// New creates a Service over the serving core.
func New(dataset DatasetCounter, models ModelLister) *Service {
	return &Service{dataset: dataset, models: models}
}

// WithCache adds the rank cache backend to the checks.
func (s *Service) WithCache(p Pinger) *Service {
	s.cache = p
	return s
}

// WithResults adds the results store to the checks.
func (s *Service) WithResults(p Pinger) *Service {
	s.results = p
	return s
}

// WithRanking adds the ranking provider to the checks.
func (s *Service) WithRanking(c ProviderChecker) *Service {
	s.ranking = c
	return s
}

// Check runs health checks against all configured components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)
	coreDown := false

	if s.dataset == nil || s.dataset.Count() == 0 {
		checks["dataset"] = CheckError
		coreDown = true
	} else {
		checks["dataset"] = CheckOK
	}

	if s.models == nil || len(s.models.ReadyModels()) == 0 {
		checks["models"] = CheckError
		coreDown = true
	} else {
		checks["models"] = CheckOK
	}

	if s.cache != nil {
		if err := s.cache.Ping(ctx); err != nil {
			checks["cache"] = CheckError
		} else {
			checks["cache"] = CheckOK
		}
	}

	if s.results != nil {
		if err := s.results.Ping(ctx); err != nil {
			checks["results"] = CheckError
		} else {
			checks["results"] = CheckOK
		}
	}

	if s.ranking != nil {
		if err := s.ranking.HealthCheck(ctx); err != nil {
			checks["ranking"] = CheckError
		} else {
			checks["ranking"] = CheckOK
		}
	}

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}
	if coreDown {
		status = Unhealthy
	}

	return Report{Status: status, Checks: checks}
}
