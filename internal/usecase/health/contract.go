package health

import "context"

// DatasetCounter reports how many reference medicines are loaded.
type DatasetCounter interface {
	Count() int
}

// ModelLister reports which ensemble models are ready.
type ModelLister interface {
	ReadyModels() []string
}

// Pinger checks a storage backend's availability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ProviderChecker checks ranking provider availability.
type ProviderChecker interface {
	HealthCheck(ctx context.Context) error
}
