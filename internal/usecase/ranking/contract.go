package ranking

import "context"

// BudgetChecker is the local interface for call budget enforcement.
type BudgetChecker interface {
	Check(ctx context.Context) error
	Record(calls int64)
	RemainingDaily() int64
}
