package results

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/doshi-kevin/medrec/internal/domain"
	"github.com/doshi-kevin/medrec/internal/domain/candidate"
	"github.com/doshi-kevin/medrec/internal/domain/medicine"
	"github.com/doshi-kevin/medrec/internal/domain/recommendation"
)

const schema = `
CREATE TABLE IF NOT EXISTS recommendations (
	id           TEXT PRIMARY KEY,
	created_at   TEXT NOT NULL,
	symptoms     TEXT NOT NULL DEFAULT '[]',
	models_used  TEXT NOT NULL DEFAULT '[]',
	explanations INTEGER NOT NULL DEFAULT 0,
	order_source TEXT NOT NULL DEFAULT '',
	items        TEXT NOT NULL DEFAULT '[]'
);

CREATE INDEX IF NOT EXISTS idx_recommendations_created_at
	ON recommendations (created_at DESC);
`

// itemRow is the persisted snapshot of one recommendation. Medicine details
// beyond name and class stay in the reference dataset; the snapshot holds
// what the history endpoints serve.
type itemRow struct {
	Rank              int                `json:"rank"`
	MedicineID        string             `json:"medicine_id"`
	Name              string             `json:"name"`
	TherapeuticClass  string             `json:"therapeutic_class"`
	Confidence        float64            `json:"confidence"`
	ModelScores       map[string]float64 `json:"model_scores,omitempty"`
	Explanation       string             `json:"explanation,omitempty"`
	Contraindications []string           `json:"contraindications,omitempty"`
	RelatedClasses    []string           `json:"related_classes,omitempty"`
}

// Store persists completed recommendation outcomes to SQLite.
type Store struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// Open opens (creating if needed) the results database at path.
func Open(path string, logger *zap.Logger) (*Store, error) {
	db, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open results db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create results schema: %w", err)
	}

	logger.Info("Results store opened", zap.String("path", path))
	return &Store{db: db, logger: logger}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Save persists an outcome, replacing any previous row with the same id.
func (s *Store) Save(ctx context.Context, o recommendation.Outcome) error {
	rows := make([]itemRow, 0, len(o.Items()))
	for _, item := range o.Items() {
		med := item.Medicine()
		rows = append(rows, itemRow{
			Rank:              item.Rank(),
			MedicineID:        med.ID(),
			Name:              med.Name(),
			TherapeuticClass:  med.TherapeuticClass(),
			Confidence:        item.Confidence(),
			ModelScores:       item.ModelScores(),
			Explanation:       item.Explanation(),
			Contraindications: item.Contraindications(),
			RelatedClasses:    item.RelatedClasses(),
		})
	}

	_, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO recommendations
		(id, created_at, symptoms, models_used, explanations, order_source, items)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		o.ID(),
		o.CreatedAt().UTC().Format(time.RFC3339Nano),
		marshalJSON(o.Symptoms()),
		marshalJSON(o.ModelsUsed()),
		boolToInt(o.ExplanationsAvailable()),
		string(o.OrderSource()),
		marshalJSON(rows),
	)
	if err != nil {
		return fmt.Errorf("save recommendation %s: %w", o.ID(), err)
	}
	return nil
}

// Get returns a persisted outcome by request id.
func (s *Store) Get(ctx context.Context, id string) (recommendation.Outcome, error) {
	row := s.db.QueryRowxContext(ctx, `SELECT id, created_at, symptoms, models_used,
		explanations, order_source, items FROM recommendations WHERE id = ?`, id)

	o, err := scanOutcome(row)
	if errors.Is(err, sql.ErrNoRows) {
		return recommendation.Outcome{}, fmt.Errorf("%w: %s", domain.ErrRecommendationNotFound, id)
	}
	if err != nil {
		return recommendation.Outcome{}, fmt.Errorf("get recommendation %s: %w", id, err)
	}
	return o, nil
}

// ListRecent returns the newest outcomes, most recent first. limit <= 0
// defaults to 20.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]recommendation.Outcome, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryxContext(ctx, `SELECT id, created_at, symptoms, models_used,
		explanations, order_source, items FROM recommendations
		ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list recommendations: %w", err)
	}
	defer rows.Close()

	var out []recommendation.Outcome
	for rows.Next() {
		o, err := scanOutcome(rows)
		if err != nil {
			return nil, fmt.Errorf("list recommendations: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list recommendations: %w", err)
	}
	return out, nil
}

// Count returns the number of persisted outcomes.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM recommendations`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count recommendations: %w", err)
	}
	return n, nil
}

// scanner covers both Row and Rows for shared hydration.
type scanner interface {
	Scan(dest ...any) error
}

func scanOutcome(row scanner) (recommendation.Outcome, error) {
	var (
		id, createdAt, symptomsJSON, modelsJSON, source, itemsJSON string
		explanations                                               int
	)
	if err := row.Scan(&id, &createdAt, &symptomsJSON, &modelsJSON,
		&explanations, &source, &itemsJSON); err != nil {
		return recommendation.Outcome{}, err
	}

	ts, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return recommendation.Outcome{}, fmt.Errorf("parse created_at: %w", err)
	}

	var symptoms, models []string
	var itemRows []itemRow
	if err := json.Unmarshal([]byte(symptomsJSON), &symptoms); err != nil {
		return recommendation.Outcome{}, fmt.Errorf("parse symptoms: %w", err)
	}
	if err := json.Unmarshal([]byte(modelsJSON), &models); err != nil {
		return recommendation.Outcome{}, fmt.Errorf("parse models_used: %w", err)
	}
	if err := json.Unmarshal([]byte(itemsJSON), &itemRows); err != nil {
		return recommendation.Outcome{}, fmt.Errorf("parse items: %w", err)
	}

	items := make([]recommendation.Ranked, 0, len(itemRows))
	for _, r := range itemRows {
		med := medicine.Reconstruct(
			r.MedicineID, r.Name, "", r.TherapeuticClass, "", nil, nil, "")
		pred := candidate.Reconstruct(med, r.Confidence, r.ModelScores)
		items = append(items, recommendation.NewRanked(
			r.Rank, pred, r.Explanation, r.Contraindications, r.RelatedClasses))
	}

	return recommendation.Reconstruct(
		id, ts, symptoms, items, models,
		explanations != 0, recommendation.Source(source),
	), nil
}

func marshalJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil || v == nil {
		return "[]"
	}
	return string(b)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
