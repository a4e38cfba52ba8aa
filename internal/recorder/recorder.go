// Package recorder persists rebalance runs and their orders to PostgreSQL.
package recorder

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Run is a single completed rebalance run.
type Run struct {
	ID             uuid.UUID `db:"id"`
	Time           time.Time `db:"time"`
	Date           time.Time `db:"rebalance_date"`
	NAVBefore      float64   `db:"nav_before"`
	NAVAfter       float64   `db:"nav_after"`
	Submitted      int       `db:"submitted"`
	Filled         int       `db:"filled"`
	Unfilled       int       `db:"unfilled"`
	Skipped        int       `db:"skipped"`
	FractionFilled float64   `db:"fraction_filled"`
}

// OrderRecord is one requested trade belonging to a run.
type OrderRecord struct {
	RunID      uuid.UUID `db:"run_id"`
	Asset      string    `db:"asset"`
	TradeUnits float64   `db:"trade_units"`
	Price      float64   `db:"price"`
}

// Pool is an interface that abstracts the pgxpool.Pool for testability.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Close()
}

// Recorder writes run history to the database. A Recorder built without a
// database URL is a no-op, so callers never have to branch on whether
// persistence is configured.
type Recorder struct {
	pool   Pool
	logger *zap.Logger
}

// New connects to the database at databaseURL. An empty URL returns a
// no-op recorder.
func New(ctx context.Context, databaseURL string, logger *zap.Logger) (*Recorder, error) {
	if databaseURL == "" {
		logger.Info("No database URL configured, run history will not be persisted.")
		return &Recorder{pool: nil, logger: logger}, nil
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	logger.Info("Connected to run history database.")
	return &Recorder{pool: pool, logger: logger}, nil
}

// NewWithPool wraps an existing pool. Used by tests.
func NewWithPool(pool Pool, logger *zap.Logger) *Recorder {
	return &Recorder{pool: pool, logger: logger}
}

// SaveRun inserts the run summary row.
func (r *Recorder) SaveRun(ctx context.Context, run Run) error {
	if r.pool == nil {
		return nil
	}

	query := `INSERT INTO rebalance_runs (id, time, rebalance_date, nav_before, nav_after, submitted, filled, unfilled, skipped, fraction_filled)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.pool.Exec(ctx, query,
		run.ID, run.Time, run.Date,
		run.NAVBefore, run.NAVAfter,
		run.Submitted, run.Filled, run.Unfilled, run.Skipped,
		run.FractionFilled,
	)
	if err != nil {
		r.logger.Error("Failed to insert rebalance run", zap.Error(err), zap.String("runID", run.ID.String()))
		return fmt.Errorf("failed to insert rebalance run: %w", err)
	}
	r.logger.Debug("Saved rebalance run.", zap.String("runID", run.ID.String()))
	return nil
}

// SaveOrders inserts one row per requested trade.
func (r *Recorder) SaveOrders(ctx context.Context, orders []OrderRecord) error {
	if r.pool == nil {
		return nil
	}

	query := `INSERT INTO rebalance_orders (run_id, asset, trade_units, price)
	          VALUES ($1, $2, $3, $4)`
	for _, o := range orders {
		_, err := r.pool.Exec(ctx, query, o.RunID, o.Asset, o.TradeUnits, o.Price)
		if err != nil {
			r.logger.Error("Failed to insert rebalance order", zap.Error(err), zap.String("asset", o.Asset))
			return fmt.Errorf("failed to insert rebalance order for %s: %w", o.Asset, err)
		}
	}
	r.logger.Debug("Saved rebalance orders.", zap.Int("count", len(orders)))
	return nil
}

// LastRun returns the time of the most recent recorded run, or the zero
// time when the table is empty or the recorder is a no-op.
func (r *Recorder) LastRun(ctx context.Context) (time.Time, error) {
	if r.pool == nil {
		return time.Time{}, nil
	}

	var last time.Time
	err := r.pool.QueryRow(ctx, "SELECT time FROM rebalance_runs ORDER BY time DESC LIMIT 1").Scan(&last)
	if err == pgx.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to query last run: %w", err)
	}
	return last, nil
}

// Close releases the connection pool.
func (r *Recorder) Close() {
	if r.pool == nil {
		return
	}
	r.pool.Close()
	r.logger.Info("Run history database connection closed.")
}
