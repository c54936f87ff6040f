package journal

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/tourbot/core/logger"
)

const insertApplication = `
INSERT INTO applications (id, user_id, first_name, username, direction, dates, budget, status, error, completed_at)
VALUES (:id, :user_id, :first_name, :username, :direction, :dates, :budget, :status, :error, :completed_at)
ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status, error = EXCLUDED.error`

const selectStats = `
SELECT
	COUNT(*) AS total,
	COUNT(*) FILTER (WHERE status = 'delivered') AS delivered,
	COUNT(*) FILTER (WHERE status = 'failed') AS failed,
	MAX(completed_at) AS last
FROM applications`

type applicationRow struct {
	ID          string    `db:"id"`
	UserID      int64     `db:"user_id"`
	FirstName   string    `db:"first_name"`
	Username    string    `db:"username"`
	Direction   string    `db:"direction"`
	Dates       string    `db:"dates"`
	Budget      string    `db:"budget"`
	Status      string    `db:"status"`
	Error       string    `db:"error"`
	CompletedAt time.Time `db:"completed_at"`
}

func rowOf(e Entry) applicationRow {
	r := e.Record
	return applicationRow{
		ID:          r.ID.String(),
		UserID:      r.UserID,
		FirstName:   r.FirstName,
		Username:    r.Username,
		Direction:   r.Direction,
		Dates:       r.Dates,
		Budget:      r.Budget,
		Status:      string(e.Status),
		Error:       e.Error,
		CompletedAt: r.CompletedAt.UTC(),
	}
}

type statsRow struct {
	Total     int          `db:"total"`
	Delivered int          `db:"delivered"`
	Failed    int          `db:"failed"`
	Last      sql.NullTime `db:"last"`
}

// Postgres writes entries into the applications table.
type Postgres struct {
	db *sqlx.DB
}

// NewPostgres wraps an open connection. The schema comes from the migrations.
func NewPostgres(db *sqlx.DB) *Postgres {
	return &Postgres{db: db}
}

// Append inserts the entry. A repeated id overwrites the delivery outcome.
func (p *Postgres) Append(ctx context.Context, e Entry) error {
	start := time.Now()
	_, err := p.db.NamedExecContext(ctx, insertApplication, rowOf(e))
	if err != nil {
		logger.Error(ctx, "service.journal", "journal.append",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
			slog.Duration("duration", logger.RoundMS(time.Since(start))),
		)
		return fmt.Errorf("journal: append %s: %w", e.Record.ID, err)
	}
	logger.Debug(ctx, "service.journal", "journal.append",
		slog.String("status", "ok"),
		slog.String("outcome", string(e.Status)),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	)
	return nil
}

// Stats aggregates the applications table.
func (p *Postgres) Stats(ctx context.Context) (Stats, error) {
	var row statsRow
	if err := p.db.GetContext(ctx, &row, selectStats); err != nil {
		return Stats{}, fmt.Errorf("journal: stats: %w", err)
	}
	st := Stats{Total: row.Total, Delivered: row.Delivered, Failed: row.Failed}
	if row.Last.Valid {
		st.Last = row.Last.Time
	}
	return st, nil
}
