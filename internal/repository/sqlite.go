package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/joseph-ayodele/docintake/internal/common"
	"github.com/joseph-ayodele/docintake/internal/entity"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS intake_jobs (
	id           TEXT PRIMARY KEY,
	owner_id     TEXT NOT NULL,
	status       TEXT NOT NULL,
	created_at   TEXT NOT NULL,
	completed_at TEXT,
	record       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS intake_jobs_owner_idx ON intake_jobs (owner_id, created_at);
CREATE INDEX IF NOT EXISTS intake_jobs_completed_idx ON intake_jobs (completed_at);
`

// SQLiteRepository persists jobs in a local SQLite file. Suited to
// single-node deployments and integration tests.
type SQLiteRepository struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database and ensures the schema.
func OpenSQLite(ctx context.Context, dsn string) (*SQLiteRepository, error) {
	if dsn == "" {
		dsn = "file:docintake.db"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// modernc sqlite serializes writes; one connection avoids lock churn.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func (r *SQLiteRepository) Get(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	var record string
	err := r.db.QueryRowContext(ctx,
		`SELECT record FROM intake_jobs WHERE id = ?`, id.String()).Scan(&record)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NewAppError("JOB_NOT_FOUND", id.String(), common.ErrJobNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("select job: %w", err)
	}
	return decodeJob([]byte(record))
}

func (r *SQLiteRepository) Put(ctx context.Context, job *entity.Job) error {
	record, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	var completedAt any
	if job.CompletedAt != nil {
		completedAt = job.CompletedAt.UTC().Format(time.RFC3339Nano)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO intake_jobs (id, owner_id, status, created_at, completed_at, record)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			status = excluded.status,
			completed_at = excluded.completed_at,
			record = excluded.record
	`, job.ID.String(), job.OwnerID, string(job.Status),
		job.CreatedAt.UTC().Format(time.RFC3339Nano), completedAt, string(record))
	if err != nil {
		return fmt.Errorf("upsert job: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM intake_jobs WHERE id = ?`, id.String()); err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListByOwner(ctx context.Context, ownerID string) ([]*entity.Job, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT record FROM intake_jobs WHERE owner_id = ? ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()
	return collectSQLJobs(rows)
}

func (r *SQLiteRepository) ListCompletedBefore(ctx context.Context, cutoff time.Time) ([]*entity.Job, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT record FROM intake_jobs WHERE completed_at IS NOT NULL AND completed_at < ?`,
		cutoff.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("list completed jobs: %w", err)
	}
	defer rows.Close()
	return collectSQLJobs(rows)
}

func collectSQLJobs(rows *sql.Rows) ([]*entity.Job, error) {
	var out []*entity.Job
	for rows.Next() {
		var record string
		if err := rows.Scan(&record); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		job, err := decodeJob([]byte(record))
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}
