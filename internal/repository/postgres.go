package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/joseph-ayodele/docintake/internal/common"
	"github.com/joseph-ayodele/docintake/internal/entity"
)

const pgSchema = `
CREATE TABLE IF NOT EXISTS intake_jobs (
	id           UUID PRIMARY KEY,
	owner_id     TEXT NOT NULL,
	status       TEXT NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL,
	completed_at TIMESTAMPTZ,
	record       JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS intake_jobs_owner_idx ON intake_jobs (owner_id, created_at DESC);
CREATE INDEX IF NOT EXISTS intake_jobs_completed_idx ON intake_jobs (completed_at) WHERE completed_at IS NOT NULL;
`

// PostgresRepository persists jobs in Postgres. Queryable columns are kept
// alongside the full record serialized as JSONB.
type PostgresRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// OpenPostgres creates the pool and ensures the schema exists.
func OpenPostgres(ctx context.Context, cfg common.DatabaseConfig, logger *slog.Logger) (*PostgresRepository, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("connecting to database", "driver", "postgres")
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	pc.MaxConns = cfg.MaxConns
	pc.MinConns = cfg.MinConns
	pc.MaxConnLifetime = cfg.MaxConnLifetime
	pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	pc.ConnConfig.RuntimeParams["application_name"] = "docintake"
	if cfg.StatementTimeout > 0 {
		pc.ConnConfig.RuntimeParams["statement_timeout"] = cfg.StatementTimeout.String()
	}

	dialCtx := ctx
	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}
	pool, err := pgxpool.NewWithConfig(dialCtx, pc)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	repo := &PostgresRepository{pool: pool, logger: logger}
	if _, err := pool.Exec(ctx, pgSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	logger.Info("database ready")
	return repo, nil
}

func (r *PostgresRepository) Close() {
	if r.pool != nil {
		r.pool.Close()
	}
}

// Ping verifies connectivity. Call it at startup to catch DSN issues early.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *PostgresRepository) Get(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	var record []byte
	err := r.pool.QueryRow(ctx, `SELECT record FROM intake_jobs WHERE id = $1`, id).Scan(&record)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.NewAppError("JOB_NOT_FOUND", id.String(), common.ErrJobNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("select job: %w", err)
	}
	return decodeJob(record)
}

func (r *PostgresRepository) Put(ctx context.Context, job *entity.Job) error {
	record, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO intake_jobs (id, owner_id, status, created_at, completed_at, record)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			completed_at = EXCLUDED.completed_at,
			record = EXCLUDED.record
	`, job.ID, job.OwnerID, string(job.Status), job.CreatedAt, job.CompletedAt, record)
	if err != nil {
		return fmt.Errorf("upsert job: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM intake_jobs WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListByOwner(ctx context.Context, ownerID string) ([]*entity.Job, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT record FROM intake_jobs WHERE owner_id = $1 ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

func (r *PostgresRepository) ListCompletedBefore(ctx context.Context, cutoff time.Time) ([]*entity.Job, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT record FROM intake_jobs WHERE completed_at IS NOT NULL AND completed_at < $1`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list completed jobs: %w", err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

func collectJobs(rows pgx.Rows) ([]*entity.Job, error) {
	var out []*entity.Job
	for rows.Next() {
		var record []byte
		if err := rows.Scan(&record); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		job, err := decodeJob(record)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

func decodeJob(record []byte) (*entity.Job, error) {
	var job entity.Job
	if err := json.Unmarshal(record, &job); err != nil {
		return nil, fmt.Errorf("unmarshal job: %w", err)
	}
	return &job, nil
}
