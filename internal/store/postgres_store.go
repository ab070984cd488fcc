package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dunamismax/iconforge/internal/domain"
	_ "github.com/lib/pq"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS icon_set_jobs (
	id TEXT PRIMARY KEY,
	status TEXT NOT NULL,
	source_key TEXT NOT NULL,
	webhook_url TEXT NOT NULL DEFAULT '',
	archive_key TEXT NOT NULL DEFAULT '',
	error TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS derived_assets (
	token TEXT NOT NULL,
	filename TEXT NOT NULL,
	operation TEXT NOT NULL,
	object_key TEXT NOT NULL,
	content_type TEXT NOT NULL,
	width INTEGER NOT NULL DEFAULT 0,
	height INTEGER NOT NULL DEFAULT 0,
	bytes INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (token, filename)
);
`

// PostgresStore persists jobs and the asset catalog.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	store := &PostgresStore{db: db}
	if err := store.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) Create(ctx context.Context, job domain.Job) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO icon_set_jobs (id, status, source_key, webhook_url, archive_key, error, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		job.ID,
		job.Status,
		job.SourceKey,
		job.WebhookURL,
		job.ArchiveKey,
		job.Error,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (domain.Job, bool, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, status, source_key, webhook_url, archive_key, error, created_at, updated_at
		 FROM icon_set_jobs
		 WHERE id = $1`,
		id,
	)

	var job domain.Job
	if err := row.Scan(
		&job.ID,
		&job.Status,
		&job.SourceKey,
		&job.WebhookURL,
		&job.ArchiveKey,
		&job.Error,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Job{}, false, nil
		}
		return domain.Job{}, false, fmt.Errorf("query job: %w", err)
	}

	return job, true, nil
}

func (s *PostgresStore) Update(ctx context.Context, id string, update domain.JobUpdate) (domain.Job, error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE icon_set_jobs
		 SET status = COALESCE(NULLIF($1, ''), status),
		     archive_key = COALESCE(NULLIF($2, ''), archive_key),
		     error = COALESCE(NULLIF($3, ''), error),
		     updated_at = $4
		 WHERE id = $5`,
		update.Status,
		update.ArchiveKey,
		update.Error,
		time.Now().UTC(),
		id,
	)
	if err != nil {
		return domain.Job{}, fmt.Errorf("update job: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.Job{}, domain.ErrJobNotFound
	}

	job, ok, err := s.Get(ctx, id)
	if err != nil {
		return domain.Job{}, err
	}
	if !ok {
		return domain.Job{}, domain.ErrJobNotFound
	}
	return job, nil
}

func (s *PostgresStore) RecordAsset(ctx context.Context, asset domain.DerivedAsset) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO derived_assets (token, filename, operation, object_key, content_type, width, height, bytes, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (token, filename) DO UPDATE
		 SET operation = EXCLUDED.operation,
		     object_key = EXCLUDED.object_key,
		     content_type = EXCLUDED.content_type,
		     width = EXCLUDED.width,
		     height = EXCLUDED.height,
		     bytes = EXCLUDED.bytes,
		     created_at = EXCLUDED.created_at`,
		asset.Token,
		asset.Filename,
		string(asset.Operation),
		asset.Key,
		asset.ContentType,
		asset.Width,
		asset.Height,
		asset.Bytes,
		asset.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert derived asset: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAssets(ctx context.Context, token string) ([]domain.DerivedAsset, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT token, filename, operation, object_key, content_type, width, height, bytes, created_at
		 FROM derived_assets
		 WHERE token = $1
		 ORDER BY created_at, filename`,
		token,
	)
	if err != nil {
		return nil, fmt.Errorf("query derived assets: %w", err)
	}
	defer rows.Close()

	var out []domain.DerivedAsset
	for rows.Next() {
		var (
			asset     domain.DerivedAsset
			operation string
		)
		if err := rows.Scan(
			&asset.Token,
			&asset.Filename,
			&operation,
			&asset.Key,
			&asset.ContentType,
			&asset.Width,
			&asset.Height,
			&asset.Bytes,
			&asset.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan derived asset: %w", err)
		}
		asset.Operation = domain.Operation(operation)
		out = append(out, asset)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate derived assets: %w", err)
	}
	return out, nil
}
