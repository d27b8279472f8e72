package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mealvault/mealvault/internal/models"
)

// ErrFailureNotFound is returned when a failure id does not exist.
var ErrFailureNotFound = errors.New("extraction failure not found")

// FailureFilter narrows List results. Zero values match everything.
type FailureFilter struct {
	Platform       models.Platform
	Kind           string
	UnresolvedOnly bool
	Limit          int
}

// FailureRepository stores classified extraction failures in PostgreSQL.
type FailureRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewFailureRepository creates a repository on db.
func NewFailureRepository(db *sql.DB) *FailureRepository {
	return &FailureRepository{db: db, now: time.Now}
}

// RecordFailure inserts f, filling ID and CreatedAt when unset.
func (r *FailureRepository) RecordFailure(ctx context.Context, f *models.ExtractionFailure) error {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = r.now().UTC()
	}

	query := `
		INSERT INTO extraction_failures (id, platform, kind, url, message, job_id, created_at, resolved, resolved_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			message = EXCLUDED.message,
			created_at = EXCLUDED.created_at
	`
	_, err := r.db.ExecContext(ctx, query,
		f.ID,
		f.Platform,
		f.Kind,
		f.URL,
		f.Message,
		nullString(f.JobID),
		f.CreatedAt,
		f.Resolved,
		f.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record extraction failure: %w", err)
	}
	return nil
}

// List returns failures newest first.
func (r *FailureRepository) List(ctx context.Context, filter FailureFilter) ([]models.ExtractionFailure, error) {
	query, args := listQuery(filter)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query extraction failures: %w", err)
	}
	defer rows.Close()

	failures := []models.ExtractionFailure{}
	for rows.Next() {
		f, err := scanFailure(rows)
		if err != nil {
			return nil, err
		}
		failures = append(failures, *f)
	}
	return failures, rows.Err()
}

// Get returns one failure by id.
func (r *FailureRepository) Get(ctx context.Context, id string) (*models.ExtractionFailure, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, platform, kind, url, message, job_id, created_at, resolved, resolved_at
		FROM extraction_failures
		WHERE id = $1
	`, id)

	f, err := scanFailure(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrFailureNotFound
	}
	return f, err
}

// Resolve marks a failure as handled.
func (r *FailureRepository) Resolve(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE extraction_failures
		SET resolved = TRUE, resolved_at = $2
		WHERE id = $1
	`, id, r.now().UTC())
	if err != nil {
		return fmt.Errorf("failed to resolve extraction failure: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrFailureNotFound
	}
	return nil
}

// CountUnresolved reports unresolved failures per platform.
func (r *FailureRepository) CountUnresolved(ctx context.Context) (map[models.Platform]int, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT platform, COUNT(*)
		FROM extraction_failures
		WHERE resolved = FALSE
		GROUP BY platform
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to count extraction failures: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.Platform]int)
	for rows.Next() {
		var platform string
		var n int
		if err := rows.Scan(&platform, &n); err != nil {
			return nil, fmt.Errorf("failed to scan failure count: %w", err)
		}
		counts[models.Platform(platform)] = n
	}
	return counts, rows.Err()
}

func listQuery(filter FailureFilter) (string, []any) {
	query := `
		SELECT id, platform, kind, url, message, job_id, created_at, resolved, resolved_at
		FROM extraction_failures
		WHERE TRUE`
	var args []any

	if filter.Platform != "" {
		args = append(args, string(filter.Platform))
		query += fmt.Sprintf(" AND platform = $%d", len(args))
	}
	if filter.Kind != "" {
		args = append(args, filter.Kind)
		query += fmt.Sprintf(" AND kind = $%d", len(args))
	}
	if filter.UnresolvedOnly {
		query += " AND resolved = FALSE"
	}

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))
	return query, args
}

type scanner interface {
	Scan(dest ...any) error
}

func scanFailure(s scanner) (*models.ExtractionFailure, error) {
	var f models.ExtractionFailure
	var jobID sql.NullString
	var resolvedAt sql.NullTime

	if err := s.Scan(
		&f.ID,
		&f.Platform,
		&f.Kind,
		&f.URL,
		&f.Message,
		&jobID,
		&f.CreatedAt,
		&f.Resolved,
		&resolvedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan extraction failure: %w", err)
	}

	if jobID.Valid {
		f.JobID = jobID.String
	}
	if resolvedAt.Valid {
		t := resolvedAt.Time
		f.ResolvedAt = &t
	}
	return &f, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
