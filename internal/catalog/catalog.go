// Package catalog records completed classification runs in SQLite.
package catalog

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/chrissnell/ashdetect/pkg/ashclass"
	"github.com/chrissnell/ashdetect/pkg/grid"
	"github.com/chrissnell/ashdetect/pkg/migrate"
	"github.com/chrissnell/ashdetect/pkg/pipeline"
	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// ErrNotFound is returned by Get for an unknown run ID.
var ErrNotFound = errors.New("run not found")

// DefaultListLimit bounds List when no limit is given.
const DefaultListLimit = 100

// Run summarizes one classification.
type Run struct {
	ID        string          `json:"id"`
	SceneTime time.Time       `json:"scene_time"`
	StartedAt time.Time       `json:"started_at"`
	Elapsed   time.Duration   `json:"elapsed"`
	Shape     grid.Shape      `json:"shape"`
	Counts    ashclass.Counts `json:"counts"`
}

// FromResult builds the catalog entry for res, started at started.
func FromResult(res *pipeline.Result, started time.Time) Run {
	return Run{
		SceneTime: res.Time,
		StartedAt: started.UTC(),
		Elapsed:   res.Elapsed,
		Shape:     res.Labels.Shape,
		Counts:    res.Counts,
	}
}

// Catalog is a SQLite-backed run store.
type Catalog struct {
	db     *sql.DB
	logger *zap.SugaredLogger
}

// Open opens or creates the catalog at path and applies pending schema
// migrations.
func Open(ctx context.Context, path string, logger *zap.SugaredLogger) (*Catalog, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	// SQLite allows a single writer
	db.SetMaxOpenConns(1)

	// Test the connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure SQLite database: %w", err)
	}

	m, err := NewMigrator(db, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := m.MigrateUp(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("catalog schema: %w", err)
	}

	logger.Debugw("run catalog opened", "path", path)
	return &Catalog{db: db, logger: logger}, nil
}

// NewMigrator returns a migrator over the embedded catalog schema.
func NewMigrator(db *sql.DB, logger *zap.SugaredLogger) (*migrate.Migrator, error) {
	sub, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return nil, err
	}
	return migrate.NewMigrator(db, migrate.NewFSProvider(sub, ""), logger), nil
}

// Record stores r, assigning a new ID when r.ID is empty, and returns the
// stored entry.
func (c *Catalog) Record(ctx context.Context, r Run) (Run, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now().UTC()
	}
	r.Elapsed = r.Elapsed.Truncate(time.Millisecond)

	_, err := c.db.ExecContext(ctx, `
		INSERT INTO runs (id, scene_time, started_at, elapsed_ms, grid_rows, grid_cols,
		                  label0, label1, label2, label3, label4, label5)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.SceneTime.UnixNano(), r.StartedAt.UnixNano(), r.Elapsed.Milliseconds(),
		r.Shape.Rows, r.Shape.Cols,
		r.Counts[0], r.Counts[1], r.Counts[2], r.Counts[3], r.Counts[4], r.Counts[5],
	)
	if err != nil {
		return Run{}, fmt.Errorf("failed to insert run %s: %w", r.ID, err)
	}
	return r, nil
}

const selectRuns = `
	SELECT id, scene_time, started_at, elapsed_ms, grid_rows, grid_cols,
	       label0, label1, label2, label3, label4, label5
	FROM runs`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (Run, error) {
	var r Run
	var sceneNs, startedNs, elapsedMs int64
	err := s.Scan(&r.ID, &sceneNs, &startedNs, &elapsedMs, &r.Shape.Rows, &r.Shape.Cols,
		&r.Counts[0], &r.Counts[1], &r.Counts[2], &r.Counts[3], &r.Counts[4], &r.Counts[5])
	if err != nil {
		return Run{}, err
	}
	r.SceneTime = time.Unix(0, sceneNs).UTC()
	r.StartedAt = time.Unix(0, startedNs).UTC()
	r.Elapsed = time.Duration(elapsedMs) * time.Millisecond
	return r, nil
}

// Get returns the run with the given ID.
func (c *Catalog) Get(ctx context.Context, id string) (Run, error) {
	r, err := scanRun(c.db.QueryRowContext(ctx, selectRuns+" WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("failed to query run %s: %w", id, err)
	}
	return r, nil
}

// List returns up to limit runs, most recently started first. A limit of
// zero or less means DefaultListLimit.
func (c *Catalog) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := c.db.QueryContext(ctx, selectRuns+" ORDER BY started_at DESC, id LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Close closes the database.
func (c *Catalog) Close() error {
	return c.db.Close()
}
