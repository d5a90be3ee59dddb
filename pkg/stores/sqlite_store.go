package stores

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"

	"github.com/pkgsmith/pkgsmith/pkg/recipe"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore persists runs, stage events, and downloads using SQLite.
// It implements recipe.RunRecorder and the fetcher's download recorder.
type SQLiteStore struct {
	db   *sql.DB
	path string
	cfg  Config
}

// Config holds SQLite store configuration.
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewSQLiteStore creates a new SQLite store instance.
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	// Set defaults
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 25
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 5
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}

	return &SQLiteStore{
		path: cfg.Path,
		cfg:  cfg,
	}, nil
}

// Init initializes the database connection and enables WAL mode.
func (s *SQLiteStore) Init(ctx context.Context) error {
	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_txlock=immediate", s.path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(s.cfg.MaxOpenConns)
	db.SetMaxIdleConns(s.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	// Foreign keys are a connection-level setting.
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// CreateRun records the start of a recipe run.
func (s *SQLiteStore) CreateRun(ctx context.Context, run *recipe.RunRecord) error {
	query := `
		INSERT INTO runs (id, recipe, version, package_id, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	var packageID *string
	if run.PackageID != "" {
		packageID = &run.PackageID
	}

	_, err := s.db.ExecContext(ctx, query,
		run.ID,
		run.Recipe,
		run.Version,
		packageID,
		RunStatusRunning,
		run.StartedAt.UTC().Format("2006-01-02 15:04:05"),
	)

	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}

	return nil
}

// SetRunPackageID records the package ID for a run.
func (s *SQLiteStore) SetRunPackageID(ctx context.Context, runID, packageID string) error {
	query := `UPDATE runs SET package_id = ? WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query, packageID, runID)
	if err != nil {
		return fmt.Errorf("failed to set package id: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("run not found: %s", runID)
	}

	return nil
}

// CompleteRun records the terminal status of a run.
func (s *SQLiteStore) CompleteRun(ctx context.Context, runID, status, errMsg string) error {
	query := `
		UPDATE runs
		SET status = ?, error = ?, completed_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	var errPtr *string
	if errMsg != "" {
		errPtr = &errMsg
	}

	result, err := s.db.ExecContext(ctx, query, status, errPtr, runID)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("run not found: %s", runID)
	}

	return nil
}

// GetRun retrieves a run by ID.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	query := `
		SELECT id, recipe, version, package_id, status, started_at, completed_at, error
		FROM runs
		WHERE id = ?
	`

	run := &Run{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&run.ID,
		&run.Recipe,
		&run.Version,
		&run.PackageID,
		&run.Status,
		&run.StartedAt,
		&run.CompletedAt,
		&run.Error,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	return run, nil
}

// ListRuns lists runs with pagination, most recent first.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit, offset int) ([]*Run, error) {
	query := `
		SELECT id, recipe, version, package_id, status, started_at, completed_at, error
		FROM runs
		ORDER BY started_at DESC
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []*Run{}
	for rows.Next() {
		run := &Run{}
		err := rows.Scan(
			&run.ID,
			&run.Recipe,
			&run.Version,
			&run.PackageID,
			&run.Status,
			&run.StartedAt,
			&run.CompletedAt,
			&run.Error,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, nil
}

// RecordStageEvent records one stage transition for a run.
func (s *SQLiteStore) RecordStageEvent(ctx context.Context, runID string, stage, status, message string) error {
	query := `
		INSERT INTO stage_events (run_id, stage, status, message, timestamp)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
	`

	var msgPtr *string
	if message != "" {
		msgPtr = &message
	}

	if _, err := s.db.ExecContext(ctx, query, runID, stage, status, msgPtr); err != nil {
		return fmt.Errorf("failed to record stage event: %w", err)
	}

	return nil
}

// ListStageEvents lists the stage events of a run in insertion order.
func (s *SQLiteStore) ListStageEvents(ctx context.Context, runID string) ([]*StageEvent, error) {
	query := `
		SELECT id, run_id, stage, status, message, timestamp
		FROM stage_events
		WHERE run_id = ?
		ORDER BY id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list stage events: %w", err)
	}
	defer rows.Close()

	events := []*StageEvent{}
	for rows.Next() {
		event := &StageEvent{}
		err := rows.Scan(
			&event.ID,
			&event.RunID,
			&event.Stage,
			&event.Status,
			&event.Message,
			&event.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stage event: %w", err)
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stage events: %w", err)
	}

	return events, nil
}

// RecordDownload records one verified upstream archive download.
func (s *SQLiteStore) RecordDownload(ctx context.Context, url, sha256, path string, size int64) error {
	query := `
		INSERT INTO downloads (url, sha256, path, size, timestamp)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
	`

	if _, err := s.db.ExecContext(ctx, query, url, sha256, path, size); err != nil {
		return fmt.Errorf("failed to record download: %w", err)
	}

	return nil
}

// ListDownloads lists the download audit log with pagination, most recent
// first.
func (s *SQLiteStore) ListDownloads(ctx context.Context, limit, offset int) ([]*Download, error) {
	query := `
		SELECT id, url, sha256, path, size, timestamp
		FROM downloads
		ORDER BY timestamp DESC
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list downloads: %w", err)
	}
	defer rows.Close()

	downloads := []*Download{}
	for rows.Next() {
		dl := &Download{}
		err := rows.Scan(
			&dl.ID,
			&dl.URL,
			&dl.SHA256,
			&dl.Path,
			&dl.Size,
			&dl.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan download: %w", err)
		}
		downloads = append(downloads, dl)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating downloads: %w", err)
	}

	return downloads, nil
}

// HealthCheck verifies the database connection is healthy.
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	return s.db.PingContext(ctx)
}
