package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/artpar/safebite-deploy/internal/core/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// =============================================================================
// Executor Interface - Shared by DB and Transaction
// =============================================================================

// executor abstracts database operations that can be performed on both
// a database connection and a transaction.
type executor interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	NamedExecContext(ctx context.Context, query string, arg any) (sql.Result, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	Rebind(query string) string
}

// =============================================================================
// SQLiteStore
// =============================================================================

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore creates a new SQLite store and runs migrations.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, NewStoreError("NewSQLiteStore", "", "", "failed to create database directory", ErrConnectionFailed)
		}
	}

	// Open database connection
	db, err := sqlx.Open("sqlite3", dsn+"?_foreign_keys=on")
	if err != nil {
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to open database", ErrConnectionFailed)
	}

	// A single connection keeps ":memory:" databases shared across queries
	db.SetMaxOpenConns(1)

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to ping database", ErrConnectionFailed)
	}

	// Run migrations
	if err := runMigrations(db.DB); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", err.Error(), ErrMigrationFailed)
	}

	return &SQLiteStore{db: db}, nil
}

// runMigrations runs database migrations using embedded SQL files.
func runMigrations(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// =============================================================================
// Run Operations
// =============================================================================

// runRow represents a deployment run row in the database.
type runRow struct {
	ID           string `db:"id"`
	Network      string `db:"network"`
	ChainID      int64  `db:"chain_id"`
	Deployer     string `db:"deployer"`
	ManifestPath string `db:"manifest_path"`
	DeployedAt   string `db:"deployed_at"`
	RecordedAt   string `db:"recorded_at"`
}

// contractRow represents a deployed contract of a run.
type contractRow struct {
	RunID   string `db:"run_id"`
	Name    string `db:"name"`
	Address string `db:"address"`
}

// RecordRun stores a run and its contracts atomically.
func (s *SQLiteStore) RecordRun(ctx context.Context, run *Run) error {
	if run == nil || run.ID == "" {
		return NewStoreError("RecordRun", "run", "", "run id is required", ErrInvalidData)
	}
	if err := run.Manifest.Validate(); err != nil {
		return NewStoreError("RecordRun", "run", run.ID, err.Error(), ErrInvalidData)
	}
	if run.RecordedAt.IsZero() {
		run.RecordedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return NewStoreError("RecordRun", "run", run.ID, "failed to begin transaction", ErrTxFailed)
	}

	if err := recordRun(ctx, tx, run); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return NewStoreError("RecordRun", "run", run.ID, fmt.Sprintf("rollback failed after error: %v", err), ErrTxFailed)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return NewStoreError("RecordRun", "run", run.ID, "failed to commit transaction", ErrTxFailed)
	}
	return nil
}

// GetRun returns a run by ID.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	var row runRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM deployment_runs WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetRun", "run", id, "run not found", ErrNotFound)
		}
		return nil, NewStoreError("GetRun", "run", id, err.Error(), err)
	}

	runs, err := loadContracts(ctx, s.db, []runRow{row})
	if err != nil {
		return nil, err
	}
	return &runs[0], nil
}

// ListRuns returns runs newest first. An empty network lists all networks.
func (s *SQLiteStore) ListRuns(ctx context.Context, network string, opts ListOptions) ([]Run, error) {
	opts = opts.Normalize()

	query := `SELECT * FROM deployment_runs`
	var args []any
	if network != "" {
		query += ` WHERE network = ?`
		args = append(args, network)
	}
	query += ` ORDER BY deployed_at DESC, recorded_at DESC LIMIT ? OFFSET ?`
	args = append(args, opts.Limit, opts.Offset)

	var rows []runRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, NewStoreError("ListRuns", "run", "", err.Error(), err)
	}
	if len(rows) == 0 {
		return []Run{}, nil
	}
	return loadContracts(ctx, s.db, rows)
}

func recordRun(ctx context.Context, exec executor, run *Run) error {
	m := run.Manifest
	query := `
		INSERT INTO deployment_runs (
			id, network, chain_id, deployer, manifest_path, deployed_at, recorded_at
		) VALUES (
			:id, :network, :chain_id, :deployer, :manifest_path, :deployed_at, :recorded_at
		)`

	row := runRow{
		ID:           run.ID,
		Network:      m.Network,
		ChainID:      m.ChainID,
		Deployer:     m.Deployer,
		ManifestPath: run.ManifestPath,
		DeployedAt:   m.DeployedAt.UTC().Format(timeLayout),
		RecordedAt:   run.RecordedAt.UTC().Format(timeLayout),
	}

	if _, err := exec.NamedExecContext(ctx, query, row); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: deployment_runs.id") {
			return NewStoreError("RecordRun", "run", run.ID, "run with this ID already exists", ErrDuplicateID)
		}
		return NewStoreError("RecordRun", "run", run.ID, err.Error(), err)
	}

	for _, name := range m.ContractNames() {
		contract := contractRow{RunID: run.ID, Name: name, Address: m.Contracts[name]}
		_, err := exec.NamedExecContext(ctx,
			`INSERT INTO deployment_contracts (run_id, name, address) VALUES (:run_id, :name, :address)`,
			contract,
		)
		if err != nil {
			return NewStoreError("RecordRun", "contract", name, err.Error(), err)
		}
	}
	return nil
}

func loadContracts(ctx context.Context, exec executor, rows []runRow) ([]Run, error) {
	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}

	query, args, err := sqlx.In(`SELECT * FROM deployment_contracts WHERE run_id IN (?) ORDER BY name`, ids)
	if err != nil {
		return nil, NewStoreError("ListRuns", "contract", "", err.Error(), err)
	}

	var contracts []contractRow
	if err := exec.SelectContext(ctx, &contracts, exec.Rebind(query), args...); err != nil {
		return nil, NewStoreError("ListRuns", "contract", "", err.Error(), err)
	}

	byRun := make(map[string]map[string]string, len(rows))
	for _, c := range contracts {
		if byRun[c.RunID] == nil {
			byRun[c.RunID] = make(map[string]string)
		}
		byRun[c.RunID][c.Name] = c.Address
	}

	runs := make([]Run, 0, len(rows))
	for _, r := range rows {
		run, err := rowToRun(r, byRun[r.ID])
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, nil
}

func rowToRun(row runRow, contracts map[string]string) (*Run, error) {
	deployedAt, err := time.Parse(timeLayout, row.DeployedAt)
	if err != nil {
		return nil, NewStoreError("rowToRun", "run", row.ID, "invalid deployed_at", ErrInvalidData)
	}
	recordedAt, err := time.Parse(timeLayout, row.RecordedAt)
	if err != nil {
		return nil, NewStoreError("rowToRun", "run", row.ID, "invalid recorded_at", ErrInvalidData)
	}
	if contracts == nil {
		contracts = map[string]string{}
	}

	return &Run{
		ID: row.ID,
		Manifest: &domain.DeploymentManifest{
			Network:    row.Network,
			ChainID:    row.ChainID,
			Deployer:   row.Deployer,
			Contracts:  contracts,
			DeployedAt: deployedAt,
		},
		ManifestPath: row.ManifestPath,
		RecordedAt:   recordedAt,
	}, nil
}
