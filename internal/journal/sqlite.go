// Package journal keeps a history of retention passes in sqlite.
package journal

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/lynxoskar/fileServe200/internal/retention"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Journal is a retention.Recorder persisting passes to a sqlite database.
type Journal struct {
	db *sql.DB
}

// PassSummary is one row of the pass history.
type PassSummary struct {
	ID          string    `json:"id" yaml:"id"`
	Started     time.Time `json:"started" yaml:"started"`
	Finished    time.Time `json:"finished" yaml:"finished"`
	Scanned     int       `json:"scanned" yaml:"scanned"`
	TotalBytes  int64     `json:"totalBytes" yaml:"totalBytes"`
	AgeDeleted  int       `json:"ageDeleted" yaml:"ageDeleted"`
	SizeDeleted int       `json:"sizeDeleted" yaml:"sizeDeleted"`
	BytesFreed  int64     `json:"bytesFreed" yaml:"bytesFreed"`
	Failures    int       `json:"failures" yaml:"failures"`
}

// Deletion is one planned deletion of a pass. Error is empty when the file
// was removed.
type Deletion struct {
	Path  string          `json:"path" yaml:"path"`
	Phase retention.Phase `json:"phase" yaml:"phase"`
	Size  int64           `json:"size" yaml:"size"`
	Error string          `json:"error,omitempty" yaml:"error,omitempty"`
}

// Open opens the database at path and brings its schema up to date.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps in-memory databases and the migration lock consistent.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	j := &Journal{db: db}
	if err := j.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return j, nil
}

func (j *Journal) migrate() error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}
	drv, err := sqlite.WithInstance(j.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", drv)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (j *Journal) Close() error {
	return j.db.Close()
}

// RecordPass stores report and its planned deletions in a single transaction.
func (j *Journal) RecordPass(ctx context.Context, report retention.Report) error {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO passes
		(id, started_at, finished_at, scanned, total_bytes, age_deleted, size_deleted, bytes_freed, failures)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		report.ID, report.Started.UnixNano(), report.Finished.UnixNano(),
		report.Plan.Scanned, report.Plan.TotalBytes,
		report.AgeDeleted, report.SizeDeleted, report.BytesFreed, len(report.Failures))
	if err != nil {
		return fmt.Errorf("failed to insert pass %s: %w", report.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO deletions (pass_id, path, phase, size, error) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	insert := func(c retention.Candidate, phase retention.Phase) error {
		var reason sql.NullString
		if f, failed := report.Failed(c.Path()); failed {
			reason = sql.NullString{String: f.Err.Error(), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, report.ID, c.Path(), string(phase), c.Size(), reason); err != nil {
			return fmt.Errorf("failed to insert deletion %s: %w", c.Path(), err)
		}
		return nil
	}
	for _, c := range report.Plan.Age {
		if err := insert(c, retention.PhaseAge); err != nil {
			return err
		}
	}
	for _, c := range report.Plan.Size {
		if err := insert(c, retention.PhaseSize); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Recent returns up to limit passes, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]PassSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := j.db.QueryContext(ctx, `SELECT
		id, started_at, finished_at, scanned, total_bytes, age_deleted, size_deleted, bytes_freed, failures
		FROM passes ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query passes: %w", err)
	}
	defer rows.Close()

	passes := []PassSummary{}
	for rows.Next() {
		var (
			p                 PassSummary
			started, finished int64
		)
		if err := rows.Scan(&p.ID, &started, &finished, &p.Scanned, &p.TotalBytes,
			&p.AgeDeleted, &p.SizeDeleted, &p.BytesFreed, &p.Failures); err != nil {
			return nil, fmt.Errorf("failed to scan pass: %w", err)
		}
		p.Started = time.Unix(0, started).UTC()
		p.Finished = time.Unix(0, finished).UTC()
		passes = append(passes, p)
	}
	return passes, rows.Err()
}

// Deletions returns the planned deletions of a pass, in plan order.
func (j *Journal) Deletions(ctx context.Context, passID string) ([]Deletion, error) {
	rows, err := j.db.QueryContext(ctx,
		"SELECT path, phase, size, error FROM deletions WHERE pass_id = ? ORDER BY rowid", passID)
	if err != nil {
		return nil, fmt.Errorf("failed to query deletions for pass %s: %w", passID, err)
	}
	defer rows.Close()

	out := []Deletion{}
	for rows.Next() {
		var (
			d      Deletion
			phase  string
			reason sql.NullString
		)
		if err := rows.Scan(&d.Path, &phase, &d.Size, &reason); err != nil {
			return nil, fmt.Errorf("failed to scan deletion: %w", err)
		}
		d.Phase = retention.Phase(phase)
		d.Error = reason.String
		out = append(out, d)
	}
	return out, rows.Err()
}
