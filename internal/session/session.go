// Package session keeps the CLI operator's local state in a SQLite file:
// who is operating and which pre-report commands act on by default.
package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite"

	"prereport-service/internal/models"
)

const (
	keyOperator     = "operator"
	keyActiveReport = "active_report"

	recentLimit = 10
)

var ErrNoActiveReport = errors.New("NO_ACTIVE_REPORT")

// Report is a locally remembered pre-report.
type Report struct {
	ID          int64
	LeadType    models.LeadType
	CurrentStep int
	Status      models.ReportStatus
	UpdatedAt   time.Time
}

type Store struct {
	db  *sql.DB
	now func() time.Time
}

// DefaultPath is $PREREPORT_SESSION or ~/.prereport/session.db.
func DefaultPath() string {
	if p := os.Getenv("PREREPORT_SESSION"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".prereport", "session.db")
	}
	return filepath.Join(home, ".prereport", "session.db")
}

// Open creates the database file and its tables when missing.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create session dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate session db: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
CREATE TABLE IF NOT EXISTS settings (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS recent_reports (
    report_id INTEGER PRIMARY KEY,
    lead_type TEXT NOT NULL,
    current_step INTEGER NOT NULL,
    report_status TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
`)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) SetOperator(ctx context.Context, name string) error {
	return s.set(ctx, keyOperator, name)
}

// Operator returns "" when no operator has been set.
func (s *Store) Operator(ctx context.Context) (string, error) {
	v, _, err := s.get(ctx, keyOperator)
	return v, err
}

func (s *Store) SetActiveReport(ctx context.Context, id int64) error {
	return s.set(ctx, keyActiveReport, strconv.FormatInt(id, 10))
}

// ActiveReport returns ErrNoActiveReport until SetActiveReport is called.
func (s *Store) ActiveReport(ctx context.Context) (int64, error) {
	v, ok, err := s.get(ctx, keyActiveReport)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ErrNoActiveReport
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt active report %q: %w", v, err)
	}
	return id, nil
}

// Remember upserts the report into the recent list.
func (s *Store) Remember(ctx context.Context, r Report) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO recent_reports(report_id, lead_type, current_step, report_status, updated_at)
VALUES(?, ?, ?, ?, ?)
ON CONFLICT(report_id) DO UPDATE SET
    lead_type = excluded.lead_type,
    current_step = excluded.current_step,
    report_status = excluded.report_status,
    updated_at = excluded.updated_at`,
		r.ID, string(r.LeadType), r.CurrentStep, string(r.Status), s.now().UTC())
	return err
}

// Recent lists remembered reports, most recently touched first.
func (s *Store) Recent(ctx context.Context) ([]Report, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT report_id, lead_type, current_step, report_status, updated_at
FROM recent_reports ORDER BY updated_at DESC, report_id DESC LIMIT ?`, recentLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Report, 0, recentLimit)
	for rows.Next() {
		var (
			r              Report
			leadType, stat string
		)
		if err := rows.Scan(&r.ID, &leadType, &r.CurrentStep, &stat, &r.UpdatedAt); err != nil {
			return nil, err
		}
		r.LeadType = models.LeadType(leadType)
		r.Status = models.ReportStatus(stat)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO settings(key, value, updated_at) VALUES(?, ?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, s.now().UTC())
	return err
}

func (s *Store) get(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}
