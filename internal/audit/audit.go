// Package audit writes the audit trail and the login history.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"prereport-service/internal/common/database"
	"prereport-service/internal/common/logger"
	"prereport-service/internal/models"
)

var (
	ErrInsertFailed = errors.New("AUDIT_INSERT_FAILED")
	ErrQueryFailed  = errors.New("LOGIN_HISTORY_QUERY_FAILED")
)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 500
)

var Schema = []database.Migration{
	{Name: "audit_log", Statement: `
CREATE TABLE IF NOT EXISTS audit_log (
    id             BIGSERIAL PRIMARY KEY,
    event_type     TEXT NOT NULL,
    resource_type  TEXT NOT NULL,
    resource_id    TEXT NOT NULL,
    actor          TEXT,
    details        JSONB NOT NULL DEFAULT '{}',
    created_at     TIMESTAMPTZ NOT NULL
)`},
	{Name: "audit_log_resource_idx", Statement: `
CREATE INDEX IF NOT EXISTS audit_log_resource_idx ON audit_log (resource_type, resource_id, created_at)`},
	{Name: "login_history", Statement: `
CREATE TABLE IF NOT EXISTS login_history (
    id           UUID PRIMARY KEY,
    employee_id  UUID,
    email        TEXT NOT NULL,
    ip_address   TEXT,
    user_agent   TEXT,
    success      BOOLEAN NOT NULL,
    occurred_at  TIMESTAMPTZ NOT NULL
)`},
	{Name: "login_history_occurred_idx", Statement: `
CREATE INDEX IF NOT EXISTS login_history_occurred_idx ON login_history (occurred_at DESC)`},
}

type Recorder struct {
	db     *sql.DB
	logger logger.Logger
	now    func() time.Time
}

func NewRecorder(db *sql.DB, log logger.Logger) *Recorder {
	return &Recorder{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "audit"}),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Record appends one audit row. Undecodable details are stored as {}.
func (r *Recorder) Record(ctx context.Context, entry models.AuditEntry) error {
	details, err := json.Marshal(entry.Details)
	if err != nil || entry.Details == nil {
		if err != nil {
			r.logger.Warn("failed to marshal audit log details", map[string]interface{}{
				"eventType": entry.EventType,
				"error":     err,
			})
		}
		details = []byte("{}")
	}

	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = r.now()
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO audit_log (event_type, resource_type, resource_id, actor, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.EventType,
		entry.ResourceType,
		entry.ResourceID,
		nullString(entry.Actor),
		details,
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInsertFailed, entry.EventType, err)
	}
	return nil
}

// RecordLogin stores a login attempt and returns it with id and time filled.
func (r *Recorder) RecordLogin(ctx context.Context, event models.LoginEvent) (*models.LoginEvent, error) {
	event.Email = strings.ToLower(strings.TrimSpace(event.Email))
	if event.Email == "" {
		return nil, fmt.Errorf("%w: email is required", ErrInsertFailed)
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = r.now()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO login_history (id, employee_id, email, ip_address, user_agent, success, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		event.ID,
		nullString(event.EmployeeID),
		event.Email,
		nullString(event.IPAddress),
		nullString(event.UserAgent),
		event.Success,
		event.OccurredAt,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: login: %v", ErrInsertFailed, err)
	}

	r.logger.Info("login recorded", map[string]interface{}{
		"loginId": event.ID,
		"success": event.Success,
	})
	return &event, nil
}

// LoginHistory lists login attempts newest first.
func (r *Recorder) LoginHistory(ctx context.Context, filter models.LoginHistoryFilter) ([]models.LoginEvent, error) {
	query, args := historyQuery(filter)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueryFailed, err)
	}
	defer rows.Close()

	events := []models.LoginEvent{}
	for rows.Next() {
		var e models.LoginEvent
		if err := rows.Scan(&e.ID, &e.EmployeeID, &e.Email, &e.IPAddress, &e.UserAgent, &e.Success, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("%w: scan: %v", ErrQueryFailed, err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueryFailed, err)
	}
	return events, nil
}

func historyQuery(filter models.LoginHistoryFilter) (string, []interface{}) {
	var (
		where []string
		args  []interface{}
	)
	add := func(cond string, v interface{}) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if filter.EmployeeID != "" {
		add("employee_id = $%d", filter.EmployeeID)
	}
	if filter.Email != "" {
		add("email = $%d", strings.ToLower(strings.TrimSpace(filter.Email)))
	}
	if filter.Since != nil {
		add("occurred_at >= $%d", *filter.Since)
	}

	var b strings.Builder
	b.WriteString(`SELECT id, COALESCE(employee_id::text, ''), email, COALESCE(ip_address, ''),
		COALESCE(user_agent, ''), success, occurred_at FROM login_history`)
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}

	limit := filter.Limit
	switch {
	case limit <= 0:
		limit = DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		limit = MaxHistoryLimit
	}
	args = append(args, limit)
	fmt.Fprintf(&b, " ORDER BY occurred_at DESC LIMIT $%d", len(args))
	return b.String(), args
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
