// Package store persists pre-reports, their lead data and the dropdown
// lookups in PostgreSQL.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"prereport-service/internal/common/database"
	"prereport-service/internal/models"
)

var (
	ErrNotFound        = errors.New("REPORT_NOT_FOUND")
	ErrClientNotFound  = errors.New("CLIENT_NOT_FOUND")
	ErrInvalidProducts = errors.New("INVALID_PRODUCTS")
	ErrStatusConflict  = errors.New("STATUS_CONFLICT")
	ErrUnknownLeadType = errors.New("UNKNOWN_LEAD_TYPE")
	ErrDatabaseFailure = errors.New("DATABASE_FAILURE")
)

var leadDataTables = map[models.LeadType]string{
	models.LeadTypeClient:    "client_lead_data",
	models.LeadTypeTrueBuddy: "truebuddy_lead_data",
}

func leadDataTable(lt models.LeadType) (string, error) {
	table, ok := leadDataTables[lt]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownLeadType, lt)
	}
	return table, nil
}

// Pointer is the report row state written together with a step save.
type Pointer struct {
	CurrentStep int
	Status      models.ReportStatus
}

type PostgresStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// WithClock overrides the timestamp source.
func (s *PostgresStore) WithClock(now func() time.Time) *PostgresStore {
	s.now = now
	return s
}

// Migrate creates the tables this store needs.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	return database.Migrate(ctx, s.db, Schema)
}

// CreateReport inserts the report at step 1 in DRAFT together with an empty
// lead data row. Products must all belong to the client.
func (s *PostgresStore) CreateReport(ctx context.Context, req models.InitRequest) (*models.PreReport, error) {
	table, err := leadDataTable(req.LeadType)
	if err != nil {
		return nil, err
	}
	productIDs := uniqueIDs(req.ProductIDs)
	now := s.now()

	report := &models.PreReport{
		ClientID:     req.ClientID,
		ProductIDs:   productIDs,
		LeadType:     req.LeadType,
		ReportStatus: models.ReportStatusDraft,
		CurrentStep:  1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var exists bool
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM clients WHERE id = $1 AND active)`,
			req.ClientID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("%w: client check: %v", ErrDatabaseFailure, err)
		}
		if !exists {
			return fmt.Errorf("%w: %d", ErrClientNotFound, req.ClientID)
		}

		if len(productIDs) > 0 {
			var matched int
			if err := tx.QueryRowContext(ctx,
				`SELECT COUNT(*) FROM products WHERE client_id = $1 AND id = ANY($2) AND active`,
				req.ClientID, pq.Array(productIDs),
			).Scan(&matched); err != nil {
				return fmt.Errorf("%w: product check: %v", ErrDatabaseFailure, err)
			}
			if matched != len(productIDs) {
				return fmt.Errorf("%w: %d of %d products belong to client %d",
					ErrInvalidProducts, matched, len(productIDs), req.ClientID)
			}
		}

		if err := tx.QueryRowContext(ctx, `
			INSERT INTO pre_reports (
				client_id, product_ids, lead_type, report_status,
				current_step, created_by, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
			RETURNING id`,
			report.ClientID,
			pq.Array(productIDs),
			string(report.LeadType),
			string(report.ReportStatus),
			report.CurrentStep,
			nullString(req.CreatedBy),
			now,
		).Scan(&report.ID); err != nil {
			return fmt.Errorf("%w: insert report: %v", ErrDatabaseFailure, err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO `+table+` (report_id, data, updated_at) VALUES ($1, $2, $3)`,
			report.ID, []byte("{}"), now,
		); err != nil {
			return fmt.Errorf("%w: insert lead data: %v", ErrDatabaseFailure, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

const reportColumns = `id, client_id, product_ids, lead_type, report_status,
	current_step, created_at, updated_at, submitted_at`

func (s *PostgresStore) GetReport(ctx context.Context, id int64) (*models.PreReport, error) {
	var (
		r           models.PreReport
		productIDs  pq.Int64Array
		leadType    string
		status      string
		submittedAt sql.NullTime
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT `+reportColumns+` FROM pre_reports WHERE id = $1`, id,
	).Scan(&r.ID, &r.ClientID, &productIDs, &leadType, &status,
		&r.CurrentStep, &r.CreatedAt, &r.UpdatedAt, &submittedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get report %d: %v", ErrDatabaseFailure, id, err)
	}

	r.ProductIDs = []int64(productIDs)
	if r.ProductIDs == nil {
		r.ProductIDs = []int64{}
	}
	r.LeadType = models.LeadType(leadType)
	r.ReportStatus = models.ReportStatus(status)
	if submittedAt.Valid {
		t := submittedAt.Time
		r.SubmittedAt = &t
	}
	return &r, nil
}

// GetLeadData returns nil without error when the report has no lead data row.
func (s *PostgresStore) GetLeadData(ctx context.Context, id int64, lt models.LeadType) (models.LeadData, error) {
	table, err := leadDataTable(lt)
	if err != nil {
		return nil, err
	}

	var raw []byte
	err = s.db.QueryRowContext(ctx, `SELECT data FROM `+table+` WHERE report_id = $1`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get lead data %d: %v", ErrDatabaseFailure, id, err)
	}
	return decodeLeadData(raw)
}

// SaveStep merges patch into the stored lead data and writes the pointer in
// the same transaction. On error nothing is persisted.
func (s *PostgresStore) SaveStep(ctx context.Context, id int64, lt models.LeadType, patch models.LeadData, ptr Pointer) (models.LeadData, error) {
	table, err := leadDataTable(lt)
	if err != nil {
		return nil, err
	}
	now := s.now()

	var merged models.LeadData
	err = database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var raw []byte
		err := tx.QueryRowContext(ctx,
			`SELECT data FROM `+table+` WHERE report_id = $1 FOR UPDATE`, id,
		).Scan(&raw)
		existing := models.LeadData{}
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return fmt.Errorf("%w: lock lead data: %v", ErrDatabaseFailure, err)
		default:
			if existing, err = decodeLeadData(raw); err != nil {
				return err
			}
		}

		merged = existing.Merge(patch)
		encoded, err := json.Marshal(merged)
		if err != nil {
			return fmt.Errorf("%w: encode lead data: %v", ErrDatabaseFailure, err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO `+table+` (report_id, data, updated_at) VALUES ($1, $2, $3)
			ON CONFLICT (report_id) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`,
			id, encoded, now,
		); err != nil {
			return fmt.Errorf("%w: write lead data: %v", ErrDatabaseFailure, err)
		}

		res, err := tx.ExecContext(ctx,
			`UPDATE pre_reports SET current_step = $2, report_status = $3, updated_at = $4 WHERE id = $1`,
			id, ptr.CurrentStep, string(ptr.Status), now,
		)
		if err != nil {
			return fmt.Errorf("%w: update pointer: %v", ErrDatabaseFailure, err)
		}
		return requireOneRow(res, id)
	})
	if err != nil {
		return nil, err
	}
	return merged, nil
}

// SetStep moves the pointer without touching lead data.
func (s *PostgresStore) SetStep(ctx context.Context, id int64, step int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE pre_reports SET current_step = $2, updated_at = $3 WHERE id = $1`,
		id, step, s.now(),
	)
	if err != nil {
		return fmt.Errorf("%w: set step: %v", ErrDatabaseFailure, err)
	}
	return requireOneRow(res, id)
}

// UpdateStatus changes the status only if it still equals from.
func (s *PostgresStore) UpdateStatus(ctx context.Context, id int64, from, to models.ReportStatus, submittedAt *time.Time) (time.Time, error) {
	now := s.now()
	var submitted interface{}
	if submittedAt != nil {
		submitted = *submittedAt
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE pre_reports
		SET report_status = $2, submitted_at = COALESCE($3, submitted_at), updated_at = $4
		WHERE id = $1 AND report_status = $5`,
		id, string(to), submitted, now, string(from),
	)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: update status: %v", ErrDatabaseFailure, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: rows affected: %v", ErrDatabaseFailure, err)
	}
	if n == 0 {
		return time.Time{}, fmt.Errorf("%w: report %d is no longer %s", ErrStatusConflict, id, from)
	}
	return now, nil
}

func (s *PostgresStore) ListClients(ctx context.Context) ([]models.Client, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, COALESCE(code, '') FROM clients WHERE active ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("%w: list clients: %v", ErrDatabaseFailure, err)
	}
	defer rows.Close()

	clients := []models.Client{}
	for rows.Next() {
		var c models.Client
		if err := rows.Scan(&c.ID, &c.Name, &c.Code); err != nil {
			return nil, fmt.Errorf("%w: scan client: %v", ErrDatabaseFailure, err)
		}
		clients = append(clients, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list clients: %v", ErrDatabaseFailure, err)
	}
	return clients, nil
}

func (s *PostgresStore) ListProducts(ctx context.Context, clientID int64) ([]models.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, client_id, name, COALESCE(category, '')
		FROM products WHERE client_id = $1 AND active ORDER BY name, id`, clientID)
	if err != nil {
		return nil, fmt.Errorf("%w: list products: %v", ErrDatabaseFailure, err)
	}
	defer rows.Close()

	products := []models.Product{}
	for rows.Next() {
		var p models.Product
		if err := rows.Scan(&p.ID, &p.ClientID, &p.Name, &p.Category); err != nil {
			return nil, fmt.Errorf("%w: scan product: %v", ErrDatabaseFailure, err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list products: %v", ErrDatabaseFailure, err)
	}
	return products, nil
}

func requireOneRow(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected: %v", ErrDatabaseFailure, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return nil
}

func decodeLeadData(raw []byte) (models.LeadData, error) {
	data := models.LeadData{}
	if len(raw) == 0 {
		return data, nil
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("%w: decode lead data: %v", ErrDatabaseFailure, err)
	}
	if data == nil {
		data = models.LeadData{}
	}
	return data, nil
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
