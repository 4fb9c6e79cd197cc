// Package employees is the employee directory: a Postgres-backed repository
// with a Redis-cached listing that is invalidated on every write.
package employees

import (
	"context"
	"database/sql"
	stderrors "errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"prereport-service/internal/common/database"
	"prereport-service/internal/common/errors"
	"prereport-service/internal/common/logger"
	"prereport-service/internal/common/validation"
	"prereport-service/internal/models"
	"prereport-service/internal/prereport/cache"
)

const (
	listKeyPrefix = "prereport:employees:"
	listTTL       = 10 * time.Minute

	constraintEmployeeCode = "employees_employee_code_key"
	constraintEmail        = "employees_email_key"
)

// Schema creates the employees table.
var Schema = []database.Migration{
	{Name: "employees", Statement: `
CREATE TABLE IF NOT EXISTS employees (
    id             UUID PRIMARY KEY,
    employee_code  TEXT NOT NULL CONSTRAINT employees_employee_code_key UNIQUE,
    full_name      TEXT NOT NULL,
    email          TEXT NOT NULL CONSTRAINT employees_email_key UNIQUE,
    phone          TEXT,
    role           TEXT NOT NULL,
    department     TEXT,
    active         BOOLEAN NOT NULL DEFAULT TRUE,
    created_at     TIMESTAMPTZ NOT NULL,
    updated_at     TIMESTAMPTZ NOT NULL
)`},
}

var inputSchema = validation.JSONSchema{
	Type:  "object",
	Title: "Employee",
	Properties: map[string]validation.Property{
		"employeeCode": {Type: "string", MinLength: intPtr(2), MaxLength: intPtr(32)},
		"fullName":     {Type: "string", MinLength: intPtr(2), MaxLength: intPtr(120)},
		"email":        {Type: "string", Pattern: strPtr(validation.EmailPattern)},
		"phone":        {Type: "string", Pattern: strPtr(validation.PhonePattern)},
		"role":         {Type: "string", Enum: models.EmployeeRoles},
		"department":   {Type: "string", MaxLength: intPtr(80)},
	},
	Required: []string{"employeeCode", "fullName", "email", "role"},
}

type Directory struct {
	db     *sql.DB
	cache  *cache.Cache
	logger logger.Logger
	now    func() time.Time
}

// NewDirectory builds the directory; a nil cache disables list caching.
func NewDirectory(db *sql.DB, c *cache.Cache, log logger.Logger) *Directory {
	return &Directory{
		db:     db,
		cache:  c,
		logger: log.WithFields(map[string]interface{}{"component": "employees"}),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

const employeeColumns = `id, employee_code, full_name, email, COALESCE(phone, ''), role,
	COALESCE(department, ''), active, created_at, updated_at`

// List returns employees ordered by name.
func (d *Directory) List(ctx context.Context, activeOnly bool) ([]models.Employee, error) {
	load := func(ctx context.Context) ([]models.Employee, error) {
		query := `SELECT ` + employeeColumns + ` FROM employees`
		if activeOnly {
			query += ` WHERE active`
		}
		query += ` ORDER BY full_name, employee_code`

		rows, err := d.db.QueryContext(ctx, query)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		out := []models.Employee{}
		for rows.Next() {
			e, err := scanEmployee(rows)
			if err != nil {
				return nil, err
			}
			out = append(out, *e)
		}
		return out, rows.Err()
	}

	list, err := cache.GetOrLoad(ctx, d.cache, "employees", listKey(activeOnly), listTTL, load)
	if err != nil {
		return nil, errors.NewDatabaseError("list employees", err)
	}
	return list, nil
}

func (d *Directory) Get(ctx context.Context, id string) (*models.Employee, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, errors.NewEmployeeNotFoundError(id)
	}
	row := d.db.QueryRowContext(ctx, `SELECT `+employeeColumns+` FROM employees WHERE id = $1`, id)
	e, err := scanEmployee(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewEmployeeNotFoundError(id)
	}
	if err != nil {
		return nil, errors.NewDatabaseError("get employee", err)
	}
	return e, nil
}

func (d *Directory) Create(ctx context.Context, in models.EmployeeInput) (*models.Employee, error) {
	in = normalize(in)
	if err := validateInput(in); err != nil {
		return nil, err
	}

	now := d.now()
	e := &models.Employee{
		ID:           uuid.NewString(),
		EmployeeCode: in.EmployeeCode,
		FullName:     in.FullName,
		Email:        in.Email,
		Phone:        in.Phone,
		Role:         in.Role,
		Department:   in.Department,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	_, err := d.db.ExecContext(ctx, `
		INSERT INTO employees (id, employee_code, full_name, email, phone, role, department, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE, $8, $8)`,
		e.ID, e.EmployeeCode, e.FullName, e.Email, nullable(e.Phone), e.Role, nullable(e.Department), now,
	)
	if err != nil {
		return nil, writeError("create employee", in, err)
	}

	d.invalidate(ctx)
	d.logger.Info("employee created", map[string]interface{}{"employeeId": e.ID, "role": e.Role})
	return e, nil
}

func (d *Directory) Update(ctx context.Context, id string, in models.EmployeeInput) (*models.Employee, error) {
	in = normalize(in)
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, errors.NewEmployeeNotFoundError(id)
	}

	row := d.db.QueryRowContext(ctx, `
		UPDATE employees
		SET employee_code = $2, full_name = $3, email = $4, phone = $5, role = $6, department = $7, updated_at = $8
		WHERE id = $1
		RETURNING `+employeeColumns,
		id, in.EmployeeCode, in.FullName, in.Email, nullable(in.Phone), in.Role, nullable(in.Department), d.now(),
	)
	e, err := scanEmployee(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewEmployeeNotFoundError(id)
	}
	if err != nil {
		return nil, writeError("update employee", in, err)
	}

	d.invalidate(ctx)
	return e, nil
}

// Deactivate marks the employee inactive; rows are never deleted.
func (d *Directory) Deactivate(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return errors.NewEmployeeNotFoundError(id)
	}
	res, err := d.db.ExecContext(ctx,
		`UPDATE employees SET active = FALSE, updated_at = $2 WHERE id = $1`, id, d.now())
	if err != nil {
		return errors.NewDatabaseError("deactivate employee", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.NewDatabaseError("deactivate employee", err)
	}
	if n == 0 {
		return errors.NewEmployeeNotFoundError(id)
	}

	d.invalidate(ctx)
	d.logger.Info("employee deactivated", map[string]interface{}{"employeeId": id})
	return nil
}

func (d *Directory) invalidate(ctx context.Context) {
	rdb := d.cache.Redis()
	if rdb == nil {
		return
	}
	if _, err := database.DeletePattern(ctx, rdb, listKeyPrefix+"*"); err != nil {
		d.logger.Warn("failed to invalidate employee cache", map[string]interface{}{"error": err})
	}
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanEmployee(s scanner) (*models.Employee, error) {
	var e models.Employee
	if err := s.Scan(&e.ID, &e.EmployeeCode, &e.FullName, &e.Email, &e.Phone, &e.Role,
		&e.Department, &e.Active, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	return &e, nil
}

func validateInput(in models.EmployeeInput) error {
	payload := map[string]interface{}{
		"employeeCode": in.EmployeeCode,
		"fullName":     in.FullName,
		"email":        in.Email,
		"role":         in.Role,
	}
	if in.Phone != "" {
		payload["phone"] = in.Phone
	}
	if in.Department != "" {
		payload["department"] = in.Department
	}
	if result := validation.ValidateInput(payload, inputSchema); !result.Valid {
		return errors.NewValidationFailedError("employee failed validation", result.Errors)
	}
	return nil
}

func normalize(in models.EmployeeInput) models.EmployeeInput {
	in.EmployeeCode = strings.TrimSpace(in.EmployeeCode)
	in.FullName = strings.TrimSpace(in.FullName)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Phone = strings.TrimSpace(in.Phone)
	in.Role = strings.ToUpper(strings.TrimSpace(in.Role))
	in.Department = strings.TrimSpace(in.Department)
	return in
}

// writeError maps unique violations onto the colliding field.
func writeError(op string, in models.EmployeeInput, err error) error {
	var pqErr *pq.Error
	if stderrors.As(err, &pqErr) && pqErr.Code == "23505" {
		switch pqErr.Constraint {
		case constraintEmployeeCode:
			return errors.NewDuplicateEmployeeError("employeeCode", in.EmployeeCode)
		case constraintEmail:
			return errors.NewDuplicateEmployeeError("email", in.Email)
		}
		return errors.NewDuplicateEmployeeError(pqErr.Constraint, "")
	}
	return errors.NewDatabaseError(op, err)
}

func listKey(activeOnly bool) string {
	if activeOnly {
		return listKeyPrefix + "active"
	}
	return listKeyPrefix + "all"
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func intPtr(i int) *int { return &i }

func strPtr(s string) *string { return &s }
