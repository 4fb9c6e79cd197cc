package employees

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prereport-service/internal/common/errors"
	"prereport-service/internal/common/logger"
	"prereport-service/internal/models"
	"prereport-service/internal/prereport/cache"
)

var fixedNow = time.Date(2026, 5, 2, 11, 0, 0, 0, time.UTC)

const employeeID = "1b4e28ba-2fa1-11d2-883f-0016d3cca427"

var employeeCols = []string{"id", "employee_code", "full_name", "email", "phone", "role",
	"department", "active", "created_at", "updated_at"}

func newTestDirectory(t *testing.T, withCache bool) (*Directory, sqlmock.Sqlmock, *miniredis.Miniredis) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	var (
		c  *cache.Cache
		mr *miniredis.Miniredis
	)
	if withCache {
		mr = miniredis.RunT(t)
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { rdb.Close() })
		c = cache.New(rdb, time.Minute, time.Minute, logger.NewTestLogger(t))
	}

	d := NewDirectory(db, c, logger.NewTestLogger(t))
	d.now = func() time.Time { return fixedNow }
	return d, mock, mr
}

func validInput() models.EmployeeInput {
	return models.EmployeeInput{
		EmployeeCode: "TB-014",
		FullName:     " Priya Nair ",
		Email:        "Priya.Nair@TrueBuddy.example",
		Phone:        "+91 98450 12345",
		Role:         "investigator",
		Department:   "Field Ops",
	}
}

func TestList_CachesUntilWrite(t *testing.T) {
	d, mock, mr := newTestDirectory(t, true)
	ctx := context.Background()

	mock.ExpectQuery("SELECT .* FROM employees WHERE active ORDER BY full_name").
		WillReturnRows(sqlmock.NewRows(employeeCols).
			AddRow(employeeID, "TB-014", "Priya Nair", "priya.nair@truebuddy.example", "", "INVESTIGATOR", "", true, fixedNow, fixedNow))

	first, err := d.List(ctx, true)
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.True(t, mr.Exists(listKeyPrefix+"active"))

	// served from redis, no second query expected
	second, err := d.List(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	mock.ExpectExec("UPDATE employees SET active = FALSE").WithArgs(employeeID, fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, d.Deactivate(ctx, employeeID))
	assert.False(t, mr.Exists(listKeyPrefix+"active"))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestList_AllIncludesInactive(t *testing.T) {
	d, mock, _ := newTestDirectory(t, false)

	mock.ExpectQuery("SELECT .* FROM employees ORDER BY full_name").
		WillReturnRows(sqlmock.NewRows(employeeCols).
			AddRow(employeeID, "TB-014", "Priya Nair", "p@x.example", "", "ANALYST", "", false, fixedNow, fixedNow))

	list, err := d.List(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.False(t, list[0].Active)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_NormalizesAndInserts(t *testing.T) {
	d, mock, _ := newTestDirectory(t, false)

	mock.ExpectExec("INSERT INTO employees").
		WithArgs(sqlmock.AnyArg(), "TB-014", "Priya Nair", "priya.nair@truebuddy.example",
			sql.NullString{String: "+91 98450 12345", Valid: true}, "INVESTIGATOR",
			sql.NullString{String: "Field Ops", Valid: true}, fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))

	e, err := d.Create(context.Background(), validInput())
	require.NoError(t, err)
	assert.Len(t, e.ID, 36)
	assert.Equal(t, "INVESTIGATOR", e.Role)
	assert.True(t, e.Active)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_RejectsInvalidInput(t *testing.T) {
	d, mock, _ := newTestDirectory(t, false)

	in := validInput()
	in.Email = "not-an-email"
	in.Role = "JANITOR"

	_, err := d.Create(context.Background(), in)
	require.Error(t, err)
	se, ok := err.(*errors.StandardError)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeValidationFailed, se.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_UniqueViolationNamesTheField(t *testing.T) {
	tests := []struct {
		name       string
		constraint string
		details    string
	}{
		{"email", "employees_email_key", "email: priya.nair@truebuddy.example"},
		{"employee code", "employees_employee_code_key", "employeeCode: TB-014"},
		{"unknown constraint", "employees_pkey", "employees_pkey"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, mock, _ := newTestDirectory(t, false)

			mock.ExpectExec("INSERT INTO employees").
				WillReturnError(&pq.Error{Code: "23505", Constraint: tt.constraint})

			_, err := d.Create(context.Background(), validInput())
			se, ok := err.(*errors.StandardError)
			require.True(t, ok)
			assert.Equal(t, errors.ErrCodeDuplicateEmployee, se.Code)
			assert.Equal(t, tt.details, se.Details)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestGet(t *testing.T) {
	d, mock, _ := newTestDirectory(t, false)

	mock.ExpectQuery("SELECT .* FROM employees WHERE id = \\$1").WithArgs(employeeID).
		WillReturnRows(sqlmock.NewRows(employeeCols).
			AddRow(employeeID, "TB-014", "Priya Nair", "p@x.example", "+91 98450 12345", "ANALYST", "Desk", true, fixedNow, fixedNow))
	e, err := d.Get(context.Background(), employeeID)
	require.NoError(t, err)
	assert.Equal(t, "Desk", e.Department)

	mock.ExpectQuery("SELECT .* FROM employees WHERE id = \\$1").WithArgs(employeeID).
		WillReturnError(sql.ErrNoRows)
	_, err = d.Get(context.Background(), employeeID)
	assert.Equal(t, errors.ErrCodeEmployeeNotFound, err.(*errors.StandardError).Code)

	_, err = d.Get(context.Background(), "nope")
	assert.Equal(t, errors.ErrCodeEmployeeNotFound, err.(*errors.StandardError).Code)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdate(t *testing.T) {
	d, mock, _ := newTestDirectory(t, false)

	mock.ExpectQuery("UPDATE employees").
		WithArgs(employeeID, "TB-014", "Priya Nair", "priya.nair@truebuddy.example",
			sqlmock.AnyArg(), "INVESTIGATOR", sqlmock.AnyArg(), fixedNow).
		WillReturnRows(sqlmock.NewRows(employeeCols).
			AddRow(employeeID, "TB-014", "Priya Nair", "priya.nair@truebuddy.example", "+91 98450 12345", "INVESTIGATOR", "Field Ops", true, fixedNow, fixedNow))

	e, err := d.Update(context.Background(), employeeID, validInput())
	require.NoError(t, err)
	assert.Equal(t, "Field Ops", e.Department)

	mock.ExpectQuery("UPDATE employees").WillReturnError(sql.ErrNoRows)
	_, err = d.Update(context.Background(), employeeID, validInput())
	assert.Equal(t, errors.ErrCodeEmployeeNotFound, err.(*errors.StandardError).Code)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeactivate_Unknown(t *testing.T) {
	d, mock, _ := newTestDirectory(t, false)

	mock.ExpectExec("UPDATE employees SET active = FALSE").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := d.Deactivate(context.Background(), employeeID)
	assert.Equal(t, errors.ErrCodeEmployeeNotFound, err.(*errors.StandardError).Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}
