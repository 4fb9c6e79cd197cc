package database

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration is a named, idempotent DDL statement.
type Migration struct {
	Name      string
	Statement string
}

// Migrate applies migrations in order inside one transaction. Statements
// must be idempotent (IF NOT EXISTS) since there is no version table.
func Migrate(ctx context.Context, db *sql.DB, migrations ...[]Migration) error {
	return WithTx(ctx, db, func(tx *sql.Tx) error {
		for _, set := range migrations {
			for _, m := range set {
				if _, err := tx.ExecContext(ctx, m.Statement); err != nil {
					return fmt.Errorf("migration %s: %w", m.Name, err)
				}
			}
		}
		return nil
	})
}
