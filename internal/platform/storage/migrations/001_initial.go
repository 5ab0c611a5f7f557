package migrations

import (
	"fmt"

	"gorm.io/gorm"
)

// Migration001Initial creates the users table backing account records.
type Migration001Initial struct{}

func (m *Migration001Initial) Version() string {
	return "001_initial"
}

func (m *Migration001Initial) Description() string {
	return "Create users table for account records"
}

func (m *Migration001Initial) Up(db *gorm.DB) error {
	// Raw SQL keeps the schema stable even if the model struct evolves.
	for _, stmt := range createUsersStatements(db.Dialector.Name()) {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}

func (m *Migration001Initial) Down(db *gorm.DB) error {
	return db.Exec(`DROP TABLE IF EXISTS users`).Error
}

// createUsersStatements emits per-dialect DDL; sqlite and postgres
// disagree on auto-increment keys and timestamp column types.
func createUsersStatements(dialect string) []string {
	idColumn := "INTEGER PRIMARY KEY AUTOINCREMENT"
	timeType := "DATETIME"
	if dialect == "postgres" {
		idColumn = "BIGSERIAL PRIMARY KEY"
		timeType = "TIMESTAMPTZ"
	}

	return []string{
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS users (
			id %s,
			username VARCHAR(255) NOT NULL UNIQUE,
			email VARCHAR(255),
			password_hash VARCHAR(255) NOT NULL,
			failed_login_attempts INTEGER NOT NULL DEFAULT 0,
			locked BOOLEAN NOT NULL DEFAULT FALSE,
			locked_until %s,
			last_login %s,
			created_at %s NOT NULL,
			updated_at %s NOT NULL
		)`, idColumn, timeType, timeType, timeType, timeType),
		`CREATE INDEX IF NOT EXISTS idx_users_username ON users(username)`,
	}
}
