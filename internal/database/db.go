package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql" // mysql:// URLs
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"  // postgres:// URLs
	_ "modernc.org/sqlite" // default single-file store
)

const (
	driverSQLite   = "sqlite"
	driverMySQL    = "mysql"
	driverPostgres = "postgres"
)

// detectDriver maps a database URL to a driver name and DSN: postgres://
// and mysql:// are dialed as such, anything else is treated as a sqlite
// file path.
func detectDriver(databaseURL string) (driver, dsn string) {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return driverPostgres, databaseURL
	case strings.HasPrefix(databaseURL, "mysql://"):
		return driverMySQL, strings.TrimPrefix(databaseURL, "mysql://")
	}
	return driverSQLite, sqliteDSN(databaseURL)
}

// sqliteDSN turns a sqlite path into a DSN with foreign keys enforced.
// Pragmas are per-connection, so they have to ride the DSN to reach every
// connection the pool opens; cascade deletes depend on it.
func sqliteDSN(path string) string {
	const pragma = "_pragma=foreign_keys(1)"
	if strings.Contains(path, pragma) {
		return path
	}
	if strings.Contains(path, "?") {
		return path + "&" + pragma
	}
	return path + "?" + pragma
}

// New creates a new database connection.
func New(databaseURL string) (*sqlx.DB, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable not set")
	}

	driver, dsn := detectDriver(databaseURL)

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool settings
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// CreateTables bootstraps the schema. Safe to call on every startup.
func CreateTables(db *sqlx.DB) error {
	id := "INTEGER PRIMARY KEY AUTOINCREMENT"
	switch db.DriverName() {
	case driverPostgres:
		id = "SERIAL PRIMARY KEY"
	case driverMySQL:
		id = "INTEGER PRIMARY KEY AUTO_INCREMENT"
	}

	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id ` + id + `,
			username VARCHAR(255) UNIQUE NOT NULL,
			name TEXT,
			email TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS campaigns (
			id ` + id + `,
			user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			name VARCHAR(255) NOT NULL,
			service TEXT,
			industries TEXT,
			locations TEXT,
			platforms TEXT,
			status VARCHAR(64) NOT NULL DEFAULT 'Idle',
			date_created TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (user_id, name)
		)`,
		`CREATE TABLE IF NOT EXISTS leads (
			id ` + id + `,
			campaign_id INTEGER NOT NULL REFERENCES campaigns(id) ON DELETE CASCADE,
			name TEXT,
			email TEXT,
			platform_source VARCHAR(255),
			profile_link TEXT,
			state VARCHAR(255),
			industry VARCHAR(255),
			profile_description TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS email_contents (
			id ` + id + `,
			lead_id INTEGER NOT NULL REFERENCES leads(id) ON DELETE CASCADE,
			campaign_id INTEGER NOT NULL REFERENCES campaigns(id) ON DELETE CASCADE,
			subject TEXT,
			body TEXT,
			html TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			delivery_status VARCHAR(255),
			opened BOOLEAN NOT NULL DEFAULT FALSE,
			reply_text TEXT,
			reply_sentiment VARCHAR(32)
		)`,
		`CREATE TABLE IF NOT EXISTS sender_configs (
			id ` + id + `,
			user_id INTEGER UNIQUE NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			sender_name TEXT,
			sender_email TEXT,
			company_name TEXT,
			website TEXT,
			phone TEXT,
			imap_server VARCHAR(255),
			imap_email TEXT,
			imap_password TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_leads_campaign_id ON leads(campaign_id)`,
		`CREATE INDEX IF NOT EXISTS idx_email_contents_campaign_id ON email_contents(campaign_id)`,
		`CREATE INDEX IF NOT EXISTS idx_email_contents_lead_id ON email_contents(lead_id)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return nil
}
