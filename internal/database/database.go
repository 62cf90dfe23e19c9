package database

import (
	"database/sql"
	"embed"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/server/*.sql migrations/client/*.sql
var migrations embed.FS

const (
	serverMigrations = "migrations/server"
	clientMigrations = "migrations/client"
)

// goose keeps its base FS and dialect in package state.
var migrateMu sync.Mutex

// Open opens the API server's SQLite database at the given path and runs migrations.
func Open(dbPath string) (*sql.DB, error) {
	return open(dbPath, serverMigrations)
}

// OpenClient opens the client's local cache database (lists, shared lists,
// session credential and the pending-operation queue) and runs migrations.
func OpenClient(dbPath string) (*sql.DB, error) {
	return open(dbPath, clientMigrations)
}

func open(dbPath, dir string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// SQLite allows one writer. A single connection also keeps ":memory:"
	// databases from splitting into one database per pooled connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := runMigrations(db, dir); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return db, nil
}

func dsn(dbPath string) string {
	return dbPath + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)"
}

func runMigrations(db *sql.DB, dir string) error {
	migrateMu.Lock()
	defer migrateMu.Unlock()

	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.Up(db, dir); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}

	return nil
}
