// Package db persists the reconciliation snapshot in a local sqlite
// database so a host restart does not discard the last-confirmed baseline.
package db

import (
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	_ "github.com/mattn/go-sqlite3"
)

const (
	// Number of database connections to use. The same value is used for
	// both the maximum and idle limit, to prevent opening connections on
	// the fly which has a noticeable performance penalty.
	dbConns = 4

	// Idle connection timeout, in seconds. Closes a connection after a
	// period of inactivity, which saves on memory and causes the sqlite
	// -wal and -shm files to be automatically deleted.
	dbConnTimeout = 30
)

var ErrDatabaseNotInitialized = errors.New("database not initialized")

const schema = `
CREATE TABLE IF NOT EXISTS snapshot_overlays (
	id TEXT NOT NULL PRIMARY KEY,
	scene_number INTEGER NOT NULL,
	layer_name TEXT NOT NULL,
	source_index INTEGER NOT NULL,
	saved INTEGER NOT NULL DEFAULT 0,
	data TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS index_snapshot_overlays_on_scene ON snapshot_overlays (scene_number, layer_name);
`

type Database struct {
	db     *sqlx.DB
	dbPath string
}

func NewDatabase() *Database {
	return &Database{}
}

// Open opens the database at dbPath, creating the schema if needed.
func (d *Database) Open(dbPath string) error {
	d.dbPath = dbPath

	url := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=50"
	conn, err := sqlx.Open("sqlite3", url)
	if err != nil {
		return fmt.Errorf("db open: %w", err)
	}

	conn.SetMaxOpenConns(dbConns)
	conn.SetMaxIdleConns(dbConns)
	conn.SetConnMaxIdleTime(dbConnTimeout * time.Second)

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return fmt.Errorf("db schema: %w", err)
	}

	d.db = conn
	return nil
}

func (d *Database) Close() error {
	if d.db == nil {
		return nil
	}
	err := d.db.Close()
	d.db = nil
	return err
}

func (d *Database) DatabasePath() string {
	return d.dbPath
}
