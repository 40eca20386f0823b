// Package sqlite provides a local journal of dispatched window activation
// notifications, stored in an SQLite database file. It is the default
// journal backend: no server required, one file under the user's data
// directory.
//
// Example usage:
//
//	client, err := sqlite.NewClient("")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.SubmitActivation(common.Activation{
//		EventID:       uuid.New().String(),
//		OccurredAt:    time.Now(),
//		Backend:       "kwin",
//		Caption:       "Terminal",
//		ResourceClass: "org.kde.konsole",
//		ResourceName:  "konsole",
//	})
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/darinpp/toshy/internal/common"
)

// Configuration constants
const (
	defaultQueryTimeout = 5 * time.Second
	defaultDirName      = "toshy"
	defaultFileName     = "activations.db"
)

// Client provides methods for journaling activations in SQLite.
type Client struct {
	db        *sql.DB
	path      string
	DebugMode bool
}

// DefaultPath returns the journal location used when no path is given:
// $XDG_DATA_HOME/toshy/activations.db, falling back to
// ~/.local/share/toshy/activations.db.
func DefaultPath() (string, error) {
	if dataHome := os.Getenv("XDG_DATA_HOME"); dataHome != "" {
		return filepath.Join(dataHome, defaultDirName, defaultFileName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %v", err)
	}
	return filepath.Join(home, ".local", "share", defaultDirName, defaultFileName), nil
}

// NewClient opens (creating if needed) the journal database. An empty path
// falls back to TOSHY_SQLITE_PATH, then to DefaultPath.
func NewClient(path string) (*Client, error) {
	if path == "" {
		path = os.Getenv("TOSHY_SQLITE_PATH")
	}
	if path == "" {
		defaultPath, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = defaultPath
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %v", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultQueryTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open journal at %s: %v\n\nTroubleshooting:\n  1. Check the directory is writable\n  2. Remove a stale lock: fuser %s", path, err, path)
	}

	client := &Client{
		db:   db,
		path: path,
	}

	if err := client.initializeSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize journal schema: %v", err)
	}

	return client, nil
}

// Close closes the database.
func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Path returns the database file location.
func (c *Client) Path() string {
	return c.path
}

// debugLog prints debug messages if debug mode is enabled
func (c *Client) debugLog(format string, args ...interface{}) {
	if c.DebugMode {
		color.Cyan("[SQLITE DEBUG] "+format, args...)
	}
}

// initializeSchema creates the activations table and indexes if they don't exist.
func (c *Client) initializeSchema() error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultQueryTimeout)
	defer cancel()

	tableSQL := `
	CREATE TABLE IF NOT EXISTS activations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		event_id TEXT NOT NULL UNIQUE,
		occurred_at TIMESTAMP NOT NULL,
		backend TEXT NOT NULL,
		caption TEXT NOT NULL,
		resource_class TEXT NOT NULL,
		resource_name TEXT NOT NULL
	);
	`
	if _, err := c.db.ExecContext(ctx, tableSQL); err != nil {
		return fmt.Errorf("failed to create activations table: %v", err)
	}

	indexSQL := []string{
		`CREATE INDEX IF NOT EXISTS idx_activations_occurred_at ON activations(occurred_at);`,
		`CREATE INDEX IF NOT EXISTS idx_activations_resource_class ON activations(resource_class);`,
	}
	for _, stmt := range indexSQL {
		if _, err := c.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create index: %v", err)
		}
	}

	c.debugLog("Journal schema initialized at %s", c.path)
	return nil
}

// validateActivation checks required record fields before insertion.
func validateActivation(a common.Activation) error {
	if a.EventID == "" {
		return fmt.Errorf("event_id is required")
	}
	if a.OccurredAt.IsZero() {
		return fmt.Errorf("occurred_at is required")
	}
	if a.Backend == "" {
		return fmt.Errorf("backend is required")
	}
	return nil
}

// SubmitActivation stores one dispatched notification.
func (c *Client) SubmitActivation(a common.Activation) error {
	if err := validateActivation(a); err != nil {
		return fmt.Errorf("invalid activation: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultQueryTimeout)
	defer cancel()

	insertSQL := `
		INSERT INTO activations (event_id, occurred_at, backend, caption, resource_class, resource_name)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	if _, err := c.db.ExecContext(ctx, insertSQL,
		a.EventID, a.OccurredAt, a.Backend, a.Caption, a.ResourceClass, a.ResourceName); err != nil {
		return fmt.Errorf("failed to insert activation: %v", err)
	}

	c.debugLog("Journaled activation %s (%s)", a.EventID, a.ResourceClass)
	return nil
}

// GetRecent returns the most recent activations, newest first.
func (c *Client) GetRecent(limit int) ([]common.Activation, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultQueryTimeout)
	defer cancel()

	querySQL := `
		SELECT event_id, occurred_at, backend, caption, resource_class, resource_name
		FROM activations
		ORDER BY occurred_at DESC, id DESC
		LIMIT ?
	`
	rows, err := c.db.QueryContext(ctx, querySQL, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query activations: %v", err)
	}
	defer rows.Close()

	var activations []common.Activation
	for rows.Next() {
		var a common.Activation
		if err := rows.Scan(&a.EventID, &a.OccurredAt, &a.Backend, &a.Caption, &a.ResourceClass, &a.ResourceName); err != nil {
			return nil, fmt.Errorf("failed to scan activation row: %v", err)
		}
		activations = append(activations, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read activation rows: %v", err)
	}

	return activations, nil
}
