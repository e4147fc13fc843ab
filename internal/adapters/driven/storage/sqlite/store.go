package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/contentsync/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/contentsync/internal/core/domain"
	"github.com/custodia-labs/contentsync/internal/core/ports/driven"
)

// dbFile is the database file name inside the data directory.
const dbFile = "contentsync.db"

// timeLayout sorts lexically in time order. Times are stored in UTC.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store is a unified SQLite-based storage that provides access to
// all persistence interfaces through wrapper types.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store in the specified data directory.
// If dataDir is empty, defaults to ~/.contentsync.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".contentsync")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, dbFile)

	// WAL lets status reads run while a sync writes
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// CheckpointStore returns a CheckpointStore backed by this store.
func (s *Store) CheckpointStore() driven.CheckpointStore {
	return &checkpointStore{store: s}
}

// NodeStore returns a NodeStore backed by this store.
func (s *Store) NodeStore() driven.NodeStore {
	return &nodeStore{store: s}
}

// SyncRunStore returns a SyncRunStore backed by this store.
func (s *Store) SyncRunStore() driven.SyncRunStore {
	return &syncRunStore{store: s}
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys fs.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// "001_initial.up.sql" -> 1
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if err := s.apply(version, string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
	}

	return nil
}

// apply runs one migration and records its version atomically.
func (s *Store) apply(version int, script string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(script); err != nil {
		return err
	}
	if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
		return err
	}
	return tx.Commit()
}

// ==================== Checkpoint Store ====================

// checkpointStore implements driven.CheckpointStore.
type checkpointStore struct {
	store *Store
}

var _ driven.CheckpointStore = (*checkpointStore)(nil)

// Get returns the value for key.
func (s *checkpointStore) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.store.db.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", domain.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("getting %s: %w", key, err)
	}
	return value, nil
}

// Set stores the value for key.
func (s *checkpointStore) Set(ctx context.Context, key, value string) error {
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, key, value)
	if err != nil {
		return fmt.Errorf("setting %s: %w", key, err)
	}
	return nil
}

// Delete removes key.
func (s *checkpointStore) Delete(ctx context.Context, key string) error {
	if _, err := s.store.db.ExecContext(ctx, "DELETE FROM kv WHERE key = ?", key); err != nil {
		return fmt.Errorf("deleting %s: %w", key, err)
	}
	return nil
}

// ==================== Node Store ====================

// nodeStore implements driven.NodeStore.
type nodeStore struct {
	store *Store
}

var _ driven.NodeStore = (*nodeStore)(nil)

// Upsert stores or replaces a node.
func (s *nodeStore) Upsert(ctx context.Context, node domain.Node) error {
	if node.RemoteID.ID == "" || node.RemoteID.TypeName == "" {
		return fmt.Errorf("%w: node requires id and type", domain.ErrInvalidInput)
	}
	data := string(node.Data)
	if data == "" {
		data = "null"
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO nodes (type_name, node_key, remote_id, site_id, data, sourced_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(type_name, node_key) DO UPDATE SET
			data = excluded.data,
			sourced_at = excluded.sourced_at
	`, node.RemoteID.TypeName, node.RemoteID.Key(), node.RemoteID.ID,
		nullString(node.RemoteID.SiteID), data, formatTime(node.SourcedAt))
	if err != nil {
		return fmt.Errorf("saving node %s: %w", node.RemoteID.Key(), err)
	}
	return nil
}

// Delete removes a node.
func (s *nodeStore) Delete(ctx context.Context, id domain.RemoteID) error {
	_, err := s.store.db.ExecContext(ctx,
		"DELETE FROM nodes WHERE type_name = ? AND node_key = ?", id.TypeName, id.Key())
	if err != nil {
		return fmt.Errorf("deleting node %s: %w", id.Key(), err)
	}
	return nil
}

// Get returns a node.
func (s *nodeStore) Get(ctx context.Context, id domain.RemoteID) (*domain.Node, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT type_name, remote_id, site_id, data, sourced_at
		FROM nodes WHERE type_name = ? AND node_key = ?
	`, id.TypeName, id.Key())

	node, err := scanNode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return node, nil
}

// List returns all nodes of a remote type ordered by remote id.
func (s *nodeStore) List(ctx context.Context, typeName string) ([]domain.Node, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT type_name, remote_id, site_id, data, sourced_at
		FROM nodes WHERE type_name = ?
		ORDER BY remote_id, node_key
	`, typeName)
	if err != nil {
		return nil, fmt.Errorf("querying nodes: %w", err)
	}
	defer rows.Close()

	var nodes []domain.Node //nolint:prealloc // size unknown from query
	for rows.Next() {
		node, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, *node)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating nodes: %w", err)
	}
	return nodes, nil
}

// Counts returns the number of stored nodes per remote type.
func (s *nodeStore) Counts(ctx context.Context) (map[string]int, error) {
	rows, err := s.store.db.QueryContext(ctx, "SELECT type_name, COUNT(*) FROM nodes GROUP BY type_name")
	if err != nil {
		return nil, fmt.Errorf("counting nodes: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var typeName string
		var n int
		if err := rows.Scan(&typeName, &n); err != nil {
			return nil, fmt.Errorf("scanning node count: %w", err)
		}
		counts[typeName] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating node counts: %w", err)
	}
	return counts, nil
}

// ==================== Helper Functions ====================

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanNode scans a node row.
func scanNode(row rowScanner) (*domain.Node, error) {
	var node domain.Node
	var siteID sql.NullString
	var data, sourcedAt string

	if err := row.Scan(&node.RemoteID.TypeName, &node.RemoteID.ID, &siteID, &data, &sourcedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning node: %w", err)
	}

	if siteID.Valid {
		node.RemoteID.SiteID = siteID.String
	}
	node.Data = []byte(data)
	node.SourcedAt = parseTime(sourcedAt)
	return &node, nil
}

// formatTime formats a time in UTC with timeLayout.
func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTime parses a timeLayout string. Returns zero time on error.
func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// formatNullableTime formats a time, or returns nil for zero time.
func formatNullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return formatTime(t)
}

// parseNullableTime parses a nullable time column.
func parseNullableTime(s sql.NullString) time.Time {
	if !s.Valid || s.String == "" {
		return time.Time{}
	}
	return parseTime(s.String)
}

// nullString returns nil for empty strings, otherwise the string.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// boolToInt converts a bool to 1 (true) or 0 (false).
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
