// Package store implements sqlite-backed persistence for all booking
// entities: jobs, documents, clients with sub-clients, users, identifier
// requests and artwork submissions. Every mutation is a per-record SQL
// statement, multi-row changes run in transactions.
package store

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // sqlite driver

	"github.com/postbureau/dispatch/app/store/enums"
)

// ErrNotFound indicates update/get of a record id that does not exist
var ErrNotFound = errors.New("record not found")

// ErrCorruptState indicates stored data that cannot be decoded
var ErrCorruptState = errors.New("corrupt stored state")

// Store provides durable CRUD over all entity collections
type Store struct {
	db *sqlx.DB
}

// New opens (or creates) the sqlite database at dbPath and initializes the schema
func New(dbPath string) (*Store, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// pragmas are per-connection, keep a single one so they stick
	db.SetMaxOpenConns(1)

	// enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to set WAL mode: %w (also failed to close db: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &Store{db: db}
	if err := s.initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// initialize creates the database schema
func (s *Store) initialize() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS jobs (
			id TEXT PRIMARY KEY,
			reference TEXT NOT NULL UNIQUE,
			title TEXT NOT NULL,
			description TEXT,
			custom_fields TEXT,
			status TEXT NOT NULL,
			collection_date INTEGER,
			handover_date INTEGER,
			item_count INTEGER DEFAULT 0,
			bag_count INTEGER DEFAULT 0,
			assigned_to TEXT,
			client_name TEXT,
			sub_client_id TEXT,
			emanifest_id TEXT,
			created_by TEXT,
			created_at INTEGER,
			updated_at INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS job_files (
			id TEXT PRIMARY KEY,
			job_id TEXT NOT NULL,
			name TEXT NOT NULL,
			url TEXT,
			mime_type TEXT,
			uploaded_by TEXT,
			uploaded_at INTEGER,
			FOREIGN KEY (job_id) REFERENCES jobs(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			url TEXT,
			mime_type TEXT,
			description TEXT,
			access_roles TEXT,
			uploaded_by TEXT,
			uploaded_at INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS clients (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			created_at INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS sub_clients (
			id TEXT PRIMARY KEY,
			client_id TEXT NOT NULL,
			name TEXT NOT NULL,
			sort_index INTEGER DEFAULT 0,
			FOREIGN KEY (client_id) REFERENCES clients(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			name TEXT,
			role TEXT NOT NULL,
			status TEXT NOT NULL,
			password_hash TEXT NOT NULL,
			allowed_sub_clients TEXT,
			created_at INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS user_logins (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			logged_at INTEGER,
			remote_addr TEXT,
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS ucid_requests (
			id TEXT PRIMARY KEY,
			req_type TEXT NOT NULL,
			client_name TEXT,
			requestor_email TEXT,
			comments TEXT,
			collection_point TEXT,
			agency_account INTEGER DEFAULT 0,
			supply_chain_id TEXT,
			supply_chain_type TEXT,
			supply_chain_name TEXT,
			mail_originator TEXT,
			status TEXT NOT NULL,
			completed_by TEXT,
			created_at INTEGER,
			completed_at INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS artwork (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			image_url TEXT,
			comments TEXT,
			status TEXT NOT NULL,
			submitted_by TEXT,
			submitted_at INTEGER,
			reviewed_by TEXT,
			reviewed_at INTEGER,
			feedback TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_job_files_job_id ON job_files(job_id)`,
		`CREATE INDEX IF NOT EXISTS idx_sub_clients_client_id ON sub_clients(client_id)`,
		`CREATE INDEX IF NOT EXISTS idx_user_logins_user_id ON user_logins(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_reference ON jobs(reference)`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}
	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Counts returns the number of records per collection, used by the status endpoint
func (s *Store) Counts() (map[string]int, error) {
	tables := []string{"jobs", "documents", "clients", "sub_clients", "users", "ucid_requests", "artwork"}
	res := make(map[string]int, len(tables))
	for _, table := range tables {
		var count int
		if err := s.db.Get(&count, "SELECT COUNT(*) FROM "+table); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", table, err)
		}
		res[table] = count
	}
	return res, nil
}

// StringMap is a string-to-string map stored as a JSON text column.
// It replaces the legacy convention of stashing serialized custom fields
// inside the free-text description.
type StringMap map[string]string

// Value implements driver.Valuer
func (m StringMap) Value() (driver.Value, error) {
	if len(m) == 0 {
		return "", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal string map: %w", err)
	}
	return string(data), nil
}

// Scan implements sql.Scanner
func (m *StringMap) Scan(v any) error {
	data, err := textColumn(v)
	if err != nil {
		return fmt.Errorf("string map: %w", err)
	}
	if data == "" {
		*m = nil
		return nil
	}
	if err := json.Unmarshal([]byte(data), m); err != nil {
		return fmt.Errorf("%w: bad string map %q: %v", ErrCorruptState, data, err)
	}
	return nil
}

// StringList is a list of strings stored as a JSON text column
type StringList []string

// Value implements driver.Valuer
func (l StringList) Value() (driver.Value, error) {
	if len(l) == 0 {
		return "", nil
	}
	data, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal string list: %w", err)
	}
	return string(data), nil
}

// Scan implements sql.Scanner
func (l *StringList) Scan(v any) error {
	data, err := textColumn(v)
	if err != nil {
		return fmt.Errorf("string list: %w", err)
	}
	if data == "" {
		*l = nil
		return nil
	}
	if err := json.Unmarshal([]byte(data), l); err != nil {
		return fmt.Errorf("%w: bad string list %q: %v", ErrCorruptState, data, err)
	}
	return nil
}

// RoleList is a set of roles stored as a JSON text column
type RoleList []enums.Role

// Value implements driver.Valuer
func (l RoleList) Value() (driver.Value, error) {
	if len(l) == 0 {
		return "", nil
	}
	data, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal role list: %w", err)
	}
	return string(data), nil
}

// Scan implements sql.Scanner
func (l *RoleList) Scan(v any) error {
	data, err := textColumn(v)
	if err != nil {
		return fmt.Errorf("role list: %w", err)
	}
	if data == "" {
		*l = nil
		return nil
	}
	if err := json.Unmarshal([]byte(data), l); err != nil {
		return fmt.Errorf("%w: bad role list %q: %v", ErrCorruptState, data, err)
	}
	return nil
}

// Contains reports whether the list includes the given role
func (l RoleList) Contains(role enums.Role) bool {
	for _, r := range l {
		if r == role {
			return true
		}
	}
	return false
}

// textColumn extracts text from a scanned sqlite value
func textColumn(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "", nil
	case string:
		return val, nil
	case []byte:
		return string(val), nil
	default:
		return "", fmt.Errorf("unexpected column type %T", v)
	}
}

// timestamps are stored as unix seconds, zero means "not set"

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func timeOrZero(unix int64) time.Time {
	if unix == 0 {
		return time.Time{}
	}
	return time.Unix(unix, 0)
}
