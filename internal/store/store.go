// Package store persists the assessment catalog and the assignment
// aggregate in SQLite. All aggregate access runs inside a unit of work;
// transactions are opened immediate so concurrent writers serialize at the
// database.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// timeLayout stores timestamps as naive UTC; values are converted back to
// UTC-aware time.Time on load.
const timeLayout = "2006-01-02 15:04:05.999999"

// Store owns the SQLite handle and hands out transaction-scoped
// repositories.
type Store struct {
	db     *sql.DB
	dbPath string
	logger *zap.Logger
}

// Open creates or opens the database at path and initializes the schema.
// poolSize bounds the connection pool; SQLite still admits one writer at a
// time, which the immediate transaction lock enforces.
func Open(path string, poolSize int, logger *zap.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if poolSize < 1 {
		poolSize = 1
	}
	db.SetMaxOpenConns(poolSize)
	db.SetMaxIdleConns(poolSize)

	s := &Store{db: db, dbPath: path, logger: logger}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("store opened", zap.String("path", path), zap.Int("pool_size", poolSize))
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.logger.Info("closing store", zap.String("path", s.dbPath))
	return s.db.Close()
}

// DB exposes the underlying handle for tests and seeding.
func (s *Store) DB() *sql.DB { return s.db }

// Ping verifies the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// initSchema creates the required tables.
func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS learning_pathways (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		description TEXT,
		is_active INTEGER NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS assessment_templates (
		id TEXT PRIMARY KEY,
		learning_pathway_id TEXT NOT NULL REFERENCES learning_pathways(id),
		name TEXT NOT NULL,
		assessment_type TEXT NOT NULL,
		rubric TEXT,
		meta TEXT,
		version INTEGER NOT NULL DEFAULT 1,
		is_active INTEGER NOT NULL DEFAULT 1
	);
	CREATE INDEX IF NOT EXISTS idx_templates_pathway ON assessment_templates(learning_pathway_id);

	CREATE TABLE IF NOT EXISTS assessment_configs (
		id TEXT PRIMARY KEY,
		template_id TEXT NOT NULL REFERENCES assessment_templates(id),
		parameters TEXT,
		adaptive_params TEXT,
		is_active INTEGER NOT NULL DEFAULT 1
	);
	CREATE INDEX IF NOT EXISTS idx_configs_template ON assessment_configs(template_id);

	CREATE TABLE IF NOT EXISTS assessment_items (
		id TEXT PRIMARY KEY,
		content TEXT NOT NULL,
		item_type TEXT NOT NULL,
		skill_area TEXT NOT NULL,
		target_proficiency_level TEXT,
		parameters TEXT NOT NULL,
		is_active INTEGER NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS template_items (
		id TEXT PRIMARY KEY,
		template_id TEXT NOT NULL REFERENCES assessment_templates(id),
		item_id TEXT NOT NULL REFERENCES assessment_items(id),
		item_order INTEGER,
		UNIQUE(template_id, item_id)
	);
	CREATE INDEX IF NOT EXISTS idx_template_items_template ON template_items(template_id);

	CREATE TABLE IF NOT EXISTS assigned_assessments (
		id TEXT PRIMARY KEY,
		template_id TEXT NOT NULL REFERENCES assessment_templates(id),
		test_taker_id TEXT NOT NULL,
		test_taker_type TEXT NOT NULL,
		assigned_by TEXT,
		assigned_at TEXT NOT NULL,
		due_at TEXT,
		status TEXT NOT NULL,
		notes TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_assigned_taker ON assigned_assessments(test_taker_id, template_id);

	CREATE TABLE IF NOT EXISTS assessment_sessions (
		id TEXT PRIMARY KEY,
		assigned_id TEXT NOT NULL REFERENCES assigned_assessments(id),
		status TEXT NOT NULL,
		current_ability NUMERIC,
		standard_error NUMERIC,
		questions_answered INTEGER NOT NULL DEFAULT 0,
		rubric_snapshot TEXT,
		template_snapshot TEXT,
		started_at TEXT NOT NULL,
		completed_at TEXT,
		expires_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_assigned ON assessment_sessions(assigned_id);

	CREATE TABLE IF NOT EXISTS assessment_responses (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL REFERENCES assessment_sessions(id),
		item_id TEXT NOT NULL REFERENCES assessment_items(id),
		response_data TEXT,
		is_correct INTEGER,
		raw_score NUMERIC,
		presented_at TEXT NOT NULL,
		submitted_at TEXT,
		time_taken INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_responses_session ON assessment_responses(session_id);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

// formatTime serializes a timestamp as naive UTC text.
func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

// parseTime reads a naive UTC timestamp back as UTC-aware.
func parseTime(s string) (time.Time, error) {
	t, err := time.ParseInLocation(timeLayout, s, time.UTC)
	if err != nil {
		// Older rows may omit fractional seconds entirely.
		t, err = time.ParseInLocation("2006-01-02 15:04:05", s, time.UTC)
	}
	return t, err
}

func parseTimePtr(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
