package database

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"recserver/extractors"
)

// ErrNotFound no row matched the lookup
var ErrNotFound = errors.New("not found")

// Session statuses
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusError      = "error"
	StatusTimeout    = "timeout"
)

// Session tracks one upload through the pipeline
type Session struct {
	ID              string    `json:"id"`
	Status          string    `json:"status"`
	ErrorMessage    string    `json:"error_message,omitempty"`
	ProgressMessage string    `json:"progress_message,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
	ExpiresAt       time.Time `json:"expires_at"`
}

// Result the stored output of a completed session
type Result struct {
	ID              string                      `json:"id"`
	SessionID       string                      `json:"session_id"`
	Recommendations []extractors.Recommendation `json:"recommendations"`
	OpenAIEnhanced  bool                        `json:"openai_enhanced"`
	CreatedAt       time.Time                   `json:"created_at"`
	ExpiresAt       time.Time                   `json:"expires_at"`
}

// DB sqlite-backed session and result storage
type DB struct {
	conn      *sql.DB
	retention time.Duration
}

// NewDB opens (or creates) the database at path and runs migrations.
// Retention controls how long sessions and results live.
func NewDB(path string, retention time.Duration) (*DB, error) {
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// in-memory sqlite needs a single connection or each new
	// connection sees an empty database
	if isInMemory(path) {
		conn.SetMaxOpenConns(1)
		conn.SetMaxIdleConns(1)
	} else {
		conn.SetMaxOpenConns(10)
		conn.SetMaxIdleConns(3)
		conn.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA foreign_keys = ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := conn.Exec("PRAGMA journal_mode = WAL"); err != nil {
		log.Printf("[DB] Warning: failed to enable WAL mode: %v", err)
	}

	db := &DB{conn: conn, retention: retention}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return db, nil
}

func isInMemory(path string) bool {
	return path == ":memory:" ||
		(strings.HasPrefix(path, "file:") && strings.Contains(path, "mode=memory"))
}

func (db *DB) migrate() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			status TEXT NOT NULL DEFAULT 'pending'
				CHECK(status IN ('pending', 'processing', 'completed', 'error', 'timeout')),
			error_message TEXT,
			progress_message TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			expires_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS results (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL UNIQUE,
			recommendations TEXT NOT NULL,
			openai_enhanced INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			expires_at TIMESTAMP NOT NULL,
			FOREIGN KEY(session_id) REFERENCES sessions(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions(status)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_created_at ON sessions(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at)`,
		`CREATE INDEX IF NOT EXISTS idx_results_expires_at ON results(expires_at)`,
	}

	for _, stmt := range statements {
		if _, err := db.conn.Exec(stmt); err != nil {
			errStr := strings.ToLower(err.Error())
			if !strings.Contains(errStr, "already exists") {
				return fmt.Errorf("migration failed: %w", err)
			}
		}
	}
	return nil
}

// Close closes the underlying connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping verifies the connection is alive
func (db *DB) Ping() error {
	return db.conn.Ping()
}

// CreateSession inserts a new pending session
func (db *DB) CreateSession() (*Session, error) {
	now := time.Now().UTC()
	session := &Session{
		ID:        uuid.New().String(),
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(db.retention),
	}

	_, err := db.conn.Exec(
		`INSERT INTO sessions (id, status, created_at, updated_at, expires_at) VALUES (?, ?, ?, ?, ?)`,
		session.ID, session.Status, session.CreatedAt, session.UpdatedAt, session.ExpiresAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return session, nil
}

// GetSession loads a session by id
func (db *DB) GetSession(id string) (*Session, error) {
	var session Session
	var errorMessage, progressMessage sql.NullString

	err := db.conn.QueryRow(
		`SELECT id, status, error_message, progress_message, created_at, updated_at, expires_at
		 FROM sessions WHERE id = ?`, id,
	).Scan(&session.ID, &session.Status, &errorMessage, &progressMessage,
		&session.CreatedAt, &session.UpdatedAt, &session.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	session.ErrorMessage = errorMessage.String
	session.ProgressMessage = progressMessage.String
	return &session, nil
}

// UpdateSessionStatus sets the status and optional error message
func (db *DB) UpdateSessionStatus(id, status, errorMessage string) error {
	res, err := db.conn.Exec(
		`UPDATE sessions SET status = ?, error_message = NULLIF(?, ''), updated_at = ? WHERE id = ?`,
		status, errorMessage, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update session status: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateSessionProgress updates the human-readable progress message
func (db *DB) UpdateSessionProgress(id, message string) error {
	res, err := db.conn.Exec(
		`UPDATE sessions SET progress_message = ?, updated_at = ? WHERE id = ?`,
		message, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update session progress: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveResult stores the recommendation set for a session
func (db *DB) SaveResult(sessionID string, recs []extractors.Recommendation, enhanced bool) (*Result, error) {
	if recs == nil {
		recs = []extractors.Recommendation{}
	}
	payload, err := json.Marshal(recs)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal recommendations: %w", err)
	}

	now := time.Now().UTC()
	result := &Result{
		ID:              uuid.New().String(),
		SessionID:       sessionID,
		Recommendations: recs,
		OpenAIEnhanced:  enhanced,
		CreatedAt:       now,
		ExpiresAt:       now.Add(db.retention),
	}

	_, err = db.conn.Exec(
		`INSERT INTO results (id, session_id, recommendations, openai_enhanced, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		result.ID, result.SessionID, string(payload), result.OpenAIEnhanced, result.CreatedAt, result.ExpiresAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to save result: %w", err)
	}

	return result, nil
}

// GetResult loads the stored result for a session
func (db *DB) GetResult(sessionID string) (*Result, error) {
	var result Result
	var payload string

	err := db.conn.QueryRow(
		`SELECT id, session_id, recommendations, openai_enhanced, created_at, expires_at
		 FROM results WHERE session_id = ?`, sessionID,
	).Scan(&result.ID, &result.SessionID, &payload, &result.OpenAIEnhanced,
		&result.CreatedAt, &result.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get result: %w", err)
	}

	if err := json.Unmarshal([]byte(payload), &result.Recommendations); err != nil {
		return nil, fmt.Errorf("failed to unmarshal recommendations: %w", err)
	}
	return &result, nil
}

// CleanupExpired deletes sessions and results whose retention has passed.
// Results go first so the foreign key never dangles.
func (db *DB) CleanupExpired() (resultsDeleted, sessionsDeleted int64, err error) {
	now := time.Now().UTC()

	res, err := db.conn.Exec(`DELETE FROM results WHERE expires_at < ?`, now)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to delete expired results: %w", err)
	}
	resultsDeleted, _ = res.RowsAffected()

	res, err = db.conn.Exec(`DELETE FROM sessions WHERE expires_at < ?`, now)
	if err != nil {
		return resultsDeleted, 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	sessionsDeleted, _ = res.RowsAffected()

	return resultsDeleted, sessionsDeleted, nil
}
