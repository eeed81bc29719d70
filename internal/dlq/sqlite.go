package dlq

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteSink implements Sink using SQLite, keeping dead-lettered
// events across restarts for later inspection or replay
type SQLiteSink struct {
	db      *sql.DB
	closed  bool
	writeMu sync.Mutex
}

// NewSQLiteSink creates a new SQLite dead-letter sink
func NewSQLiteSink(dbPath string) (*SQLiteSink, error) {
	// Configure SQLite for concurrent access
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=2000&_foreign_keys=on&_busy_timeout=60000", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Set connection pool settings for concurrent access
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(10 * time.Minute)

	sink := &SQLiteSink{
		db:     db,
		closed: false,
	}
	if err := sink.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return sink, nil
}

func (s *SQLiteSink) createTables() error {
	query := `
	CREATE TABLE IF NOT EXISTS dead_letters (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		event_id TEXT NOT NULL,
		event TEXT NOT NULL,
		error TEXT NOT NULL,
		attempts_made INTEGER NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_dead_letters_event_id ON dead_letters(event_id);
	CREATE INDEX IF NOT EXISTS idx_dead_letters_created_at ON dead_letters(created_at);
	`

	_, err := s.db.Exec(query)
	return err
}

// Publish appends an entry with retry mechanism
func (s *SQLiteSink) Publish(ctx context.Context, entry *Entry) error {
	// Check if sink is closed
	if s.closed {
		return fmt.Errorf("dead-letter sink is closed")
	}

	// Serialize writes to avoid SQLITE_BUSY from multiple concurrent writers
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	return s.retryOnBusy(func() error {
		return s.insertEntry(ctx, entry)
	})
}

func (s *SQLiteSink) insertEntry(ctx context.Context, entry *Entry) error {
	query := `
	INSERT INTO dead_letters (event_id, event, error, attempts_made, created_at)
	VALUES (?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		entry.EventID,
		string(entry.Event),
		entry.Error,
		entry.AttemptsMade,
		entry.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert dead letter: %w", err)
	}

	return nil
}

// Size returns the number of stored entries
func (s *SQLiteSink) Size() (int, error) {
	if s.closed {
		return 0, fmt.Errorf("dead-letter sink is closed")
	}

	var count int
	err := s.retryOnBusy(func() error {
		return s.db.QueryRow(`SELECT COUNT(*) FROM dead_letters`).Scan(&count)
	})
	return count, err
}

// Entries returns all stored entries, oldest first
func (s *SQLiteSink) Entries() ([]*Entry, error) {
	if s.closed {
		return nil, fmt.Errorf("dead-letter sink is closed")
	}

	query := `
	SELECT event_id, event, error, attempts_made, created_at
	FROM dead_letters
	ORDER BY id ASC
	`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*Entry

	for rows.Next() {
		var entry Entry
		var eventJSON string

		err := rows.Scan(
			&entry.EventID,
			&eventJSON,
			&entry.Error,
			&entry.AttemptsMade,
			&entry.Timestamp,
		)
		if err != nil {
			return nil, err
		}

		entry.Event = []byte(eventJSON)
		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}

// retryOnBusy retries the operation if SQLite is busy
func (s *SQLiteSink) retryOnBusy(operation func() error) error {
	maxRetries := 10
	baseDelay := 50 * time.Millisecond

	for attempt := 0; attempt < maxRetries; attempt++ {
		err := operation()
		if err == nil {
			return nil
		}

		// Check if this is a busy error
		if isSQLiteBusyError(err) {
			if attempt < maxRetries-1 {
				// Wait with exponential backoff + jitter
				delay := baseDelay * time.Duration(1<<uint(attempt))
				jitter := time.Duration(attempt*10) * time.Millisecond
				time.Sleep(delay + jitter)
				continue
			}
		}

		// Return the error if it's not a busy error or we've exhausted retries
		return err
	}

	return nil
}

// isSQLiteBusyError checks if the error is a SQLite busy error
func isSQLiteBusyError(err error) bool {
	if err == nil {
		return false
	}
	errorStr := err.Error()
	return strings.Contains(errorStr, "database is locked") ||
		strings.Contains(errorStr, "SQLITE_BUSY")
}

// Close closes the database connection
func (s *SQLiteSink) Close() error {
	s.closed = true
	return s.db.Close()
}
