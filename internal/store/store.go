// Package store is the local SQLite store: the opaque credential store used by
// the CLI and a log of data-integrity warnings raised while deriving views.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"mentorhub/pkg/types"
)

// Credentials is the token saved for one backend.
type Credentials struct {
	APIURL  string
	Token   string
	UserID  string
	Role    types.Role
	Name    string
	Email   string
	SavedAt time.Time
}

// WarningRecord is an integrity warning with its sighting history.
type WarningRecord struct {
	types.IntegrityWarning
	FirstSeen   time.Time `json:"firstSeen"`
	LastSeen    time.Time `json:"lastSeen"`
	Occurrences int       `json:"occurrences"`
}

// Store owns the SQLite database.
type Store struct {
	db           *sql.DB
	config       *Config
	log          *zap.Logger
	writeChannel chan writeOperation // TECHNICAL: single writer for SQLite
	shutdown     chan struct{}
	wg           sync.WaitGroup
	closed       bool
	mu           sync.RWMutex
}

type writeOperation struct {
	operation func(*sql.DB) error
	result    chan error
}

// Open creates the database file if needed, applies migrations and starts the
// write loop.
func Open(config *Config, log *zap.Logger) (*Store, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}

	if dir := filepath.Dir(config.Path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", config.Path+"?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	db.SetMaxOpenConns(config.MaxConnections)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	if err := applyPragmas(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply SQLite pragmas: %w", err)
	}
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{
		db:           db,
		config:       config,
		log:          log.Named("store"),
		writeChannel: make(chan writeOperation, 100),
		shutdown:     make(chan struct{}),
	}

	s.wg.Add(1)
	go s.writeLoop()

	return s, nil
}

// writeLoop runs every write on one goroutine; a failed write is retried once.
func (s *Store) writeLoop() {
	defer s.wg.Done()

	for {
		select {
		case op := <-s.writeChannel:
			err := op.operation(s.db)
			if err != nil {
				s.log.Warn("store write failed, retrying", zap.Duration("delay", s.config.RetryDelay), zap.Error(err))
				time.Sleep(s.config.RetryDelay)
				err = op.operation(s.db)
				if err != nil {
					s.log.Error("store write failed after retry", zap.Error(err))
				}
			}
			op.result <- err

		case <-s.shutdown:
			return
		}
	}
}

func (s *Store) executeWrite(ctx context.Context, operation func(*sql.DB) error) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrClosed
	}
	s.mu.RUnlock()

	result := make(chan error, 1)
	timer := time.NewTimer(s.config.WriteTimeout)
	defer timer.Stop()

	select {
	case s.writeChannel <- writeOperation{operation: operation, result: result}:
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrWriteTimeout
	case <-s.shutdown:
		return ErrClosed
	}

	select {
	case err := <-result:
		return err
	case <-timer.C:
		return ErrWriteTimeout
	}
}

// SaveCredentials stores creds for creds.APIURL, replacing any earlier token.
func (s *Store) SaveCredentials(ctx context.Context, creds Credentials) error {
	creds.APIURL = normalizeURL(creds.APIURL)
	if creds.APIURL == "" || creds.Token == "" {
		return fmt.Errorf("%w: api url and token are required", ErrInvalidRecord)
	}
	if creds.SavedAt.IsZero() {
		creds.SavedAt = time.Now()
	}

	return s.executeWrite(ctx, func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, `
			INSERT INTO credentials (api_url, token, user_id, role, name, email, saved_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(api_url) DO UPDATE SET
				token = excluded.token,
				user_id = excluded.user_id,
				role = excluded.role,
				name = excluded.name,
				email = excluded.email,
				saved_at = excluded.saved_at
		`, creds.APIURL, creds.Token, creds.UserID, string(creds.Role), creds.Name, creds.Email, creds.SavedAt.UTC())
		if err != nil {
			return fmt.Errorf("failed to save credentials: %w", err)
		}
		return nil
	})
}

// LoadCredentials returns the token saved for apiURL or ErrNoCredentials.
func (s *Store) LoadCredentials(ctx context.Context, apiURL string) (*Credentials, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT api_url, token, user_id, role, name, email, saved_at
		FROM credentials
		WHERE api_url = ?
	`, normalizeURL(apiURL))

	var creds Credentials
	var role string
	err := row.Scan(&creds.APIURL, &creds.Token, &creds.UserID, &role, &creds.Name, &creds.Email, &creds.SavedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoCredentials
		}
		return nil, fmt.Errorf("failed to query credentials: %w", err)
	}
	creds.Role = types.Role(role)
	return &creds, nil
}

// DeleteCredentials forgets the token for apiURL. Deleting a missing entry is not an error.
func (s *Store) DeleteCredentials(ctx context.Context, apiURL string) error {
	return s.executeWrite(ctx, func(db *sql.DB) error {
		if _, err := db.ExecContext(ctx, "DELETE FROM credentials WHERE api_url = ?", normalizeURL(apiURL)); err != nil {
			return fmt.Errorf("failed to delete credentials: %w", err)
		}
		return nil
	})
}

// RecordWarnings upserts warnings, bumping the occurrence count of ones already known.
func (s *Store) RecordWarnings(ctx context.Context, warnings []types.IntegrityWarning, seen time.Time) error {
	if len(warnings) == 0 {
		return nil
	}
	seen = seen.UTC()

	return s.executeWrite(ctx, func(db *sql.DB) error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO integrity_warnings (session_id, reason, first_seen, last_seen, occurrences)
			VALUES (?, ?, ?, ?, 1)
			ON CONFLICT(session_id, reason) DO UPDATE SET
				last_seen = excluded.last_seen,
				occurrences = integrity_warnings.occurrences + 1
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare warning insert: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for _, w := range warnings {
			if _, err := stmt.ExecContext(ctx, w.SessionID, w.Reason, seen, seen); err != nil {
				return fmt.Errorf("failed to record warning for %s: %w", w.SessionID, err)
			}
		}
		return tx.Commit()
	})
}

// ListWarnings returns recorded warnings, most recently seen first.
func (s *Store) ListWarnings(ctx context.Context) ([]WarningRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, reason, first_seen, last_seen, occurrences
		FROM integrity_warnings
		ORDER BY last_seen DESC, session_id ASC, reason ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query warnings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	records := []WarningRecord{}
	for rows.Next() {
		var r WarningRecord
		if err := rows.Scan(&r.SessionID, &r.Reason, &r.FirstSeen, &r.LastSeen, &r.Occurrences); err != nil {
			return nil, fmt.Errorf("failed to scan warning row: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating warning rows: %w", err)
	}
	return records, nil
}

// ClearWarnings removes every recorded warning and reports how many were removed.
func (s *Store) ClearWarnings(ctx context.Context) (int64, error) {
	var removed int64
	err := s.executeWrite(ctx, func(db *sql.DB) error {
		res, err := db.ExecContext(ctx, "DELETE FROM integrity_warnings")
		if err != nil {
			return fmt.Errorf("failed to clear warnings: %w", err)
		}
		removed, err = res.RowsAffected()
		return err
	})
	return removed, err
}

// HealthCheck validates database connectivity.
func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("store ping failed: %w", err)
	}
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
		return fmt.Errorf("store read test failed: %w", err)
	}
	return nil
}

// Close stops the write loop and closes the database. It is safe to call twice.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.shutdown)
	s.wg.Wait()

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close store: %w", err)
	}
	return nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute pragma %s: %w", pragma, err)
		}
	}
	return nil
}

func normalizeURL(raw string) string {
	return strings.TrimRight(strings.TrimSpace(raw), "/")
}
