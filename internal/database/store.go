package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	dbconfig "blindrelay/pkg/database"
	"blindrelay/pkg/interfaces"
	"blindrelay/pkg/types"
)

// Store is the sqlite implementation of interfaces.SessionStore. Reads run
// concurrently against the pool; writes funnel through a single goroutine
// to avoid sqlite write contention, with one retry after a delay.
type Store struct {
	db           *sql.DB
	config       *dbconfig.Config
	writeChannel chan writeOperation
	shutdown     chan struct{}
	wg           sync.WaitGroup
	closed       bool
	mu           sync.RWMutex
}

type writeOperation struct {
	operation func(*sql.DB) error
	result    chan error
}

const writeRetryDelay = 5 * time.Second

// NewStore opens the database, applies pragmas and migrations, and starts
// the writer goroutine.
func NewStore(config *dbconfig.Config) (*Store, error) {
	db, err := sql.Open("sqlite3", config.DatabasePath+"?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxConnections)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	if err := dbconfig.ApplyPragmas(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply sqlite pragmas: %w", err)
	}

	if err := dbconfig.NewMigrationManager(db).ApplyMigrations(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	store := &Store{
		db:           db,
		config:       config,
		writeChannel: make(chan writeOperation, 100),
		shutdown:     make(chan struct{}),
	}

	store.wg.Add(1)
	go store.writeLoop()

	return store, nil
}

func (s *Store) writeLoop() {
	defer s.wg.Done()

	for {
		select {
		case op := <-s.writeChannel:
			err := op.operation(s.db)
			// Not-found is a definitive answer, not a transient failure.
			if err != nil && !errors.Is(err, interfaces.ErrSessionNotFound) {
				log.Printf("Database write failed, retrying in %s: %v", writeRetryDelay, err)
				time.Sleep(writeRetryDelay)
				err = op.operation(s.db)
				if err != nil {
					log.Printf("Database write failed after retry: %v", err)
				}
			}
			op.result <- err

		case <-s.shutdown:
			return
		}
	}
}

func (s *Store) executeWrite(operation func(*sql.DB) error) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return fmt.Errorf("session store is closed")
	}
	s.mu.RUnlock()

	result := make(chan error, 1)

	select {
	case s.writeChannel <- writeOperation{operation: operation, result: result}:
		return <-result
	case <-time.After(30 * time.Second):
		return fmt.Errorf("write operation timeout")
	case <-s.shutdown:
		return fmt.Errorf("session store is shutting down")
	}
}

// CreateSession persists a new session record.
func (s *Store) CreateSession(ctx context.Context, record *types.SessionRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}

	return s.executeWrite(func(db *sql.DB) error {
		participantsJSON, err := json.Marshal(record.Participants)
		if err != nil {
			return fmt.Errorf("failed to marshal participants: %w", err)
		}

		_, err = db.ExecContext(ctx, `
			INSERT INTO sessions (
				session_id, name, description, creator_id, creator_name,
				creator_email, status, participants, join_code,
				max_participants, duration_minutes, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			record.SessionID,
			record.Name,
			record.Description,
			record.CreatorID,
			record.CreatorName,
			record.CreatorEmail,
			record.Status,
			string(participantsJSON),
			record.JoinCode,
			record.MaxParticipants,
			record.DurationMinutes,
			record.CreatedAt,
			record.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert session: %w", err)
		}
		return nil
	})
}

// GetSession retrieves a record by session ID.
func (s *Store) GetSession(ctx context.Context, sessionID string) (*types.SessionRecord, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE session_id = ?`, sessionID)
	return scanRecord(row)
}

// FindByJoinCode resolves a join code to its record.
func (s *Store) FindByJoinCode(ctx context.Context, joinCode string) (*types.SessionRecord, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE join_code = ?`, joinCode)
	return scanRecord(row)
}

// UpdateStatus moves a record's status and refreshes updated_at.
func (s *Store) UpdateStatus(ctx context.Context, sessionID, status string) error {
	return s.executeWrite(func(db *sql.DB) error {
		result, err := db.ExecContext(ctx,
			`UPDATE sessions SET status = ?, updated_at = ? WHERE session_id = ?`,
			status, time.Now().UTC(), sessionID,
		)
		if err != nil {
			return fmt.Errorf("failed to update session status: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return interfaces.ErrSessionNotFound
		}
		return nil
	})
}

// DeleteSession removes a record.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	return s.executeWrite(func(db *sql.DB) error {
		result, err := db.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, sessionID)
		if err != nil {
			return fmt.Errorf("failed to delete session: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return interfaces.ErrSessionNotFound
		}
		return nil
	})
}

// ListUserSessions returns records the user participates in, newest first.
// Participant membership lives inside the JSON column, so candidates are
// filtered in Go after a creator-or-participant prefilter in SQL.
func (s *Store) ListUserSessions(ctx context.Context, userID string, limit int) ([]*types.SessionRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		selectColumns+` WHERE creator_id = ? OR participants LIKE ? ORDER BY created_at DESC`,
		userID, `%"`+userID+`"%`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query user sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []*types.SessionRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		if _, ok := record.ParticipantByID(userID); !ok && record.CreatorID != userID {
			continue
		}
		records = append(records, record)
		if len(records) >= limit {
			break
		}
	}
	return records, rows.Err()
}

// AddParticipant appends a participant to a record's seat list.
func (s *Store) AddParticipant(ctx context.Context, sessionID string, participant *types.Participant) error {
	return s.executeWrite(func(db *sql.DB) error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		var participantsJSON string
		err = tx.QueryRowContext(ctx,
			`SELECT participants FROM sessions WHERE session_id = ?`, sessionID,
		).Scan(&participantsJSON)
		if err == sql.ErrNoRows {
			return interfaces.ErrSessionNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to read participants: %w", err)
		}

		var participants []types.Participant
		if err := json.Unmarshal([]byte(participantsJSON), &participants); err != nil {
			return fmt.Errorf("failed to unmarshal participants: %w", err)
		}
		participants = append(participants, *participant)

		updated, err := json.Marshal(participants)
		if err != nil {
			return fmt.Errorf("failed to marshal participants: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE sessions SET participants = ?, updated_at = ? WHERE session_id = ?`,
			string(updated), time.Now().UTC(), sessionID,
		)
		if err != nil {
			return fmt.Errorf("failed to update participants: %w", err)
		}

		return tx.Commit()
	})
}

// HealthCheck verifies connectivity.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close stops the writer and closes the pool.
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
	return s.db.Close()
}

const selectColumns = `
	SELECT session_id, name, description, creator_id, creator_name,
	       creator_email, status, participants, join_code,
	       max_participants, duration_minutes, created_at, updated_at
	FROM sessions`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (*types.SessionRecord, error) {
	var record types.SessionRecord
	var participantsJSON string

	err := row.Scan(
		&record.SessionID,
		&record.Name,
		&record.Description,
		&record.CreatorID,
		&record.CreatorName,
		&record.CreatorEmail,
		&record.Status,
		&participantsJSON,
		&record.JoinCode,
		&record.MaxParticipants,
		&record.DurationMinutes,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, interfaces.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}

	if err := json.Unmarshal([]byte(participantsJSON), &record.Participants); err != nil {
		return nil, fmt.Errorf("failed to unmarshal participants: %w", err)
	}

	return &record, nil
}
