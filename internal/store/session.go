package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Session is one recognition run, from Start to Stop.
type Session struct {
	ID           string     `json:"id"`
	TableVersion string     `json:"table_version"`
	StartedAt    time.Time  `json:"started_at"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`
}

// SessionRepository provides operations on sessions.
type SessionRepository struct {
	db *sql.DB
}

// Sessions returns the session repository for this store.
func (s *Store) Sessions() *SessionRepository {
	return &SessionRepository{db: s.db}
}

// Start records a new session using the given rule table version.
func (r *SessionRepository) Start(tableVersion string) (*Session, error) {
	sess := &Session{
		ID:           uuid.New().String(),
		TableVersion: tableVersion,
		StartedAt:    time.Now(),
	}

	_, err := r.db.Exec(
		`INSERT INTO sessions (id, table_version, started_at) VALUES (?, ?, ?)`,
		sess.ID, sess.TableVersion, sess.StartedAt,
	)
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// End marks a session as finished. Ending it twice keeps the first time.
func (r *SessionRepository) End(id string) error {
	result, err := r.db.Exec(
		`UPDATE sessions SET ended_at = COALESCE(ended_at, ?) WHERE id = ?`,
		time.Now(), id,
	)
	if err != nil {
		return err
	}
	return checkAffected(result)
}

// Get retrieves a session by its ID.
func (r *SessionRepository) Get(id string) (*Session, error) {
	sess := &Session{}
	var ended sql.NullTime

	err := r.db.QueryRow(
		`SELECT id, table_version, started_at, ended_at FROM sessions WHERE id = ?`,
		id,
	).Scan(&sess.ID, &sess.TableVersion, &sess.StartedAt, &ended)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if ended.Valid {
		sess.EndedAt = &ended.Time
	}
	return sess, nil
}
