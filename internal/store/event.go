package store

import (
	"database/sql"
	"time"
)

// LetterEvent is a letter emitted during a session.
type LetterEvent struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	Letter    string    `json:"letter"`
	EmittedAt time.Time `json:"emitted_at"`
}

// EventRepository records emitted letters.
type EventRepository struct {
	db *sql.DB
}

// Events returns the letter event repository for this store.
func (s *Store) Events() *EventRepository {
	return &EventRepository{db: s.db}
}

// Record appends a letter to a session.
func (r *EventRepository) Record(sessionID, letter string, at time.Time) (*LetterEvent, error) {
	result, err := r.db.Exec(
		`INSERT INTO letter_events (session_id, letter, emitted_at) VALUES (?, ?, ?)`,
		sessionID, letter, at,
	)
	if err != nil {
		return nil, err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}

	return &LetterEvent{ID: id, SessionID: sessionID, Letter: letter, EmittedAt: at}, nil
}

// ListBySession returns the letters of a session in emission order.
func (r *EventRepository) ListBySession(sessionID string) ([]LetterEvent, error) {
	rows, err := r.db.Query(
		`SELECT id, session_id, letter, emitted_at
		 FROM letter_events
		 WHERE session_id = ?
		 ORDER BY id`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []LetterEvent
	for rows.Next() {
		var e LetterEvent
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Letter, &e.EmittedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return events, nil
}
