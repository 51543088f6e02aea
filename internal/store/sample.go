package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/vocalize/internal/landmark"
)

// Sample is a landmark frame labelled with the letter it shows.
type Sample struct {
	ID         string             `json:"id"`
	Label      string             `json:"label"`
	Handedness string             `json:"handedness,omitempty"`
	Points     []landmark.Point3D `json:"points"`
	CreatedAt  time.Time          `json:"created_at"`
}

// Hand returns the sample as detector landmarks.
func (s *Sample) Hand() landmark.HandLandmarks {
	return landmark.HandLandmarks{
		Points:     append([]landmark.Point3D(nil), s.Points...),
		Handedness: s.Handedness,
		Score:      1,
	}
}

// SampleRepository provides CRUD operations for labelled samples.
type SampleRepository struct {
	db *sql.DB
}

// Samples returns the sample repository for this store.
func (s *Store) Samples() *SampleRepository {
	return &SampleRepository{db: s.db}
}

// Create inserts a sample. An empty ID is filled with a new UUID.
func (r *SampleRepository) Create(s *Sample) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	s.CreatedAt = time.Now()

	points, err := json.Marshal(s.Points)
	if err != nil {
		return fmt.Errorf("encode points: %w", err)
	}

	_, err = r.db.Exec(
		`INSERT INTO samples (id, label, handedness, points, created_at) VALUES (?, ?, ?, ?, ?)`,
		s.ID, s.Label, s.Handedness, string(points), s.CreatedAt,
	)
	return err
}

// Get retrieves a sample by its ID.
func (r *SampleRepository) Get(id string) (*Sample, error) {
	row := r.db.QueryRow(
		`SELECT id, label, handedness, points, created_at FROM samples WHERE id = ?`,
		id,
	)
	s, err := scanSample(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s, nil
}

// List returns samples oldest first. A non-empty label filters by letter.
func (r *SampleRepository) List(label string) ([]*Sample, error) {
	query := `SELECT id, label, handedness, points, created_at FROM samples`
	var args []any
	if label != "" {
		query += ` WHERE label = ?`
		args = append(args, label)
	}
	query += ` ORDER BY created_at, rowid`

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []*Sample
	for rows.Next() {
		s, err := scanSample(rows)
		if err != nil {
			return nil, err
		}
		samples = append(samples, s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return samples, nil
}

// Delete removes a sample by its ID.
func (r *SampleRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM samples WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return checkAffected(result)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSample(row scanner) (*Sample, error) {
	s := &Sample{}
	var points string
	if err := row.Scan(&s.ID, &s.Label, &s.Handedness, &points, &s.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(points), &s.Points); err != nil {
		return nil, fmt.Errorf("decode points of sample %s: %w", s.ID, err)
	}
	return s, nil
}
