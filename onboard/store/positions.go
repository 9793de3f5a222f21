package store

import (
	"time"

	"github.com/asdine/storm"
)

// ScrewPosition is the last known position of one screw.
type ScrewPosition struct {
	Axis      string `storm:"id"`
	Position  float64
	UpdatedAt time.Time
}

type PositionStore struct {
	db *storm.DB
}

// Open opens the bolt file at path and prepares the position bucket.
func Open(path string) (*PositionStore, error) {
	db, err := storm.Open(path)
	if err != nil {
		return nil, err
	}

	s, err := New(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func New(db *storm.DB) (*PositionStore, error) {
	if err := db.Init(&ScrewPosition{}); err != nil {
		return nil, err
	}
	return &PositionStore{db: db}, nil
}

func (s *PositionStore) LoadPosition(axis string) (float64, bool, error) {
	var p ScrewPosition
	if err := s.db.One("Axis", axis, &p); err != nil {
		if err == storm.ErrNotFound {
			return 0, false, nil
		}
		return 0, false, err
	}
	return p.Position, true, nil
}

func (s *PositionStore) SavePosition(axis string, position float64) error {
	return s.db.Save(&ScrewPosition{
		Axis:      axis,
		Position:  position,
		UpdatedAt: time.Now().UTC(),
	})
}

func (s *PositionStore) Close() error {
	return s.db.Close()
}
