package store

import (
	"encoding/json"
	"fmt"

	"github.com/christopherklint97/matterclock/internal/timer"
)

const sessionKey = "active_session"

// SaveSession persists a running timer session so another process can resume it.
func (db *DB) SaveSession(s timer.State) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshaling session: %w", err)
	}
	if err := db.SetState(sessionKey, string(data)); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	return nil
}

// LoadSession returns the persisted session, or nil if there is none.
func (db *DB) LoadSession() (*timer.State, error) {
	raw, err := db.GetState(sessionKey)
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}
	if raw == "" {
		return nil, nil
	}

	var s timer.State
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, fmt.Errorf("parsing session: %w", err)
	}
	return &s, nil
}

func (db *DB) ClearSession() error {
	if err := db.DeleteState(sessionKey); err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	return nil
}
