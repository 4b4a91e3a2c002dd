package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const (
	StatusRunning = "running"
	StatusLogged  = "logged"
)

// ErrEntryNotFound is returned when an update targets no running entry.
var ErrEntryNotFound = errors.New("entry not found")

type Entry struct {
	ID        int64
	RemoteID  string
	MatterID  string
	Notes     string
	StartTime time.Time
	EndTime   time.Time // zero while running
	Minutes   int
	Status    string
	CreatedAt time.Time
}

const entryColumns = `id, remote_id, matter_id, notes, start_time, end_time, minutes, status, created_at`

func (db *DB) InsertEntry(e *Entry) (int64, error) {
	status := e.Status
	if status == "" {
		status = StatusLogged
	}
	result, err := db.Exec(
		`INSERT INTO entries (remote_id, matter_id, notes, start_time, end_time, minutes, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		nullString(e.RemoteID), e.MatterID, e.Notes,
		formatTime(e.StartTime),
		nullTime(e.EndTime),
		e.Minutes, status,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting entry: %w", err)
	}
	return result.LastInsertId()
}

// OpenEntry records a running entry with no end time.
func (db *DB) OpenEntry(start time.Time) (int64, error) {
	return db.InsertEntry(&Entry{StartTime: start, Status: StatusRunning})
}

// CloseEntry finishes a running entry with the committed values.
func (db *DB) CloseEntry(id int64, e Entry) error {
	result, err := db.Exec(
		`UPDATE entries
		 SET remote_id = ?, matter_id = ?, notes = ?, start_time = ?, end_time = ?, minutes = ?, status = ?
		 WHERE id = ? AND status = ?`,
		nullString(e.RemoteID), e.MatterID, e.Notes,
		formatTime(e.StartTime), formatTime(e.EndTime),
		e.Minutes, StatusLogged,
		id, StatusRunning,
	)
	if err != nil {
		return fmt.Errorf("closing entry %d: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("closing entry %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("closing entry %d: %w", id, ErrEntryNotFound)
	}
	return nil
}

// DeleteEntry removes a running entry. Logged entries are never deleted.
func (db *DB) DeleteEntry(id int64) error {
	_, err := db.Exec("DELETE FROM entries WHERE id = ? AND status = ?", id, StatusRunning)
	if err != nil {
		return fmt.Errorf("deleting entry %d: %w", id, err)
	}
	return nil
}

// RecentEntries returns up to limit logged entries, newest start first.
func (db *DB) RecentEntries(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	return db.queryEntries(
		`SELECT `+entryColumns+`
		 FROM entries
		 WHERE status = ?
		 ORDER BY start_time DESC, id DESC
		 LIMIT ?`,
		StatusLogged, limit,
	)
}

func (db *DB) GetTodayEntries() ([]Entry, error) {
	now := time.Now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	endOfDay := startOfDay.Add(24 * time.Hour)

	return db.queryEntries(
		`SELECT `+entryColumns+`
		 FROM entries
		 WHERE start_time >= ? AND start_time < ?
		 ORDER BY start_time ASC`,
		formatTime(startOfDay),
		formatTime(endOfDay),
	)
}

func (db *DB) queryEntries(query string, args ...interface{}) ([]Entry, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var remoteID, endStr sql.NullString
		var startStr, createdStr string

		if err := rows.Scan(
			&e.ID, &remoteID, &e.MatterID, &e.Notes,
			&startStr, &endStr, &e.Minutes, &e.Status, &createdStr,
		); err != nil {
			return nil, fmt.Errorf("scanning entry: %w", err)
		}

		e.RemoteID = remoteID.String
		e.StartTime = parseTime(startStr)
		if endStr.Valid {
			e.EndTime = parseTime(endStr.String)
		}
		e.CreatedAt = parseTime(createdStr)

		entries = append(entries, e)
	}

	return entries, rows.Err()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func nullTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(t), Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func parseTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t
	}
	return time.Time{}
}
