package events

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrUnknownType is returned for event types outside the enumeration.
var ErrUnknownType = errors.New("unknown event type")

// Log persists download lifecycle events to SQLite. Entries are
// append-only and immutable once written.
type Log struct {
	db *sql.DB
}

// NewLog creates an event log.
func NewLog(db *sql.DB) *Log {
	return &Log{db: db}
}

// Append writes one event with timestamp = now and returns its ID.
// The event type must be part of the enumeration.
func (l *Log) Append(downloadID int64, typ Type, message string, metadata map[string]any) (int64, error) {
	if !typ.Valid() {
		return 0, fmt.Errorf("%w: %q", ErrUnknownType, typ)
	}

	var payload sql.NullString
	if len(metadata) > 0 {
		buf, err := json.Marshal(metadata)
		if err != nil {
			return 0, fmt.Errorf("marshal event metadata: %w", err)
		}
		payload = sql.NullString{String: string(buf), Valid: true}
	}

	result, err := l.db.Exec(`
		INSERT INTO download_logs (download_id, event_type, message, metadata, timestamp)
		VALUES (?, ?, ?, ?, ?)`,
		downloadID, typ, message, payload, time.Now(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert event: %w", err)
	}
	return result.LastInsertId()
}

// ForDownload returns a page of events for one download, newest first.
// page is 1-based.
func (l *Log) ForDownload(downloadID int64, page, pageSize int) ([]Entry, error) {
	if page < 1 {
		page = 1
	}
	rows, err := l.db.Query(`
		SELECT id, download_id, event_type, message, metadata, timestamp
		FROM download_logs
		WHERE download_id = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ? OFFSET ?`,
		downloadID, pageSize, (page-1)*pageSize,
	)
	if err != nil {
		return nil, fmt.Errorf("query events for download %d: %w", downloadID, err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// CountForDownload returns the number of events for one download.
func (l *Log) CountForDownload(downloadID int64) (int, error) {
	var n int
	err := l.db.QueryRow(`SELECT COUNT(*) FROM download_logs WHERE download_id = ?`, downloadID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count events for download %d: %w", downloadID, err)
	}
	return n, nil
}

// Prune removes events older than the given number of days and returns
// how many were deleted.
func (l *Log) Prune(days int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -days)
	result, err := l.db.Exec(`DELETE FROM download_logs WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune events: %w", err)
	}
	return result.RowsAffected()
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var e Entry
		var payload sql.NullString
		if err := rows.Scan(&e.ID, &e.DownloadID, &e.Type, &e.Message, &payload, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if payload.Valid {
			if err := json.Unmarshal([]byte(payload.String), &e.Metadata); err != nil {
				return nil, fmt.Errorf("decode event metadata: %w", err)
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
