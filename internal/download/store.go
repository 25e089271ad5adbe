package download

import (
	"database/sql"
	"fmt"
	"time"
)

// Store persists download records.
type Store struct {
	db *sql.DB
}

// NewStore creates a download store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Fresh returns the store itself; it satisfies the repository contract
// for callers that must bypass any read cache.
func (s *Store) Fresh() *Store {
	return s
}

const downloadColumns = `id, url, normalized_url, media_id, status, progress,
	error_message, file_path, process_id, created_at, started_at, finished_at`

// Create inserts a new record and sets ID and CreatedAt.
func (s *Store) Create(d *Download) error {
	now := time.Now()
	result, err := s.db.Exec(`
		INSERT INTO downloads (url, normalized_url, media_id, status, progress, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		d.URL, d.NormalizedURL, d.MediaID, d.Status, d.Progress, now,
	)
	if err != nil {
		return fmt.Errorf("insert download: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	d.ID = id
	d.CreatedAt = now
	return nil
}

// Get retrieves a download by ID.
func (s *Store) Get(id int64) (*Download, error) {
	row := s.db.QueryRow(`SELECT `+downloadColumns+` FROM downloads WHERE id = ?`, id)
	d, err := scanDownload(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("get download %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get download %d: %w", id, err)
	}
	return d, nil
}

// NextPending returns the oldest pending download, FIFO by created_at.
func (s *Store) NextPending() (*Download, error) {
	row := s.db.QueryRow(`
		SELECT ` + downloadColumns + ` FROM downloads
		WHERE status = 'pending'
		ORDER BY created_at ASC, id ASC
		LIMIT 1`)
	d, err := scanDownload(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("next pending: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("next pending: %w", err)
	}
	return d, nil
}

// ActiveByNormalizedURL returns a pending or in-progress download for the
// given normalized URL, used for duplicate rejection.
func (s *Store) ActiveByNormalizedURL(u string) (*Download, error) {
	row := s.db.QueryRow(`
		SELECT `+downloadColumns+` FROM downloads
		WHERE normalized_url = ? AND status IN ('pending', 'in_progress')
		LIMIT 1`, u)
	d, err := scanDownload(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("active by url: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("active by url: %w", err)
	}
	return d, nil
}

// List returns a page of downloads, newest first, optionally filtered by
// status. page is 1-based.
func (s *Store) List(status *Status, page, pageSize int) ([]*Download, error) {
	if page < 1 {
		page = 1
	}
	query := `SELECT ` + downloadColumns + ` FROM downloads`
	var args []any
	if status != nil {
		query += ` WHERE status = ?`
		args = append(args, *status)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list downloads: %w", err)
	}
	defer rows.Close()

	return scanDownloads(rows)
}

// OldCompleted returns completed or failed downloads whose finished_at is
// older than the given number of days.
func (s *Store) OldCompleted(days int) ([]*Download, error) {
	cutoff := time.Now().AddDate(0, 0, -days)
	rows, err := s.db.Query(`
		SELECT `+downloadColumns+` FROM downloads
		WHERE status IN ('completed', 'failed') AND finished_at < ?`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list old completed: %w", err)
	}
	defer rows.Close()

	return scanDownloads(rows)
}

// StalledInProgress returns in-progress downloads whose started_at is
// older than the timeout.
func (s *Store) StalledInProgress(timeout time.Duration) ([]*Download, error) {
	cutoff := time.Now().Add(-timeout)
	rows, err := s.db.Query(`
		SELECT `+downloadColumns+` FROM downloads
		WHERE status = 'in_progress' AND started_at < ?`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list stalled: %w", err)
	}
	defer rows.Close()

	return scanDownloads(rows)
}

// Count returns the total number of downloads.
func (s *Store) Count() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM downloads`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count downloads: %w", err)
	}
	return n, nil
}

// CountByStatus returns the number of downloads in a given status.
func (s *Store) CountByStatus(status Status) (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM downloads WHERE status = ?`, status).Scan(&n); err != nil {
		return 0, fmt.Errorf("count downloads by status: %w", err)
	}
	return n, nil
}

// UpdateStatus sets status, progress and error message in one statement.
// finished_at is set when the new status is terminal. Transitioning back
// to pending (retry) clears error, file path, process handle and both
// lifecycle timestamps.
func (s *Store) UpdateStatus(id int64, status Status, progress int, errorMessage string) error {
	var result sql.Result
	var err error

	errCol := sql.NullString{String: errorMessage, Valid: errorMessage != ""}
	switch {
	case status == StatusPending:
		result, err = s.db.Exec(`
			UPDATE downloads
			SET status = ?, progress = ?, error_message = NULL, file_path = NULL,
			    process_id = NULL, started_at = NULL, finished_at = NULL
			WHERE id = ?`,
			status, progress, id)
	case status.Terminal():
		result, err = s.db.Exec(`
			UPDATE downloads
			SET status = ?, progress = ?, error_message = ?, finished_at = ?
			WHERE id = ?`,
			status, progress, errCol, time.Now(), id)
	default:
		result, err = s.db.Exec(`
			UPDATE downloads
			SET status = ?, progress = ?, error_message = ?
			WHERE id = ?`,
			status, progress, errCol, id)
	}
	if err != nil {
		return fmt.Errorf("update download %d status: %w", id, err)
	}
	return requireRow(result, id)
}

// UpdateProgress advances progress for a running download. The write is
// conditional on the row still being in_progress: a progress callback can
// land after cancel has already written a terminal state, and must not
// resurrect the row. Zero affected rows is a no-op, not an error.
func (s *Store) UpdateProgress(id int64, progress int) error {
	_, err := s.db.Exec(`
		UPDATE downloads SET progress = ? WHERE id = ? AND status = ?`,
		progress, id, StatusInProgress)
	if err != nil {
		return fmt.Errorf("update download %d progress: %w", id, err)
	}
	return nil
}

// Complete atomically marks a download completed with its output path.
func (s *Store) Complete(id int64, filePath string) error {
	result, err := s.db.Exec(`
		UPDATE downloads
		SET status = ?, progress = 100, error_message = NULL, file_path = ?, finished_at = ?
		WHERE id = ?`,
		StatusCompleted, filePath, time.Now(), id)
	if err != nil {
		return fmt.Errorf("complete download %d: %w", id, err)
	}
	return requireRow(result, id)
}

// UpdateProcessID records the extractor's OS handle and stamps
// started_at. This is the sole writer of started_at.
func (s *Store) UpdateProcessID(id int64, processID int) error {
	result, err := s.db.Exec(`
		UPDATE downloads SET process_id = ?, started_at = ? WHERE id = ?`,
		processID, time.Now(), id)
	if err != nil {
		return fmt.Errorf("update download %d process id: %w", id, err)
	}
	return requireRow(result, id)
}

// UpdateMediaID links a download to its media record.
func (s *Store) UpdateMediaID(id, mediaID int64) error {
	result, err := s.db.Exec(`UPDATE downloads SET media_id = ? WHERE id = ?`, mediaID, id)
	if err != nil {
		return fmt.Errorf("update download %d media id: %w", id, err)
	}
	return requireRow(result, id)
}

// UpdateFilePath rewrites the output path after a move.
func (s *Store) UpdateFilePath(id int64, filePath string) error {
	result, err := s.db.Exec(`UPDATE downloads SET file_path = ? WHERE id = ?`, filePath, id)
	if err != nil {
		return fmt.Errorf("update download %d file path: %w", id, err)
	}
	return requireRow(result, id)
}

// Delete removes a download record.
func (s *Store) Delete(id int64) error {
	result, err := s.db.Exec(`DELETE FROM downloads WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete download %d: %w", id, err)
	}
	return requireRow(result, id)
}

// DeleteAll removes every download record.
func (s *Store) DeleteAll() error {
	if _, err := s.db.Exec(`DELETE FROM downloads`); err != nil {
		return fmt.Errorf("delete all downloads: %w", err)
	}
	return nil
}

func requireRow(result sql.Result, id int64) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("download %d: %w", id, ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDownload(row rowScanner) (*Download, error) {
	d := &Download{}
	var mediaID sql.NullInt64
	var errMsg, filePath sql.NullString
	var processID sql.NullInt64
	var startedAt, finishedAt sql.NullTime

	err := row.Scan(&d.ID, &d.URL, &d.NormalizedURL, &mediaID, &d.Status, &d.Progress,
		&errMsg, &filePath, &processID, &d.CreatedAt, &startedAt, &finishedAt)
	if err != nil {
		return nil, err
	}

	if mediaID.Valid {
		d.MediaID = &mediaID.Int64
	}
	if errMsg.Valid {
		d.ErrorMessage = &errMsg.String
	}
	if filePath.Valid {
		d.FilePath = &filePath.String
	}
	if processID.Valid {
		pid := int(processID.Int64)
		d.ProcessID = &pid
	}
	if startedAt.Valid {
		d.StartedAt = &startedAt.Time
	}
	if finishedAt.Valid {
		d.FinishedAt = &finishedAt.Time
	}
	return d, nil
}

func scanDownloads(rows *sql.Rows) ([]*Download, error) {
	var out []*Download
	for rows.Next() {
		d, err := scanDownload(rows)
		if err != nil {
			return nil, fmt.Errorf("scan download: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
