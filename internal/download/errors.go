package download

import "errors"

// Sentinel errors for the download package.
var (
	// ErrNotFound is returned when a download record does not exist.
	ErrNotFound = errors.New("download not found")

	// ErrDuplicate is returned when an active download already exists for
	// the same normalized URL.
	ErrDuplicate = errors.New("active download already exists for url")

	// ErrQueueFull is returned when the pending queue is at capacity.
	ErrQueueFull = errors.New("download queue is full")

	// ErrInsufficientStorage is returned when the temp dir has less free
	// space than the configured minimum.
	ErrInsufficientStorage = errors.New("insufficient storage")

	// ErrInvalidState is returned when an operation does not apply to the
	// download's current status.
	ErrInvalidState = errors.New("invalid download state")

	// ErrBadPagination is returned for out-of-range page parameters.
	ErrBadPagination = errors.New("invalid pagination parameters")
)
