package extractor

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the extractor package.
var (
	// ErrExtractorFailed is returned when the subprocess exits non-zero.
	ErrExtractorFailed = errors.New("extractor failed")

	// ErrMetadataParse is returned when probe output is not a valid
	// metadata document.
	ErrMetadataParse = errors.New("metadata parse failed")

	// ErrProcessNotFound is returned by Cancel for unknown process handles.
	ErrProcessNotFound = errors.New("extractor process not found")
)

// ExitError carries the subprocess exit code and a stderr tail.
type ExitError struct {
	Code int
	Tail []string
}

func (e *ExitError) Error() string {
	if len(e.Tail) == 0 {
		return fmt.Sprintf("extractor failed: exit code %d", e.Code)
	}
	return fmt.Sprintf("extractor failed: exit code %d: %s", e.Code, strings.Join(e.Tail, " | "))
}

func (e *ExitError) Unwrap() error {
	return ErrExtractorFailed
}
