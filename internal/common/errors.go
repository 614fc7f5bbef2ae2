package common

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Sentinel errors shared across the queue, storage, and LLM layers. The
// queue uses IsRetryable to decide between reschedule and dead-letter.
var (
	// ErrStorageUnavailable wraps driver/IO failures. Retryable.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrStorageConflict marks unique-constraint violations. Not retryable;
	// surfaced to the caller.
	ErrStorageConflict = errors.New("storage conflict")

	// ErrNotFound marks a missing row.
	ErrNotFound = errors.New("not found")

	// ErrLLMUnavailable wraps timeouts and 5xx responses from the LLM
	// endpoint. Retryable.
	ErrLLMUnavailable = errors.New("llm unavailable")

	// ErrLLMFormat marks an unparseable LLM response. Terminal for the
	// current attempt; counts against the retry budget.
	ErrLLMFormat = errors.New("llm format error")

	// ErrInvalidInput marks unusable job input (corrupt file, extraction
	// missing required fields). Terminal.
	ErrInvalidInput = errors.New("invalid input")

	// ErrQueueSaturated signals the PENDING backlog hit queue.max_pending.
	// Callers should retry the upload later.
	ErrQueueSaturated = errors.New("queue saturated")

	// ErrJobCancelled signals cooperative cancellation observed between
	// processing steps.
	ErrJobCancelled = errors.New("job cancelled")
)

// IsRetryable classifies an error for the queue retry decision. Transient
// network, timeout, and availability errors reschedule; everything else is
// terminal for the attempt.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrLLMFormat) || errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrStorageConflict) || errors.Is(err, ErrJobCancelled) {
		return false
	}
	if errors.Is(err, ErrStorageUnavailable) || errors.Is(err, ErrLLMUnavailable) ||
		errors.Is(err, ErrQueueSaturated) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return false
}

// WrapStorageErr classifies a database error into the storage taxonomy.
// Unique-constraint violations become ErrStorageConflict; everything else
// is ErrStorageUnavailable.
func WrapStorageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsUniqueViolation(err) {
		return fmt.Errorf("%s: %w: %v", op, ErrStorageConflict, err)
	}
	return fmt.Errorf("%s: %w: %v", op, ErrStorageUnavailable, err)
}

// IsUniqueViolation reports whether err is a sqlite unique-constraint
// failure. modernc.org/sqlite surfaces these in the error string.
func IsUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
