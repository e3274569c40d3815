package domain

import "errors"

var (
	// ErrSessionNotFound is returned when the referenced session does not exist.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrUserNotFound is returned when the referenced user has no stats record.
	ErrUserNotFound = errors.New("user stats not found")
	// ErrQuestionNotFound indicates the question bank is missing a requested id.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrInvalidState is returned for operations illegal in the session's
	// current status, including the loser of a concurrent complete race.
	// Callers should treat it as "already done", not as retryable.
	ErrInvalidState = errors.New("operation not allowed in current session state")
	// ErrInvalidArgument is returned for malformed input such as an empty
	// question list or an out-of-range question index.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrConflict is surfaced when compare-and-swap retries are exhausted.
	// The whole operation may be safely retried by the caller.
	ErrConflict = errors.New("concurrent update conflict")
)
