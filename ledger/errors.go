package ledger

import "errors"

var (
	// ErrPersistence marks a failed snapshot read or write. In-memory state is
	// still correct when this is returned from a mutation.
	ErrPersistence = errors.New("persistence unavailable")
	// ErrExhausted is returned once a group has consumed every content item.
	ErrExhausted = errors.New("content exhausted")
	// ErrContentUnavailable is returned when the content list cannot be read.
	ErrContentUnavailable = errors.New("content list unavailable")
)
