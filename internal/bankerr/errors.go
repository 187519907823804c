// Package bankerr defines the error taxonomy surfaced across the bank
// engine's boundary, following the teacher's fmt.Errorf("...: %w", err)
// wrapping idiom so callers can still errors.Is against a sentinel.
package bankerr

import "errors"

var (
	// ErrWidthMismatch is returned when a vector's length does not
	// equal the owning bank's vector_width.
	ErrWidthMismatch = errors.New("vector width mismatch")

	// ErrUnknownBank is returned when a BankId does not resolve
	// within a cluster.
	ErrUnknownBank = errors.New("unknown bank")

	// ErrUnknownEntry is returned when an EntryId does not resolve
	// within a bank.
	ErrUnknownEntry = errors.New("unknown entry")

	// ErrFull is returned when an insert would exceed max_entries and
	// no entry is evictable.
	ErrFull = errors.New("bank is full")

	// ErrCorruption is returned when a .bank file's header, magic,
	// version or payload hash fails verification at load. The whole
	// file is rejected.
	ErrCorruption = errors.New("bank file corrupted")

	// ErrEntryCorruption is returned (internally, and logged) when a
	// single entry's CRC32 fails at load. The entry is skipped; the
	// remainder of the bank still loads.
	ErrEntryCorruption = errors.New("entry checksum mismatch")

	// ErrJournalReplay is returned (internally, and logged) when a
	// journal record refers to a bank that is no longer present. The
	// record is skipped.
	ErrJournalReplay = errors.New("journal record refers to unknown bank")

	// ErrIO wraps underlying filesystem failures.
	ErrIO = errors.New("i/o error")
)

// OpError annotates a sentinel error with the operation and the
// identifier that triggered it, matching the teacher's
// "failed to X: %w" wrapping style throughout internal/core/*.
type OpError struct {
	Op  string
	ID  string
	Err error
}

func (e *OpError) Error() string {
	if e.ID == "" {
		return e.Op + ": " + e.Err.Error()
	}
	return e.Op + " " + e.ID + ": " + e.Err.Error()
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// Wrap builds an *OpError tying a sentinel to the operation and id
// that produced it.
func Wrap(op, id string, err error) error {
	if err == nil {
		return nil
	}
	return &OpError{Op: op, ID: id, Err: err}
}
