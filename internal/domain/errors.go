package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingCiphertext reports an inbound envelope without a ciphertext.
	// It is surfaced before any decoding is attempted.
	ErrMissingCiphertext = errors.New("ciphertext is missing")

	// ErrNoSession reports an operation against a session id the store has
	// never seen.
	ErrNoSession = errors.New("no session for id")

	// ErrLoginRateLimited reports that the backend refused a login because
	// logins are too frequent; cookies must be removed before retrying.
	ErrLoginRateLimited = errors.New("logins too frequent")
)

// DecodeError reports malformed transport-encoded material. Inside the
// fan-out path it is recovered by substituting a failure payload; every
// other caller surfaces it as a hard failure.
type DecodeError struct {
	What string // which field failed to decode, e.g. "prekey bundle"
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.What, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// SessionError reports a session-store failure for one session id. On the
// encrypt path it is converted into a failure payload for that device; on
// the decrypt path it propagates, because no safe placeholder plaintext
// exists.
type SessionError struct {
	Op  string // "establish", "encrypt" or "decrypt"
	ID  SessionID
	Err error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("session %s %q: %v", e.Op, e.ID, e.Err)
}

func (e *SessionError) Unwrap() error { return e.Err }
