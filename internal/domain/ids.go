package domain

import "strings"

// UserID identifies a user on the backend.
type UserID string

// String returns the string form of the user id.
func (u UserID) String() string { return string(u) }

// DeviceID identifies one registered client device of a user.
type DeviceID string

// String returns the string form of the device id.
func (d DeviceID) String() string { return string(d) }

// ConversationID identifies a conversation on the backend.
type ConversationID string

// String returns the string form of the conversation id.
func (c ConversationID) String() string { return string(c) }

// SessionID is the stable lookup key for the cryptographic session with a
// single remote device. The same (user, device) pair yields the same id on
// both the encrypt and decrypt paths, which is what lets the session store
// treat it as a key.
type SessionID string

// String returns the string form of the session id.
func (s SessionID) String() string { return string(s) }

// sessionIDSep joins the user and device halves of a SessionID.
const sessionIDSep = "@"

// NewSessionID derives the session identifier for a (user, device) pair.
//
// The derivation is deterministic and injective as long as neither identifier
// contains "@". Backend-issued ids never do; callers minting their own ids
// must uphold that precondition.
func NewSessionID(user UserID, device DeviceID) SessionID {
	return SessionID(string(user) + sessionIDSep + string(device))
}

// Parts splits a session id back into its user and device halves.
func (s SessionID) Parts() (UserID, DeviceID) {
	user, device, _ := strings.Cut(string(s), sessionIDSep)
	return UserID(user), DeviceID(device)
}
