// Package store persists cryptobox state to disk.
//
// The long-term identity is encrypted at rest under the account passphrase
// (Argon2id key derivation, ChaCha20-Poly1305). Prekey pairs and session
// ratchet states are plain JSON files written atomically via a temp file and
// rename. All methods are safe for concurrent use.
package store
