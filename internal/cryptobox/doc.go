// Package cryptobox owns all cryptographic session state for one device.
//
// A Box holds the long-term identity, the local prekey pairs and one Double
// Ratchet session per remote device. It is the single writer of that state:
// callers never touch ratchet internals, they hand the Box plaintext or
// envelopes and a session id. Calls for distinct session ids run
// concurrently; calls for the same id are serialized.
package cryptobox
