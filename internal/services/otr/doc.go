// Package otr is the encryption fan-out engine and its matching decrypt
// path.
//
// Encryption fans out across every recipient device independently: a device
// whose prekey bundle is corrupt or whose session fails gets a well-known
// failure payload, and the batch still returns one result per device. The
// decrypt path is deliberately asymmetric and fails loudly, since there is
// no safe placeholder for a plaintext.
package otr
