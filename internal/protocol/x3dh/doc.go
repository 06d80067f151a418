// Package x3dh implements the key agreement used to bootstrap a Double
// Ratchet session from a published prekey.
//
// # Overview
//
// The initiator holds the responder's identity key and one prekey public
// (both taken from a claimed prekey bundle), generates an ephemeral X25519
// key pair and derives a shared 32-byte root key. The responder later
// derives the same root key from the prekey's private half and the
// initiator's identity and ephemeral publics, carried in the first message's
// prekey intro.
//
// # Flows
//
// Initiator: DH(IKa, PKb), DH(EKa, IKb), DH(EKa, PKb), HKDF over the
// concatenated transcript.
//
// Responder: the symmetric DH set computed with PKb's private half and IKb's
// private half.
//
// Only public material ever crosses the wire; the prekey private half is
// deleted after first use unless it is the last-resort key.
package x3dh
