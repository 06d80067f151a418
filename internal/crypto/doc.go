// Package crypto exposes the minimal primitives used by courier.
//
// Contents
//
//   - X25519 key generation, clamping and Diffie–Hellman (GenerateX25519, DH)
//   - Ed25519 key generation, signing and verification (GenerateEd25519,
//     SignEd25519, VerifyEd25519)
//   - Short public-key fingerprints for display and logging (Fingerprint)
//   - Signaling key generation for client registration (GenerateSignalingKeys)
//   - Passphrase-based encryption for data at rest (EncryptSecret,
//     DecryptSecret)
//
// All functions return fixed-size array types defined in internal/domain to
// avoid accidental reallocations. Callers should treat returned secrets as
// sensitive and rely on memzero.Zero when practical to reduce lifetime in
// memory.
package crypto
