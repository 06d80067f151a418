package cryptobox

import (
	"courier/internal/domain"
)

// bundleMaterial is the serialized public half of a prekey, uploaded to the
// backend and claimed by peers to establish sessions. The prekey public is
// signed by the owner's Ed25519 identity key.
type bundleMaterial struct {
	ID          uint16               `json:"id"`
	Key         domain.X25519Public  `json:"key"`
	IdentityKey domain.X25519Public  `json:"identity_key"`
	SigningKey  domain.Ed25519Public `json:"signing_key"`
	Signature   []byte               `json:"signature"`
}

// boxMessage is the envelope produced by Encrypt and consumed by Decrypt.
// Intro is present on every outbound message until the peer's first reply,
// so a receiver with no session yet can bootstrap one.
type boxMessage struct {
	Intro  *domain.PrekeyIntro  `json:"intro,omitempty"`
	Header domain.RatchetHeader `json:"header"`
	Cipher []byte               `json:"cipher"`
}
