package otr

import (
	"encoding/base64"

	"courier/internal/domain"
)

// DecodeKeyMaterial decodes transport-encoded (base64) cryptographic
// material. Failures are reported as DecodeError so callers can tell
// malformed input apart from session failures.
func DecodeKeyMaterial(what, encoded string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, &domain.DecodeError{What: what, Err: err}
	}
	return b, nil
}

// EncodeKeyMaterial encodes raw material into its transport (base64) form.
func EncodeKeyMaterial(raw []byte) string {
	return base64.StdEncoding.EncodeToString(raw)
}

// EncodePrekey wraps serialized bundle material as an uploadable prekey.
func EncodePrekey(id uint16, material []byte) domain.Prekey {
	return domain.Prekey{ID: id, Key: EncodeKeyMaterial(material)}
}
