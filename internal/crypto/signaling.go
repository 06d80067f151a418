package crypto

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"

	"courier/internal/domain"
	"courier/internal/util/memzero"
)

// GenerateSignalingKeys returns fresh push-signaling key material in
// transport form: one encryption key and one MAC key, each derived from an
// independent 32-byte random seed through HMAC-SHA256.
func GenerateSignalingKeys() (domain.SignalingKeys, error) {
	enc, err := signalingKey()
	if err != nil {
		return domain.SignalingKeys{}, err
	}
	mac, err := signalingKey()
	if err != nil {
		return domain.SignalingKeys{}, err
	}
	return domain.SignalingKeys{EncKey: enc, MacKey: mac}, nil
}

func signalingKey() (string, error) {
	seed := make([]byte, sha256.Size)
	if _, err := rand.Read(seed); err != nil {
		return "", err
	}
	salt := sha256.Sum256([]byte("signaling"))
	h := hmac.New(sha256.New, seed)
	h.Write(salt[:])
	key := h.Sum(nil)
	memzero.Zero(seed)
	return base64.StdEncoding.EncodeToString(key), nil
}
