package domain

// FailurePayload is the well-known placeholder delivered in place of a
// ciphertext when encryption for one device failed. The recipient device
// cannot decrypt it, which is the intended degraded behaviour: the batch
// still completes and every other device gets a real ciphertext.
const FailurePayload = "💣"

// EncryptionResult is the per-device outcome of one fan-out encryption.
// Exactly one result exists per device entry in the input directory,
// regardless of individual failures.
type EncryptionResult struct {
	SessionID  SessionID
	Ciphertext string // transport (base64) form; empty when Err is set
	Err        error  // per-device failure; never aborts the batch
}

// Payload returns the transport form handed to the delivery API: the
// ciphertext on success, the legacy failure marker otherwise.
func (r EncryptionResult) Payload() string {
	if r.Err != nil {
		return FailurePayload
	}
	return r.Ciphertext
}

// RecipientPayloads is the per-device payload map posted to the message
// delivery API.
type RecipientPayloads map[UserID]map[DeviceID]string

// MissingDevices lists the devices a message must still be encrypted for,
// as reported by the backend when a post omits recipients.
type MissingDevices map[UserID][]DeviceID
