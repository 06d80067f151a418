package domain

// MaxPrekeyID is the reserved last-resort prekey identifier. A prekey with
// this id is never consumed, so a device stays reachable even after its
// one-time pool is exhausted.
const MaxPrekeyID uint16 = 65535

// Prekey is a locally generated prekey in transport form, ready for upload.
// Once uploaded it is immutable; exhausted prekeys are superseded, not
// mutated.
type Prekey struct {
	ID  uint16 `json:"id"`
	Key string `json:"key"`
}

// PrekeyBundle is a single-use public key bundle published by a remote
// device. Key carries the transport-encoded (base64) bundle material and may
// be malformed; decoding failures must not abort a whole fan-out batch.
type PrekeyBundle struct {
	ID  uint16 `json:"id"`
	Key string `json:"key"`
}

// DeviceDirectory maps every recipient device to the prekey bundle claimed
// for it. It is built per send, consumed once, and not retained.
type DeviceDirectory map[UserID]map[DeviceID]PrekeyBundle

// Size returns the total number of device entries across all users.
func (d DeviceDirectory) Size() int {
	n := 0
	for _, devices := range d {
		n += len(devices)
	}
	return n
}

// SignalingKeys carry the push-notification encryption and MAC key material
// registered alongside a new client.
type SignalingKeys struct {
	EncKey string `json:"enckey"`
	MacKey string `json:"mackey"`
}

// ClientRegistrationInfo bundles everything the backend needs to register a
// new client device. It is constructed once at login, submitted once, and
// then held as an immutable record for the session's lifetime.
type ClientRegistrationInfo struct {
	Class         string        `json:"class"`
	Cookie        string        `json:"cookie"`
	Label         string        `json:"label"`
	LastResortKey Prekey        `json:"lastkey"`
	Model         string        `json:"model"`
	Password      string        `json:"password"`
	Prekeys       []Prekey      `json:"prekeys"`
	SigKeys       SignalingKeys `json:"sigkeys"`
	Type          string        `json:"type"`
}
