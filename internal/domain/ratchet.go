package domain

// RatchetHeader is sent alongside every ciphertext.
type RatchetHeader struct {
	DHPub []byte `json:"dh_pub"`
	PN    uint32 `json:"pn"`
	N     uint32 `json:"n"`
}

// RatchetState contains all fields the Double Ratchet tracks for one
// session. It advances monotonically with every encrypt and decrypt; the
// session store is its single owner.
type RatchetState struct {
	RootKey   []byte            `json:"root_key"`
	DHPriv    X25519Private     `json:"dh_priv"`
	DHPub     X25519Public      `json:"dh_pub"`
	PeerDHPub X25519Public      `json:"peer_dh_pub"`
	SendCK    []byte            `json:"send_ck,omitempty"`
	RecvCK    []byte            `json:"recv_ck,omitempty"`
	Ns        uint32            `json:"ns"`
	Nr        uint32            `json:"nr"`
	PN        uint32            `json:"pn"`
	Skipped   map[string][]byte `json:"skipped_keys"`
}

// PrekeyIntro carries the handshake parameters attached to outbound
// messages until the peer's first reply, so the peer can bootstrap its side
// of the session.
type PrekeyIntro struct {
	PrekeyID    uint16       `json:"prekey_id"`
	IdentityKey X25519Public `json:"identity_key"`
	Ephemeral   X25519Public `json:"ephemeral"`
}

// SessionState is the persisted state of one cryptographic session.
type SessionState struct {
	Ratchet RatchetState `json:"ratchet"`
	Intro   *PrekeyIntro `json:"intro,omitempty"` // nil once the peer has replied
}

// PrekeyPair is a locally stored prekey key pair, consumed when a peer uses
// it to establish a session (except the last-resort pair).
type PrekeyPair struct {
	ID   uint16        `json:"id"`
	Priv X25519Private `json:"priv"`
	Pub  X25519Public  `json:"pub"`
}
