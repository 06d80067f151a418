package domain

import "context"

// Cryptobox is the cryptographic session store: the single owner of all
// ratchet state. Establish, Encrypt and Decrypt may suspend on I/O and are
// safe for concurrent use across distinct session ids; calls for the same
// id are serialized internally.
type Cryptobox interface {
	// Open loads or creates the long-term identity and must be called
	// before any other method.
	Open(ctx context.Context) error

	// Fingerprint returns a short printable digest of the identity key.
	Fingerprint() string

	// EstablishSession creates a session for id from decoded prekey bundle
	// material, or reuses an existing one.
	EstablishSession(ctx context.Context, id SessionID, bundle []byte) error

	// Encrypt encrypts plaintext under the session for id. The session must
	// already exist.
	Encrypt(ctx context.Context, id SessionID, plaintext []byte) ([]byte, error)

	// Decrypt decrypts an inbound message for id, bootstrapping the session
	// from the attached prekey intro when none exists yet.
	Decrypt(ctx context.Context, id SessionID, message []byte) ([]byte, error)

	// HasSession reports whether a session exists for id.
	HasSession(id SessionID) bool

	// NewPrekey generates and stores a prekey pair under id and returns the
	// serialized public bundle material.
	NewPrekey(ctx context.Context, id uint16) ([]byte, error)
}

// LowPrekeyNotifier announces that the one-time prekey pool has run low.
// The handler receives the highest prekey id issued so far, so that a
// replenishment batch can continue the sequence. Registration happens once
// at initialization and lasts for the lifetime of the store.
type LowPrekeyNotifier interface {
	OnLowPrekeys(fn func(existingMaxID uint16))
}

// BoxStore persists cryptobox state: identity, prekey pairs and sessions.
type BoxStore interface {
	SaveIdentity(passphrase string, id Identity) error
	LoadIdentity(passphrase string) (Identity, bool, error)

	SavePrekeyPair(pair PrekeyPair) error
	LoadPrekeyPair(id uint16) (PrekeyPair, bool, error)
	DeletePrekeyPair(id uint16) error
	PrekeyCount() (int, error)
	MaxIssuedPrekeyID() (uint16, bool, error)

	SaveSession(id SessionID, st SessionState) error
	LoadSession(id SessionID) (SessionState, bool, error)
}

// CryptoService is the encryption fan-out engine and its matching decrypt
// path.
type CryptoService interface {
	// EncryptForDevices encrypts plaintext independently for every device in
	// the directory. It always returns exactly one result per device entry
	// and never fails as a whole; per-device failures are carried in the
	// result.
	EncryptForDevices(ctx context.Context, plaintext []byte, directory DeviceDirectory) []EncryptionResult

	// Decrypt resolves the sender's session and decrypts an inbound message
	// event. Unlike the encrypt path, failures propagate.
	Decrypt(ctx context.Context, ev Event) ([]byte, error)
}

// PrekeyService manages the prekey lifecycle: registration batches, the
// last-resort key and replenishment.
type PrekeyService interface {
	NewLastResort(ctx context.Context) (Prekey, error)
	NewBatch(ctx context.Context, count int) ([]Prekey, error)
	Replenish(ctx context.Context, existingMaxID uint16) ([]Prekey, error)
}

// BackendClient is the HTTP API surface of the backend.
type BackendClient interface {
	Login(ctx context.Context, creds Credentials) (AccessToken, error)
	RemoveCookies(ctx context.Context, creds Credentials, labels []string) error
	RegisterClient(ctx context.Context, token AccessToken, info ClientRegistrationInfo) (RegisteredClient, error)
	Self(ctx context.Context, token AccessToken) (Self, error)
	UploadPrekeys(ctx context.Context, token AccessToken, client DeviceID, keys []Prekey) error
	UpdateConnectionStatus(ctx context.Context, token AccessToken, user UserID, status string) error
	MissingDevices(ctx context.Context, token AccessToken, conv ConversationID, sender DeviceID) (MissingDevices, error)
	ClaimPrekeys(ctx context.Context, token AccessToken, missing MissingDevices) (DeviceDirectory, error)
	PostMessage(ctx context.Context, token AccessToken, conv ConversationID, sender DeviceID, recipients RecipientPayloads) error
}

// EventStream delivers realtime events from the backend, one at a time in
// arrival order.
type EventStream interface {
	Connect(ctx context.Context, token AccessToken, client DeviceID) error
	Events() <-chan Event
	Close() error
}
