package cryptobox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"courier/internal/crypto"
	"courier/internal/domain"
	"courier/internal/protocol/ratchet"
	"courier/internal/protocol/x3dh"
)

// DefaultLowWater is the pool size below which the low-prekey handler fires.
const DefaultLowWater = 10

// session pairs a ratchet state with the mutex that serializes access to it.
type session struct {
	mu    sync.Mutex
	state domain.SessionState
}

func (s *session) established() bool { return len(s.state.Ratchet.RootKey) > 0 }

// Box implements domain.Cryptobox on top of a BoxStore.
type Box struct {
	store      domain.BoxStore
	log        *zap.Logger
	passphrase string
	lowWater   int

	mu       sync.Mutex
	sessions map[domain.SessionID]*session
	identity domain.Identity
	opened   bool
	lowFn    func(existingMaxID uint16)
}

// New returns a Box backed by store. The identity is encrypted at rest under
// passphrase. lowWater <= 0 selects DefaultLowWater.
func New(store domain.BoxStore, passphrase string, lowWater int, log *zap.Logger) *Box {
	if lowWater <= 0 {
		lowWater = DefaultLowWater
	}
	return &Box{
		store:      store,
		log:        log,
		passphrase: passphrase,
		lowWater:   lowWater,
		sessions:   make(map[domain.SessionID]*session),
	}
}

// Open loads the long-term identity, creating and persisting a fresh one on
// first use.
func (b *Box) Open(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.opened {
		return nil
	}
	id, ok, err := b.store.LoadIdentity(b.passphrase)
	if err != nil {
		return fmt.Errorf("load identity: %w", err)
	}
	if !ok {
		xPriv, xPub, err := crypto.GenerateX25519()
		if err != nil {
			return err
		}
		edPriv, edPub, err := crypto.GenerateEd25519()
		if err != nil {
			return err
		}
		id = domain.Identity{XPub: xPub, XPriv: xPriv, EdPub: edPub, EdPriv: edPriv}
		if err := b.store.SaveIdentity(b.passphrase, id); err != nil {
			return fmt.Errorf("save identity: %w", err)
		}
		b.log.Info("created new identity", zap.String("fingerprint", crypto.Fingerprint(id.XPub.Slice())))
	}
	b.identity = id
	b.opened = true
	return nil
}

// Fingerprint returns a short printable digest of the identity key.
func (b *Box) Fingerprint() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return crypto.Fingerprint(b.identity.XPub.Slice())
}

// OnLowPrekeys registers the handler invoked when the one-time prekey pool
// drops below the low-water mark. The handler runs on its own goroutine.
func (b *Box) OnLowPrekeys(fn func(existingMaxID uint16)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lowFn = fn
}

// NewPrekey generates a prekey pair under id, persists the private half and
// returns the serialized public bundle material.
func (b *Box) NewPrekey(ctx context.Context, id uint16) ([]byte, error) {
	b.mu.Lock()
	identity := b.identity
	b.mu.Unlock()

	priv, pub, err := crypto.GenerateX25519()
	if err != nil {
		return nil, err
	}
	if err := b.store.SavePrekeyPair(domain.PrekeyPair{ID: id, Priv: priv, Pub: pub}); err != nil {
		return nil, err
	}
	bundle := bundleMaterial{
		ID:          id,
		Key:         pub,
		IdentityKey: identity.XPub,
		SigningKey:  identity.EdPub,
		Signature:   crypto.SignEd25519(identity.EdPriv, pub.Slice()),
	}
	return json.Marshal(bundle)
}

// EstablishSession creates a session for id from serialized prekey bundle
// material. An already established session is reused.
func (b *Box) EstablishSession(ctx context.Context, id domain.SessionID, bundle []byte) error {
	s, err := b.lookup(id)
	if err != nil {
		return &domain.SessionError{Op: "establish", ID: id, Err: err}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.established() {
		return nil
	}

	var bm bundleMaterial
	if err := json.Unmarshal(bundle, &bm); err != nil {
		return &domain.SessionError{Op: "establish", ID: id, Err: &domain.DecodeError{What: "prekey bundle", Err: err}}
	}
	if !crypto.VerifyEd25519(bm.SigningKey, bm.Key.Slice(), bm.Signature) {
		return &domain.SessionError{Op: "establish", ID: id, Err: errors.New("prekey signature verification failed")}
	}

	ephPriv, ephPub, err := crypto.GenerateX25519()
	if err != nil {
		return &domain.SessionError{Op: "establish", ID: id, Err: err}
	}
	b.mu.Lock()
	idPriv, idPub := b.identity.XPriv, b.identity.XPub
	b.mu.Unlock()

	root, err := x3dh.InitiatorRoot(idPriv, ephPriv, bm.IdentityKey, bm.Key)
	if err != nil {
		return &domain.SessionError{Op: "establish", ID: id, Err: err}
	}
	rst, err := ratchet.InitAsInitiator(root, bm.Key)
	if err != nil {
		return &domain.SessionError{Op: "establish", ID: id, Err: err}
	}

	s.state = domain.SessionState{
		Ratchet: rst,
		Intro: &domain.PrekeyIntro{
			PrekeyID:    bm.ID,
			IdentityKey: idPub,
			Ephemeral:   ephPub,
		},
	}
	if err := b.store.SaveSession(id, s.state); err != nil {
		return &domain.SessionError{Op: "establish", ID: id, Err: err}
	}
	b.log.Debug("session established", zap.String("session", id.String()), zap.Uint16("prekey", bm.ID))
	return nil
}

// Encrypt encrypts plaintext under the session for id. The session must have
// been established first.
func (b *Box) Encrypt(ctx context.Context, id domain.SessionID, plaintext []byte) ([]byte, error) {
	s, err := b.lookup(id)
	if err != nil {
		return nil, &domain.SessionError{Op: "encrypt", ID: id, Err: err}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.established() {
		return nil, &domain.SessionError{Op: "encrypt", ID: id, Err: domain.ErrNoSession}
	}
	header, ct, err := ratchet.Encrypt(&s.state.Ratchet, nil, plaintext)
	if err != nil {
		return nil, &domain.SessionError{Op: "encrypt", ID: id, Err: err}
	}
	msg := boxMessage{Intro: s.state.Intro, Header: header, Cipher: ct}
	if err := b.store.SaveSession(id, s.state); err != nil {
		return nil, &domain.SessionError{Op: "encrypt", ID: id, Err: err}
	}
	return json.Marshal(msg)
}

// Decrypt decrypts an inbound envelope for id. When no session exists yet,
// one is bootstrapped from the envelope's prekey intro; the referenced
// one-time prekey is consumed only after the envelope authenticates.
func (b *Box) Decrypt(ctx context.Context, id domain.SessionID, message []byte) ([]byte, error) {
	var msg boxMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		return nil, &domain.SessionError{Op: "decrypt", ID: id, Err: &domain.DecodeError{What: "message envelope", Err: err}}
	}

	s, err := b.lookup(id)
	if err != nil {
		return nil, &domain.SessionError{Op: "decrypt", ID: id, Err: err}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	bootstrapped := false
	if !s.established() {
		if msg.Intro == nil {
			return nil, &domain.SessionError{Op: "decrypt", ID: id, Err: domain.ErrNoSession}
		}
		if err := b.bootstrap(s, msg); err != nil {
			return nil, &domain.SessionError{Op: "decrypt", ID: id, Err: err}
		}
		bootstrapped = true
		b.log.Debug("session bootstrapped from prekey intro",
			zap.String("session", id.String()), zap.Uint16("prekey", msg.Intro.PrekeyID))
	}

	pt, err := ratchet.Decrypt(&s.state.Ratchet, nil, msg.Header, msg.Cipher)
	if err != nil {
		// A bootstrapped session that never authenticated a message is
		// discarded whole, so the prekey stays available for the peer's
		// legitimate first envelope.
		if bootstrapped {
			s.state = domain.SessionState{}
		}
		return nil, &domain.SessionError{Op: "decrypt", ID: id, Err: err}
	}

	// The envelope authenticated; only now is the claimed one-time prekey
	// consumed (the last-resort pair survives).
	if bootstrapped && msg.Intro.PrekeyID != domain.MaxPrekeyID {
		if err := b.store.DeletePrekeyPair(msg.Intro.PrekeyID); err != nil {
			return nil, &domain.SessionError{Op: "decrypt", ID: id, Err: err}
		}
		b.checkPool()
	}

	// A successful decrypt proves the peer holds the session; the intro no
	// longer needs to ride on our outbound messages.
	s.state.Intro = nil
	if err := b.store.SaveSession(id, s.state); err != nil {
		return nil, &domain.SessionError{Op: "decrypt", ID: id, Err: err}
	}
	return pt, nil
}

// HasSession reports whether an established session exists for id.
func (b *Box) HasSession(id domain.SessionID) bool {
	s, err := b.lookup(id)
	if err != nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.established()
}

// lookup returns the cached session for id, faulting it in from the store.
// The returned session may be empty and pending establishment.
func (b *Box) lookup(id domain.SessionID) (*session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if s, ok := b.sessions[id]; ok {
		return s, nil
	}
	st, ok, err := b.store.LoadSession(id)
	if err != nil {
		return nil, err
	}
	s := &session{}
	if ok {
		s.state = st
	}
	b.sessions[id] = s
	return s, nil
}

// bootstrap initializes s from a prekey intro without consuming the prekey
// pair; the caller deletes it only after the envelope authenticates. The
// caller holds s.mu.
func (b *Box) bootstrap(s *session, msg boxMessage) error {
	pair, ok, err := b.store.LoadPrekeyPair(msg.Intro.PrekeyID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("prekey %d not found", msg.Intro.PrekeyID)
	}

	b.mu.Lock()
	idPriv := b.identity.XPriv
	b.mu.Unlock()

	root, err := x3dh.ResponderRoot(idPriv, pair.Priv, msg.Intro.IdentityKey, msg.Intro.Ephemeral)
	if err != nil {
		return err
	}
	var senderPub domain.X25519Public
	copy(senderPub[:], msg.Header.DHPub)

	rst, err := ratchet.InitAsResponder(root, pair.Priv, senderPub)
	if err != nil {
		return err
	}
	s.state = domain.SessionState{Ratchet: rst}
	return nil
}

// checkPool fires the low-prekey handler when the remaining one-time pool
// drops below the low-water mark.
func (b *Box) checkPool() {
	n, err := b.store.PrekeyCount()
	if err != nil || n >= b.lowWater {
		return
	}
	maxID, _, err := b.store.MaxIssuedPrekeyID()
	if err != nil {
		return
	}
	b.mu.Lock()
	fn := b.lowFn
	b.mu.Unlock()
	if fn == nil {
		return
	}
	b.log.Warn("one-time prekey pool is low", zap.Int("remaining", n), zap.Uint16("max_issued", maxID))
	go fn(maxID)
}

// Compile-time interface assertions.
var (
	_ domain.Cryptobox         = (*Box)(nil)
	_ domain.LowPrekeyNotifier = (*Box)(nil)
)
