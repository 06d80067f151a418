package cryptobox_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"courier/internal/cryptobox"
	"courier/internal/domain"
	"courier/internal/store"
)

func newBox(t *testing.T) (*cryptobox.Box, *store.FileStore) {
	t.Helper()
	st := store.NewFileStore(t.TempDir())
	b := cryptobox.New(st, "passphrase", 0, zap.NewNop())
	if err := b.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	return b, st
}

func TestConversationRoundTrip(t *testing.T) {
	ctx := context.Background()
	alice, _ := newBox(t)
	bob, _ := newBox(t)

	bobID := domain.NewSessionID("bob", "dev1")
	aliceID := domain.NewSessionID("alice", "dev1")

	bundle, err := bob.NewPrekey(ctx, 1)
	if err != nil {
		t.Fatalf("NewPrekey: %v", err)
	}
	if err := alice.EstablishSession(ctx, bobID, bundle); err != nil {
		t.Fatalf("EstablishSession: %v", err)
	}
	if !alice.HasSession(bobID) {
		t.Fatal("alice should have a session for bob")
	}

	env, err := alice.Encrypt(ctx, bobID, []byte("hello bob"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	pt, err := bob.Decrypt(ctx, aliceID, env)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if string(pt) != "hello bob" {
		t.Fatalf("got %q, want %q", pt, "hello bob")
	}

	// Bob's side was bootstrapped from the intro; he can reply at once.
	reply, err := bob.Encrypt(ctx, aliceID, []byte("hello alice"))
	if err != nil {
		t.Fatalf("reply Encrypt: %v", err)
	}
	pt, err = alice.Decrypt(ctx, bobID, reply)
	if err != nil {
		t.Fatalf("reply Decrypt: %v", err)
	}
	if string(pt) != "hello alice" {
		t.Fatalf("got %q, want %q", pt, "hello alice")
	}
}

func TestEncryptWithoutSession(t *testing.T) {
	alice, _ := newBox(t)

	_, err := alice.Encrypt(context.Background(), domain.NewSessionID("bob", "dev1"), []byte("x"))
	var se *domain.SessionError
	if !errors.As(err, &se) {
		t.Fatalf("expected SessionError, got %v", err)
	}
	if !errors.Is(err, domain.ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
	if se.Op != "encrypt" {
		t.Fatalf("op = %q, want %q", se.Op, "encrypt")
	}
}

func TestDecryptWithoutSessionOrIntro(t *testing.T) {
	ctx := context.Background()
	alice, _ := newBox(t)
	bob, _ := newBox(t)

	bobID := domain.NewSessionID("bob", "dev1")
	aliceID := domain.NewSessionID("alice", "dev1")

	bundle, err := bob.NewPrekey(ctx, 1)
	if err != nil {
		t.Fatalf("NewPrekey: %v", err)
	}
	if err := alice.EstablishSession(ctx, bobID, bundle); err != nil {
		t.Fatalf("EstablishSession: %v", err)
	}

	// First message carries the intro; decrypt it, then forge a second
	// envelope without one against a fresh receiver.
	env, err := alice.Encrypt(ctx, bobID, []byte("one"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if _, err := bob.Decrypt(ctx, aliceID, env); err != nil {
		t.Fatalf("Decrypt: %v", err)
	}

	env2, err := alice.Encrypt(ctx, bobID, []byte("two"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	stranger, _ := newBox(t)
	_, err = stranger.Decrypt(ctx, aliceID, env2)
	if err == nil {
		t.Fatal("expected decrypt failure without a session")
	}
	var se *domain.SessionError
	if !errors.As(err, &se) || se.Op != "decrypt" {
		t.Fatalf("expected decrypt SessionError, got %v", err)
	}
}

func TestIntroDroppedAfterFirstReply(t *testing.T) {
	ctx := context.Background()
	alice, _ := newBox(t)
	bob, _ := newBox(t)

	bobID := domain.NewSessionID("bob", "dev1")
	aliceID := domain.NewSessionID("alice", "dev1")

	bundle, _ := bob.NewPrekey(ctx, 1)
	if err := alice.EstablishSession(ctx, bobID, bundle); err != nil {
		t.Fatalf("EstablishSession: %v", err)
	}
	env, _ := alice.Encrypt(ctx, bobID, []byte("one"))
	if _, err := bob.Decrypt(ctx, aliceID, env); err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	reply, _ := bob.Encrypt(ctx, aliceID, []byte("ack"))
	if _, err := alice.Decrypt(ctx, bobID, reply); err != nil {
		t.Fatalf("reply Decrypt: %v", err)
	}

	// Alice has seen a reply, so her next envelope must work even for a
	// receiver that lost the claimed prekey, proving no intro is needed.
	env2, err := alice.Encrypt(ctx, bobID, []byte("two"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if pt, err := bob.Decrypt(ctx, aliceID, env2); err != nil || string(pt) != "two" {
		t.Fatalf("Decrypt: pt=%q err=%v", pt, err)
	}
}

func TestBootstrapConsumesPrekey(t *testing.T) {
	ctx := context.Background()
	alice, _ := newBox(t)
	bob, bobStore := newBox(t)

	if _, err := bob.NewPrekey(ctx, 1); err != nil {
		t.Fatalf("NewPrekey: %v", err)
	}
	bundle, err := bob.NewPrekey(ctx, 2)
	if err != nil {
		t.Fatalf("NewPrekey: %v", err)
	}
	if err := alice.EstablishSession(ctx, domain.NewSessionID("bob", "dev1"), bundle); err != nil {
		t.Fatalf("EstablishSession: %v", err)
	}
	env, _ := alice.Encrypt(ctx, domain.NewSessionID("bob", "dev1"), []byte("hi"))
	if _, err := bob.Decrypt(ctx, domain.NewSessionID("alice", "dev1"), env); err != nil {
		t.Fatalf("Decrypt: %v", err)
	}

	if _, ok, _ := bobStore.LoadPrekeyPair(2); ok {
		t.Fatal("claimed prekey should be consumed")
	}
	if _, ok, _ := bobStore.LoadPrekeyPair(1); !ok {
		t.Fatal("unclaimed prekey should survive")
	}
}

func TestLastResortPrekeySurvives(t *testing.T) {
	ctx := context.Background()
	bob, bobStore := newBox(t)

	bundle, err := bob.NewPrekey(ctx, domain.MaxPrekeyID)
	if err != nil {
		t.Fatalf("NewPrekey: %v", err)
	}

	// Two independent initiators claim the same last-resort bundle.
	for i, name := range []domain.UserID{"alice", "carol"} {
		peer, _ := newBox(t)
		bobID := domain.NewSessionID("bob", "dev1")
		if err := peer.EstablishSession(ctx, bobID, bundle); err != nil {
			t.Fatalf("EstablishSession %d: %v", i, err)
		}
		env, err := peer.Encrypt(ctx, bobID, []byte("knock"))
		if err != nil {
			t.Fatalf("Encrypt %d: %v", i, err)
		}
		pt, err := bob.Decrypt(ctx, domain.NewSessionID(name, "dev1"), env)
		if err != nil {
			t.Fatalf("Decrypt %d: %v", i, err)
		}
		if string(pt) != "knock" {
			t.Fatalf("got %q, want %q", pt, "knock")
		}
	}

	if _, ok, _ := bobStore.LoadPrekeyPair(domain.MaxPrekeyID); !ok {
		t.Fatal("last-resort prekey must never be consumed")
	}
}

func TestLowPrekeySignal(t *testing.T) {
	ctx := context.Background()
	alice, _ := newBox(t)

	bobStore := store.NewFileStore(t.TempDir())
	bob := cryptobox.New(bobStore, "passphrase", 5, zap.NewNop())
	if err := bob.Open(ctx); err != nil {
		t.Fatalf("Open: %v", err)
	}

	fired := make(chan uint16, 1)
	bob.OnLowPrekeys(func(existingMaxID uint16) { fired <- existingMaxID })

	if _, err := bob.NewPrekey(ctx, 0); err != nil {
		t.Fatalf("NewPrekey: %v", err)
	}
	bundle, err := bob.NewPrekey(ctx, 1)
	if err != nil {
		t.Fatalf("NewPrekey: %v", err)
	}

	bobID := domain.NewSessionID("bob", "dev1")
	if err := alice.EstablishSession(ctx, bobID, bundle); err != nil {
		t.Fatalf("EstablishSession: %v", err)
	}
	env, _ := alice.Encrypt(ctx, bobID, []byte("hi"))
	if _, err := bob.Decrypt(ctx, domain.NewSessionID("alice", "dev1"), env); err != nil {
		t.Fatalf("Decrypt: %v", err)
	}

	select {
	case maxID := <-fired:
		if maxID != 1 {
			t.Fatalf("existingMaxID = %d, want 1", maxID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("low-prekey handler never fired")
	}
}

func TestTamperedBootstrapLeavesPrekeyIntact(t *testing.T) {
	ctx := context.Background()
	alice, _ := newBox(t)
	bob, bobStore := newBox(t)

	bobID := domain.NewSessionID("bob", "dev1")
	aliceID := domain.NewSessionID("alice", "dev1")

	bundle, err := bob.NewPrekey(ctx, 3)
	if err != nil {
		t.Fatalf("NewPrekey: %v", err)
	}
	if err := alice.EstablishSession(ctx, bobID, bundle); err != nil {
		t.Fatalf("EstablishSession: %v", err)
	}

	env, err := alice.Encrypt(ctx, bobID, []byte("first contact"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	// Corrupt the AEAD ciphertext but keep the intro and header parseable.
	var msg struct {
		Intro  *domain.PrekeyIntro  `json:"intro"`
		Header domain.RatchetHeader `json:"header"`
		Cipher []byte               `json:"cipher"`
	}
	if err := json.Unmarshal(env, &msg); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	msg.Cipher[0] ^= 0xff
	tampered, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}

	if _, err := bob.Decrypt(ctx, aliceID, tampered); err == nil {
		t.Fatal("tampered envelope must fail authentication")
	}

	// The failed envelope must not consume the prekey or leave a session.
	if _, ok, _ := bobStore.LoadPrekeyPair(3); !ok {
		t.Fatal("prekey consumed by an unauthenticated envelope")
	}
	if bob.HasSession(aliceID) {
		t.Fatal("unauthenticated envelope left a session behind")
	}

	// The legitimate original envelope still bootstraps and decrypts.
	pt, err := bob.Decrypt(ctx, aliceID, env)
	if err != nil {
		t.Fatalf("Decrypt original: %v", err)
	}
	if string(pt) != "first contact" {
		t.Fatalf("got %q, want %q", pt, "first contact")
	}
	if _, ok, _ := bobStore.LoadPrekeyPair(3); ok {
		t.Fatal("prekey should be consumed after a successful bootstrap")
	}
}

func TestEstablishRejectsBadSignature(t *testing.T) {
	ctx := context.Background()
	alice, _ := newBox(t)
	bob, _ := newBox(t)

	bundle, err := bob.NewPrekey(ctx, 1)
	if err != nil {
		t.Fatalf("NewPrekey: %v", err)
	}
	// Flip a byte somewhere in the signature field.
	tampered := make([]byte, len(bundle))
	copy(tampered, bundle)
	tampered[len(tampered)-10] ^= 0x01

	err = alice.EstablishSession(ctx, domain.NewSessionID("bob", "dev1"), tampered)
	if err == nil {
		t.Fatal("expected tampered bundle to be rejected")
	}
}

func TestIdentityPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	b1 := cryptobox.New(store.NewFileStore(dir), "pw", 0, zap.NewNop())
	if err := b1.Open(ctx); err != nil {
		t.Fatalf("Open: %v", err)
	}
	fp := b1.Fingerprint()

	b2 := cryptobox.New(store.NewFileStore(dir), "pw", 0, zap.NewNop())
	if err := b2.Open(ctx); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if b2.Fingerprint() != fp {
		t.Fatalf("fingerprint changed across reopen: %q vs %q", b2.Fingerprint(), fp)
	}
}
