package store_test

import (
	"bytes"
	"testing"

	"courier/internal/crypto"
	"courier/internal/domain"
	"courier/internal/store"
)

func newStore(t *testing.T) *store.FileStore {
	t.Helper()
	return store.NewFileStore(t.TempDir())
}

func makeIdentity(t *testing.T) domain.Identity {
	t.Helper()
	xPriv, xPub, err := crypto.GenerateX25519()
	if err != nil {
		t.Fatalf("GenerateX25519: %v", err)
	}
	edPriv, edPub, err := crypto.GenerateEd25519()
	if err != nil {
		t.Fatalf("GenerateEd25519: %v", err)
	}
	return domain.Identity{XPub: xPub, XPriv: xPriv, EdPub: edPub, EdPriv: edPriv}
}

func TestIdentityRoundTrip(t *testing.T) {
	s := newStore(t)

	if _, ok, err := s.LoadIdentity("pw"); err != nil || ok {
		t.Fatalf("fresh store: ok=%v err=%v", ok, err)
	}

	id := makeIdentity(t)
	if err := s.SaveIdentity("pw", id); err != nil {
		t.Fatalf("SaveIdentity: %v", err)
	}
	got, ok, err := s.LoadIdentity("pw")
	if err != nil || !ok {
		t.Fatalf("LoadIdentity: ok=%v err=%v", ok, err)
	}
	if got.XPub != id.XPub || got.EdPub != id.EdPub {
		t.Fatal("loaded identity differs from saved")
	}
}

func TestIdentityWrongPassphrase(t *testing.T) {
	s := newStore(t)
	if err := s.SaveIdentity("right", makeIdentity(t)); err != nil {
		t.Fatalf("SaveIdentity: %v", err)
	}
	if _, _, err := s.LoadIdentity("wrong"); err == nil {
		t.Fatal("expected decrypt failure with wrong passphrase")
	}
}

func TestPrekeyPairLifecycle(t *testing.T) {
	s := newStore(t)

	if n, err := s.PrekeyCount(); err != nil || n != 0 {
		t.Fatalf("empty store count: n=%d err=%v", n, err)
	}
	if _, has, err := s.MaxIssuedPrekeyID(); err != nil || has {
		t.Fatalf("empty store watermark: has=%v err=%v", has, err)
	}

	for _, id := range []uint16{0, 1, 2} {
		priv, pub, err := crypto.GenerateX25519()
		if err != nil {
			t.Fatalf("GenerateX25519: %v", err)
		}
		if err := s.SavePrekeyPair(domain.PrekeyPair{ID: id, Priv: priv, Pub: pub}); err != nil {
			t.Fatalf("SavePrekeyPair %d: %v", id, err)
		}
	}

	if n, err := s.PrekeyCount(); err != nil || n != 3 {
		t.Fatalf("count after save: n=%d err=%v", n, err)
	}
	max, has, err := s.MaxIssuedPrekeyID()
	if err != nil || !has || max != 2 {
		t.Fatalf("watermark: max=%d has=%v err=%v", max, has, err)
	}

	p, ok, err := s.LoadPrekeyPair(1)
	if err != nil || !ok || p.ID != 1 {
		t.Fatalf("LoadPrekeyPair: ok=%v err=%v id=%d", ok, err, p.ID)
	}
	if err := s.DeletePrekeyPair(1); err != nil {
		t.Fatalf("DeletePrekeyPair: %v", err)
	}
	if _, ok, _ := s.LoadPrekeyPair(1); ok {
		t.Fatal("pair 1 should be gone")
	}
	if n, _ := s.PrekeyCount(); n != 2 {
		t.Fatalf("count after delete: %d", n)
	}
}

func TestLastResortExcludedFromCountAndWatermark(t *testing.T) {
	s := newStore(t)

	priv, pub, err := crypto.GenerateX25519()
	if err != nil {
		t.Fatalf("GenerateX25519: %v", err)
	}
	if err := s.SavePrekeyPair(domain.PrekeyPair{ID: domain.MaxPrekeyID, Priv: priv, Pub: pub}); err != nil {
		t.Fatalf("SavePrekeyPair: %v", err)
	}

	if n, _ := s.PrekeyCount(); n != 0 {
		t.Fatalf("last-resort pair counted: %d", n)
	}
	if _, has, _ := s.MaxIssuedPrekeyID(); has {
		t.Fatal("last-resort pair moved the watermark")
	}
}

func TestSessionRoundTrip(t *testing.T) {
	s := newStore(t)
	id := domain.NewSessionID("alice", "dev1")

	if _, ok, err := s.LoadSession(id); err != nil || ok {
		t.Fatalf("fresh store: ok=%v err=%v", ok, err)
	}

	st := domain.SessionState{
		Ratchet: domain.RatchetState{
			RootKey: bytes.Repeat([]byte{7}, 32),
			SendCK:  bytes.Repeat([]byte{8}, 32),
			Ns:      3,
			Skipped: map[string][]byte{},
		},
		Intro: &domain.PrekeyIntro{PrekeyID: 9},
	}
	if err := s.SaveSession(id, st); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
	got, ok, err := s.LoadSession(id)
	if err != nil || !ok {
		t.Fatalf("LoadSession: ok=%v err=%v", ok, err)
	}
	if !bytes.Equal(got.Ratchet.RootKey, st.Ratchet.RootKey) || got.Ratchet.Ns != 3 {
		t.Fatal("loaded ratchet state differs from saved")
	}
	if got.Intro == nil || got.Intro.PrekeyID != 9 {
		t.Fatal("intro not preserved")
	}
}
