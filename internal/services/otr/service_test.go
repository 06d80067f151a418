package otr_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"courier/internal/cryptobox"
	"courier/internal/domain"
	"courier/internal/services/otr"
	"courier/internal/store"
)

func newBox(t *testing.T) *cryptobox.Box {
	t.Helper()
	b := cryptobox.New(store.NewFileStore(t.TempDir()), "pw", 0, zap.NewNop())
	require.NoError(t, b.Open(context.Background()))
	return b
}

// publishPrekey generates a prekey on owner and returns its transport form.
func publishPrekey(t *testing.T, owner *cryptobox.Box, id uint16) domain.PrekeyBundle {
	t.Helper()
	material, err := owner.NewPrekey(context.Background(), id)
	require.NoError(t, err)
	pk := otr.EncodePrekey(id, material)
	return domain.PrekeyBundle{ID: pk.ID, Key: pk.Key}
}

func TestEncryptForSingleDevice(t *testing.T) {
	ctx := context.Background()
	sender := newBox(t)
	receiver := newBox(t)
	svc := otr.New(sender, zap.NewNop())

	dir := domain.DeviceDirectory{
		"alice": {"dev1": publishPrekey(t, receiver, 1)},
	}
	results := svc.EncryptForDevices(ctx, []byte("hello"), dir)

	require.Len(t, results, 1)
	r := results[0]
	require.Equal(t, domain.NewSessionID("alice", "dev1"), r.SessionID)
	require.NoError(t, r.Err)
	require.NotEmpty(t, r.Ciphertext)
	require.NotEqual(t, domain.FailurePayload, r.Payload())
}

func TestFanOutIsolatesCorruptBundle(t *testing.T) {
	ctx := context.Background()
	sender := newBox(t)
	receiver := newBox(t)
	svc := otr.New(sender, zap.NewNop())

	// Two users, four and eight devices. One of bob's bundles is corrupt.
	dir := domain.DeviceDirectory{"alice": {}, "bob": {}}
	var id uint16
	for i := 0; i < 4; i++ {
		id++
		dir["alice"][domain.DeviceID(fmt.Sprintf("a%d", i))] = publishPrekey(t, receiver, id)
	}
	for i := 0; i < 8; i++ {
		id++
		dir["bob"][domain.DeviceID(fmt.Sprintf("b%d", i))] = publishPrekey(t, receiver, id)
	}
	dir["bob"]["b3"] = domain.PrekeyBundle{ID: 999, Key: "!!!not-base64!!!"}

	results := svc.EncryptForDevices(ctx, []byte("fan out"), dir)
	require.Len(t, results, 12, "one result per device, always")

	var failed, ok int
	for _, r := range results {
		if r.Err != nil {
			failed++
			require.Equal(t, domain.NewSessionID("bob", "b3"), r.SessionID)
			require.Equal(t, domain.FailurePayload, r.Payload())
			var de *domain.DecodeError
			require.ErrorAs(t, r.Err, &de)
		} else {
			ok++
			require.NotEmpty(t, r.Ciphertext)
		}
	}
	require.Equal(t, 1, failed)
	require.Equal(t, 11, ok)
}

func TestFanOutReusesEstablishedSessions(t *testing.T) {
	ctx := context.Background()
	sender := newBox(t)
	receiver := newBox(t)
	svc := otr.New(sender, zap.NewNop())

	dir := domain.DeviceDirectory{
		"alice": {"dev1": publishPrekey(t, receiver, 1)},
	}
	first := svc.EncryptForDevices(ctx, []byte("one"), dir)
	require.NoError(t, first[0].Err)

	// Second round: the bundle is now stale garbage, but the session
	// already exists, so the bundle is never decoded.
	dir["alice"]["dev1"] = domain.PrekeyBundle{ID: 1, Key: "???"}
	second := svc.EncryptForDevices(ctx, []byte("two"), dir)
	require.Len(t, second, 1)
	require.NoError(t, second[0].Err)
}

func TestEncryptForEmptyDirectory(t *testing.T) {
	svc := otr.New(newBox(t), zap.NewNop())
	results := svc.EncryptForDevices(context.Background(), []byte("x"), domain.DeviceDirectory{})
	require.Empty(t, results)
}

func TestDecryptRoundTrip(t *testing.T) {
	ctx := context.Background()
	aliceBox := newBox(t)
	bobBox := newBox(t)
	aliceSvc := otr.New(aliceBox, zap.NewNop())
	bobSvc := otr.New(bobBox, zap.NewNop())

	dir := domain.DeviceDirectory{
		"bob": {"dev1": publishPrekey(t, bobBox, 1)},
	}
	results := aliceSvc.EncryptForDevices(ctx, []byte("over the wire"), dir)
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)

	ev := domain.Event{
		Type: domain.EventOTRMessageAdd,
		From: "alice",
		Data: &domain.EventData{Sender: "dev1", Text: results[0].Ciphertext},
	}
	pt, err := bobSvc.Decrypt(ctx, ev)
	require.NoError(t, err)
	require.Equal(t, "over the wire", string(pt))
}

func TestDecryptMissingCiphertext(t *testing.T) {
	svc := otr.New(newBox(t), zap.NewNop())

	for _, ev := range []domain.Event{
		{Type: domain.EventOTRMessageAdd, From: "alice"},
		{Type: domain.EventOTRMessageAdd, From: "alice", Data: &domain.EventData{Sender: "dev1"}},
	} {
		_, err := svc.Decrypt(context.Background(), ev)
		require.ErrorIs(t, err, domain.ErrMissingCiphertext)
	}
}

func TestDecryptMalformedCiphertext(t *testing.T) {
	svc := otr.New(newBox(t), zap.NewNop())

	ev := domain.Event{
		Type: domain.EventOTRMessageAdd,
		From: "alice",
		Data: &domain.EventData{Sender: "dev1", Text: "%%% definitely not base64"},
	}
	_, err := svc.Decrypt(context.Background(), ev)
	var de *domain.DecodeError
	require.ErrorAs(t, err, &de)
}

func TestDecryptSessionFailurePropagates(t *testing.T) {
	svc := otr.New(newBox(t), zap.NewNop())

	// Valid base64, but not a message envelope any session could open.
	ev := domain.Event{
		Type: domain.EventOTRMessageAdd,
		From: "alice",
		Data: &domain.EventData{Sender: "dev1", Text: otr.EncodeKeyMaterial([]byte("garbage"))},
	}
	_, err := svc.Decrypt(context.Background(), ev)
	var se *domain.SessionError
	require.ErrorAs(t, err, &se)
	require.Equal(t, "decrypt", se.Op)
}

func TestKeyMaterialCodec(t *testing.T) {
	raw := []byte{0x00, 0x01, 0xfe, 0xff}
	enc := otr.EncodeKeyMaterial(raw)
	dec, err := otr.DecodeKeyMaterial("test material", enc)
	require.NoError(t, err)
	require.Equal(t, raw, dec)

	_, err = otr.DecodeKeyMaterial("test material", "not*base64")
	var de *domain.DecodeError
	require.True(t, errors.As(err, &de))
	require.Contains(t, de.Error(), "test material")
}
