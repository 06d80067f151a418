package x3dh

import (
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"

	"courier/internal/crypto"
	"courier/internal/domain"
	"courier/internal/util/memzero"
)

const rootKeyLabel = "courier/x3dh"

// InitiatorRoot derives the session root key on the initiating side.
//
// ourIDPriv and ourEphPriv are the initiator's identity and ephemeral
// private keys; peerIDPub and peerPrekeyPub come from the claimed bundle.
func InitiatorRoot(
	ourIDPriv domain.X25519Private,
	ourEphPriv domain.X25519Private,
	peerIDPub domain.X25519Public,
	peerPrekeyPub domain.X25519Public,
) ([]byte, error) {
	dh1, err := crypto.DH(ourIDPriv, peerPrekeyPub) // DH(IKa, PKb)
	if err != nil {
		return nil, err
	}
	dh2, err := crypto.DH(ourEphPriv, peerIDPub) // DH(EKa, IKb)
	if err != nil {
		return nil, err
	}
	dh3, err := crypto.DH(ourEphPriv, peerPrekeyPub) // DH(EKa, PKb)
	if err != nil {
		return nil, err
	}
	return deriveRoot(dh1, dh2, dh3), nil
}

// ResponderRoot mirrors InitiatorRoot on the receiving side.
//
// prekeyPriv is the private half of the prekey the initiator claimed;
// peerIDPub and peerEphPub arrive in the first message's prekey intro.
func ResponderRoot(
	ourIDPriv domain.X25519Private,
	prekeyPriv domain.X25519Private,
	peerIDPub domain.X25519Public,
	peerEphPub domain.X25519Public,
) ([]byte, error) {
	dh1, err := crypto.DH(prekeyPriv, peerIDPub) // DH(PKb, IKa)
	if err != nil {
		return nil, err
	}
	dh2, err := crypto.DH(ourIDPriv, peerEphPub) // DH(IKb, EKa)
	if err != nil {
		return nil, err
	}
	dh3, err := crypto.DH(prekeyPriv, peerEphPub) // DH(PKb, EKa)
	if err != nil {
		return nil, err
	}
	return deriveRoot(dh1, dh2, dh3), nil
}

func deriveRoot(dhs ...[32]byte) []byte {
	transcript := make([]byte, 0, 32*len(dhs))
	for i := range dhs {
		transcript = append(transcript, dhs[i][:]...)
	}
	r := hkdf.New(sha256.New, transcript, nil, []byte(rootKeyLabel))
	root := make([]byte, 32)
	_, _ = io.ReadFull(r, root)
	memzero.Zero(transcript)
	return root
}
