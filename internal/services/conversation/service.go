package conversation

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"courier/internal/domain"
	"courier/internal/genericmsg"
)

// Session exposes the authenticated identity a send runs under.
type Session interface {
	Token() domain.AccessToken
	ClientID() domain.DeviceID
}

// Service sends messages into conversations.
type Service struct {
	api     domain.BackendClient
	crypto  domain.CryptoService
	session Session
	log     *zap.Logger
}

// New returns a Service posting through api with ciphertexts from crypto.
func New(api domain.BackendClient, crypto domain.CryptoService, session Session, log *zap.Logger) *Service {
	return &Service{api: api, crypto: crypto, session: session, log: log}
}

// SendText encrypts text for every device in conv and posts it.
//
// The flow mirrors the backend's client contract: probe for the device
// listing, claim one prekey bundle per device, encrypt per device and post
// the payload map. Per-device encryption failures degrade to the failure
// payload and never abort the send.
func (s *Service) SendText(ctx context.Context, conv domain.ConversationID, text string) error {
	token, client := s.session.Token(), s.session.ClientID()

	missing, err := s.api.MissingDevices(ctx, token, conv, client)
	if err != nil {
		return fmt.Errorf("probe devices: %w", err)
	}
	if len(missing) == 0 {
		s.log.Debug("conversation has no other devices, nothing to send",
			zap.String("conversation", conv.String()))
		return nil
	}

	directory, err := s.api.ClaimPrekeys(ctx, token, missing)
	if err != nil {
		return fmt.Errorf("claim prekeys: %w", err)
	}

	plaintext := genericmsg.Marshal(genericmsg.NewText(text))
	results := s.crypto.EncryptForDevices(ctx, plaintext, directory)

	recipients := make(domain.RecipientPayloads)
	failed := 0
	for _, r := range results {
		user, device := r.SessionID.Parts()
		if recipients[user] == nil {
			recipients[user] = make(map[domain.DeviceID]string)
		}
		recipients[user][device] = r.Payload()
		if r.Err != nil {
			failed++
		}
	}
	if failed > 0 {
		s.log.Warn("some devices get a failure payload",
			zap.String("conversation", conv.String()),
			zap.Int("failed", failed), zap.Int("total", len(results)))
	}

	if err := s.api.PostMessage(ctx, token, conv, client, recipients); err != nil {
		return fmt.Errorf("post message: %w", err)
	}
	s.log.Debug("message posted",
		zap.String("conversation", conv.String()), zap.Int("devices", len(results)))
	return nil
}
