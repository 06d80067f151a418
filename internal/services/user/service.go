package user

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"courier/internal/crypto"
	"courier/internal/domain"
)

// RegistrationBatchSize is the number of one-time prekeys registered with a
// new client.
const RegistrationBatchSize = 50

// Client registration constants, fixed for this SDK.
const (
	clientClass = "desktop"
	clientLabel = "courier"
	clientModel = "courier"
	clientType  = "temporary"
)

// Service owns the authenticated session: token, client id and profile.
type Service struct {
	api     domain.BackendClient
	box     domain.Cryptobox
	prekeys domain.PrekeyService
	log     *zap.Logger

	mu       sync.Mutex
	creds    domain.Credentials
	token    domain.AccessToken
	clientID domain.DeviceID
	self     domain.Self
}

// New returns a Service using api for backend calls and box for the local
// cryptographic identity.
func New(api domain.BackendClient, box domain.Cryptobox, prekeys domain.PrekeyService, log *zap.Logger) *Service {
	return &Service{api: api, box: box, prekeys: prekeys, log: log}
}

// Login authenticates, opens the cryptographic identity and registers a new
// client device with its initial prekeys.
//
// A login refused for being too frequent is recovered once: the stale login
// cookies are removed and the login retried.
func (s *Service) Login(ctx context.Context, creds domain.Credentials) error {
	token, err := s.api.Login(ctx, creds)
	if errors.Is(err, domain.ErrLoginRateLimited) {
		s.log.Warn("login rate limited, removing cookies and retrying")
		if err := s.api.RemoveCookies(ctx, creds, nil); err != nil {
			return fmt.Errorf("remove cookies: %w", err)
		}
		token, err = s.api.Login(ctx, creds)
	}
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}

	if err := s.box.Open(ctx); err != nil {
		return fmt.Errorf("open cryptobox: %w", err)
	}
	s.log.Info("cryptobox open", zap.String("fingerprint", s.box.Fingerprint()))

	sigKeys, err := crypto.GenerateSignalingKeys()
	if err != nil {
		return err
	}
	lastResort, err := s.prekeys.NewLastResort(ctx)
	if err != nil {
		return fmt.Errorf("last-resort prekey: %w", err)
	}
	batch, err := s.prekeys.NewBatch(ctx, RegistrationBatchSize)
	if err != nil {
		return fmt.Errorf("prekey batch: %w", err)
	}

	client, err := s.api.RegisterClient(ctx, token, domain.ClientRegistrationInfo{
		Class:         clientClass,
		Cookie:        "webapp",
		Label:         clientLabel,
		LastResortKey: lastResort,
		Model:         clientModel,
		Password:      creds.Password,
		Prekeys:       batch,
		SigKeys:       sigKeys,
		Type:          clientType,
	})
	if err != nil {
		return fmt.Errorf("register client: %w", err)
	}

	self, err := s.api.Self(ctx, token)
	if err != nil {
		return fmt.Errorf("fetch profile: %w", err)
	}

	s.mu.Lock()
	s.creds = creds
	s.token = token
	s.clientID = client.ID
	s.self = self
	s.mu.Unlock()

	s.log.Info("logged in",
		zap.String("user", self.ID.String()),
		zap.String("client", client.ID.String()))
	return nil
}

// Logout removes this client's login cookie and drops the local session
// state. Calling it without a prior login is a no-op.
func (s *Service) Logout(ctx context.Context) error {
	s.mu.Lock()
	creds, token := s.creds, s.token
	s.mu.Unlock()
	if token == "" {
		return nil
	}

	if err := s.api.RemoveCookies(ctx, creds, []string{clientLabel}); err != nil {
		return fmt.Errorf("remove cookies: %w", err)
	}

	s.mu.Lock()
	s.creds = domain.Credentials{}
	s.token = ""
	s.clientID = ""
	s.self = domain.Self{}
	s.mu.Unlock()

	s.log.Info("logged out")
	return nil
}

// Token returns the current access token.
func (s *Service) Token() domain.AccessToken {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// ClientID returns the registered client device id.
func (s *Service) ClientID() domain.DeviceID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clientID
}

// Self returns the logged-in user's profile.
func (s *Service) Self() domain.Self {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.self
}

// UploadPrekeys publishes keys for the registered client. It matches the
// prekey service's publisher signature so replenishment batches flow back
// to the backend.
func (s *Service) UploadPrekeys(ctx context.Context, keys []domain.Prekey) error {
	return s.api.UploadPrekeys(ctx, s.Token(), s.ClientID(), keys)
}

// AutoConnect accepts an incoming pending connection request. Requests in
// any other state, or initiated by ourselves, are ignored.
func (s *Service) AutoConnect(ctx context.Context, ev domain.Event) error {
	if ev.Connection == nil || ev.Connection.Status != domain.ConnectionPending {
		return nil
	}
	if ev.Connection.From == s.Self().ID {
		return nil
	}
	s.log.Info("accepting connection request", zap.String("from", ev.Connection.From.String()))
	return s.api.UpdateConnectionStatus(ctx, s.Token(), ev.Connection.From, domain.ConnectionAccepted)
}
