package otr

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"courier/internal/domain"
)

// Service implements domain.CryptoService on top of a Cryptobox.
type Service struct {
	box domain.Cryptobox
	log *zap.Logger
}

// New returns a Service using box for all session operations.
func New(box domain.Cryptobox, log *zap.Logger) *Service {
	return &Service{box: box, log: log}
}

// EncryptForDevices encrypts plaintext once per device in the directory,
// establishing sessions from the claimed prekey bundles as needed. Devices
// are processed concurrently and independently: a failure for one device is
// recorded in its result and never aborts the batch. The returned slice has
// exactly one entry per device.
func (s *Service) EncryptForDevices(ctx context.Context, plaintext []byte, directory domain.DeviceDirectory) []domain.EncryptionResult {
	out := make(chan domain.EncryptionResult, directory.Size())

	var wg sync.WaitGroup
	for user, devices := range directory {
		for device, bundle := range devices {
			wg.Add(1)
			go func(id domain.SessionID, bundle domain.PrekeyBundle) {
				defer wg.Done()
				out <- s.encryptOne(ctx, id, plaintext, bundle)
			}(domain.NewSessionID(user, device), bundle)
		}
	}
	wg.Wait()
	close(out)

	results := make([]domain.EncryptionResult, 0, directory.Size())
	for r := range out {
		results = append(results, r)
	}
	return results
}

// encryptOne handles a single device. All failure modes collapse into a
// result carrying the error; the caller substitutes the failure payload.
func (s *Service) encryptOne(ctx context.Context, id domain.SessionID, plaintext []byte, bundle domain.PrekeyBundle) domain.EncryptionResult {
	if !s.box.HasSession(id) {
		material, err := DecodeKeyMaterial("prekey bundle", bundle.Key)
		if err != nil {
			s.log.Warn("prekey bundle is malformed, sending failure payload",
				zap.String("session", id.String()), zap.Error(err))
			return domain.EncryptionResult{SessionID: id, Err: err}
		}
		if err := s.box.EstablishSession(ctx, id, material); err != nil {
			s.log.Warn("session establishment failed, sending failure payload",
				zap.String("session", id.String()), zap.Error(err))
			return domain.EncryptionResult{SessionID: id, Err: err}
		}
	}

	ct, err := s.box.Encrypt(ctx, id, plaintext)
	if err != nil {
		s.log.Warn("encryption failed, sending failure payload",
			zap.String("session", id.String()), zap.Error(err))
		return domain.EncryptionResult{SessionID: id, Err: err}
	}
	return domain.EncryptionResult{SessionID: id, Ciphertext: EncodeKeyMaterial(ct)}
}

// Decrypt resolves the sender's session from the event and decrypts the
// carried ciphertext. Unlike the encrypt path every failure propagates: a
// missing ciphertext, a malformed one, and a session failure are all hard
// errors.
func (s *Service) Decrypt(ctx context.Context, ev domain.Event) ([]byte, error) {
	if ev.Data == nil || ev.Data.Text == "" {
		return nil, domain.ErrMissingCiphertext
	}
	ct, err := DecodeKeyMaterial("ciphertext", ev.Data.Text)
	if err != nil {
		return nil, err
	}
	id := domain.NewSessionID(ev.From, ev.Data.Sender)
	return s.box.Decrypt(ctx, id, ct)
}

var _ domain.CryptoService = (*Service)(nil)
