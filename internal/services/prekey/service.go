package prekey

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	"courier/internal/domain"
	"courier/internal/services/otr"
)

// DefaultBatchSize is the number of one-time prekeys generated per batch.
const DefaultBatchSize = 50

// Publisher uploads freshly generated prekeys to the backend. It is invoked
// from the low-pool handler, outside any request context.
type Publisher func(ctx context.Context, keys []domain.Prekey) error

// Service implements domain.PrekeyService. Ids are allocated from a single
// monotonic counter so concurrent batches never collide; the last-resort id
// is reserved and skipped.
type Service struct {
	box     domain.Cryptobox
	publish Publisher
	log     *zap.Logger
	batch   int

	nextID atomic.Uint32
}

// New returns a Service and registers its low-pool handler on notifier. The
// publisher is called whenever replenishment produces new keys; batch <= 0
// selects DefaultBatchSize.
func New(box domain.Cryptobox, notifier domain.LowPrekeyNotifier, publish Publisher, batch int, log *zap.Logger) *Service {
	if batch <= 0 {
		batch = DefaultBatchSize
	}
	s := &Service{box: box, publish: publish, log: log, batch: batch}
	notifier.OnLowPrekeys(s.handleLow)
	return s
}

// NewLastResort generates the reserved last-resort prekey. Its id is fixed
// and the private half is never consumed.
func (s *Service) NewLastResort(ctx context.Context) (domain.Prekey, error) {
	material, err := s.box.NewPrekey(ctx, domain.MaxPrekeyID)
	if err != nil {
		return domain.Prekey{}, err
	}
	return otr.EncodePrekey(domain.MaxPrekeyID, material), nil
}

// NewBatch generates count one-time prekeys with consecutive ids.
func (s *Service) NewBatch(ctx context.Context, count int) ([]domain.Prekey, error) {
	start := s.nextID.Add(uint32(count)) - uint32(count)

	keys := make([]domain.Prekey, 0, count)
	for i := 0; i < count; i++ {
		// Wrap below the reserved last-resort id.
		id := uint16((start + uint32(i)) % uint32(domain.MaxPrekeyID))
		material, err := s.box.NewPrekey(ctx, id)
		if err != nil {
			return nil, err
		}
		keys = append(keys, otr.EncodePrekey(id, material))
	}
	return keys, nil
}

// Replenish generates a fresh batch continuing the id sequence past
// existingMaxID, so replacement keys never reuse a live id.
func (s *Service) Replenish(ctx context.Context, existingMaxID uint16) ([]domain.Prekey, error) {
	floor := uint32(existingMaxID) + 1
	for {
		cur := s.nextID.Load()
		if cur >= floor || s.nextID.CompareAndSwap(cur, floor) {
			break
		}
	}
	return s.NewBatch(ctx, s.batch)
}

// handleLow runs on the store's notification goroutine when the pool drops
// below its low-water mark.
func (s *Service) handleLow(existingMaxID uint16) {
	ctx := context.Background()
	keys, err := s.Replenish(ctx, existingMaxID)
	if err != nil {
		s.log.Error("prekey replenishment failed", zap.Error(err))
		return
	}
	if s.publish != nil {
		if err := s.publish(ctx, keys); err != nil {
			s.log.Error("prekey upload failed", zap.Error(err))
			return
		}
	}
	s.log.Info("replenished one-time prekeys",
		zap.Int("count", len(keys)), zap.Uint16("after", existingMaxID))
}

var _ domain.PrekeyService = (*Service)(nil)
