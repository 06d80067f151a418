package transport

import (
	"context"
	"encoding/json"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jpillora/backoff"
	"go.uber.org/zap"

	"courier/internal/domain"
)

const (
	pingInterval = 10 * time.Second
	writeTimeout = 5 * time.Second
)

// notification is the wire frame: a batch of events.
type notification struct {
	Payload []domain.Event `json:"payload"`
}

// Stream implements domain.EventStream over a websocket connection.
type Stream struct {
	base string
	log  *zap.Logger

	events chan domain.Event

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New returns a Stream for the websocket endpoint at base, e.g.
// "wss://backend.example.com".
func New(base string, log *zap.Logger) *Stream {
	return &Stream{
		base:   base,
		log:    log,
		events: make(chan domain.Event, 16),
	}
}

// Connect dials the event endpoint and starts the delivery loop. The loop
// reconnects on failure until ctx is cancelled or Close is called.
func (s *Stream) Connect(ctx context.Context, token domain.AccessToken, client domain.DeviceID) error {
	u, err := url.Parse(s.base)
	if err != nil {
		return err
	}
	u.Path = "/await"
	q := u.Query()
	q.Set("access_token", string(token))
	q.Set("client", client.String())
	u.RawQuery = q.Encode()

	// Validate the endpoint with a first dial before going resident.
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.run(runCtx, u.String(), conn)
	return nil
}

// Events returns the delivery channel. It is closed when the stream stops.
func (s *Stream) Events() <-chan domain.Event { return s.events }

// Close stops the delivery loop and closes the events channel.
func (s *Stream) Close() error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

// run owns the connection: it reads until failure, then redials with
// backoff until ctx ends.
func (s *Stream) run(ctx context.Context, endpoint string, conn *websocket.Conn) {
	defer close(s.events)
	defer func() {
		s.mu.Lock()
		close(s.done)
		s.mu.Unlock()
	}()

	b := &backoff.Backoff{Min: time.Second, Max: 30 * time.Second, Jitter: true}
	for {
		err := s.readLoop(ctx, conn)
		if conn != nil {
			conn.Close()
		}
		if ctx.Err() != nil {
			return
		}
		d := b.Duration()
		s.log.Warn("event stream disconnected, reconnecting",
			zap.Error(err), zap.Duration("backoff", d))

		select {
		case <-ctx.Done():
			return
		case <-time.After(d):
		}
		conn, _, err = websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
		if err != nil {
			s.log.Warn("event stream redial failed", zap.Error(err))
			conn = nil
			continue
		}
		b.Reset()
	}
}

// readLoop decodes frames and forwards events until the connection drops.
// A nil conn returns immediately so run falls through to the redial path.
func (s *Stream) readLoop(ctx context.Context, conn *websocket.Conn) error {
	if conn == nil {
		return nil
	}

	pings := time.NewTicker(pingInterval)
	defer pings.Stop()

	// The ping loop also tears the connection down on ctx cancellation,
	// which unblocks the reader.
	go func() {
		for {
			select {
			case <-ctx.Done():
				conn.Close()
				return
			case <-pings.C:
				deadline := time.Now().Add(writeTimeout)
				if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					conn.Close()
					return
				}
			}
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var n notification
		if err := json.Unmarshal(raw, &n); err != nil {
			s.log.Warn("discarding malformed event frame", zap.Error(err))
			continue
		}
		for _, ev := range n.Payload {
			select {
			case s.events <- ev:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

var _ domain.EventStream = (*Stream)(nil)
