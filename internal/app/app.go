package app

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"go.uber.org/zap"

	"courier/internal/backend"
	"courier/internal/cryptobox"
	"courier/internal/domain"
	"courier/internal/genericmsg"
	"courier/internal/services/conversation"
	"courier/internal/services/otr"
	"courier/internal/services/prekey"
	"courier/internal/services/user"
	"courier/internal/store"
	"courier/internal/transport"
)

// Config collects everything needed to assemble an App.
type Config struct {
	BackendURL   string
	WebSocketURL string
	Home         string // state directory for identity, prekeys and sessions
	Email        string
	Password     string
	PrekeyBatch  int // replenishment batch size; 0 selects the default
	LowWater     int // prekey low-water mark; 0 selects the default

	HTTP   *http.Client // optional; nil selects a default client
	Logger *zap.Logger  // optional; nil selects a no-op logger
}

// TextHandler receives every decrypted text message.
type TextHandler func(ctx context.Context, conv domain.ConversationID, from domain.UserID, msg genericmsg.Message)

// App is an assembled SDK instance bound to one account and one client
// device.
type App struct {
	cfg Config
	log *zap.Logger

	box    domain.Cryptobox
	users  *user.Service
	convs  *conversation.Service
	crypto domain.CryptoService
	stream domain.EventStream
}

// New assembles an App from cfg. No network traffic happens until Login.
func New(cfg Config) (*App, error) {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.MkdirAll(cfg.Home, 0o700); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}

	a := &App{cfg: cfg, log: log}

	api := backend.New(cfg.BackendURL, cfg.HTTP, log)
	box := cryptobox.New(store.NewFileStore(cfg.Home), cfg.Password, cfg.LowWater, log)

	// Replenished prekeys flow back to the backend through the user
	// service, which knows the token and client id.
	publish := func(ctx context.Context, keys []domain.Prekey) error {
		return a.users.UploadPrekeys(ctx, keys)
	}
	prekeys := prekey.New(box, box, publish, cfg.PrekeyBatch, log)

	a.box = box
	a.users = user.New(api, box, prekeys, log)
	a.crypto = otr.New(box, log)
	a.convs = conversation.New(api, a.crypto, a.users, log)
	a.stream = transport.New(cfg.WebSocketURL, log)
	return a, nil
}

// Login authenticates the configured account and registers this client.
func (a *App) Login(ctx context.Context) error {
	return a.users.Login(ctx, domain.Credentials{Email: a.cfg.Email, Password: a.cfg.Password})
}

// Logout removes this client's login cookie and shuts the event stream
// down. Safe to call whether or not Run is active.
func (a *App) Logout(ctx context.Context) error {
	err := a.users.Logout(ctx)
	if cerr := a.stream.Close(); err == nil {
		err = cerr
	}
	return err
}

// Self returns the logged-in user's profile.
func (a *App) Self() domain.Self { return a.users.Self() }

// Fingerprint opens the local identity and returns its fingerprint. It
// works offline and does not require a login.
func (a *App) Fingerprint(ctx context.Context) (string, error) {
	if err := a.box.Open(ctx); err != nil {
		return "", err
	}
	return a.box.Fingerprint(), nil
}

// SendText sends text into conv.
func (a *App) SendText(ctx context.Context, conv domain.ConversationID, text string) error {
	return a.convs.SendText(ctx, conv, text)
}

// Run connects the event stream and pumps events until ctx ends or the
// stream closes. Decrypt failures are logged and skipped so one bad
// envelope never stops the pump.
func (a *App) Run(ctx context.Context, onText TextHandler) error {
	if err := a.stream.Connect(ctx, a.users.Token(), a.users.ClientID()); err != nil {
		return fmt.Errorf("connect event stream: %w", err)
	}
	defer a.stream.Close()

	a.log.Info("event pump running")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-a.stream.Events():
			if !ok {
				return nil
			}
			a.dispatch(ctx, ev, onText)
		}
	}
}

func (a *App) dispatch(ctx context.Context, ev domain.Event, onText TextHandler) {
	switch ev.Type {
	case domain.EventOTRMessageAdd:
		pt, err := a.crypto.Decrypt(ctx, ev)
		if err != nil {
			a.log.Warn("dropping undecryptable message",
				zap.String("from", ev.From.String()), zap.Error(err))
			return
		}
		msg, err := genericmsg.Unmarshal(pt)
		if err != nil {
			a.log.Warn("dropping malformed message envelope",
				zap.String("from", ev.From.String()), zap.Error(err))
			return
		}
		if onText != nil {
			onText(ctx, ev.Conversation, ev.From, msg)
		}
	case domain.EventUserConnection:
		if err := a.users.AutoConnect(ctx, ev); err != nil {
			a.log.Error("connection handling failed", zap.Error(err))
		}
	default:
		a.log.Debug("ignoring event", zap.String("type", ev.Type))
	}
}
