package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"courier/internal/domain"
)

const defaultTimeout = 30 * time.Second

// Client implements domain.BackendClient against a base URL.
type Client struct {
	base string
	http *http.Client
	log  *zap.Logger
}

// New returns a Client for the backend at base. A nil httpClient selects a
// default with a 30s timeout.
func New(base string, httpClient *http.Client, log *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{base: base, http: httpClient, log: log}
}

// Login obtains an access token for creds. A backend refusal because of too
// frequent logins is reported as ErrLoginRateLimited so the caller can clear
// cookies and retry.
func (c *Client) Login(ctx context.Context, creds domain.Credentials) (domain.AccessToken, error) {
	body := map[string]string{"email": creds.Email, "password": creds.Password}
	var out struct {
		AccessToken string `json:"access_token"`
	}
	status, err := c.do(ctx, http.MethodPost, "/login?persist=false", "", body, &out)
	if err != nil {
		return "", err
	}
	switch status {
	case http.StatusOK:
		return domain.AccessToken(out.AccessToken), nil
	case http.StatusTooManyRequests:
		return "", domain.ErrLoginRateLimited
	default:
		return "", fmt.Errorf("login: unexpected status %d", status)
	}
}

// RemoveCookies deletes the login cookies named by labels, clearing the
// state behind a rate-limited login.
func (c *Client) RemoveCookies(ctx context.Context, creds domain.Credentials, labels []string) error {
	body := map[string]any{
		"email":    creds.Email,
		"password": creds.Password,
		"labels":   labels,
	}
	status, err := c.do(ctx, http.MethodPost, "/cookies/remove", "", body, nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("remove cookies: unexpected status %d", status)
	}
	return nil
}

// RegisterClient registers a new client device and returns its id.
func (c *Client) RegisterClient(ctx context.Context, token domain.AccessToken, info domain.ClientRegistrationInfo) (domain.RegisteredClient, error) {
	var out struct {
		ID     string `json:"id"`
		Cookie string `json:"cookie"`
	}
	status, err := c.do(ctx, http.MethodPost, "/clients", token, info, &out)
	if err != nil {
		return domain.RegisteredClient{}, err
	}
	if status != http.StatusCreated && status != http.StatusOK {
		return domain.RegisteredClient{}, fmt.Errorf("register client: unexpected status %d", status)
	}
	return domain.RegisteredClient{ID: domain.DeviceID(out.ID), Cookie: out.Cookie}, nil
}

// Self fetches the authenticated user's profile.
func (c *Client) Self(ctx context.Context, token domain.AccessToken) (domain.Self, error) {
	var out struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	status, err := c.do(ctx, http.MethodGet, "/self", token, nil, &out)
	if err != nil {
		return domain.Self{}, err
	}
	if status != http.StatusOK {
		return domain.Self{}, fmt.Errorf("self: unexpected status %d", status)
	}
	return domain.Self{ID: domain.UserID(out.ID), Name: out.Name}, nil
}

// UploadPrekeys publishes new one-time prekeys for client.
func (c *Client) UploadPrekeys(ctx context.Context, token domain.AccessToken, client domain.DeviceID, keys []domain.Prekey) error {
	body := map[string]any{"prekeys": keys}
	path := "/clients/" + url.PathEscape(client.String())
	status, err := c.do(ctx, http.MethodPut, path, token, body, nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("upload prekeys: unexpected status %d", status)
	}
	return nil
}

// UpdateConnectionStatus sets the connection with user to status.
func (c *Client) UpdateConnectionStatus(ctx context.Context, token domain.AccessToken, user domain.UserID, status string) error {
	body := map[string]string{"status": status}
	path := "/connections/" + url.PathEscape(user.String())
	code, err := c.do(ctx, http.MethodPut, path, token, body, nil)
	if err != nil {
		return err
	}
	if code != http.StatusOK && code != http.StatusNoContent {
		return fmt.Errorf("update connection: unexpected status %d", code)
	}
	return nil
}

// MissingDevices probes which devices a message to conv must cover. The
// probe posts an empty recipient map; the backend answers with the full
// device listing as "missing" clients.
func (c *Client) MissingDevices(ctx context.Context, token domain.AccessToken, conv domain.ConversationID, sender domain.DeviceID) (domain.MissingDevices, error) {
	body := map[string]any{
		"sender":     sender,
		"recipients": map[string]any{},
	}
	var out struct {
		Missing domain.MissingDevices `json:"missing"`
	}
	path := "/conversations/" + url.PathEscape(conv.String()) + "/otr/messages"
	status, err := c.do(ctx, http.MethodPost, path, token, body, &out)
	if err != nil {
		return nil, err
	}
	switch status {
	case http.StatusPreconditionFailed:
		return out.Missing, nil
	case http.StatusCreated, http.StatusOK:
		// Nobody else in the conversation.
		return domain.MissingDevices{}, nil
	default:
		return nil, fmt.Errorf("missing devices: unexpected status %d", status)
	}
}

// ClaimPrekeys claims one prekey bundle per listed device.
func (c *Client) ClaimPrekeys(ctx context.Context, token domain.AccessToken, missing domain.MissingDevices) (domain.DeviceDirectory, error) {
	var out domain.DeviceDirectory
	status, err := c.do(ctx, http.MethodPost, "/users/prekeys", token, missing, &out)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("claim prekeys: unexpected status %d", status)
	}
	return out, nil
}

// PostMessage delivers the per-device ciphertext map to conv.
func (c *Client) PostMessage(ctx context.Context, token domain.AccessToken, conv domain.ConversationID, sender domain.DeviceID, recipients domain.RecipientPayloads) error {
	body := map[string]any{
		"sender":     sender,
		"recipients": recipients,
	}
	path := "/conversations/" + url.PathEscape(conv.String()) + "/otr/messages"
	status, err := c.do(ctx, http.MethodPost, path, token, body, nil)
	if err != nil {
		return err
	}
	if status != http.StatusCreated && status != http.StatusOK {
		return fmt.Errorf("post message: unexpected status %d", status)
	}
	return nil
}

// do performs one JSON request and decodes the response into out when both
// are non-nil. The HTTP status is returned for the caller to interpret;
// only transport and decoding problems surface as errors.
func (c *Client) do(ctx context.Context, method, path string, token domain.AccessToken, in, out any) (int, error) {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return 0, err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return 0, err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+string(token))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	c.log.Debug("backend request",
		zap.String("method", method), zap.String("path", path), zap.Int("status", resp.StatusCode))

	if out != nil {
		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return resp.StatusCode, err
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, out); err != nil {
				return resp.StatusCode, fmt.Errorf("decode %s response: %w", path, err)
			}
		}
	}
	return resp.StatusCode, nil
}

var _ domain.BackendClient = (*Client)(nil)
