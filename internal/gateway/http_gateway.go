// Package gateway provides client-side adapters: the REST message store
// gateway and the websocket event feed a session controller plugs into.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"StudioDesk/server/internal/models"
)

// HTTPGateway talks to the message store over its REST surface.
type HTTPGateway struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

func NewHTTPGateway(baseURL, token string) *HTTPGateway {
	return &HTTPGateway{
		BaseURL: baseURL,
		Token:   token,
		Client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (g *HTTPGateway) ListMessages(ctx context.Context, roomKey string) ([]models.Message, error) {
	var messages []models.Message
	endpoint := fmt.Sprintf("%s/api/rooms/%s/messages", g.BaseURL, url.PathEscape(roomKey))
	if err := g.do(ctx, http.MethodGet, endpoint, nil, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

func (g *HTTPGateway) CreateMessage(ctx context.Context, roomKey string, draft models.Draft) (models.Message, error) {
	var saved models.Message
	endpoint := fmt.Sprintf("%s/api/rooms/%s/messages", g.BaseURL, url.PathEscape(roomKey))
	if err := g.do(ctx, http.MethodPost, endpoint, draft, &saved); err != nil {
		return models.Message{}, err
	}
	return saved, nil
}

func (g *HTTPGateway) EditMessage(ctx context.Context, roomKey, messageID string, patch models.Patch) (models.Message, error) {
	var updated models.Message
	endpoint := fmt.Sprintf("%s/api/rooms/%s/messages/%s", g.BaseURL, url.PathEscape(roomKey), url.PathEscape(messageID))
	if err := g.do(ctx, http.MethodPatch, endpoint, patch, &updated); err != nil {
		return models.Message{}, err
	}
	return updated, nil
}

func (g *HTTPGateway) DeleteMessage(ctx context.Context, roomKey, messageID, scope string) error {
	endpoint := fmt.Sprintf("%s/api/rooms/%s/messages/%s/delete", g.BaseURL, url.PathEscape(roomKey), url.PathEscape(messageID))
	body := map[string]string{"scope": scope}
	return g.do(ctx, http.MethodPost, endpoint, body, nil)
}

func (g *HTTPGateway) Conversations(ctx context.Context) ([]models.Conversation, error) {
	var conversations []models.Conversation
	if err := g.do(ctx, http.MethodGet, g.BaseURL+"/api/conversations", nil, &conversations); err != nil {
		return nil, err
	}
	return conversations, nil
}

// Login exchanges credentials for a bearer token and stores it on the
// gateway for subsequent calls.
func (g *HTTPGateway) Login(ctx context.Context, email, password string) error {
	var resp struct {
		Token string `json:"token"`
	}
	body := map[string]string{"email": email, "password": password}
	if err := g.do(ctx, http.MethodPost, g.BaseURL+"/login", body, &resp); err != nil {
		return err
	}
	g.Token = resp.Token
	return nil
}

// Get fetches an authenticated endpoint relative to the base URL.
func (g *HTTPGateway) Get(ctx context.Context, path string, out interface{}) error {
	return g.do(ctx, http.MethodGet, g.BaseURL+path, nil, out)
}

func (g *HTTPGateway) do(ctx context.Context, method, endpoint string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if g.Token != "" {
		req.Header.Set("Authorization", "Bearer "+g.Token)
	}

	resp, err := g.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s %s: status %d: %s", method, endpoint, resp.StatusCode, bytes.TrimSpace(data))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
