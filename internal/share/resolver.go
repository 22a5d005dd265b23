package share

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPResolver fetches remote attachment bytes, forwarding the acting
// user's bearer token for auth-scoped URLs.
type HTTPResolver struct {
	Client *http.Client
	Token  string
}

func NewHTTPResolver(token string) *HTTPResolver {
	return &HTTPResolver{
		Client: &http.Client{Timeout: 30 * time.Second},
		Token:  token,
	}
}

func (r *HTTPResolver) Fetch(ctx context.Context, url string) (string, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", nil, err
	}
	if r.Token != "" {
		req.Header.Set("Authorization", "Bearer "+r.Token)
	}

	resp, err := r.Client.Do(req)
	if err != nil {
		return "", nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", nil, fmt.Errorf("unexpected status %d fetching %s", resp.StatusCode, url)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil, err
	}
	return resp.Header.Get("Content-Type"), data, nil
}
