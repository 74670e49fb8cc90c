package secret

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// HTTPFetcher posts the account to a backend endpoint and reads
// {"client_secret": "..."} from the reply.
type HTTPFetcher struct {
	url     string
	account Account
	client  *http.Client
}

func NewHTTPFetcher(url string, account Account, client *http.Client) *HTTPFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPFetcher{url: url, account: account, client: client}
}

func (f *HTTPFetcher) FetchClientSecret(ctx context.Context) (string, error) {
	secret, err := f.fetch(ctx)
	if err != nil {
		metricFetches.WithLabelValues("http", "error").Inc()
		return "", fmt.Errorf("fetch client secret: %w", err)
	}
	metricFetches.WithLabelValues("http", "ok").Inc()
	return secret, nil
}

func (f *HTTPFetcher) fetch(ctx context.Context) (string, error) {
	body, err := json.Marshal(f.account.fields())
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return "", fmt.Errorf("unexpected status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}
	var out struct {
		ClientSecret string `json:"client_secret"`
		Error        string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if out.ClientSecret == "" {
		if out.Error != "" {
			return "", fmt.Errorf("%w: %s", ErrNoSecret, out.Error)
		}
		return "", ErrNoSecret
	}
	return out.ClientSecret, nil
}
