package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kruplan/kruplan/internal/fault"
	"github.com/kruplan/kruplan/internal/schedule"
)

// HTTPClient implements Client against the JSON persistence API:
//
//	GET  /api/owners/{owner}/sheets
//	PUT  /api/owners/{owner}/sheets
//	GET  /api/owners/{owner}/config
//	PUT  /api/owners/{owner}/config
type HTTPClient struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

func NewHTTPClient(baseURL string, timeout time.Duration, logger *slog.Logger) *HTTPClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger.With("component", "remote"),
	}
}

func (c *HTTPClient) LoadSheets(ctx context.Context, owner string) ([]json.RawMessage, error) {
	body, found, err := c.get(ctx, c.sheetsURL(owner))
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fault.RemoteError("decoding remote sheets").
			WithCause(err).
			WithContext("owner", owner).
			Build()
	}
	return raw, nil
}

func (c *HTTPClient) SaveSheets(ctx context.Context, owner string, sheets []schedule.Sheet) error {
	return c.put(ctx, c.sheetsURL(owner), owner, sheets)
}

func (c *HTTPClient) LoadConfig(ctx context.Context, owner string) (*schedule.Config, error) {
	body, found, err := c.get(ctx, c.configURL(owner))
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	var cfg schedule.Config
	if err := json.Unmarshal(body, &cfg); err != nil {
		return nil, fault.RemoteError("decoding remote config").
			WithCause(err).
			WithContext("owner", owner).
			Build()
	}
	return &cfg, nil
}

func (c *HTTPClient) SaveConfig(ctx context.Context, owner string, cfg schedule.Config) error {
	return c.put(ctx, c.configURL(owner), owner, cfg)
}

func (c *HTTPClient) sheetsURL(owner string) string {
	return fmt.Sprintf("%s/api/owners/%s/sheets", c.baseURL, url.PathEscape(owner))
}

func (c *HTTPClient) configURL(owner string) string {
	return fmt.Sprintf("%s/api/owners/%s/config", c.baseURL, url.PathEscape(owner))
}

// get returns the response body and whether the resource exists. A 404
// is not an error, it just means the owner has nothing stored yet.
func (c *HTTPClient) get(ctx context.Context, u string) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, false, fault.RemoteError("building request").WithCause(err).Build()
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, false, fault.RemoteError("remote request failed").
			WithCause(err).
			WithContext("url", u).
			Build()
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, c.statusError(resp, u)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, fault.RemoteError("reading remote response").WithCause(err).Build()
	}
	return body, true, nil
}

func (c *HTTPClient) put(ctx context.Context, u, owner string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fault.InternalError("encoding remote payload").WithCause(err).Build()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u, bytes.NewReader(body))
	if err != nil {
		return fault.RemoteError("building request").WithCause(err).Build()
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fault.RemoteError("remote save failed").
			WithCause(err).
			WithContext("owner", owner).
			WithContext("url", u).
			Build()
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return c.statusError(resp, u)
	}
	return nil
}

func (c *HTTPClient) statusError(resp *http.Response, u string) error {
	c.logger.Warn("Remote returned unexpected status", "status", resp.StatusCode, "url", u)
	return fault.RemoteError(fmt.Sprintf("remote returned status %d", resp.StatusCode)).
		WithContext("url", u).
		Build()
}
