// Package fetcher implements the server fetch port over HTTP
package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"whispermap/internal/core/geo"
	perr "whispermap/internal/platform/errors"
	whispers "whispermap/internal/services/whispers/domain"
)

// Client fetches whisper sets from the discovery API
type Client struct {
	base    string
	http    *http.Client
	timeout time.Duration
}

// New constructs a fetch client for the API at base, e.g. http://host:4000
func New(base string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		base:    base,
		http:    &http.Client{},
		timeout: timeout,
	}
}

// envelope mirrors the server response shape; only data matters here
type envelope struct {
	StatusCode int                `json:"status_code"`
	Error      string             `json:"error"`
	Data       []whispers.Whisper `json:"data"`
}

// Fetch implements domain.Fetcher
// a nil position fetches nothing: the caller decides the fallback story
func (c *Client) Fetch(ctx context.Context, pos *geo.Location, radiusMeters float64) ([]whispers.Whisper, error) {
	if pos == nil {
		return []whispers.Whisper{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(pos.Lat, 'f', -1, 64))
	q.Set("lng", strconv.FormatFloat(pos.Lng, 'f', -1, 64))
	q.Set("radius", strconv.FormatFloat(radiusMeters, 'f', -1, 64))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/api/v1/whispers?"+q.Encode(), nil)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeUnknown, "build fetch request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// timeouts and transport failures are transient by definition
		return nil, perr.Wrap(err, perr.ErrorCodeUnavailable, "fetch whispers")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeUnavailable, "read fetch response")
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeJSON, "decode fetch response")
	}

	if resp.StatusCode != http.StatusOK {
		msg := env.Error
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode)
		}
		if resp.StatusCode >= 500 {
			return nil, perr.Unavailablef("fetch whispers: %s", msg)
		}
		return nil, perr.InvalidArgf("fetch whispers: %s", msg)
	}

	if env.Data == nil {
		return []whispers.Whisper{}, nil
	}
	return env.Data, nil
}
