// internal/api/transport.go
//
// Outbound request decoration for the API client.
// Responsibilities:
//   - Tag every request with X-Request-ID and X-Device-ID.
//   - Default JSON Accept / Content-Type headers.
//   - Debug-log method, path, status and latency.
//
// Bearer tokens are attached by the client itself (see client.go) because the
// refresh-and-retry flow needs to swap them between attempts.

package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type taggingTransport struct {
	next     http.RoundTripper
	deviceID string
}

func newTransport(next http.RoundTripper, deviceID string) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return &taggingTransport{next: next, deviceID: deviceID}
}

func (t *taggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	if r.Header.Get("X-Request-ID") == "" {
		r.Header.Set("X-Request-ID", uuid.NewString())
	}
	if t.deviceID != "" {
		r.Header.Set("X-Device-ID", t.deviceID)
	}
	r.Header.Set("Accept", "application/json")
	if r.Body != nil && r.Header.Get("Content-Type") == "" {
		r.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := t.next.RoundTrip(r)
	ev := log.Debug().
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Str("requestId", r.Header.Get("X-Request-ID")).
		Dur("took", time.Since(start))
	if err != nil {
		ev.Err(err).Msg("api request failed")
		return nil, err
	}
	ev.Int("status", resp.StatusCode).Msg("api request")
	return resp, nil
}
