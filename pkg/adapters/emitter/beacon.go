package emitter

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/wadjakorntonsri/visitor-telemetry/pkg/ports"
)

const beaconTimeout = 2 * time.Second

// HTTPBeacon is the guaranteed-attempt primitive for hosts without
// navigator.sendBeacon: the request is written before SendBeacon returns, with
// a short deadline so teardown is never held up for long. Like the browser
// primitive it sends a text/plain body and no custom headers.
type HTTPBeacon struct {
	client    *http.Client
	userAgent string
}

func NewHTTPBeacon(client *http.Client, userAgent string) *HTTPBeacon {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPBeacon{client: client, userAgent: userAgent}
}

// SendBeacon reports whether the request was attempted; the response is ignored.
func (b *HTTPBeacon) SendBeacon(url string, body []byte) bool {
	ctx, cancel := context.WithTimeout(context.Background(), beaconTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return false
	}
	req.Header.Set("Content-Type", "text/plain;charset=UTF-8")
	if b.userAgent != "" {
		req.Header.Set("User-Agent", b.userAgent)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return true
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return true
}

var _ ports.Beacon = (*HTTPBeacon)(nil)
