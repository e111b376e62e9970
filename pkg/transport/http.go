package transport

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTP sends messages as POST requests to http://<addr>/<endpoint>.
// The receiving node answers "OK" regardless of payload validity; any
// non-2xx status or connection error is reported to the caller, who is
// expected to log it and move on.
type HTTP struct {
	client *http.Client
}

// NewHTTP returns an HTTP transport with a bounded request timeout.
func NewHTTP(timeout time.Duration) *HTTP {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTP{client: &http.Client{Timeout: timeout}}
}

// Send implements Transport.
func (t *HTTP) Send(addr, endpoint string, body []byte) error {
	url := fmt.Sprintf("http://%s/%s", addr, endpoint)
	resp, err := t.client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("post %s: %w", url, err)
	}
	defer resp.Body.Close()
	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("post %s: status %s", url, resp.Status)
	}
	return nil
}

var _ Transport = (*HTTP)(nil)
