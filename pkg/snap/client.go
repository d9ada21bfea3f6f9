package snap

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Client executes signed HTTP calls against one BRI base endpoint. It is
// the transport collaborator: request execution and decoding only, no
// protocol logic.
type Client struct {
	httpClient *http.Client
	baseURL    string
	debug      bool
}

// NewClient builds a transport for the given base URL with a fixed
// per-call timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		debug:      os.Getenv("ENV") == "development",
	}
}

// Response is a decoded BRI reply. Body holds the raw bytes; the parsed
// map backs the typed accessors.
type Response struct {
	StatusCode int
	Body       json.RawMessage

	parsed map[string]any
}

// NewResponse builds a Response from raw body bytes. Non-JSON bodies are
// tolerated; the typed accessors just return empty values.
func NewResponse(statusCode int, body []byte) *Response {
	out := &Response{StatusCode: statusCode, Body: body}
	_ = json.Unmarshal(body, &out.parsed)
	return out
}

// Code returns the responseCode field, or "" when absent.
func (r *Response) Code() string { return r.String("responseCode") }

// Message returns the responseMessage field, or "" when absent.
func (r *Response) Message() string { return r.String("responseMessage") }

// String returns a top-level string field from the response body.
func (r *Response) String(key string) string {
	if v, ok := r.parsed[key].(string); ok {
		return v
	}
	return ""
}

// Decode unmarshals the response body into out.
func (r *Response) Decode(out any) error {
	return json.Unmarshal(r.Body, out)
}

// Do sends a request and fails with *TransportError on network errors and
// on any non-2xx status.
func (c *Client) Do(ctx context.Context, method, path string, body []byte, headers map[string]string) (*Response, error) {
	resp, err := c.send(ctx, method, path, body, headers)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &TransportError{StatusCode: resp.StatusCode, Body: resp.Body}
	}
	return resp, nil
}

// DoAllowError sends a request and returns the decoded response even on
// non-2xx statuses. BRI reports several business outcomes (duplicate VA,
// not found) through 4xx replies whose responseCode the caller must
// branch on, so those call sites use this pass-through mode instead of
// Do. Network failures still error.
func (c *Client) DoAllowError(ctx context.Context, method, path string, body []byte, headers map[string]string) (*Response, error) {
	return c.send(ctx, method, path, body, headers)
}

func (c *Client) send(ctx context.Context, method, path string, body []byte, headers map[string]string) (*Response, error) {
	url := c.baseURL + path

	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.debug {
		log.Debug().
			Str("method", method).
			Str("endpoint", url).
			RawJSON("request", jsonOrNull(body)).
			Msg("[BRI] Outgoing request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{StatusCode: resp.StatusCode, Err: err}
	}

	if c.debug {
		log.Debug().
			Str("endpoint", path).
			Int("status_code", resp.StatusCode).
			RawJSON("response", jsonOrNull(respBody)).
			Msg("[BRI] Incoming response")
	}

	return NewResponse(resp.StatusCode, respBody), nil
}

func jsonOrNull(b []byte) []byte {
	if len(b) == 0 || !json.Valid(b) {
		return []byte("null")
	}
	return b
}
