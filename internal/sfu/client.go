package sfu

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Mikey786/Mediasoup/pkg/log"
)

// GatewayError is a normalized failure from the SFU control API: a non-2xx
// status, carrying the error detail from a JSON {"error": ...} body when the
// SFU provided one, or the raw body text otherwise.
type GatewayError struct {
	Status int
	Detail string
}

func (e *GatewayError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("sfu returned %d: %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("sfu returned %d", e.Status)
}

// Result is a normalized success from the SFU control API. The SFU answers
// some requests with a JSON body, some with 204 or an empty body, and some
// with plain text; callers only ever see body-or-empty.
type Result struct {
	Body json.RawMessage // nil when the response carried no JSON body
}

// Empty reports whether the response carried no JSON body.
func (r *Result) Empty() bool {
	return len(r.Body) == 0
}

// ProducerInfo describes an active producer as reported by the SFU.
type ProducerInfo struct {
	ProducerID string         `json:"producerId"`
	Kind       string         `json:"kind"`
	AppData    map[string]any `json:"appData"`
}

// IsHostProducer reports whether the producer was tagged as host-originated
// when it was created.
func (p *ProducerInfo) IsHostProducer() bool {
	v, ok := p.AppData["isHostProducer"]
	if !ok {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}

// Client is a typed wrapper over the mediasoup control API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new SFU gateway client. Every request is bounded by
// the given timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// RouterRTPCapabilities fetches the capability document for a room's router.
func (c *Client) RouterRTPCapabilities(ctx context.Context, room string) (json.RawMessage, error) {
	res, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/rooms/%s/router-rtp-capabilities", url.PathEscape(room)), nil)
	if err != nil {
		return nil, err
	}
	if res.Empty() {
		return nil, fmt.Errorf("sfu returned no rtp capabilities for room %q", room)
	}
	return res.Body, nil
}

// Producers lists a client's active producers in a room.
func (c *Client) Producers(ctx context.Context, room, client string) ([]ProducerInfo, error) {
	res, err := c.do(ctx, http.MethodGet, c.clientPath(room, client, "producers"), nil)
	if err != nil {
		return nil, err
	}
	if res.Empty() {
		return nil, nil
	}
	var producers []ProducerInfo
	if err := json.Unmarshal(res.Body, &producers); err != nil {
		return nil, fmt.Errorf("decode producers: %w", err)
	}
	return producers, nil
}

// CreateTransport asks the SFU to create a WebRTC transport for a client and
// returns the transport options to hand to the client.
func (c *Client) CreateTransport(ctx context.Context, room, client string) (json.RawMessage, error) {
	res, err := c.do(ctx, http.MethodPost, c.clientPath(room, client, "transports"), nil)
	if err != nil {
		return nil, err
	}
	if res.Empty() {
		return nil, fmt.Errorf("sfu returned no transport options")
	}
	return res.Body, nil
}

// ConnectTransport finalises DTLS on a transport.
func (c *Client) ConnectTransport(ctx context.Context, room, client, transportID string, dtlsParameters json.RawMessage) error {
	path := c.clientPath(room, client, "transports/"+url.PathEscape(transportID)+"/connect")
	_, err := c.do(ctx, http.MethodPost, path, map[string]any{"dtlsParameters": dtlsParameters})
	return err
}

// CreateProducer creates a producer on a transport and returns its id.
func (c *Client) CreateProducer(ctx context.Context, room, client, transportID, kind string, rtpParameters json.RawMessage, appData map[string]any) (string, error) {
	path := c.clientPath(room, client, "transports/"+url.PathEscape(transportID)+"/produce")
	res, err := c.do(ctx, http.MethodPost, path, map[string]any{
		"kind":          kind,
		"rtpParameters": rtpParameters,
		"appData":       appData,
	})
	if err != nil {
		return "", err
	}

	var out struct {
		ID string `json:"id"`
	}
	if !res.Empty() {
		if err := json.Unmarshal(res.Body, &out); err != nil {
			return "", fmt.Errorf("decode producer response: %w", err)
		}
	}
	if out.ID == "" {
		return "", fmt.Errorf("sfu returned no producer id")
	}
	return out.ID, nil
}

// CreateConsumer creates a consumer for a producer and returns the consumer
// parameters, which always include an id.
func (c *Client) CreateConsumer(ctx context.Context, room, client, transportID, producerID string, rtpCapabilities, appData json.RawMessage) (json.RawMessage, error) {
	path := c.clientPath(room, client, "transports/"+url.PathEscape(transportID)+"/consume")
	res, err := c.do(ctx, http.MethodPost, path, map[string]any{
		"producerId":      producerID,
		"rtpCapabilities": rtpCapabilities,
		"appData":         appData,
	})
	if err != nil {
		return nil, err
	}

	var out struct {
		ID string `json:"id"`
	}
	if !res.Empty() {
		if err := json.Unmarshal(res.Body, &out); err != nil {
			return nil, fmt.Errorf("decode consumer response: %w", err)
		}
	}
	if out.ID == "" {
		return nil, fmt.Errorf("sfu returned no consumer id")
	}
	return res.Body, nil
}

// ResumeConsumer resumes a paused consumer.
func (c *Client) ResumeConsumer(ctx context.Context, room, client, consumerID string) error {
	path := c.clientPath(room, client, "consumers/"+url.PathEscape(consumerID)+"/resume")
	_, err := c.do(ctx, http.MethodPost, path, nil)
	return err
}

// NotifyDisconnected tells the SFU a client's signaling connection closed so
// it can release that client's transports.
func (c *Client) NotifyDisconnected(ctx context.Context, room, client string) error {
	_, err := c.do(ctx, http.MethodPost, c.clientPath(room, client, "disconnected"), nil)
	return err
}

func (c *Client) clientPath(room, client, suffix string) string {
	return fmt.Sprintf("/rooms/%s/clients/%s/%s", url.PathEscape(room), url.PathEscape(client), suffix)
}

// do performs one control API request and normalizes the response shape:
// 204, empty bodies, and non-JSON 2xx bodies all become an empty Result;
// JSON 2xx bodies are returned raw; non-2xx responses become a GatewayError
// carrying the JSON error detail when present.
func (c *Client) do(ctx context.Context, method, path string, payload any) (*Result, error) {
	l := log.Ctx(ctx)

	var body *bytes.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal sfu request: %w", err)
		}
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create sfu request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		l.Error().Err(err).Str(log.FieldMethod, method).Str(log.FieldPath, path).Msg("sfu request failed")
		return nil, fmt.Errorf("sfu request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data := readBody(resp)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		gerr := &GatewayError{Status: resp.StatusCode, Detail: errorDetail(data)}
		l.Warn().Int(log.FieldStatus, resp.StatusCode).Str(log.FieldPath, path).Str("detail", gerr.Detail).Msg("sfu error response")
		return nil, gerr
	}

	if resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(data)) == 0 {
		return &Result{}, nil
	}

	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	if !strings.Contains(contentType, "application/json") || !json.Valid(data) {
		// The SFU answers some endpoints with "OK" or similar plain text.
		return &Result{}, nil
	}

	return &Result{Body: json.RawMessage(data)}, nil
}

func readBody(resp *http.Response) []byte {
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(resp.Body)
	return buf.Bytes()
}

// errorDetail extracts the "error" field from a JSON error body, falling
// back to the raw text.
func errorDetail(data []byte) string {
	text := strings.TrimSpace(string(data))
	if text == "" {
		return ""
	}
	var parsed struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &parsed); err == nil && parsed.Error != "" {
		return parsed.Error
	}
	return text
}
