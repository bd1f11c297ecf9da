package eltako

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/eltako2mqtt/internal/device"
)

// MiniSafe2 protocol constants.
const (
	commandPath = "/command"

	paramFunction = "XC_FNC"
	paramPassword = "XC_PASS"
	paramType     = "type"
	paramData     = "data"

	fnGetStates = "GetStates"
	fnSendSC    = "SendSC"

	// successMarker prefixes every accepted gateway response.
	successMarker = "{XC_SUC}"

	// maxResponseSize bounds a state listing read from the gateway.
	maxResponseSize = 4 << 20

	defaultHTTPTimeout = 15 * time.Second
	userAgent          = "eltako2mqtt"
)

// Gateway is the MiniSafe2 collaborator used by the bridge.
type Gateway interface {
	// FetchStates returns the full device listing.
	FetchStates(ctx context.Context) ([]device.RawDevice, error)

	// SendCommand sends a wire command to the device at address.
	// A nil error means the gateway answered with the success marker.
	SendCommand(ctx context.Context, address string, wire WireCommand) error
}

// GatewayStats holds MiniSafe2 client counters.
type GatewayStats struct {
	Requests     uint64    `json:"requests"`
	Failures     uint64    `json:"failures"`
	LastSuccess  time.Time `json:"last_success,omitempty"`
	LastError    string    `json:"last_error,omitempty"`
	LastErrorAt  time.Time `json:"last_error_at,omitempty"`
	Reachable    bool      `json:"reachable"`
	ResponseTime float64   `json:"last_response_ms"`
}

// MiniSafeConfig configures a MiniSafeClient.
type MiniSafeConfig struct {
	// Host is a host[:port] or a full base URL (http://...).
	Host string

	// Password is sent as XC_PASS on every request.
	Password string

	// HTTPClient overrides the default client. Optional.
	HTTPClient *http.Client
}

// MiniSafeClient talks to the MiniSafe2 HTTP control endpoint.
//
// Thread Safety: All methods are safe for concurrent use.
type MiniSafeClient struct {
	endpoint   string
	password   string
	httpClient *http.Client

	requests atomic.Uint64
	failures atomic.Uint64

	mu           sync.RWMutex
	lastSuccess  time.Time
	lastError    string
	lastErrorAt  time.Time
	reachable    bool
	responseTime time.Duration
}

// NewMiniSafeClient creates a gateway client. No request is made until
// FetchStates or SendCommand is called.
func NewMiniSafeClient(cfg MiniSafeConfig) (*MiniSafeClient, error) {
	host := strings.TrimSpace(cfg.Host)
	if host == "" {
		return nil, fmt.Errorf("%w: gateway host is required", ErrGateway)
	}
	if !strings.Contains(host, "://") {
		host = "http://" + host
	}
	base, err := url.Parse(strings.TrimRight(host, "/"))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid gateway host %q: %w", ErrGateway, cfg.Host, err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}

	return &MiniSafeClient{
		endpoint:   base.String() + commandPath,
		password:   cfg.Password,
		httpClient: httpClient,
	}, nil
}

// stateEntry is one element of a GetStates listing.
type stateEntry struct {
	SID     flexString     `json:"sid"`
	Name    string         `json:"name"`
	Type    string         `json:"type"`
	Address flexString     `json:"adr"`
	State   map[string]any `json:"state"`
}

// flexString accepts JSON strings and numbers.
type flexString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *flexString) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// FetchStates retrieves every device known to the gateway.
func (c *MiniSafeClient) FetchStates(ctx context.Context) ([]device.RawDevice, error) {
	body, err := c.do(ctx, paramFunction, fnGetStates, paramPassword, c.password)
	if err != nil {
		return nil, err
	}

	devices, err := parseStates(body)
	if err != nil {
		c.recordFailure(err)
		return nil, err
	}
	return devices, nil
}

// SendCommand sends wire to the device at address.
func (c *MiniSafeClient) SendCommand(ctx context.Context, address string, wire WireCommand) error {
	body, err := c.do(ctx,
		paramFunction, fnSendSC,
		paramType, address,
		paramData, string(wire),
		paramPassword, c.password,
	)
	if err != nil {
		return err
	}

	if !bytes.HasPrefix(bytes.TrimSpace(body), []byte(successMarker)) {
		err := fmt.Errorf("%w: %s rejected for %s: %q", ErrGateway, wire, address, truncate(body, 64))
		c.recordFailure(err)
		return err
	}
	return nil
}

// Stats returns a snapshot of client counters.
func (c *MiniSafeClient) Stats() GatewayStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return GatewayStats{
		Requests:     c.requests.Load(),
		Failures:     c.failures.Load(),
		LastSuccess:  c.lastSuccess,
		LastError:    c.lastError,
		LastErrorAt:  c.lastErrorAt,
		Reachable:    c.reachable,
		ResponseTime: float64(c.responseTime.Microseconds()) / 1000,
	}
}

// do performs a GET with the given key/value pairs in order and returns
// the response body. Errors wrap ErrGateway.
func (c *MiniSafeClient) do(ctx context.Context, kv ...string) ([]byte, error) {
	c.requests.Add(1)
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+buildQuery(kv...), nil)
	if err != nil {
		err = fmt.Errorf("%w: building request: %w", ErrGateway, err)
		c.recordFailure(err)
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrGateway, redact(err))
		c.recordFailure(err)
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		err = fmt.Errorf("%w: reading response: %w", ErrGateway, err)
		c.recordFailure(err)
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err = fmt.Errorf("%w: status %d", ErrGateway, resp.StatusCode)
		c.recordFailure(err)
		return nil, err
	}

	c.mu.Lock()
	c.lastSuccess = time.Now()
	c.reachable = true
	c.responseTime = time.Since(start)
	c.mu.Unlock()
	return body, nil
}

func (c *MiniSafeClient) recordFailure(err error) {
	c.failures.Add(1)
	c.mu.Lock()
	c.lastError = err.Error()
	c.lastErrorAt = time.Now()
	if isTransport(err) {
		c.reachable = false
	}
	c.mu.Unlock()
}

// errUnexpectedBody marks a response that arrived but could not be parsed.
var errUnexpectedBody = errors.New("unexpected response body")

func isTransport(err error) bool {
	var ue *url.Error
	return errors.As(err, &ue)
}

// parseStates accepts a bare JSON array, "{XC_SUC}" followed by JSON, or an
// object holding the array under XC_SUC.
func parseStates(body []byte) ([]device.RawDevice, error) {
	body = bytes.TrimSpace(body)
	body = bytes.TrimSpace(bytes.TrimPrefix(body, []byte(successMarker)))

	var entries []stateEntry
	switch {
	case len(body) == 0:
		return nil, fmt.Errorf("%w: %w: empty", ErrGateway, errUnexpectedBody)

	case body[0] == '[':
		if err := json.Unmarshal(body, &entries); err != nil {
			return nil, fmt.Errorf("%w: %w: %w", ErrGateway, errUnexpectedBody, err)
		}

	case body[0] == '{':
		var wrapped map[string]json.RawMessage
		if err := json.Unmarshal(body, &wrapped); err != nil {
			return nil, fmt.Errorf("%w: %w: %w", ErrGateway, errUnexpectedBody, err)
		}
		list, ok := wrapped["XC_SUC"]
		if !ok {
			return nil, fmt.Errorf("%w: %w: no device list", ErrGateway, errUnexpectedBody)
		}
		if err := json.Unmarshal(list, &entries); err != nil {
			return nil, fmt.Errorf("%w: %w: %w", ErrGateway, errUnexpectedBody, err)
		}

	default:
		return nil, fmt.Errorf("%w: %w: %q", ErrGateway, errUnexpectedBody, truncate(body, 64))
	}

	out := make([]device.RawDevice, 0, len(entries))
	for _, e := range entries {
		out = append(out, device.RawDevice{
			ID:      string(e.SID),
			Name:    e.Name,
			Type:    e.Type,
			Address: string(e.Address),
			State:   e.State,
		})
	}
	return out, nil
}

// buildQuery encodes key/value pairs preserving their order.
func buildQuery(kv ...string) string {
	var sb strings.Builder
	for i := 0; i+1 < len(kv); i += 2 {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(url.QueryEscape(kv[i]))
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(kv[i+1]))
	}
	return sb.String()
}

// redact strips the query string, which carries the gateway password,
// from transport errors.
func redact(err error) error {
	var ue *url.Error
	if !errors.As(err, &ue) {
		return err
	}
	cpy := *ue
	if u, perr := url.Parse(ue.URL); perr == nil {
		u.RawQuery = ""
		cpy.URL = u.String()
	} else {
		cpy.URL = "<redacted>"
	}
	return &cpy
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
