// Package api is the frontend's only way to reach the blog API server.
//
// The Gateway is the shared transport: it builds requests, attaches the bearer
// token and classifies responses into an Outcome. A Client binds the Gateway to
// one browser session and applies the global failure policy: an unauthorized
// response on an authenticated call clears the session, once.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/DukeRupert/inkwell/internal/metrics"
)

// maxResponseBytes bounds how much of an upstream body is read.
const maxResponseBytes = 4 << 20

// =============================================================================
// Request / Outcome
// =============================================================================

// FormField is one field of a multipart body.
type FormField struct {
	Name  string
	Value string
}

// Request describes one upstream call. It is built fresh per call and never
// stored.
type Request struct {
	Method string
	Path   string     // Relative to the API base URL, e.g. "/posts/"
	Query  url.Values // Optional query string

	JSON      any         // JSON body
	Form      url.Values  // application/x-www-form-urlencoded body
	Multipart []FormField // multipart/form-data body

	// Public requests carry no bearer token and never tear the session down.
	// Used for the credential exchange and registration.
	Public bool
}

// Kind classifies an Outcome.
type Kind int

const (
	KindOK Kind = iota
	KindUnauthorized
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindUnauthorized:
		return "unauthorized"
	default:
		return "error"
	}
}

// Outcome is the result of one upstream call: Ok(body), Unauthorized, or
// Error(status, detail). Network failures are errors with Status 0 and Err set.
type Outcome struct {
	Kind   Kind
	Status int
	Body   []byte
	Detail string // Server-supplied detail text, when present
	Err    error  // Transport or decoding failure
}

// Decode unmarshals the body of a successful outcome into v.
func (o Outcome) Decode(v any) error {
	if o.Kind != KindOK {
		return fmt.Errorf("decode %s outcome", o.Kind)
	}
	if v == nil || len(o.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(o.Body, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// =============================================================================
// Gateway
// =============================================================================

// GatewayConfig holds transport settings.
type GatewayConfig struct {
	BaseURL    string
	Timeout    time.Duration
	Logger     *slog.Logger
	HTTPClient *http.Client // Optional; overrides Timeout
}

// Gateway sends requests to the blog API. It holds no session state and is
// shared by all requests.
type Gateway struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewGateway creates a Gateway for the API at cfg.BaseURL.
func NewGateway(cfg GatewayConfig) *Gateway {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Gateway{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: hc,
		logger:     logger,
	}
}

// Send performs req with token as the bearer credential (omitted when empty).
// It never retries.
func (g *Gateway) Send(ctx context.Context, token string, req Request) Outcome {
	start := time.Now()

	httpReq, err := g.build(ctx, token, req)
	if err != nil {
		return Outcome{Kind: KindError, Err: err}
	}

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		g.observe(req, 0, start, err)
		return Outcome{Kind: KindError, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		g.observe(req, resp.StatusCode, start, err)
		return Outcome{Kind: KindError, Status: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}

	g.observe(req, resp.StatusCode, start, nil)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return Outcome{Kind: KindOK, Status: resp.StatusCode, Body: body}
	case resp.StatusCode == http.StatusUnauthorized:
		return Outcome{Kind: KindUnauthorized, Status: resp.StatusCode, Body: body, Detail: parseDetail(body)}
	default:
		return Outcome{Kind: KindError, Status: resp.StatusCode, Body: body, Detail: parseDetail(body)}
	}
}

func (g *Gateway) build(ctx context.Context, token string, req Request) (*http.Request, error) {
	target := g.baseURL + req.Path
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var (
		body        io.Reader
		contentType = "application/json"
	)

	switch {
	case req.Multipart != nil:
		buf := &bytes.Buffer{}
		mw := multipart.NewWriter(buf)
		for _, f := range req.Multipart {
			if err := mw.WriteField(f.Name, f.Value); err != nil {
				return nil, fmt.Errorf("write multipart field %s: %w", f.Name, err)
			}
		}
		if err := mw.Close(); err != nil {
			return nil, fmt.Errorf("close multipart body: %w", err)
		}
		body = buf
		// The boundary comes from the writer; never force JSON here.
		contentType = mw.FormDataContentType()
	case req.Form != nil:
		body = strings.NewReader(req.Form.Encode())
		contentType = "application/x-www-form-urlencoded"
	case req.JSON != nil:
		b, err := json.Marshal(req.JSON)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(b)
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")
	if token != "" && !req.Public {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	if id := RequestIDFromContext(ctx); id != "" {
		httpReq.Header.Set("X-Request-ID", id)
	}

	return httpReq, nil
}

func (g *Gateway) observe(req Request, status int, start time.Time, err error) {
	duration := time.Since(start)

	class := "error"
	if status > 0 {
		class = strconv.Itoa(status/100) + "xx"
	}
	metrics.APIRequestsTotal.WithLabelValues(req.Method, class).Inc()
	metrics.APIRequestDuration.WithLabelValues(req.Method).Observe(duration.Seconds())

	attrs := []any{
		"method", req.Method,
		"path", req.Path,
		"status", status,
		"duration_ms", duration.Milliseconds(),
	}
	if err != nil {
		g.logger.Warn("api request failed", append(attrs, "error", err)...)
		return
	}
	g.logger.Debug("api request", attrs...)
}

// parseDetail extracts the API's "detail" field. Validation failures carry a
// list of {msg} objects, which are joined.
func parseDetail(body []byte) string {
	if len(body) == 0 {
		return ""
	}

	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Detail) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(envelope.Detail, &s); err == nil {
		return s
	}

	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(envelope.Detail, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			if it.Msg != "" {
				msgs = append(msgs, it.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}

	return ""
}

// parseFieldDetail maps a validation detail list to field -> message. The
// field is the last string in each item's loc, e.g. ["body","title"].
func parseFieldDetail(body []byte) map[string]string {
	var envelope struct {
		Detail []struct {
			Loc []any  `json:"loc"`
			Msg string `json:"msg"`
		} `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil
	}

	var fields map[string]string
	for _, item := range envelope.Detail {
		if len(item.Loc) == 0 || item.Msg == "" {
			continue
		}
		name, ok := item.Loc[len(item.Loc)-1].(string)
		if !ok {
			continue
		}
		if fields == nil {
			fields = make(map[string]string)
		}
		if _, seen := fields[name]; !seen {
			fields[name] = item.Msg
		}
	}
	return fields
}

// =============================================================================
// Request IDs
// =============================================================================

type requestIDKey struct{}

// WithRequestID returns a context carrying the inbound request ID, forwarded
// upstream as X-Request-ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the request ID stored by WithRequestID.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// =============================================================================
// Errors
// =============================================================================

// ErrSessionExpired is returned by Client calls that hit an unauthorized
// response. The session has already been cleared when it is returned.
var ErrSessionExpired = errors.New("api: session expired")

// StatusError carries the upstream status and detail of a failed call.
type StatusError struct {
	Status int
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("api: status %d: %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("api: status %d", e.Status)
}

// StatusOf returns the upstream status carried by err, or 0.
func StatusOf(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status
	}
	return 0
}

// DetailOf returns the server detail carried by err, or "".
func DetailOf(err error) string {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Detail
	}
	return ""
}
