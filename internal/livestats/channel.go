// Package livestats keeps a best-effort push channel to the blog API's admin
// WebSocket open and relays stats updates to an admin's browser.
package livestats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/coder/websocket"
	"github.com/sourcegraph/conc"

	"github.com/DukeRupert/inkwell/internal/domain"
	"github.com/DukeRupert/inkwell/internal/metrics"
)

// Message types exchanged with the API.
const (
	TypePing        = "ping"
	TypePong        = "pong"
	TypeStatsUpdate = "stats_update"
)

const (
	// endpointPath is appended to the configured WebSocket base URL.
	endpointPath = "/admin/ws/admin"

	maxMessageBytes = 64 << 10
	writeTimeout    = 10 * time.Second

	DefaultPingInterval   = 30 * time.Second
	DefaultReconnectDelay = 5 * time.Second
)

// Message is the envelope of every frame on the channel.
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// UpdateFunc receives each stats update. Returning an error stops the channel.
type UpdateFunc func(ctx context.Context, u domain.StatsUpdate) error

// Config holds the channel settings shared by every admin connection.
type Config struct {
	URL            string // WebSocket base URL, e.g. ws://localhost:8000/api/v1
	PingInterval   time.Duration
	ReconnectDelay time.Duration
	HTTPClient     *http.Client
	Logger         *slog.Logger
}

var errUpdateRejected = errors.New("livestats: update handler failed")

// =============================================================================
// Channel
// =============================================================================

// Channel is one admin's subscription to the stats stream.
type Channel struct {
	cfg      Config
	token    string
	onUpdate UpdateFunc
	logger   *slog.Logger
}

// NewChannel creates a channel authenticated with token.
func NewChannel(cfg Config, token string, onUpdate UpdateFunc) *Channel {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = DefaultPingInterval
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Channel{
		cfg:      cfg,
		token:    token,
		onUpdate: onUpdate,
		logger:   logger.With("component", "livestats"),
	}
}

// Run connects and keeps reconnecting after a fixed delay until ctx is
// cancelled, which returns nil. It only returns early when the update handler
// fails.
func (c *Channel) Run(ctx context.Context) error {
	endpoint, err := Endpoint(c.cfg.URL, c.token)
	if err != nil {
		return err
	}

	err = retry.Do(
		func() error {
			err := c.session(ctx, endpoint)
			if errors.Is(err, errUpdateRejected) {
				return retry.Unrecoverable(err)
			}
			return err
		},
		retry.Context(ctx),
		retry.Attempts(0),
		retry.Delay(c.cfg.ReconnectDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			metrics.LiveStatsRetried()
			c.logger.Info("live stats disconnected, reconnecting",
				"attempt", n+1,
				"delay", c.cfg.ReconnectDelay,
				"error", err,
			)
		}),
	)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// session runs a single connection until it drops.
func (c *Channel) session(ctx context.Context, endpoint string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	conn, _, err := websocket.Dial(ctx, endpoint, &websocket.DialOptions{
		HTTPClient: c.cfg.HTTPClient,
	})
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.CloseNow()
	conn.SetReadLimit(maxMessageBytes)

	metrics.LiveStatsOpened()
	defer metrics.LiveStatsClosed()
	c.logger.Debug("live stats connected")

	sessCtx, cancel := context.WithCancel(ctx)
	var wg conc.WaitGroup
	defer wg.Wait()
	defer cancel()

	wg.Go(func() { c.pingLoop(sessCtx, cancel, conn) })

	for {
		_, data, err := conn.Read(sessCtx)
		if err != nil {
			if ctx.Err() != nil {
				_ = conn.Close(websocket.StatusNormalClosure, "")
				return ctx.Err()
			}
			return fmt.Errorf("read: %w", err)
		}

		if err := c.handle(ctx, data); err != nil {
			_ = conn.Close(websocket.StatusNormalClosure, "")
			return err
		}
	}
}

// pingLoop sends an application-level ping every PingInterval. A failed write
// cancels the session so the read loop returns and the channel reconnects.
func (c *Channel) pingLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	ping, _ := json.Marshal(Message{Type: TypePing})
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			wctx, wcancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Write(wctx, websocket.MessageText, ping)
			wcancel()
			if err != nil {
				if ctx.Err() == nil {
					c.logger.Warn("live stats ping failed", "error", err)
				}
				cancel()
				return
			}
		}
	}
}

// handle dispatches one frame. Malformed frames are logged and skipped.
func (c *Channel) handle(ctx context.Context, data []byte) error {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		metrics.LiveStatsMessage("malformed")
		c.logger.Warn("malformed live stats message", "error", err)
		return nil
	}
	metrics.LiveStatsMessage(msg.Type)

	if msg.Type != TypeStatsUpdate {
		return nil
	}

	var update domain.StatsUpdate
	if err := json.Unmarshal(msg.Data, &update); err != nil {
		metrics.LiveStatsMessage("malformed")
		c.logger.Warn("malformed stats update", "error", err)
		return nil
	}

	if c.onUpdate == nil || update.Empty() {
		return nil
	}
	if err := c.onUpdate(ctx, update); err != nil {
		return fmt.Errorf("%w: %w", errUpdateRejected, err)
	}
	return nil
}

// Endpoint builds the admin stats URL for token from the WebSocket base URL.
func Endpoint(base, token string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse stats url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return "", fmt.Errorf("stats url must use ws or wss, got %q", u.Scheme)
	}

	u.Path = strings.TrimRight(u.Path, "/") + endpointPath
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
