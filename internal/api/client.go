package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/DukeRupert/inkwell/internal/domain"
	"github.com/DukeRupert/inkwell/internal/metrics"
	"github.com/DukeRupert/inkwell/internal/session"
)

// Client is the Gateway bound to one session. It is created per browser
// request and applies the 401 policy against that request's Store.
type Client struct {
	gw    *Gateway
	store session.Store

	teardownOnce sync.Once
	tornDown     atomic.Bool
}

// NewClient binds gw to store.
func NewClient(gw *Gateway, store session.Store) *Client {
	return &Client{gw: gw, store: store}
}

// Store returns the session store the client reads its token from.
func (c *Client) Store() session.Store {
	return c.store
}

// Logger returns the gateway's logger.
func (c *Client) Logger() *slog.Logger {
	return c.gw.logger
}

// Do sends req with the session token. An unauthorized outcome on a
// non-public request tears the session down before Do returns.
func (c *Client) Do(ctx context.Context, req Request) Outcome {
	token := ""
	if !req.Public {
		token, _ = c.store.Token()
	}

	out := c.gw.Send(ctx, token, req)
	if out.Kind == KindUnauthorized && !req.Public {
		c.teardown()
	}
	return out
}

// TornDown reports whether an unauthorized response has cleared the session.
func (c *Client) TornDown() bool {
	return c.tornDown.Load()
}

// teardown clears the store at most once per Client. It reports whether this
// call performed the teardown.
func (c *Client) teardown() bool {
	first := false
	c.teardownOnce.Do(func() {
		c.store.Clear()
		c.tornDown.Store(true)
		metrics.SessionTeardowns.Inc()
		c.gw.logger.Info("session torn down after unauthorized response")
		first = true
	})
	return first
}

// call performs req and decodes a successful body into out (which may be nil).
// Failures come back as *domain.Error values tagged with op.
func (c *Client) call(ctx context.Context, op string, req Request, out any) error {
	res := c.Do(ctx, req)
	if err := outcomeError(op, req, res); err != nil {
		return err
	}
	if err := res.Decode(out); err != nil {
		return domain.Unavailable(err, op, "The blog service returned an unexpected response.")
	}
	return nil
}

// outcomeError converts a non-OK outcome into an application error.
func outcomeError(op string, req Request, res Outcome) error {
	switch res.Kind {
	case KindOK:
		return nil
	case KindUnauthorized:
		if req.Public {
			return domain.Wrap(&StatusError{Status: res.Status, Detail: res.Detail},
				domain.EUNAUTHORIZED, op, messageFor(res))
		}
		return domain.Wrap(ErrSessionExpired, domain.EUNAUTHORIZED, op, "Your session has expired. Please sign in again.")
	}

	if res.Status == 0 {
		err := res.Err
		if err == nil {
			err = errors.New("no response")
		}
		return domain.Unavailable(err, op, "The blog service is unavailable. Please try again.")
	}

	var err error = &StatusError{Status: res.Status, Detail: res.Detail}
	if res.Status == http.StatusUnprocessableEntity {
		if fields := parseFieldDetail(res.Body); fields != nil {
			err = &domain.ValidationError{Op: op, Fields: fields, Err: err}
		}
	}
	return domain.Wrap(err, domain.CodeForStatus(res.Status), op, messageFor(res))
}

func messageFor(res Outcome) string {
	if res.Detail != "" {
		return res.Detail
	}
	return http.StatusText(res.Status)
}
