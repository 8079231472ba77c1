package livestats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/coder/websocket"
	"github.com/sourcegraph/conc/pool"

	"github.com/DukeRupert/inkwell/internal/domain"
)

// browserReadLimit bounds frames from the dashboard; it sends none today.
const browserReadLimit = 4 << 10

var errBrowserGone = errors.New("livestats: browser disconnected")

// =============================================================================
// Relay
// =============================================================================

// Relay bridges an admin's browser WebSocket to a Channel opened with the
// admin's token. The channel lives exactly as long as the browser connection.
type Relay struct {
	cfg Config
}

// NewRelay creates a Relay whose channels use cfg.
func NewRelay(cfg Config) *Relay {
	return &Relay{cfg: cfg}
}

// Serve upgrades the request and forwards every stats update until either side
// goes away. A browser disconnect cancels the upstream channel.
func (rl *Relay) Serve(w http.ResponseWriter, r *http.Request, token string) error {
	browser, err := websocket.Accept(w, r, nil)
	if err != nil {
		return fmt.Errorf("accept: %w", err)
	}
	defer browser.CloseNow()
	browser.SetReadLimit(browserReadLimit)

	ch := NewChannel(rl.cfg, token, func(ctx context.Context, u domain.StatsUpdate) error {
		return forward(ctx, browser, u)
	})

	p := pool.New().WithContext(r.Context()).WithCancelOnError()
	p.Go(ch.Run)
	p.Go(func(ctx context.Context) error {
		for {
			if _, _, err := browser.Read(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return errBrowserGone
			}
		}
	})

	err = p.Wait()
	if errors.Is(err, errBrowserGone) {
		return nil
	}
	if err != nil {
		_ = browser.Close(websocket.StatusInternalError, "stats unavailable")
		return err
	}
	_ = browser.Close(websocket.StatusNormalClosure, "")
	return nil
}

func forward(ctx context.Context, conn *websocket.Conn, u domain.StatsUpdate) error {
	data, err := json.Marshal(u)
	if err != nil {
		return err
	}
	frame, err := json.Marshal(Message{Type: TypeStatsUpdate, Data: data})
	if err != nil {
		return err
	}

	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(wctx, websocket.MessageText, frame)
}
