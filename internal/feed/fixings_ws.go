// Package feed ingests rate and index fixings from a market-data WebSocket
// stream and makes them available to the simulation observers.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/quantfossa/flowsim/internal/domain"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// pingPeriod sends pings to the peer at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// reconnectDelay is the base delay before attempting to reconnect.
	reconnectDelay = 2 * time.Second

	// maxReconnectDelay caps the exponential backoff for reconnection.
	maxReconnectDelay = 60 * time.Second
)

// Fixing is one dated observation of a market object published by the
// market-data service.
type Fixing struct {
	ID    string    `json:"id"`
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

// FixingHandler is called for each fixing received from the stream.
type FixingHandler func(ctx context.Context, fx Fixing)

// subscribeCommand is the JSON command sent to subscribe to market objects.
type subscribeCommand struct {
	Type string   `json:"type"`
	IDs  []string `json:"ids"`
}

// FixingsWS connects to a fixings WebSocket endpoint, subscribes to the
// configured market object codes, and invokes the handler for each fixing.
// It reconnects with exponential backoff on disconnect and restores the
// subscription on every new connection.
type FixingsWS struct {
	wsURL     string
	ids       []string
	onFixing  FixingHandler
	logger    *slog.Logger
	closeOnce sync.Once
	done      chan struct{}
}

// NewFixingsWS creates a feed that subscribes to the given market object
// codes.
func NewFixingsWS(wsURL string, ids []string, onFixing FixingHandler, logger *slog.Logger) *FixingsWS {
	return &FixingsWS{
		wsURL:    wsURL,
		ids:      ids,
		onFixing: onFixing,
		logger:   logger.With(slog.String("component", "fixings_ws")),
		done:     make(chan struct{}),
	}
}

// Run connects and consumes fixings until ctx is cancelled or Close is
// called. Disconnects trigger reconnection with exponential backoff.
func (f *FixingsWS) Run(ctx context.Context) error {
	if len(f.ids) == 0 {
		f.logger.Info("no market objects to subscribe, exiting")
		return nil
	}

	delay := reconnectDelay
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.done:
			return nil
		default:
		}

		err := f.runConnection(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		f.logger.Warn("fixings ws disconnected, reconnecting",
			slog.String("error", err.Error()),
			slog.Duration("delay", delay),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.done:
			return nil
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

// runConnection performs one connect/subscribe/read cycle. A nil return
// means the feed was closed deliberately.
func (f *FixingsWS) runConnection(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, f.wsURL, nil)
	if err != nil {
		return fmt.Errorf("feed: connect %s: %w", f.wsURL, err)
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	cmd := subscribeCommand{Type: "subscribe", IDs: f.ids}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(cmd); err != nil {
		return fmt.Errorf("feed: subscribe: %w", err)
	}
	f.logger.Info("fixings ws subscribed", slog.Int("market_objects", len(f.ids)))

	// Ping loop keeps the connection alive; the read deadline enforces the
	// pong in return.
	pingCtx, cancelPing := context.WithCancel(ctx)
	defer cancelPing()
	go f.pingLoop(pingCtx, conn)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.done:
			return nil
		default:
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-f.done:
				return nil
			default:
			}
			return fmt.Errorf("feed: read: %w (%w)", err, domain.ErrWSDisconnect)
		}

		var fx Fixing
		if err := json.Unmarshal(data, &fx); err != nil {
			f.logger.Debug("fixings ws skipping unparseable message",
				slog.Int("payload_len", len(data)),
			)
			continue
		}
		if fx.ID == "" {
			continue
		}
		if fx.Time.IsZero() {
			fx.Time = time.Now().UTC()
		}
		if f.onFixing != nil {
			f.onFixing(ctx, fx)
		}
	}
}

func (f *FixingsWS) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Close stops the feed.
func (f *FixingsWS) Close() {
	f.closeOnce.Do(func() { close(f.done) })
}
