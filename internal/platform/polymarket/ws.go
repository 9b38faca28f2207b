package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/marketlab/bookkeeper/internal/domain"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// pingPeriod sends pings to the peer at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

// EventHandler receives each decoded market-data event.
type EventHandler func(domain.Event)

// RawHandler receives every raw inbound frame before decoding. Used by the
// event archiver.
type RawHandler func(raw []byte)

// FaultHandler receives frame/element decode failures. Decode failures are
// reported and dropped; they never stop the read loop.
type FaultHandler func(err error, raw []byte)

// subscribeCommand is the market-channel subscription payload.
type subscribeCommand struct {
	AssetIDs []string `json:"assets_ids"`
	Type     string   `json:"type"`
}

// WSClient is a WebSocket client for the Polymarket CLOB market channel. It
// manages a single connection and pushes decoded events to the registered
// handlers; reconnection policy belongs to the owning feed.
type WSClient struct {
	wsURL string

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
	done   chan struct{}

	// writeMu serializes writes; gorilla permits one concurrent writer.
	writeMu sync.Mutex

	onEvent EventHandler
	onRaw   RawHandler
	onFault FaultHandler
}

// NewWSClient creates a client for the given market-channel endpoint, e.g.
// "wss://ws-subscriptions-clob.polymarket.com/ws/market".
func NewWSClient(wsURL string) *WSClient {
	return &WSClient{
		wsURL: wsURL,
		done:  make(chan struct{}),
	}
}

// OnEvent registers the decoded-event handler. Must be called before Connect.
func (w *WSClient) OnEvent(h EventHandler) { w.onEvent = h }

// OnRaw registers the raw-frame handler. Must be called before Connect.
func (w *WSClient) OnRaw(h RawHandler) { w.onRaw = h }

// OnFault registers the decode-failure handler. Must be called before Connect.
func (w *WSClient) OnFault(h FaultHandler) { w.onFault = h }

// Connect establishes the WebSocket connection and starts the read and ping
// loops. Run blocks separately; Connect returns once the socket is up.
func (w *WSClient) Connect(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("polymarket/ws: %w", domain.ErrWSDisconnect)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, w.wsURL, nil)
	if err != nil {
		return fmt.Errorf("polymarket/ws: connect: %w", err)
	}
	w.conn = conn

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go w.pingLoop(conn)
	return nil
}

// Subscribe sends the market-channel subscription for the given asset IDs.
func (w *WSClient) Subscribe(ctx context.Context, assetIDs []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.conn == nil {
		return fmt.Errorf("polymarket/ws: not connected")
	}

	cmd := subscribeCommand{AssetIDs: assetIDs, Type: "market"}
	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("polymarket/ws: marshal subscribe: %w", err)
	}

	if err := w.writeMessage(w.conn, websocket.TextMessage, data); err != nil {
		return fmt.Errorf("polymarket/ws: subscribe: %w", err)
	}
	return nil
}

// ReadLoop reads frames until the connection drops or the client is closed,
// decoding each frame and dispatching the events. It returns the read error
// so the owning feed can decide whether to reconnect.
func (w *WSClient) ReadLoop() error {
	w.mu.Lock()
	conn := w.conn
	w.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("polymarket/ws: not connected")
	}

	for {
		select {
		case <-w.done:
			return nil
		default:
		}

		_, raw, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-w.done:
				return nil
			default:
			}
			return fmt.Errorf("polymarket/ws: read: %w", err)
		}
		w.handleFrame(raw)
	}
}

func (w *WSClient) handleFrame(raw []byte) {
	if w.onRaw != nil {
		w.onRaw(raw)
	}

	events, errs := DecodeFrames(raw)
	if w.onFault != nil {
		for _, err := range errs {
			w.onFault(err, raw)
		}
	}
	if w.onEvent != nil {
		for _, ev := range events {
			w.onEvent(ev)
		}
	}
}

// pingLoop sends periodic ping messages to keep the connection alive.
func (w *WSClient) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			if err := w.writeMessage(conn, websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Close shuts down the connection and stops the loops. Safe to call more
// than once.
func (w *WSClient) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	close(w.done)

	if w.conn != nil {
		_ = w.writeMessage(w.conn, websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		return w.conn.Close()
	}
	return nil
}

// writeMessage serializes writes across Subscribe, the ping loop, and Close.
func (w *WSClient) writeMessage(conn *websocket.Conn, messageType int, data []byte) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(messageType, data)
}
