package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/satriahrh/voicecoach/domain"
	"github.com/satriahrh/voicecoach/domain/repositories"
)

const (
	// DefaultURL is the hosted voice agent endpoint
	DefaultURL = "wss://agent.deepgram.com/v1/agent/converse"

	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next message or pong from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Time Close waits for the peer to finish the closing handshake.
	closeWait = 2 * time.Second

	// Maximum message size allowed from peer.
	maxMessageSize = 1024 * 1024

	sendBufferSize  = 256
	eventBufferSize = 256

	defaultHandshakeTimeout = 15 * time.Second
)

// ErrSendBufferFull is returned when an audio frame cannot be queued without blocking
var ErrSendBufferFull = errors.New("agent send buffer full")

// Config configures the agent dialer
type Config struct {
	URL              string
	HandshakeTimeout time.Duration
}

// Dialer opens agent sockets authenticated with the ["token", key] subprotocol pair
type Dialer struct {
	url    string
	dialer websocket.Dialer
	logger *zap.Logger
}

// NewDialer creates a new agent dialer
func NewDialer(cfg Config, logger *zap.Logger) *Dialer {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = defaultHandshakeTimeout
	}
	return &Dialer{
		url: cfg.URL,
		dialer: websocket.Dialer{
			Proxy:            websocket.DefaultDialer.Proxy,
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
		logger: logger,
	}
}

// Dial opens the socket. It returns once the handshake has completed.
func (d *Dialer) Dial(ctx context.Context, token string) (repositories.AgentConn, error) {
	dialer := d.dialer
	dialer.Subprotocols = []string{"token", token}

	ws, resp, err := dialer.DialContext(ctx, d.url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to dial agent (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("failed to dial agent: %w", err)
	}

	d.logger.Info("Agent socket connected", zap.String("url", d.url))

	c := newConn(ws, d.logger)
	go c.writePump()
	go c.readPump()
	return c, nil
}

type writeData struct {
	// Type is websocket.TextMessage or websocket.BinaryMessage
	Type    int
	Payload []byte
}

// Conn is a live agent socket. All writes go through a single write pump so
// messages reach the wire in the order they were queued.
type Conn struct {
	ws     *websocket.Conn
	logger *zap.Logger

	send   chan writeData
	events chan domain.AgentEvent

	// closing is closed by Close, done by the read pump on exit.
	closing   chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	ready  atomic.Bool
	closed atomic.Bool
	err    error
}

func newConn(ws *websocket.Conn, logger *zap.Logger) *Conn {
	return &Conn{
		ws:      ws,
		logger:  logger,
		send:    make(chan writeData, sendBufferSize),
		events:  make(chan domain.AgentEvent, eventBufferSize),
		closing: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// SendSettings queues the Settings message and opens the socket for audio
func (c *Conn) SendSettings(settings domain.Settings) error {
	if c.closed.Load() {
		return domain.ErrNotOpen
	}
	if settings.Type == "" {
		settings.Type = domain.MessageTypeSettings
	}

	payload, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	select {
	case c.send <- writeData{Type: websocket.TextMessage, Payload: payload}:
	case <-c.closing:
		return domain.ErrNotOpen
	case <-c.done:
		return domain.ErrNotOpen
	}

	c.ready.Store(true)
	return nil
}

// SendAudio queues one binary frame without blocking
func (c *Conn) SendAudio(frame []byte) error {
	if !c.IsOpen() {
		return domain.ErrNotOpen
	}

	select {
	case c.send <- writeData{Type: websocket.BinaryMessage, Payload: frame}:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// IsOpen reports whether audio frames are currently accepted
func (c *Conn) IsOpen() bool {
	return c.ready.Load() && !c.closed.Load()
}

func (c *Conn) Events() <-chan domain.AgentEvent {
	return c.events
}

func (c *Conn) Err() error {
	<-c.done
	return c.err
}

// Close starts the closing handshake and waits briefly for the read side to
// finish. It is safe to call more than once.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.closing)
	})

	select {
	case <-c.done:
	case <-time.After(closeWait):
		c.ws.Close()
		<-c.done
	}
	return nil
}

// readPump pumps messages from the agent socket to the events channel.
func (c *Conn) readPump() {
	defer func() {
		c.closed.Store(true)
		close(c.events)
		close(c.done)
	}()

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.ws.ReadMessage()
		if err != nil {
			c.err = c.classify(err)
			if c.err != nil {
				c.logger.Error("Agent socket error", zap.Error(err))
			} else {
				c.logger.Info("Agent socket closed")
			}
			return
		}
		c.ws.SetReadDeadline(time.Now().Add(pongWait))

		switch messageType {
		case websocket.TextMessage:
			event, err := DecodeMessage(message)
			if err != nil {
				c.logger.Warn("Failed to decode agent message", zap.Error(err))
				continue
			}
			c.emit(event)
		case websocket.BinaryMessage:
			c.emit(domain.AudioEvent{Data: message})
		default:
			c.logger.Warn("Received unknown message type", zap.Int("type", messageType))
		}
	}
}

// writePump pumps queued messages to the agent socket.
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(message.Type, message.Payload); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.closing:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			c.ws.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			// leave the socket open so the read pump can see the peer's close frame
			select {
			case <-c.done:
			case <-time.After(closeWait):
			}
			return

		case <-c.done:
			return
		}
	}
}

func (c *Conn) emit(event domain.AgentEvent) {
	select {
	case c.events <- event:
	case <-c.closing:
	}
}

// classify maps a read error to the value returned by Err
func (c *Conn) classify(err error) error {
	select {
	case <-c.closing:
		return nil
	default:
	}

	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		switch closeErr.Code {
		case websocket.CloseNormalClosure, websocket.CloseGoingAway:
			return nil
		}
		return fmt.Errorf("%w: %w", domain.ErrSocketClosedUnexpectedly, closeErr)
	}
	return err
}
