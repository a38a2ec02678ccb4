package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	apperrors "github.com/SAP-F-2025/marking-service/internal/errors"
)

const (
	writeWait          = 10 * time.Second
	defaultConnectWait = 3 * time.Second
	eventBuffer        = 64
)

// Conn is the part of *websocket.Conn the session uses.
type Conn interface {
	ReadJSON(v interface{}) error
	WriteJSON(v interface{}) error
	Close() error
}

// Dialer opens a connection to the marking service.
type Dialer func(ctx context.Context, url string) (Conn, error)

// WebsocketDialer adapts a gorilla dialer.
func WebsocketDialer(d *websocket.Dialer) Dialer {
	if d == nil {
		d = websocket.DefaultDialer
	}
	return func(ctx context.Context, url string) (Conn, error) {
		conn, resp, err := d.DialContext(ctx, url, nil)
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
}

// Config holds session settings.
type Config struct {
	URL             string
	ConnectWait     time.Duration
	SpecificationID string
}

// Session is one long-lived connection to the remote marker. It serves every
// in-flight question; inbound events are delivered on Events in arrival order.
type Session struct {
	cfg    Config
	dial   Dialer
	logger *slog.Logger

	dialMu  sync.Mutex // serializes connects
	writeMu sync.Mutex // one writer at a time

	mu     sync.Mutex
	conn   Conn
	closed bool

	events chan Event
	done   chan struct{}
}

// NewSession creates a disconnected session. Nothing is dialed until the
// first EnsureConnected or Send.
func NewSession(cfg Config, dial Dialer, logger *slog.Logger) *Session {
	if cfg.ConnectWait <= 0 {
		cfg.ConnectWait = defaultConnectWait
	}
	if dial == nil {
		dial = WebsocketDialer(nil)
	}
	return &Session{
		cfg:    cfg,
		dial:   dial,
		logger: logger.With("component", "marking_channel"),
		events: make(chan Event, eventBuffer),
		done:   make(chan struct{}),
	}
}

// Events delivers decoded inbound events until the session is closed.
func (s *Session) Events() <-chan Event {
	return s.events
}

// Connected reports whether a live connection is held.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// EnsureConnected connects if needed, waiting at most ConnectWait.
func (s *Session) EnsureConnected(ctx context.Context) error {
	s.dialMu.Lock()
	defer s.dialMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("%w: session closed", apperrors.ErrChannelUnavailable)
	}
	if s.conn != nil {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	dialCtx, cancel := context.WithTimeout(ctx, s.cfg.ConnectWait)
	defer cancel()

	conn, err := s.dial(dialCtx, s.cfg.URL)
	if err != nil {
		return fmt.Errorf("%w: connect to %s: %v", apperrors.ErrChannelUnavailable, s.cfg.URL, err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		conn.Close()
		return fmt.Errorf("%w: session closed", apperrors.ErrChannelUnavailable)
	}
	s.conn = conn
	s.mu.Unlock()

	s.logger.Info("Connected to marking service", "url", s.cfg.URL)
	go s.readPump(conn)
	return nil
}

// Reconnect drops the current connection and dials a new one.
func (s *Session) Reconnect(ctx context.Context) error {
	s.drop(nil)
	return s.EnsureConnected(ctx)
}

// Send delivers a mark request. A failed write is retried once on a fresh
// connection; after that the send fails with ErrChannelUnavailable.
func (s *Session) Send(ctx context.Context, op MessageType, req MarkRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to encode mark request: %w", err)
	}
	msg := Message{Type: op, Payload: payload}

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			s.logger.Warn("Retrying mark request on a new connection",
				"question_id", req.ID,
				"error", lastErr)
		}
		if err := s.EnsureConnected(ctx); err != nil {
			lastErr = err
			continue
		}
		conn := s.current()
		if conn == nil {
			lastErr = fmt.Errorf("%w: connection dropped", apperrors.ErrChannelUnavailable)
			continue
		}
		if err := s.write(conn, msg); err != nil {
			lastErr = err
			s.drop(conn)
			continue
		}
		return nil
	}

	if errors.Is(lastErr, apperrors.ErrChannelUnavailable) {
		return lastErr
	}
	return fmt.Errorf("%w: %v", apperrors.ErrChannelUnavailable, lastErr)
}

// Close tears the session down and ends the read loop. Events is left open.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	conn := s.conn
	s.conn = nil
	close(s.done)
	s.mu.Unlock()

	if conn != nil {
		return conn.Close()
	}
	return nil
}

func (s *Session) current() Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn
}

func (s *Session) write(conn Conn, msg Message) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if d, ok := conn.(interface{ SetWriteDeadline(time.Time) error }); ok {
		d.SetWriteDeadline(time.Now().Add(writeWait))
	}
	return conn.WriteJSON(msg)
}

// drop forgets conn (or whatever is current when conn is nil) and closes it.
func (s *Session) drop(conn Conn) {
	s.mu.Lock()
	if s.conn == nil || (conn != nil && s.conn != conn) {
		s.mu.Unlock()
		return
	}
	current := s.conn
	s.conn = nil
	s.mu.Unlock()

	current.Close()
}

func (s *Session) readPump(conn Conn) {
	defer s.drop(conn)

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if !s.isCurrent(conn) {
				return
			}
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("Marking channel disconnected", "error", err)
			}
			s.drop(conn)
			go s.reconnectAfterDrop()
			return
		}

		event, err := DecodeEvent(msg)
		if err != nil {
			s.logger.Warn("Dropping undecodable marking event", "type", msg.Type, "error", err)
			continue
		}

		select {
		case s.events <- event:
		case <-s.done:
			return
		}
	}
}

func (s *Session) isCurrent(conn Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn == conn && !s.closed
}

func (s *Session) reconnectAfterDrop() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ConnectWait)
	defer cancel()
	if err := s.EnsureConnected(ctx); err != nil {
		s.logger.Warn("Reconnect after disconnect failed", "error", err)
	}
}
