// Package ws adapts gorilla websocket connections to session transports.
package ws

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sourcegraph/conc"

	"github.com/rodolfoescobarrios/inmersion-mrg/internal/session"
)

var ErrBinaryFrame = fmt.Errorf("binary frame: %w", session.ErrUnsupportedData)

type Config struct {
	ReadLimit int64
	// PingPeriod must be shorter than PongWait.
	PingPeriod time.Duration
	PongWait   time.Duration
	WriteWait  time.Duration
}

func DefaultConfig() Config {
	return Config{
		ReadLimit:  4096,
		PingPeriod: 54 * time.Second,
		PongWait:   60 * time.Second,
		WriteWait:  10 * time.Second,
	}
}

// Conn is a session transport over a websocket connection. Receive and Send
// may run on different goroutines, but each must only be called from one.
type Conn struct {
	ws        *websocket.Conn
	cfg       Config
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
	wg        conc.WaitGroup
}

func NewConn(ws *websocket.Conn, cfg Config) *Conn {
	c := &Conn{
		ws:   ws,
		cfg:  cfg,
		done: make(chan struct{}),
	}

	ws.SetReadLimit(cfg.ReadLimit)
	ws.SetReadDeadline(time.Now().Add(cfg.PongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(cfg.PongWait))
	})

	c.wg.Go(c.pingLoop)

	return c
}

func (c *Conn) Receive() ([]byte, error) {
	mt, data, err := c.ws.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err,
			websocket.CloseNormalClosure,
			websocket.CloseGoingAway,
			websocket.CloseNoStatusReceived,
		) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("failed to read message: %w", err)
	}

	if mt == websocket.BinaryMessage {
		return nil, ErrBinaryFrame
	}

	c.ws.SetReadDeadline(time.Now().Add(c.cfg.PongWait))

	return data, nil
}

func (c *Conn) Send(frame []byte) error {
	c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
	if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}

	return nil
}

// Close sends a close frame with code and reason, then closes the underlying
// connection. Calls after the first return the first result.
func (c *Conn) Close(code int, reason string) error {
	c.closeOnce.Do(func() {
		close(c.done)

		msg := websocket.FormatCloseMessage(code, reason)
		err := c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.cfg.WriteWait))
		if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
			c.closeErr = fmt.Errorf("failed to write close message: %w", err)
		}

		if err := c.ws.Close(); err != nil && c.closeErr == nil {
			c.closeErr = fmt.Errorf("failed to close connection: %w", err)
		}

		c.wg.Wait()
	})

	return c.closeErr
}

func (c *Conn) pingLoop() {
	ticker := time.NewTicker(c.cfg.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.cfg.WriteWait)); err != nil {
				return
			}
		}
	}
}
