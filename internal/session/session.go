// Package session runs one participant connection bound to one room.
//
// A Session joins its room when served, turns every inbound frame into a
// published event and writes the frames delivered to it through a bounded
// buffer drained by its own writer goroutine. Close is safe to call from any
// goroutine and leaves the room exactly once.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc"

	"github.com/rodolfoescobarrios/inmersion-mrg/internal/codec"
	"github.com/rodolfoescobarrios/inmersion-mrg/internal/registry"
	"github.com/rodolfoescobarrios/inmersion-mrg/pkg/ctxlogger"
)

var (
	ErrClosed         = errors.New("session closed")
	ErrSendBufferFull = errors.New("send buffer full")
	// ErrUnsupportedData is returned by transports for frames that can never
	// be decoded, such as binary frames.
	ErrUnsupportedData = errors.New("unsupported data")
)

// Close codes sent to the peer.
const (
	CloseNormal          = 1000
	CloseGoingAway       = 1001
	CloseUnsupportedData = 1003
	CloseInvalidPayload  = 1007
	CloseInternalError   = 1011
)

const (
	DefaultSendBuffer = 256
	leaveTimeout      = 5 * time.Second
)

type State int32

const (
	StateConnecting State = iota
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Transport is the connection a session reads frames from and writes frames
// to. Receive returns io.EOF once the peer closed the connection cleanly.
type Transport interface {
	Receive() ([]byte, error)
	Send(frame []byte) error
	Close(code int, reason string) error
}

type iBroadcaster interface {
	Join(ctx context.Context, roomID string, m registry.Member) error
	Leave(ctx context.Context, roomID string, m registry.Member) error
	Publish(ctx context.Context, roomID string, e codec.Event, exclude registry.Member) error
}

type Params struct {
	RoomID        string
	Transport     Transport
	Broadcaster   iBroadcaster
	ExcludeSender bool
	SendBuffer    int
	Logger        *slog.Logger
}

type Session struct {
	id            string
	roomID        string
	transport     Transport
	broadcaster   iBroadcaster
	excludeSender bool
	logger        *slog.Logger

	send  chan []byte
	done  chan struct{}
	state atomic.Int32

	// mu orders joining against closing so a session closed while joining
	// never stays registered.
	mu        sync.Mutex
	closeOnce sync.Once
	wg        conc.WaitGroup
}

func New(params *Params) *Session {
	sendBuffer := params.SendBuffer
	if sendBuffer < 1 {
		sendBuffer = DefaultSendBuffer
	}

	return &Session{
		id:            uuid.NewString(),
		roomID:        params.RoomID,
		transport:     params.Transport,
		broadcaster:   params.Broadcaster,
		excludeSender: params.ExcludeSender,
		logger:        params.Logger,
		send:          make(chan []byte, sendBuffer),
		done:          make(chan struct{}),
	}
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) RoomID() string {
	return s.roomID
}

func (s *Session) State() State {
	return State(s.state.Load())
}

// Done is closed once the session is closed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Send queues frame for the writer without blocking.
func (s *Session) Send(frame []byte) error {
	select {
	case <-s.done:
		return ErrClosed
	default:
	}

	select {
	case s.send <- frame:
		return nil
	default:
		return ErrSendBufferFull
	}
}

func (s *Session) Close() {
	s.closeWith(CloseNormal, "")
}

func (s *Session) closeWith(code int, reason string) {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		wasActive := s.State() == StateActive
		s.state.Store(int32(StateClosed))
		close(s.done)
		s.mu.Unlock()

		ctx := ctxlogger.AppendCtx(context.Background(), slog.String("session_id", s.id))
		ctx = ctxlogger.AppendCtx(ctx, slog.String("room_id", s.roomID))

		if wasActive {
			leaveCtx, cancel := context.WithTimeout(ctx, leaveTimeout)
			if err := s.broadcaster.Leave(leaveCtx, s.roomID, s); err != nil {
				s.logger.WarnContext(ctx, "failed to leave room", "error", err)
			}
			cancel()
		}

		if err := s.transport.Close(code, reason); err != nil {
			s.logger.DebugContext(ctx, "failed to close transport", "error", err)
		}

		s.logger.InfoContext(ctx, "session closed", "code", code, "reason", reason)
	})
}

// Serve joins the room and reads frames until the transport ends or the
// session is closed. Cancelling ctx closes the session with a going away code.
func (s *Session) Serve(ctx context.Context) error {
	ctx = ctxlogger.AppendCtx(ctx, slog.String("session_id", s.id))
	ctx = ctxlogger.AppendCtx(ctx, slog.String("room_id", s.roomID))

	if err := s.join(ctx); err != nil {
		s.closeWith(CloseInternalError, "failed to join room")
		return err
	}

	stop := context.AfterFunc(ctx, func() {
		s.closeWith(CloseGoingAway, "server shutting down")
	})
	defer stop()

	s.wg.Go(s.writeLoop)
	defer s.wg.Wait()

	return s.readLoop(ctx)
}

func (s *Session) join(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State() == StateClosed {
		return ErrClosed
	}

	if err := s.broadcaster.Join(ctx, s.roomID, s); err != nil {
		return fmt.Errorf("failed to join room: %w", err)
	}
	s.state.Store(int32(StateActive))

	return nil
}

func (s *Session) readLoop(ctx context.Context) error {
	for {
		frame, err := s.transport.Receive()
		if err != nil {
			return s.handleReceiveError(ctx, err)
		}

		if err := s.handleFrame(ctx, frame); err != nil {
			return err
		}
	}
}

func (s *Session) handleReceiveError(ctx context.Context, err error) error {
	switch {
	case s.State() == StateClosed:
		return nil
	case errors.Is(err, io.EOF):
		s.logger.DebugContext(ctx, "peer closed connection")
		s.Close()
		return nil
	case errors.Is(err, ErrUnsupportedData):
		s.logger.InfoContext(ctx, "unsupported frame, closing session", "error", err)
		s.closeWith(CloseUnsupportedData, "unsupported data")
		return fmt.Errorf("failed to receive frame: %w", err)
	default:
		s.logger.InfoContext(ctx, "failed to receive frame", "error", err)
		s.Close()
		return fmt.Errorf("failed to receive frame: %w", err)
	}
}

func (s *Session) handleFrame(ctx context.Context, frame []byte) error {
	ctx = ctxlogger.AppendCtx(ctx, slog.String("ws_request_id", uuid.Must(uuid.NewV7()).String()))
	s.logger.DebugContext(ctx, "frame received", "size", len(frame))

	event, err := codec.Parse(frame)
	if err != nil {
		if codec.IsFatal(err) {
			s.logger.InfoContext(ctx, "malformed frame, closing session", "error", err)
			s.closeWith(CloseInvalidPayload, "malformed payload")
			return fmt.Errorf("failed to parse frame: %w", err)
		}

		s.logger.InfoContext(ctx, "invalid command dropped", "error", err)
		return nil
	}

	var exclude registry.Member
	if s.excludeSender {
		exclude = s
	}

	if err := s.broadcaster.Publish(ctx, s.roomID, event, exclude); err != nil {
		s.logger.WarnContext(ctx, "failed to publish event", "error", err)
	}

	return nil
}

func (s *Session) writeLoop() {
	for {
		select {
		case <-s.done:
			return
		case frame := <-s.send:
			if err := s.transport.Send(frame); err != nil {
				s.logger.Info("failed to write frame, closing session", "session_id", s.id, "error", err)
				s.Close()
				return
			}
		}
	}
}
