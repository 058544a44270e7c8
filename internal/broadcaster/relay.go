package broadcaster

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/sourcegraph/conc"

	"github.com/rodolfoescobarrios/inmersion-mrg/internal/codec"
	"github.com/rodolfoescobarrios/inmersion-mrg/internal/registry"
)

var ErrRelayClosed = errors.New("relay closed")

type envelope struct {
	Exclude string          `json:"exclude,omitempty"`
	Frame   json.RawMessage `json:"frame"`
}

// Relay publishes room events to Redis and delivers what it receives back to
// the members joined in this process. A process is subscribed to a room's
// channel only while it has at least one local member in that room.
type Relay struct {
	rc       *redis.Client
	registry *registry.Registry
	subs     map[string]*redis.PubSub
	closed   bool
	mu       sync.Mutex
	wg       conc.WaitGroup
	logger   *slog.Logger
}

func NewRelay(rc *redis.Client, reg *registry.Registry, logger *slog.Logger) *Relay {
	return &Relay{
		rc:       rc,
		registry: reg,
		subs:     make(map[string]*redis.PubSub),
		logger:   logger,
	}
}

func (r *Relay) getChannel(roomID string) string {
	return "room:" + roomID + ":events"
}

// Join returns once the room subscription is confirmed, so events published
// after Join are not missed.
func (r *Relay) Join(ctx context.Context, roomID string, m registry.Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRelayClosed
	}

	if _, ok := r.subs[roomID]; !ok {
		ps := r.rc.Subscribe(ctx, r.getChannel(roomID))
		if _, err := ps.Receive(ctx); err != nil {
			ps.Close()
			return fmt.Errorf("failed to subscribe to room: %w", err)
		}

		r.subs[roomID] = ps
		ch := ps.Channel()
		r.wg.Go(func() {
			r.forward(roomID, ch)
		})
		r.logger.DebugContext(ctx, "subscribed to room", "room_id", roomID)
	}

	count := r.registry.Join(roomID, m)
	r.logger.InfoContext(ctx, "member joined room", "room_id", roomID, "member_id", m.ID(), "members", count)
	return nil
}

func (r *Relay) Leave(ctx context.Context, roomID string, m registry.Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := r.registry.Leave(roomID, m)
	r.logger.InfoContext(ctx, "member left room", "room_id", roomID, "member_id", m.ID(), "members", count)

	if count > 0 {
		return nil
	}

	ps, ok := r.subs[roomID]
	if !ok {
		return nil
	}
	delete(r.subs, roomID)

	if err := ps.Close(); err != nil {
		return fmt.Errorf("failed to unsubscribe from room: %w", err)
	}
	r.logger.DebugContext(ctx, "unsubscribed from room", "room_id", roomID)

	return nil
}

func (r *Relay) Publish(ctx context.Context, roomID string, e codec.Event, exclude registry.Member) error {
	frame, err := codec.Encode(e)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	payload, err := json.Marshal(envelope{
		Exclude: memberID(exclude),
		Frame:   frame,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	receivers, err := r.rc.Publish(ctx, r.getChannel(roomID), payload).Result()
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	r.logger.DebugContext(ctx, "event published", "room_id", roomID, "processes", receivers)
	return nil
}

func (r *Relay) forward(roomID string, ch <-chan *redis.Message) {
	ctx := context.Background()
	for msg := range ch {
		var env envelope
		if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
			r.logger.WarnContext(ctx, "failed to unmarshal relayed event", "room_id", roomID, "error", err)
			continue
		}

		deliver(ctx, r.logger, roomID, r.registry.MembersOf(roomID), env.Frame, env.Exclude)
	}
}

func (r *Relay) Stats() (rooms, members int) {
	return r.registry.Stats()
}

// Close drops every subscription and waits for the forwarders to stop.
func (r *Relay) Close() error {
	r.mu.Lock()
	r.closed = true
	var errs []error
	for roomID, ps := range r.subs {
		if err := ps.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(r.subs, roomID)
	}
	r.mu.Unlock()

	r.wg.Wait()
	return errors.Join(errs...)
}
