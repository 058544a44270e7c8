package broadcaster

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rodolfoescobarrios/inmersion-mrg/internal/codec"
	"github.com/rodolfoescobarrios/inmersion-mrg/internal/registry"
)

// Local delivers events to the members registered in this process.
type Local struct {
	registry *registry.Registry
	logger   *slog.Logger
}

func NewLocal(reg *registry.Registry, logger *slog.Logger) *Local {
	return &Local{
		registry: reg,
		logger:   logger,
	}
}

func (b *Local) Join(ctx context.Context, roomID string, m registry.Member) error {
	count := b.registry.Join(roomID, m)
	b.logger.InfoContext(ctx, "member joined room", "room_id", roomID, "member_id", m.ID(), "members", count)
	return nil
}

func (b *Local) Leave(ctx context.Context, roomID string, m registry.Member) error {
	count := b.registry.Leave(roomID, m)
	b.logger.InfoContext(ctx, "member left room", "room_id", roomID, "member_id", m.ID(), "members", count)
	return nil
}

// Publish delivers e to every member of the room except exclude, which may be nil.
func (b *Local) Publish(ctx context.Context, roomID string, e codec.Event, exclude registry.Member) error {
	frame, err := codec.Encode(e)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	sent := deliver(ctx, b.logger, roomID, b.registry.MembersOf(roomID), frame, memberID(exclude))
	b.logger.DebugContext(ctx, "event published", "room_id", roomID, "delivered", sent)
	return nil
}

func (b *Local) Stats() (rooms, members int) {
	return b.registry.Stats()
}
