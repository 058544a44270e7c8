// Package broadcaster fans room events out to the members joined to a room.
//
// Local keeps everything in process. Relay forwards events through Redis
// pub/sub so that members connected to different server processes share rooms.
package broadcaster

import (
	"context"
	"log/slog"

	"github.com/rodolfoescobarrios/inmersion-mrg/internal/registry"
)

// deliver sends frame to every member except the one with excludeID and
// returns how many sends succeeded. A member whose send fails is closed, which
// runs its own leave path; the remaining members are still served.
func deliver(ctx context.Context, logger *slog.Logger, roomID string, members []registry.Member, frame []byte, excludeID string) int {
	sent := 0
	for _, m := range members {
		if excludeID != "" && m.ID() == excludeID {
			continue
		}

		if err := m.Send(frame); err != nil {
			logger.InfoContext(ctx, "failed to deliver event, closing member",
				"room_id", roomID,
				"member_id", m.ID(),
				"error", err,
			)
			m.Close()
			continue
		}
		sent++
	}

	return sent
}

func memberID(m registry.Member) string {
	if m == nil {
		return ""
	}

	return m.ID()
}
