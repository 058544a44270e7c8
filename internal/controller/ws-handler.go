package controller

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rodolfoescobarrios/inmersion-mrg/internal/session"
	"github.com/rodolfoescobarrios/inmersion-mrg/internal/transport/ws"
	"github.com/rodolfoescobarrios/inmersion-mrg/pkg/rest"
)

func (c controller) joinRoom(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	roomID := chi.URLParam(r, roomIDParam)

	if err := c.roomService.ValidateRoomID(roomID); err != nil {
		c.logger.DebugContext(ctx, "invalid room id", "room_id", roomID, "error", err)
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"error": err.Error()})
		return
	}

	if c.cfg.StrictRooms {
		exists, err := c.roomService.IsRoomExists(ctx, roomID)
		if err != nil {
			c.logger.WarnContext(ctx, "failed to check room", "room_id", roomID, "error", err)
			rest.WriteJSON(w, http.StatusInternalServerError, rest.Envelope{"error": "internal server error"})
			return
		}
		if !exists {
			c.logger.DebugContext(ctx, "room not provisioned", "room_id", roomID)
			rest.WriteJSON(w, http.StatusNotFound, rest.Envelope{"error": "room not found"})
			return
		}
	}

	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.WarnContext(ctx, "failed to upgrade to websocket", "error", err)
		return
	}

	s := session.New(&session.Params{
		RoomID:        roomID,
		Transport:     ws.NewConn(conn, c.cfg.WS),
		Broadcaster:   c.broadcaster,
		ExcludeSender: c.cfg.ExcludeSender,
		SendBuffer:    c.cfg.SendBuffer,
		Logger:        c.logger,
	})

	if err := s.Serve(ctx); err != nil {
		c.logger.InfoContext(ctx, "session ended", "session_id", s.ID(), "error", err)
		return
	}
	c.logger.DebugContext(ctx, "session ended", "session_id", s.ID())
}
