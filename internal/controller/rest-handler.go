package controller

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rodolfoescobarrios/inmersion-mrg/internal/service/room"
	"github.com/rodolfoescobarrios/inmersion-mrg/pkg/rest"
)

func (c controller) ensureRoom(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var params room.EnsureRoomParams
	if err := rest.ReadJSON(r, &params); err != nil {
		c.logger.DebugContext(ctx, "failed to read json", "error", err)
		rest.WriteJSON(w, http.StatusUnprocessableEntity, rest.Envelope{"error": err.Error()})
		return
	}

	resp, err := c.roomService.EnsureRoom(ctx, &params)
	if err != nil {
		switch {
		case errors.Is(err, room.ErrSameParticipant), errors.Is(err, room.ErrValidationFailed):
			c.logger.DebugContext(ctx, "invalid room request", "error", err)
			rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"error": err.Error()})
		default:
			c.logger.WarnContext(ctx, "failed to ensure room", "error", err)
			rest.WriteJSON(w, http.StatusInternalServerError, rest.Envelope{"error": "internal server error"})
		}
		return
	}

	status := http.StatusOK
	if resp.Created {
		status = http.StatusCreated
	}
	rest.WriteJSON(w, status, rest.Envelope{"data": resp})
}

func (c controller) getRoom(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	roomID := chi.URLParam(r, roomIDParam)

	found, err := c.roomService.GetRoom(ctx, roomID)
	if err != nil {
		c.writeRoomError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": found})
}

func (c controller) getPatientRoom(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	patientID := chi.URLParam(r, patientIDParam)

	found, err := c.roomService.GetPatientRoom(ctx, patientID)
	if err != nil {
		c.writeRoomError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": found})
}

func (c controller) writeRoomError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, room.ErrRoomNotFound) {
		rest.WriteJSON(w, http.StatusNotFound, rest.Envelope{"error": err.Error()})
		return
	}

	c.logger.WarnContext(r.Context(), "failed to get room", "error", err)
	rest.WriteJSON(w, http.StatusInternalServerError, rest.Envelope{"error": "internal server error"})
}

type statsResponse struct {
	Rooms   int `json:"rooms"`
	Members int `json:"members"`
}

func (c controller) getStats(w http.ResponseWriter, r *http.Request) {
	rooms, members := c.broadcaster.Stats()
	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": statsResponse{
		Rooms:   rooms,
		Members: members,
	}})
}
