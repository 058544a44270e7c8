package room

import (
	"context"
	"errors"
	"fmt"

	"github.com/rodolfoescobarrios/inmersion-mrg/internal/repository/room"
)

const idRules = "required,max=64,printascii"

type EnsureRoomParams struct {
	TherapistID string `json:"therapist_id" validate:"required,max=64,printascii"`
	PatientID   string `json:"patient_id" validate:"required,max=64,printascii"`
}

type EnsureRoomResponse struct {
	Room    Room `json:"room"`
	Created bool `json:"created"`
}

// EnsureRoom returns the room shared by a therapist and a patient, creating it
// on first use.
func (s service) EnsureRoom(ctx context.Context, params *EnsureRoomParams) (EnsureRoomResponse, error) {
	s.logger.DebugContext(ctx, "called", "params", params)

	if validationErrors, ok := s.validate.Validate(params); !ok {
		return EnsureRoomResponse{}, fmt.Errorf("%w: %v", ErrValidationFailed, validationErrors)
	}

	if params.TherapistID == params.PatientID {
		return EnsureRoomResponse{}, ErrSameParticipant
	}

	res, err := s.roomRepo.EnsureRoom(ctx, &room.EnsureRoomParams{
		TherapistID: params.TherapistID,
		PatientID:   params.PatientID,
		CreatedAt:   s.now().Unix(),
	})
	if err != nil {
		s.logger.InfoContext(ctx, "failed to ensure room", "error", err)
		return EnsureRoomResponse{}, fmt.Errorf("failed to ensure room: %w", err)
	}

	if res.Created {
		s.logger.InfoContext(ctx, "room created", "room_id", res.Room.ID)
	}

	return EnsureRoomResponse{
		Room:    s.mapRoom(res.Room),
		Created: res.Created,
	}, nil
}

func (s service) GetRoom(ctx context.Context, roomID string) (Room, error) {
	s.logger.DebugContext(ctx, "called", "room_id", roomID)

	if err := s.ValidateRoomID(roomID); err != nil {
		return Room{}, ErrRoomNotFound
	}

	r, err := s.roomRepo.GetRoom(ctx, roomID)
	if err != nil {
		if errors.Is(err, room.ErrRoomNotFound) {
			return Room{}, ErrRoomNotFound
		}
		return Room{}, fmt.Errorf("failed to get room: %w", err)
	}

	return s.mapRoom(r), nil
}

func (s service) GetPatientRoom(ctx context.Context, patientID string) (Room, error) {
	s.logger.DebugContext(ctx, "called", "patient_id", patientID)

	if _, ok := s.validate.ValidateVar("patient_id", patientID, idRules); !ok {
		return Room{}, ErrRoomNotFound
	}

	r, err := s.roomRepo.GetPatientRoom(ctx, patientID)
	if err != nil {
		if errors.Is(err, room.ErrRoomNotFound) {
			return Room{}, ErrRoomNotFound
		}
		return Room{}, fmt.Errorf("failed to get patient room: %w", err)
	}

	return s.mapRoom(r), nil
}

// ValidateRoomID reports whether roomID can name a room at all.
func (s service) ValidateRoomID(roomID string) error {
	if validationErrors, ok := s.validate.ValidateVar("room_id", roomID, idRules); !ok {
		return fmt.Errorf("%w: %v", ErrValidationFailed, validationErrors)
	}

	return nil
}

func (s service) IsRoomExists(ctx context.Context, roomID string) (bool, error) {
	exists, err := s.roomRepo.IsRoomExists(ctx, roomID)
	if err != nil {
		return false, fmt.Errorf("failed to check room: %w", err)
	}

	return exists, nil
}
