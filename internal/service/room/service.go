package room

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/rodolfoescobarrios/inmersion-mrg/internal/repository/room"
	"github.com/rodolfoescobarrios/inmersion-mrg/pkg/validator"
)

var (
	ErrRoomNotFound     = errors.New("room not found")
	ErrSameParticipant  = errors.New("therapist and patient must be different")
	ErrValidationFailed = errors.New("validation failed")
)

type iRoomRepo interface {
	EnsureRoom(context.Context, *room.EnsureRoomParams) (room.EnsureRoomResult, error)
	GetRoom(context.Context, string) (room.Room, error)
	GetPatientRoom(context.Context, string) (room.Room, error)
	IsRoomExists(context.Context, string) (bool, error)
}

type service struct {
	roomRepo iRoomRepo
	validate *validator.Validator
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(roomRepo iRoomRepo, logger *slog.Logger) *service {
	return &service{
		roomRepo: roomRepo,
		validate: validator.NewValidator(),
		logger:   logger,
		now:      time.Now,
	}
}

func (s service) mapRoom(r room.Room) Room {
	return Room{
		ID:          r.ID,
		TherapistID: r.TherapistID,
		PatientID:   r.PatientID,
		CreatedAt:   r.CreatedAt,
	}
}
