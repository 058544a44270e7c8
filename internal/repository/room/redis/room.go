package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/rodolfoescobarrios/inmersion-mrg/internal/repository/room"
)

// EnsureRoom returns the room of the pair, creating it atomically if missing.
func (r repo) EnsureRoom(ctx context.Context, params *room.EnsureRoomParams) (room.EnsureRoomResult, error) {
	keys := []string{
		seqKey,
		r.getPairKey(params.TherapistID, params.PatientID),
		r.getPatientRoomKey(params.PatientID),
	}

	res, err := r.ensureRoomScript.Run(ctx, r.rc, keys,
		roomPrefix+":",
		params.TherapistID,
		params.PatientID,
		params.CreatedAt,
	).Slice()
	if err != nil {
		return room.EnsureRoomResult{}, fmt.Errorf("failed to run ensure room script: %w", err)
	}

	if len(res) != 2 {
		return room.EnsureRoomResult{}, fmt.Errorf("unexpected ensure room script result: %v", res)
	}

	roomID, ok := res[0].(string)
	if !ok {
		return room.EnsureRoomResult{}, fmt.Errorf("unexpected room id type %T", res[0])
	}
	created, _ := res[1].(int64)

	found, err := r.GetRoom(ctx, roomID)
	if err != nil {
		return room.EnsureRoomResult{}, err
	}

	return room.EnsureRoomResult{
		Room:    found,
		Created: created == 1,
	}, nil
}

func (r repo) GetRoom(ctx context.Context, roomID string) (room.Room, error) {
	fields, err := r.rc.HGetAll(ctx, r.getRoomKey(roomID)).Result()
	if err != nil {
		return room.Room{}, fmt.Errorf("failed to get room: %w", err)
	}

	if len(fields) == 0 {
		return room.Room{}, room.ErrRoomNotFound
	}

	return room.Room{
		ID:          fields["id"],
		TherapistID: fields["therapist_id"],
		PatientID:   fields["patient_id"],
		CreatedAt:   r.fieldToInt64(fields["created_at"]),
	}, nil
}

// GetPatientRoom returns the first room created for the patient.
func (r repo) GetPatientRoom(ctx context.Context, patientID string) (room.Room, error) {
	roomID, err := r.rc.Get(ctx, r.getPatientRoomKey(patientID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return room.Room{}, room.ErrRoomNotFound
		}
		return room.Room{}, fmt.Errorf("failed to get patient room id: %w", err)
	}

	return r.GetRoom(ctx, roomID)
}

func (r repo) IsRoomExists(ctx context.Context, roomID string) (bool, error) {
	n, err := r.rc.Exists(ctx, r.getRoomKey(roomID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check room: %w", err)
	}

	return n == 1, nil
}
