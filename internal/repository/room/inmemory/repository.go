package inmemory

import (
	"context"
	"strconv"
	"sync"

	"github.com/rodolfoescobarrios/inmersion-mrg/internal/repository/room"
)

type pair struct {
	therapistID string
	patientID   string
}

type repo struct {
	mu           sync.RWMutex
	seq          int64
	rooms        map[string]room.Room
	pairs        map[pair]string
	patientRooms map[string]string
}

func NewRepo() *repo {
	return &repo{
		rooms:        make(map[string]room.Room),
		pairs:        make(map[pair]string),
		patientRooms: make(map[string]string),
	}
}

func (r *repo) EnsureRoom(_ context.Context, params *room.EnsureRoomParams) (room.EnsureRoomResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := pair{therapistID: params.TherapistID, patientID: params.PatientID}
	if roomID, ok := r.pairs[key]; ok {
		return room.EnsureRoomResult{Room: r.rooms[roomID]}, nil
	}

	r.seq++
	created := room.Room{
		ID:          strconv.FormatInt(r.seq, 10),
		TherapistID: params.TherapistID,
		PatientID:   params.PatientID,
		CreatedAt:   params.CreatedAt,
	}
	r.rooms[created.ID] = created
	r.pairs[key] = created.ID
	if _, ok := r.patientRooms[params.PatientID]; !ok {
		r.patientRooms[params.PatientID] = created.ID
	}

	return room.EnsureRoomResult{Room: created, Created: true}, nil
}

func (r *repo) GetRoom(_ context.Context, roomID string) (room.Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	found, ok := r.rooms[roomID]
	if !ok {
		return room.Room{}, room.ErrRoomNotFound
	}

	return found, nil
}

func (r *repo) GetPatientRoom(_ context.Context, patientID string) (room.Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	roomID, ok := r.patientRooms[patientID]
	if !ok {
		return room.Room{}, room.ErrRoomNotFound
	}

	return r.rooms[roomID], nil
}

func (r *repo) IsRoomExists(_ context.Context, roomID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.rooms[roomID]
	return ok, nil
}
