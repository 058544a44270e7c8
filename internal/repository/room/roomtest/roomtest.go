// Package roomtest holds the behaviour every room repository must share.
package roomtest

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rodolfoescobarrios/inmersion-mrg/internal/repository/room"
)

type Repo interface {
	EnsureRoom(context.Context, *room.EnsureRoomParams) (room.EnsureRoomResult, error)
	GetRoom(context.Context, string) (room.Room, error)
	GetPatientRoom(context.Context, string) (room.Room, error)
	IsRoomExists(context.Context, string) (bool, error)
}

func Run(t *testing.T, newRepo func(t *testing.T) Repo) {
	t.Run("ensure creates then returns existing", func(t *testing.T) {
		ctx := context.Background()
		r := newRepo(t)

		first, err := r.EnsureRoom(ctx, &room.EnsureRoomParams{TherapistID: "t1", PatientID: "p1", CreatedAt: 100})
		require.NoError(t, err)
		assert.True(t, first.Created)
		assert.Equal(t, room.Room{ID: "1", TherapistID: "t1", PatientID: "p1", CreatedAt: 100}, first.Room)

		again, err := r.EnsureRoom(ctx, &room.EnsureRoomParams{TherapistID: "t1", PatientID: "p1", CreatedAt: 200})
		require.NoError(t, err)
		assert.False(t, again.Created)
		assert.Equal(t, first.Room, again.Room)
	})

	t.Run("distinct pairs get distinct rooms", func(t *testing.T) {
		ctx := context.Background()
		r := newRepo(t)

		a, err := r.EnsureRoom(ctx, &room.EnsureRoomParams{TherapistID: "t1", PatientID: "p1"})
		require.NoError(t, err)
		b, err := r.EnsureRoom(ctx, &room.EnsureRoomParams{TherapistID: "t2", PatientID: "p1"})
		require.NoError(t, err)
		c, err := r.EnsureRoom(ctx, &room.EnsureRoomParams{TherapistID: "t1", PatientID: "p2"})
		require.NoError(t, err)

		assert.NotEqual(t, a.Room.ID, b.Room.ID)
		assert.NotEqual(t, a.Room.ID, c.Room.ID)
		assert.NotEqual(t, b.Room.ID, c.Room.ID)
	})

	t.Run("ids containing separators do not collide", func(t *testing.T) {
		ctx := context.Background()
		r := newRepo(t)

		a, err := r.EnsureRoom(ctx, &room.EnsureRoomParams{TherapistID: "a:b", PatientID: "c"})
		require.NoError(t, err)
		b, err := r.EnsureRoom(ctx, &room.EnsureRoomParams{TherapistID: "a", PatientID: "b:c"})
		require.NoError(t, err)

		assert.True(t, a.Created)
		assert.True(t, b.Created)
		assert.NotEqual(t, a.Room.ID, b.Room.ID)
		assert.Equal(t, "a", b.Room.TherapistID)
		assert.Equal(t, "b:c", b.Room.PatientID)
	})

	t.Run("get room", func(t *testing.T) {
		ctx := context.Background()
		r := newRepo(t)

		_, err := r.GetRoom(ctx, "1")
		assert.ErrorIs(t, err, room.ErrRoomNotFound)

		created, err := r.EnsureRoom(ctx, &room.EnsureRoomParams{TherapistID: "t1", PatientID: "p1", CreatedAt: 7})
		require.NoError(t, err)

		found, err := r.GetRoom(ctx, created.Room.ID)
		require.NoError(t, err)
		assert.Equal(t, created.Room, found)

		exists, err := r.IsRoomExists(ctx, created.Room.ID)
		require.NoError(t, err)
		assert.True(t, exists)

		exists, err = r.IsRoomExists(ctx, "999")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("patient room is the first one created", func(t *testing.T) {
		ctx := context.Background()
		r := newRepo(t)

		_, err := r.GetPatientRoom(ctx, "p1")
		assert.ErrorIs(t, err, room.ErrRoomNotFound)

		first, err := r.EnsureRoom(ctx, &room.EnsureRoomParams{TherapistID: "t1", PatientID: "p1"})
		require.NoError(t, err)
		_, err = r.EnsureRoom(ctx, &room.EnsureRoomParams{TherapistID: "t2", PatientID: "p1"})
		require.NoError(t, err)

		found, err := r.GetPatientRoom(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, first.Room, found)
	})

	t.Run("concurrent ensure creates one room", func(t *testing.T) {
		ctx := context.Background()
		r := newRepo(t)

		const n = 20
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			ids     = make(map[string]struct{})
			created int
		)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				res, err := r.EnsureRoom(ctx, &room.EnsureRoomParams{TherapistID: "t1", PatientID: "p1"})
				if !assert.NoError(t, err) {
					return
				}
				mu.Lock()
				defer mu.Unlock()
				ids[res.Room.ID] = struct{}{}
				if res.Created {
					created++
				}
			}()
		}
		wg.Wait()

		assert.Len(t, ids, 1)
		assert.Equal(t, 1, created)
	})
}
