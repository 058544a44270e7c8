package registry

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockMember struct {
	id string
}

func (m *mockMember) ID() string          { return m.id }
func (m *mockMember) Send(_ []byte) error { return nil }
func (m *mockMember) Close()              {}

func newTestRegistry() *Registry {
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func ids(members []Member) []string {
	result := make([]string, 0, len(members))
	for _, m := range members {
		result = append(result, m.ID())
	}
	return result
}

func TestRegistry_JoinLeave(t *testing.T) {
	r := newTestRegistry()
	h := &mockMember{id: "h"}

	assert.Equal(t, 1, r.Join("R", h))
	assert.ElementsMatch(t, []string{"h"}, ids(r.MembersOf("R")))

	assert.Equal(t, 0, r.Leave("R", h))
	assert.Empty(t, r.MembersOf("R"))

	// second leave is a no-op
	assert.Equal(t, 0, r.Leave("R", h))
	assert.Empty(t, r.MembersOf("R"))
}

func TestRegistry_JoinIsIdempotent(t *testing.T) {
	r := newTestRegistry()
	h := &mockMember{id: "h"}

	r.Join("R", h)
	r.Join("R", h)
	r.Join("R", h)

	assert.Len(t, r.MembersOf("R"), 1)
	assert.Equal(t, 1, r.Len("R"))
}

func TestRegistry_LeaveIgnoresStaleHandle(t *testing.T) {
	r := newTestRegistry()
	old := &mockMember{id: "h"}
	replacement := &mockMember{id: "h"}

	r.Join("R", old)
	r.Join("R", replacement)

	r.Leave("R", old)

	members := r.MembersOf("R")
	require.Len(t, members, 1)
	assert.Same(t, replacement, members[0])
}

func TestRegistry_LeaveUnknownRoom(t *testing.T) {
	r := newTestRegistry()

	assert.NotPanics(t, func() {
		r.Leave("missing", &mockMember{id: "h"})
	})
	rooms, members := r.Stats()
	assert.Equal(t, 0, rooms)
	assert.Equal(t, 0, members)
}

func TestRegistry_RoomsAreIsolated(t *testing.T) {
	r := newTestRegistry()
	r.Join("r1", &mockMember{id: "a"})
	r.Join("r1", &mockMember{id: "b"})
	r.Join("r2", &mockMember{id: "c"})

	assert.ElementsMatch(t, []string{"a", "b"}, ids(r.MembersOf("r1")))
	assert.ElementsMatch(t, []string{"c"}, ids(r.MembersOf("r2")))
	assert.Empty(t, r.MembersOf("r3"))
}

func TestRegistry_Stats(t *testing.T) {
	tests := []struct {
		name        string
		setup       func(*Registry)
		wantRooms   int
		wantMembers int
	}{
		{
			name:  "empty registry",
			setup: func(r *Registry) {},
		},
		{
			name: "one room one member",
			setup: func(r *Registry) {
				r.Join("r1", &mockMember{id: "c1"})
			},
			wantRooms:   1,
			wantMembers: 1,
		},
		{
			name: "multiple rooms",
			setup: func(r *Registry) {
				r.Join("r1", &mockMember{id: "c1"})
				r.Join("r1", &mockMember{id: "c2"})
				r.Join("r2", &mockMember{id: "c3"})
			},
			wantRooms:   2,
			wantMembers: 3,
		},
		{
			name: "empty room is removed",
			setup: func(r *Registry) {
				m := &mockMember{id: "c1"}
				r.Join("r1", m)
				r.Join("r2", &mockMember{id: "c2"})
				r.Leave("r1", m)
			},
			wantRooms:   1,
			wantMembers: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRegistry()
			tt.setup(r)

			rooms, members := r.Stats()
			assert.Equal(t, tt.wantRooms, rooms)
			assert.Equal(t, tt.wantMembers, members)
		})
	}
}

func TestRegistry_SnapshotIsIndependent(t *testing.T) {
	r := newTestRegistry()
	a := &mockMember{id: "a"}
	r.Join("R", a)

	snapshot := r.MembersOf("R")
	r.Leave("R", a)
	r.Join("R", &mockMember{id: "b"})

	assert.Equal(t, []string{"a"}, ids(snapshot))
}

func TestRegistry_ConcurrentJoinLeave(t *testing.T) {
	const n = 200
	r := newTestRegistry()

	members := make([]*mockMember, n)
	for i := range members {
		members[i] = &mockMember{id: fmt.Sprintf("m%d", i)}
	}

	var wg sync.WaitGroup
	for i, m := range members {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Join("R", m)
			_ = r.MembersOf("R")
			// odd members leave again, some of them twice
			if i%2 == 1 {
				r.Leave("R", m)
				if i%3 == 0 {
					r.Leave("R", m)
				}
			}
		}()
	}
	wg.Wait()

	got := ids(r.MembersOf("R"))
	want := make([]string, 0, n/2)
	for i, m := range members {
		if i%2 == 0 {
			want = append(want, m.id)
		}
	}
	assert.ElementsMatch(t, want, got)
}

func TestRegistry_ChurnDoesNotLeakRooms(t *testing.T) {
	r := newTestRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m := &mockMember{id: fmt.Sprintf("m%d", i)}
			room := fmt.Sprintf("room-%d", i%10)
			for j := 0; j < 20; j++ {
				r.Join(room, m)
				r.Leave(room, m)
			}
		}()
	}
	wg.Wait()

	rooms, members := r.Stats()
	assert.Equal(t, 0, rooms)
	assert.Equal(t, 0, members)
}
