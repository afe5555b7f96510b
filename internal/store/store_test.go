package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/fleet-tracker/internal/model"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func snapshot(id string, speed float64, observedAt time.Time) model.Snapshot {
	return model.Snapshot{
		ID:         id,
		Position:   model.Position{Lat: 25.0, Lng: 55.0},
		Heading:    90,
		Speed:      speed,
		Status:     model.StatusMoving,
		ObservedAt: observedAt,
	}
}

// recorder captures notifications for assertions.
type recorder struct {
	changes []Change
	states  []State
}

func (r *recorder) listen(s State, c Change) {
	r.changes = append(r.changes, c)
	r.states = append(r.states, s)
}

func TestStore_InitialState(t *testing.T) {
	s := New(Options{}, nil)
	st := s.State()

	assert.Empty(t, st.Entities)
	assert.Equal(t, "", st.SelectedID)
	assert.False(t, st.Connected)
	assert.Equal(t, "", st.LastError)
}

func TestStore_UpsertInsertsAndReplaces(t *testing.T) {
	s := New(Options{}, nil)

	require.True(t, s.Upsert(snapshot("A-1", 40, t0)))

	replacement := snapshot("A-1", 0, t0.Add(time.Second))
	replacement.Status = model.StatusStopped
	replacement.Position = model.Position{Lat: 25.1, Lng: 55.2}
	require.True(t, s.Upsert(replacement))

	st := s.State()
	require.Equal(t, 1, st.Count())
	assert.True(t, st.Entities["A-1"].Equal(replacement))
}

func TestStore_UpsertIdempotent(t *testing.T) {
	s := New(Options{}, nil)
	rec := &recorder{}
	s.Subscribe(rec.listen)

	snap := snapshot("A-1", 40, t0)
	assert.True(t, s.Upsert(snap))
	assert.False(t, s.Upsert(snap), "identical snapshot should not change the store")

	assert.Len(t, rec.changes, 1)
	assert.Equal(t, 1, s.State().Count())
}

func TestStore_RejectStale(t *testing.T) {
	s := New(Options{RejectStale: true}, nil)

	require.True(t, s.Upsert(snapshot("A-1", 40, t0.Add(time.Minute))))
	assert.False(t, s.Upsert(snapshot("A-1", 10, t0)), "older snapshot should be dropped")
	assert.Equal(t, 40.0, s.State().Entities["A-1"].Speed)

	// Same timestamp with different content is accepted.
	assert.True(t, s.Upsert(snapshot("A-1", 55, t0.Add(time.Minute))))
	assert.Equal(t, 55.0, s.State().Entities["A-1"].Speed)
}

func TestStore_AcceptStaleWhenDisabled(t *testing.T) {
	s := New(Options{RejectStale: false}, nil)

	require.True(t, s.Upsert(snapshot("A-1", 40, t0.Add(time.Minute))))
	assert.True(t, s.Upsert(snapshot("A-1", 10, t0)))
	assert.Equal(t, 10.0, s.State().Entities["A-1"].Speed)
}

func TestStore_SelectWithoutEntity(t *testing.T) {
	s := New(Options{}, nil)

	s.Select("ghost")
	st := s.State()
	assert.Equal(t, "ghost", st.SelectedID)

	_, ok := st.Selected()
	assert.False(t, ok, "stale selection should resolve to no entity")

	s.Select("")
	assert.Equal(t, "", s.State().SelectedID)
}

func TestStore_ConnectedAndError(t *testing.T) {
	s := New(Options{}, nil)
	rec := &recorder{}
	s.Subscribe(rec.listen)

	s.SetConnected(true)
	s.SetConnected(true)
	s.SetError("dial tcp: connection refused")
	s.SetError("")

	st := s.State()
	assert.True(t, st.Connected)
	assert.Equal(t, "", st.LastError)
	assert.Equal(t, []Change{
		{Kind: ChangeConnected},
		{Kind: ChangeError},
		{Kind: ChangeError},
	}, rec.changes)
}

func TestStore_NotificationIsSynchronous(t *testing.T) {
	s := New(Options{}, nil)

	var seen State
	s.Subscribe(func(st State, c Change) {
		seen = st
	})

	s.Upsert(snapshot("A-1", 40, t0))
	// The listener must have run before Upsert returned.
	require.Contains(t, seen.Entities, "A-1")

	s.Select("A-1")
	assert.Equal(t, "A-1", seen.SelectedID)
}

func TestStore_ObserveReplaysCurrentState(t *testing.T) {
	s := New(Options{}, nil)
	s.Upsert(snapshot("A-1", 40, t0))

	rec := &recorder{}
	cancel := s.Observe(rec.listen)
	defer cancel()

	require.Len(t, rec.changes, 1)
	assert.Equal(t, Change{Kind: ChangeInitial}, rec.changes[0])
	assert.Contains(t, rec.states[0].Entities, "A-1")

	s.Upsert(snapshot("B-2", 10, t0))
	require.Len(t, rec.changes, 2)
	assert.Equal(t, Change{Kind: ChangeUpsert, ID: "B-2"}, rec.changes[1])
}

func TestStore_ObserveHoldsMutationsUntilReplayed(t *testing.T) {
	s := New(Options{}, nil)

	upserted := make(chan struct{})
	var rec recorder
	s.Observe(func(st State, c Change) {
		rec.listen(st, c)
		if c.Kind != ChangeInitial {
			return
		}

		go func() {
			s.Upsert(snapshot("A-1", 40, t0))
			close(upserted)
		}()

		// The concurrent upsert cannot notify before the replay returns.
		select {
		case <-upserted:
			t.Error("upsert completed during the initial replay")
		case <-time.After(50 * time.Millisecond):
		}
	})

	select {
	case <-upserted:
	case <-time.After(2 * time.Second):
		t.Fatal("upsert never completed")
	}

	require.Len(t, rec.changes, 2)
	assert.Equal(t, ChangeInitial, rec.changes[0].Kind)
	assert.Empty(t, rec.states[0].Entities)
	assert.Equal(t, ChangeUpsert, rec.changes[1].Kind)
	assert.Contains(t, rec.states[1].Entities, "A-1")
}

func TestStore_ListenersRunInOrder(t *testing.T) {
	s := New(Options{}, nil)

	var order []int
	s.Subscribe(func(State, Change) { order = append(order, 1) })
	s.Subscribe(func(State, Change) { order = append(order, 2) })
	s.Subscribe(func(State, Change) { order = append(order, 3) })

	s.SetConnected(true)
	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestStore_Unsubscribe(t *testing.T) {
	s := New(Options{}, nil)
	rec := &recorder{}
	cancel := s.Subscribe(rec.listen)

	s.SetConnected(true)
	cancel()
	s.SetConnected(false)

	assert.Len(t, rec.changes, 1)
}

func TestStore_StateIsACopy(t *testing.T) {
	s := New(Options{}, nil)
	s.Upsert(snapshot("A-1", 40, t0))

	st := s.State()
	delete(st.Entities, "A-1")

	assert.Equal(t, 1, s.State().Count(), "mutating a returned State must not affect the store")
}

func TestState_SortedIDs(t *testing.T) {
	s := New(Options{}, nil)
	s.Upsert(snapshot("C-3", 1, t0))
	s.Upsert(snapshot("A-1", 1, t0))
	s.Upsert(snapshot("B-2", 1, t0))

	assert.Equal(t, []string{"A-1", "B-2", "C-3"}, s.State().SortedIDs())
}
