package client_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mberthe/chorus/internal/client"
	"github.com/mberthe/chorus/internal/core"
	"github.com/mberthe/chorus/internal/domain"
)

// recorder captures outgoing commands.
type recorder struct {
	mu   sync.Mutex
	sent []any
	err  error
}

func (r *recorder) Send(v any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, v)
	return nil
}

func (r *recorder) Sent() []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]any, len(r.sent))
	copy(out, r.sent)
	return out
}

func mustFact(t *testing.T, factType core.FactType, payload any) core.Frame {
	t.Helper()
	frame, err := core.NewFact(factType, payload)
	require.NoError(t, err)
	return frame
}

func TestSupervisorFreezesRoomUntilAck(t *testing.T) {
	rec := &recorder{}
	sup := client.NewSupervisor(rec)
	trk := domain.PlaylistTrack{ID: "t1", Title: "One"}

	require.NoError(t, sup.AddTrack("mpe-1", trk))

	// Second mutation on the same room is rejected while in flight.
	err := sup.AddTrack("mpe-1", domain.PlaylistTrack{ID: "t2"})
	assert.ErrorIs(t, err, client.ErrMutationInFlight)

	// A different room is unaffected.
	require.NoError(t, sup.AddTrack("mpe-2", trk))

	// The ack thaws the room and applies the authoritative list.
	sup.Dispatch(mustFact(t, core.FactTrackOpAck, core.TrackOpAckPayload{
		RoomID: "mpe-1",
		OK:     true,
		Tracks: []domain.PlaylistTrack{trk},
	}))
	require.Eventually(t, func() bool {
		return len(sup.Tracks("mpe-1")) == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, sup.AddTrack("mpe-1", domain.PlaylistTrack{ID: "t2"}))
}

func TestSupervisorRejectedAckThawsWithoutApplying(t *testing.T) {
	rec := &recorder{}
	sup := client.NewSupervisor(rec)

	sup.Dispatch(mustFact(t, core.FactTrackListUpdate, core.TrackListUpdatePayload{
		RoomID: "mpe-1",
		Tracks: []domain.PlaylistTrack{{ID: "t1"}},
	}))
	require.Eventually(t, func() bool {
		return len(sup.Tracks("mpe-1")) == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, sup.DeleteTrack("mpe-1", "t1"))
	sup.Dispatch(mustFact(t, core.FactTrackOpAck, core.TrackOpAckPayload{
		RoomID: "mpe-1",
		OK:     false,
		Reason: "not a member",
	}))

	// The local list keeps its previous state and the room is thawed.
	require.Eventually(t, func() bool {
		return sup.DeleteTrack("mpe-1", "t1") == nil
	}, time.Second, 5*time.Millisecond)
	assert.Len(t, sup.Tracks("mpe-1"), 1)
}

func TestSupervisorSendFailureThaws(t *testing.T) {
	rec := &recorder{err: assert.AnError}
	sup := client.NewSupervisor(rec)

	err := sup.AddTrack("mpe-1", domain.PlaylistTrack{ID: "t1"})
	require.Error(t, err)

	// No ack will come; the room must not stay frozen.
	rec.mu.Lock()
	rec.err = nil
	rec.mu.Unlock()
	assert.NoError(t, sup.AddTrack("mpe-1", domain.PlaylistTrack{ID: "t1"}))
}

func TestSupervisorSyncPlaylistsMergeAssign(t *testing.T) {
	rec := &recorder{}
	sup := client.NewSupervisor(rec)

	sup.SyncPlaylists([]domain.RoomID{"a", "b"})
	assert.ElementsMatch(t, []domain.RoomID{"a", "b"}, sup.PlaylistRooms())

	// Existing actors survive a sync naming them again.
	sup.Dispatch(mustFact(t, core.FactTrackListUpdate, core.TrackListUpdatePayload{
		RoomID: "a",
		Tracks: []domain.PlaylistTrack{{ID: "t1"}},
	}))
	require.Eventually(t, func() bool {
		return len(sup.Tracks("a")) == 1
	}, time.Second, 5*time.Millisecond)

	sup.SyncPlaylists([]domain.RoomID{"a", "c"})
	assert.ElementsMatch(t, []domain.RoomID{"a", "c"}, sup.PlaylistRooms())
	assert.Len(t, sup.Tracks("a"), 1, "kept actor retains its state")
}

func TestSupervisorContextFailureStopsActor(t *testing.T) {
	rec := &recorder{}
	sup := client.NewSupervisor(rec)
	sup.SyncPlaylists([]domain.RoomID{"mpe-1"})

	sup.Dispatch(mustFact(t, core.FactGetContextFailure, core.GetContextFailurePayload{RoomID: "mpe-1"}))
	assert.Empty(t, sup.PlaylistRooms())
}

func TestSupervisorListeningRoomLifecycle(t *testing.T) {
	rec := &recorder{}
	sup := client.NewSupervisor(rec)

	_, ok := sup.ListeningRoom()
	assert.False(t, ok)

	sup.Dispatch(mustFact(t, core.FactJoinAcknowledgement, core.JoinAcknowledgementPayload{
		RoomID: "room-1",
		State:  &core.WorkflowState{RoomID: "room-1", Name: "Party"},
	}))
	state, ok := sup.ListeningRoom()
	require.True(t, ok)
	assert.Equal(t, domain.RoomID("room-1"), state.RoomID)

	sup.Dispatch(mustFact(t, core.FactPermissionsUpdate, core.PermissionsUpdatePayload{
		RoomID:                     "room-1",
		UserFitsPositionConstraint: true,
	}))
	state, _ = sup.ListeningRoom()
	assert.True(t, state.FitsPositionConstraint)

	sup.Dispatch(mustFact(t, core.FactForcedDisconnection, core.ForcedDisconnectionPayload{RoomID: "room-1"}))
	_, ok = sup.ListeningRoom()
	assert.False(t, ok)
}
