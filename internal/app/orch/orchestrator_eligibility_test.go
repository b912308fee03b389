package orch_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mberthe/chorus/internal/core"
	"github.com/mberthe/chorus/internal/domain"
)

func (f *fixture) constrainRoom(roomID domain.RoomID, lat, lng, radius float64) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	f.store.rooms[roomID].Constraints = &domain.RoomConstraints{
		Lat:      lat,
		Lng:      lng,
		Radius:   radius,
		StartsAt: time.Now().Add(-time.Hour),
		EndsAt:   time.Now().Add(time.Hour),
	}
}

func (f *fixture) addDevice(id domain.DeviceID, userID domain.UserID) {
	repo := &memDeviceRepo{s: f.store}
	_ = repo.Save(context.Background(), &domain.Device{ID: id, UserID: userID})
}

func TestUpdatePositionPushesOnChangeOnly(t *testing.T) {
	f := newFixture()
	f.addUser("alice", "Alice")
	f.seedActiveRoom("room-1", "Geofenced", "alice", true)
	f.constrainRoom("room-1", 48.8566, 2.3522, 1000)
	f.addDevice("device-1", "alice")
	conn := f.connect("alice", "sid-1")

	// First fix lands inside the geofence: one push each way.
	require.NoError(t, f.orch.UpdatePosition(context.Background(), "alice", "device-1", 48.8566, 2.3522))
	assert.Equal(t, 1, f.wf.countCalls("PushEligibilityUpdate room-1 alice fits=true"))
	require.Len(t, conn.factsOfType(core.FactPermissionsUpdate), 1)

	// Same verdict again: nothing new goes out.
	require.NoError(t, f.orch.UpdatePosition(context.Background(), "alice", "device-1", 48.8570, 2.3530))
	assert.Equal(t, 1, f.wf.countCalls("PushEligibilityUpdate"))
	assert.Len(t, conn.factsOfType(core.FactPermissionsUpdate), 1)

	// Leaving the geofence flips the verdict: second push.
	require.NoError(t, f.orch.UpdatePosition(context.Background(), "alice", "device-1", 40.4168, -3.7038))
	assert.Equal(t, 1, f.wf.countCalls("PushEligibilityUpdate room-1 alice fits=false"))
	assert.Len(t, conn.factsOfType(core.FactPermissionsUpdate), 2)
}

func TestUpdatePositionWithoutRoomOnlyStores(t *testing.T) {
	f := newFixture()
	f.addUser("alice", "Alice")
	f.addDevice("device-1", "alice")

	require.NoError(t, f.orch.UpdatePosition(context.Background(), "alice", "device-1", 48.0, 2.0))
	assert.Zero(t, f.wf.countCalls("PushEligibilityUpdate"))

	d, err := f.store.bundle().Devices.FindByID(context.Background(), "device-1")
	require.NoError(t, err)
	require.NotNil(t, d.Lat)
	assert.InDelta(t, 48.0, *d.Lat, 1e-9)
}

func TestUpdatePositionUnconstrainedRoomIsQuiet(t *testing.T) {
	f := newFixture()
	f.addUser("alice", "Alice")
	f.seedActiveRoom("room-1", "Anywhere", "alice", true)
	f.addDevice("device-1", "alice")

	require.NoError(t, f.orch.UpdatePosition(context.Background(), "alice", "device-1", 48.0, 2.0))
	assert.Zero(t, f.wf.countCalls("PushEligibilityUpdate"))
}

func TestVoteForTrackRequiresMembership(t *testing.T) {
	f := newFixture()
	f.addUser("alice", "Alice")
	f.addUser("bob", "Bob")
	f.seedActiveRoom("room-1", "Party", "alice", true)

	err := f.orch.VoteForTrack(context.Background(), "bob", "room-1", "track-1")
	assert.ErrorIs(t, err, core.ErrValidation)
	assert.Zero(t, f.wf.countCalls("VoteForTrack"))
}

func TestVoteForTrackForwards(t *testing.T) {
	f := newFixture()
	f.addUser("alice", "Alice")
	f.seedActiveRoom("room-1", "Party", "alice", true)

	require.NoError(t, f.orch.VoteForTrack(context.Background(), "alice", "room-1", "track-1"))
	assert.Equal(t, 1, f.wf.countCalls("VoteForTrack room-1 alice track-1"))

	err := f.orch.VoteForTrack(context.Background(), "alice", "room-1", "")
	assert.ErrorIs(t, err, core.ErrValidation)
}
