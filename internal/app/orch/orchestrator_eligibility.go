package orch

import (
	"context"
	"fmt"
	"time"

	"github.com/mberthe/chorus/internal/app"
	"github.com/mberthe/chorus/internal/core"
	"github.com/mberthe/chorus/internal/domain"
	"github.com/rs/zerolog/log"
)

// UpdatePosition stores the device fix and, when the user sits in a
// constrained room, re-evaluates the geofence. The delta is pushed to
// the workflow and to the user's own sessions only when the computed
// boolean actually changed.
func (o *Orchestrator) UpdatePosition(ctx context.Context, userID domain.UserID, deviceID domain.DeviceID, lat, lng float64) error {
	if err := o.Repos.Devices.UpdatePosition(ctx, deviceID, lat, lng, time.Now()); err != nil {
		return err
	}

	roomID, ok := o.Registry.RoomOf(userID)
	if !ok {
		return nil
	}

	h := o.handle(roomID)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.unsafe || h.state != stateActive {
		return nil
	}

	room, err := o.Repos.Rooms.FindByID(ctx, roomID)
	if err != nil {
		return err
	}
	if !room.HasConstraints() {
		return nil
	}

	devices, err := o.Repos.Devices.WithFreshPosition(ctx, userID, app.PositionFreshness)
	if err != nil {
		return err
	}
	fits := o.Evaluator.FitsPosition(room.Constraints, devices)

	if last, seen := h.lastFits[userID]; seen && last == fits {
		return nil
	}
	h.lastFits[userID] = fits

	log.Info().Str("module", "orch").Str("user", string(userID)).Str("room", string(roomID)).Bool("fits", fits).Msg("eligibility changed")

	if err := o.Workflow.PushEligibilityUpdate(ctx, roomID, room.RunID, userID, fits); err != nil {
		return core.ExternalFailure("push eligibility update", err)
	}
	o.Hub.ToUser(userID, core.FactPermissionsUpdate, core.PermissionsUpdatePayload{
		RoomID:                     roomID,
		UserFitsPositionConstraint: fits,
	})
	return nil
}

// VoteForTrack forwards a vote to the workflow, which owns scoring.
func (o *Orchestrator) VoteForTrack(ctx context.Context, userID domain.UserID, roomID domain.RoomID, trackID string) error {
	if trackID == "" {
		return fmt.Errorf("%w: trackID is required", core.ErrValidation)
	}
	h := o.handle(roomID)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.unsafe {
		return core.ErrRoomUnsafe
	}
	if current, ok := o.Registry.RoomOf(userID); !ok || current != roomID {
		return fmt.Errorf("%w: user %s is not in room %s", core.ErrValidation, userID, roomID)
	}
	room, err := o.Repos.Rooms.FindByID(ctx, roomID)
	if err != nil {
		return err
	}
	if err := o.Workflow.VoteForTrack(ctx, roomID, room.RunID, userID, trackID); err != nil {
		return core.ExternalFailure("vote for track", err)
	}
	return nil
}

// RequestNextTrack asks the workflow to skip to the next track.
func (o *Orchestrator) RequestNextTrack(ctx context.Context, userID domain.UserID, roomID domain.RoomID) error {
	h := o.handle(roomID)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.unsafe {
		return core.ErrRoomUnsafe
	}
	room, err := o.Repos.Rooms.FindByID(ctx, roomID)
	if err != nil {
		return err
	}
	if err := o.Workflow.RequestNextTrack(ctx, roomID, room.RunID, userID); err != nil {
		return core.ExternalFailure("request next track", err)
	}
	return nil
}
