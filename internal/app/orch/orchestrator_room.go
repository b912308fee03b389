package orch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mberthe/chorus/internal/app"
	"github.com/mberthe/chorus/internal/core"
	"github.com/mberthe/chorus/internal/domain"
	"github.com/rs/zerolog/log"
)

// ConstraintParams is the client-facing shape of a geofence: a place
// reference to geocode plus a radius and time window.
type ConstraintParams struct {
	PlaceID  string    `json:"placeID"`
	Radius   float64   `json:"radius"`
	StartsAt time.Time `json:"startsAt"`
	EndsAt   time.Time `json:"endsAt"`
}

type CreateRoomParams struct {
	Name                    string            `json:"name"`
	IsOpen                  bool              `json:"isOpen"`
	OnlyInvitedUsersCanVote bool              `json:"isOpenOnlyInvitedUsersCanVote"`
	InitialTracksIDs        []string          `json:"initialTracksIDs"`
	Constraints             *ConstraintParams `json:"physicalAndTimeConstraints,omitempty"`
}

// CreateRoom runs the write-ahead-then-confirm saga: tentative
// repository rows first, then the workflow run; a workflow failure
// compensates synchronously so the row never outlives a dead run.
func (o *Orchestrator) CreateRoom(ctx context.Context, creatorID domain.UserID, deviceID domain.DeviceID, params CreateRoomParams) (*core.WorkflowState, error) {
	if params.Name == "" {
		return nil, fmt.Errorf("%w: room name is required", core.ErrValidation)
	}

	creator, err := o.Repos.Users.FindByID(ctx, creatorID)
	if err != nil {
		return nil, err
	}

	// At most one listening room per user: creating while in a room
	// leaves the previous one first.
	if prev, ok := o.Registry.RoomOf(creatorID); ok {
		if err := o.LeaveRoom(ctx, creatorID, prev); err != nil {
			return nil, err
		}
	}

	name := domain.RoomName(params.Name)
	if _, err := o.Repos.Rooms.FindByName(ctx, name); err == nil {
		// Taken name gets the creator's nickname suffixed.
		name = domain.RoomName(fmt.Sprintf("%s (%s)", params.Name, creator.Nickname))
	}

	var constraints *domain.RoomConstraints
	var creatorFits *bool
	if params.Constraints != nil {
		lat, lng, err := o.Geocoder.Coords(ctx, params.Constraints.PlaceID)
		if err != nil {
			return nil, fmt.Errorf("%w: geocoding %q: %v", core.ErrValidation, params.Constraints.PlaceID, err)
		}
		constraints = &domain.RoomConstraints{
			Lat:      lat,
			Lng:      lng,
			Radius:   params.Constraints.Radius,
			StartsAt: params.Constraints.StartsAt,
			EndsAt:   params.Constraints.EndsAt,
		}
		devices, err := o.Repos.Devices.WithFreshPosition(ctx, creatorID, app.PositionFreshness)
		if err != nil {
			return nil, err
		}
		fits := o.Evaluator.FitsPosition(constraints, devices)
		creatorFits = &fits
	}

	roomID := domain.RoomID(uuid.NewString())
	h := o.newHandle(roomID)
	h.mu.Lock()
	defer h.mu.Unlock()

	log.Info().Str("module", "orch").Str("user", string(creatorID)).Str("room", string(roomID)).Msg("create room")

	room := &domain.Room{
		ID:                      roomID,
		Name:                    name,
		CreatorID:               creatorID,
		IsOpen:                  params.IsOpen,
		OnlyInvitedUsersCanVote: params.OnlyInvitedUsersCanVote,
		Constraints:             constraints,
	}

	// Tentative writes; every one of them is compensated on RPC failure.
	if err := o.Repos.Rooms.Create(ctx, room); err != nil {
		h.state = stateGone
		return nil, err
	}
	if err := o.Repos.Rooms.AssociateUser(ctx, roomID, creatorID); err != nil {
		_ = o.Repos.Rooms.Delete(ctx, roomID)
		h.state = stateGone
		return nil, err
	}
	if err := o.Repos.Users.SetActiveRoom(ctx, creatorID, roomID); err != nil {
		_ = o.Repos.Rooms.Delete(ctx, roomID)
		h.state = stateGone
		return nil, err
	}
	o.Registry.SetRoom(creatorID, roomID)

	resp, err := o.Workflow.CreateRun(ctx, core.CreateRunParams{
		RoomID:                        roomID,
		RoomName:                      name,
		CreatorID:                     creatorID,
		DeviceID:                      deviceID,
		InitialTracksIDs:              params.InitialTracksIDs,
		IsOpen:                        params.IsOpen,
		OnlyInvitedUsersCanVote:       params.OnlyInvitedUsersCanVote,
		Constraints:                   constraints,
		CreatorFitsPositionConstraint: creatorFits,
	})
	if err != nil {
		// Compensation runs synchronously as part of this operation.
		o.Registry.ClearRoom(creatorID)
		_ = o.Repos.Users.SetActiveRoom(ctx, creatorID, "")
		_ = o.Repos.Rooms.Delete(ctx, roomID)
		h.state = stateGone
		log.Error().Err(err).Str("module", "orch").Str("room", string(roomID)).Msg("workflow create failed, rolled back")
		return nil, core.ExternalFailure("create run", err)
	}

	if err := o.Repos.Rooms.SetRunID(ctx, roomID, resp.RunID); err != nil {
		// The run is already live; it goes down with the rest.
		_ = o.Workflow.TerminateRun(ctx, roomID, resp.RunID)
		o.Registry.ClearRoom(creatorID)
		_ = o.Repos.Users.SetActiveRoom(ctx, creatorID, "")
		_ = o.Repos.Rooms.Delete(ctx, roomID)
		h.state = stateGone
		log.Error().Err(err).Str("module", "orch").Str("room", string(roomID)).Msg("persisting run id failed, rolled back")
		return nil, err
	}
	h.state = stateActive
	if creatorFits != nil {
		h.lastFits[creatorID] = *creatorFits
	}

	log.Info().Str("module", "orch").Str("room", string(roomID)).Str("run", string(resp.RunID)).Msg("room active")
	return resp.State, nil
}

// JoinRoom gates on invitations, associates the user and informs the
// workflow; the invited flag is what the workflow derives vote rights
// from in vote-restricted rooms.
func (o *Orchestrator) JoinRoom(ctx context.Context, userID domain.UserID, deviceID domain.DeviceID, roomID domain.RoomID) error {
	// At most one listening room per user: joining while in another
	// room leaves the previous one first.
	if prev, ok := o.Registry.RoomOf(userID); ok && prev != roomID {
		if err := o.LeaveRoom(ctx, userID, prev); err != nil {
			return err
		}
	}

	h := o.handle(roomID)
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.unsafe {
		return core.ErrRoomUnsafe
	}
	if h.state != stateActive {
		return core.ErrRoomNotFound
	}

	room, err := o.Repos.Rooms.FindByID(ctx, roomID)
	if err != nil {
		return err
	}

	invitations, err := o.Repos.Invitations.Query(ctx, roomID, room.CreatorID, userID)
	if err != nil {
		return err
	}
	if len(invitations) > 1 {
		// Each invitation has uniqueness on its content; several rows
		// for one triple is corruption and is never silently resolved.
		return h.failClosed(roomID, fmt.Errorf("%w: room %s user %s: %d rows", core.ErrDuplicateInvitation, roomID, userID, len(invitations)))
	}
	invited := len(invitations) == 1

	if !room.IsOpen && !invited {
		return core.ErrNotInvited
	}

	log.Info().Str("module", "orch").Str("user", string(userID)).Str("room", string(roomID)).Bool("invited", invited).Msg("join room")

	if err := o.Repos.Rooms.AssociateUser(ctx, roomID, userID); err != nil {
		return err
	}
	if err := o.Repos.Users.SetActiveRoom(ctx, userID, roomID); err != nil {
		_ = o.Repos.Rooms.DissociateUser(ctx, roomID, userID)
		return err
	}
	o.Registry.SetRoom(userID, roomID)

	if err := o.Workflow.JoinRun(ctx, roomID, room.RunID, userID, deviceID, invited); err != nil {
		o.Registry.ClearRoom(userID)
		_ = o.Repos.Users.SetActiveRoom(ctx, userID, "")
		_ = o.Repos.Rooms.DissociateUser(ctx, roomID, userID)
		return core.ExternalFailure("join run", err)
	}

	// The acknowledgement reaches the joining session before any later
	// track-list update for this room: both happen under the room lock.
	state, err := o.Workflow.GetState(ctx, roomID, room.RunID, userID)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Str("room", string(roomID)).Msg("get state after join")
	}
	o.Hub.ToUser(userID, core.FactJoinAcknowledgement, core.JoinAcknowledgementPayload{RoomID: roomID, State: state})
	return nil
}

// LeaveRoom dissociates unconditionally. A leaving creator terminates
// the room for everyone.
func (o *Orchestrator) LeaveRoom(ctx context.Context, userID domain.UserID, roomID domain.RoomID) error {
	h := o.handle(roomID)
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state == stateGone {
		o.Registry.ClearRoom(userID)
		return nil
	}

	room, err := o.Repos.Rooms.FindByID(ctx, roomID)
	if err != nil {
		o.Registry.ClearRoom(userID)
		return err
	}

	log.Info().Str("module", "orch").Str("user", string(userID)).Str("room", string(roomID)).Msg("leave room")

	if err := o.Repos.Rooms.DissociateUser(ctx, roomID, userID); err != nil {
		return err
	}
	if err := o.Repos.Users.SetActiveRoom(ctx, userID, ""); err != nil {
		return err
	}
	o.Registry.ClearRoom(userID)
	delete(h.lastFits, userID)

	if userID == room.CreatorID {
		return o.terminateLocked(ctx, h, room, userID)
	}

	if err := o.Workflow.LeaveRun(ctx, roomID, room.RunID, userID); err != nil {
		return core.ExternalFailure("leave run", err)
	}
	return nil
}

// Terminate is idempotent: tearing down a room that is already going
// or gone is a no-op, which covers duplicate triggers from concurrent
// device disconnects.
func (o *Orchestrator) Terminate(ctx context.Context, roomID domain.RoomID) error {
	h := o.handle(roomID)
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state == stateTerminating || h.state == stateGone {
		return nil
	}
	room, err := o.Repos.Rooms.FindByID(ctx, roomID)
	if err != nil {
		h.state = stateGone
		return nil
	}
	return o.terminateLocked(ctx, h, room, "")
}

// terminateLocked broadcasts the forced disconnection BEFORE deleting
// the room row, so no concurrently-joining user can attach to a room
// about to disappear. Caller holds the room lock.
func (o *Orchestrator) terminateLocked(ctx context.Context, h *roomHandle, room *domain.Room, exclude domain.UserID) error {
	h.state = stateTerminating
	log.Info().Str("module", "orch").Str("room", string(room.ID)).Msg("terminate room")

	members, err := o.Repos.Rooms.Members(ctx, room.ID)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Str("room", string(room.ID)).Msg("load members for teardown")
	}

	payload := core.ForcedDisconnectionPayload{RoomID: room.ID}
	if exclude != "" {
		o.Hub.ToRoom(room.ID, core.FactForcedDisconnection, payload, exclude)
	} else {
		o.Hub.ToRoom(room.ID, core.FactForcedDisconnection, payload)
	}

	for _, member := range members {
		if member.ID == exclude {
			continue
		}
		// A member may have moved on to another room; only an
		// association still pointing here is released.
		if current, ok := o.Registry.RoomOf(member.ID); ok && current == room.ID {
			o.Registry.ClearRoom(member.ID)
		}
		if member.ActiveRoomID != room.ID {
			continue
		}
		if err := o.Repos.Users.SetActiveRoom(ctx, member.ID, ""); err != nil {
			log.Error().Err(err).Str("module", "orch").Str("user", string(member.ID)).Msg("release member on teardown")
		}
	}

	if err := o.Workflow.TerminateRun(ctx, room.ID, room.RunID); err != nil {
		// Teardown still completes; the run is unreachable afterwards.
		log.Error().Err(err).Str("module", "orch").Str("room", string(room.ID)).Msg("workflow terminate failed")
	}

	if err := o.Repos.Rooms.Delete(ctx, room.ID); err != nil {
		return err
	}
	h.state = stateGone
	return nil
}

// UsersListElement joins the workflow's view of a member with the
// repository's identity data.
type UsersListElement struct {
	UserID    domain.UserID `json:"userID"`
	Nickname  string        `json:"nickname"`
	IsMe      bool          `json:"isMe"`
	IsCreator bool          `json:"isCreator"`
	CanVote   bool          `json:"canVote"`
}

// UsersList cross-checks the two sources of truth. A workflow user
// with no repository membership row is fatal desync, surfaced, never
// patched over by inventing data.
func (o *Orchestrator) UsersList(ctx context.Context, userID domain.UserID, roomID domain.RoomID) ([]UsersListElement, error) {
	h := o.handle(roomID)
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.unsafe {
		return nil, core.ErrRoomUnsafe
	}
	room, err := o.Repos.Rooms.FindByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	runUsers, err := o.Workflow.GetUsersList(ctx, roomID, room.RunID)
	if err != nil {
		return nil, core.ExternalFailure("get users list", err)
	}
	members, err := o.Repos.Rooms.Members(ctx, roomID)
	if err != nil {
		return nil, err
	}
	byID := make(map[domain.UserID]domain.User, len(members))
	for _, m := range members {
		byID[m.ID] = m
	}

	out := make([]UsersListElement, 0, len(runUsers))
	for _, ru := range runUsers {
		member, ok := byID[ru.UserID]
		if !ok {
			return nil, h.failClosed(roomID, fmt.Errorf("%w: run user %s has no membership row", core.ErrWorkflowDesync, ru.UserID))
		}
		out = append(out, UsersListElement{
			UserID:    ru.UserID,
			Nickname:  member.Nickname,
			IsMe:      ru.UserID == userID,
			IsCreator: ru.UserID == room.CreatorID,
			CanVote:   ru.CanVote,
		})
	}
	if len(out) == 0 {
		return nil, h.failClosed(roomID, fmt.Errorf("%w: room %s", core.ErrEmptyUsersList, roomID))
	}
	return out, nil
}

// InviteUser lets the creator invite another user. Re-inviting the
// same user is idempotent thanks to triple uniqueness.
func (o *Orchestrator) InviteUser(ctx context.Context, emitterID, invitedID domain.UserID, roomID domain.RoomID) error {
	room, err := o.Repos.Rooms.FindByID(ctx, roomID)
	if err != nil {
		return err
	}
	if emitterID != room.CreatorID {
		return fmt.Errorf("%w: only the room creator may invite", core.ErrValidation)
	}
	if invitedID == emitterID {
		return fmt.Errorf("%w: creator cannot invite himself", core.ErrValidation)
	}
	invited, err := o.Repos.Users.FindByID(ctx, invitedID)
	if err != nil {
		return err
	}
	if invited.ActiveRoomID == roomID {
		return fmt.Errorf("%w: invited user is already in the room", core.ErrValidation)
	}
	creator, err := o.Repos.Users.FindByID(ctx, room.CreatorID)
	if err != nil {
		return err
	}

	inv := &domain.Invitation{
		ID:             domain.InvitationID(uuid.NewString()),
		RoomID:         roomID,
		InvitingUserID: emitterID,
		InvitedUserID:  invitedID,
	}
	if err := o.Repos.Invitations.Create(ctx, inv); err != nil && !errors.Is(err, core.ErrDuplicateEntry) {
		return err
	}

	o.Hub.ToUser(invitedID, core.FactRoomInvitation, core.RoomSummary{
		RoomID:      room.ID,
		RoomName:    room.Name,
		CreatorName: creator.Nickname,
		IsOpen:      room.IsOpen,
		IsInvited:   true,
	})
	log.Info().Str("module", "orch").Str("room", string(roomID)).Str("invited", string(invitedID)).Msg("invitation sent")
	return nil
}
