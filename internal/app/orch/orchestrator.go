package orch

import (
	"context"
	"sync"

	"github.com/mberthe/chorus/internal/app"
	"github.com/mberthe/chorus/internal/core"
	"github.com/mberthe/chorus/internal/domain"
	"github.com/rs/zerolog/log"
)

// lifecycle is unidirectional: a room is created exactly once and no
// state is re-enterable.
type lifecycle int

const (
	stateCreating lifecycle = iota
	stateActive
	stateTerminating
	stateGone
)

// roomHandle serializes every command touching one room. Independent
// rooms proceed fully in parallel; within a room no second command
// runs until the in-flight one, including its RPCs, resolves.
type roomHandle struct {
	mu       sync.Mutex
	state    lifecycle
	unsafe   bool
	lastFits map[domain.UserID]bool
}

// Orchestrator owns room lifecycle against the three sources of truth:
// the repository, the workflow engine and the live session registry.
type Orchestrator struct {
	Registry  *app.Registry
	Hub       *app.Hub
	Repos     core.Repositories
	Workflow  core.WorkflowClient
	Geocoder  core.Geocoder
	Evaluator *app.Evaluator

	mu      sync.Mutex
	handles map[domain.RoomID]*roomHandle
}

func New(registry *app.Registry, hub *app.Hub, repos core.Repositories, wf core.WorkflowClient, geo core.Geocoder) *Orchestrator {
	o := &Orchestrator{
		Registry:  registry,
		Hub:       hub,
		Repos:     repos,
		Workflow:  wf,
		Geocoder:  geo,
		Evaluator: app.NewEvaluator(),
		handles:   make(map[domain.RoomID]*roomHandle),
	}
	registry.OnUserWentOffline(o.onUserWentOffline)
	return o
}

func (o *Orchestrator) handle(roomID domain.RoomID) *roomHandle {
	o.mu.Lock()
	defer o.mu.Unlock()
	h, ok := o.handles[roomID]
	if !ok {
		h = &roomHandle{state: stateActive, lastFits: make(map[domain.UserID]bool)}
		o.handles[roomID] = h
	}
	return h
}

func (o *Orchestrator) newHandle(roomID domain.RoomID) *roomHandle {
	o.mu.Lock()
	defer o.mu.Unlock()
	h := &roomHandle{state: stateCreating, lastFits: make(map[domain.UserID]bool)}
	o.handles[roomID] = h
	return h
}

// failClosed marks the room unsafe after a consistency error. No
// repair is attempted; subsequent commands are rejected.
func (h *roomHandle) failClosed(roomID domain.RoomID, err error) error {
	h.unsafe = true
	log.Error().Err(err).Str("module", "orch").Str("room", string(roomID)).Msg("consistency error, room fails closed")
	return err
}

// onUserWentOffline runs after the user's last session dropped. The
// user leaves whatever listening room they were in; if they were the
// creator this cascades into termination.
func (o *Orchestrator) onUserWentOffline(userID domain.UserID, roomID domain.RoomID) {
	if roomID == "" {
		return
	}
	log.Info().Str("module", "orch").Str("user", string(userID)).Str("room", string(roomID)).Msg("user went offline, leaving room")
	if err := o.LeaveRoom(context.Background(), userID, roomID); err != nil {
		log.Error().Err(err).Str("module", "orch").Str("user", string(userID)).Str("room", string(roomID)).Msg("offline leave failed")
	}
}

// RetrieveContext builds the full state snapshot pushed to a fresh
// session whose user already has an active room association. It is the
// resynchronization substitute for any missed at-most-once broadcast.
func (o *Orchestrator) RetrieveContext(ctx context.Context, userID domain.UserID) (*core.RoomContextSnapshotPayload, error) {
	user, err := o.Repos.Users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.ActiveRoomID == "" {
		return nil, nil
	}
	room, err := o.Repos.Rooms.FindByID(ctx, user.ActiveRoomID)
	if err != nil {
		return nil, err
	}
	state, err := o.Workflow.GetState(ctx, room.ID, room.RunID, userID)
	if err != nil {
		return nil, core.ExternalFailure("get state", err)
	}
	return &core.RoomContextSnapshotPayload{RoomID: room.ID, State: state}, nil
}
