package client

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/mberthe/chorus/internal/core"
	"github.com/mberthe/chorus/internal/domain"
)

// ErrMutationInFlight rejects a playlist command while the previous
// one has not been acknowledged yet.
var ErrMutationInFlight = errors.New("a track operation is already in flight")

// Commander sends commands upstream. The websocket dialer implements
// it; tests substitute a recorder.
type Commander interface {
	Send(v any) error
}

// Supervisor mirrors server-side room topology on the client: one
// actor per playlist room, plus the single listening-room state. All
// inbound facts funnel through Dispatch.
type Supervisor struct {
	cmd Commander

	mu     sync.Mutex
	actors map[domain.RoomID]*roomActor

	listening *ListeningRoomState
}

// ListeningRoomState is the client copy of the authoritative state.
type ListeningRoomState struct {
	RoomID                 domain.RoomID
	State                  *core.WorkflowState
	FitsPositionConstraint bool
}

func NewSupervisor(cmd Commander) *Supervisor {
	return &Supervisor{
		cmd:    cmd,
		actors: make(map[domain.RoomID]*roomActor),
	}
}

// Dispatch decodes one server frame and routes it. Unknown fact types
// are logged and dropped, never fatal.
func (s *Supervisor) Dispatch(frame core.Frame) {
	var fact core.Fact
	if err := json.Unmarshal(frame, &fact); err != nil {
		log.Error().Err(err).Str("module", "client").Msg("bad fact frame")
		return
	}

	switch fact.Type {
	case core.FactRoomContextSnapshot:
		var p core.RoomContextSnapshotPayload
		if err := json.Unmarshal(fact.Payload, &p); err != nil {
			log.Error().Err(err).Str("module", "client").Msg("bad context snapshot")
			return
		}
		s.setListening(p.RoomID, p.State)
	case core.FactJoinAcknowledgement:
		var p core.JoinAcknowledgementPayload
		if err := json.Unmarshal(fact.Payload, &p); err != nil {
			log.Error().Err(err).Str("module", "client").Msg("bad join acknowledgement")
			return
		}
		s.setListening(p.RoomID, p.State)
	case core.FactForcedDisconnection:
		s.clearListening()
	case core.FactPermissionsUpdate:
		var p core.PermissionsUpdatePayload
		if err := json.Unmarshal(fact.Payload, &p); err != nil {
			log.Error().Err(err).Str("module", "client").Msg("bad permissions update")
			return
		}
		s.updatePermissions(p)
	case core.FactTrackListUpdate:
		var p core.TrackListUpdatePayload
		if err := json.Unmarshal(fact.Payload, &p); err != nil {
			log.Error().Err(err).Str("module", "client").Msg("bad track list update")
			return
		}
		s.actorFor(p.RoomID).deliver(fact)
	case core.FactTrackOpAck:
		var p core.TrackOpAckPayload
		if err := json.Unmarshal(fact.Payload, &p); err != nil {
			log.Error().Err(err).Str("module", "client").Msg("bad track op ack")
			return
		}
		s.actorFor(p.RoomID).deliver(fact)
	case core.FactGetContextFailure:
		var p core.GetContextFailurePayload
		if err := json.Unmarshal(fact.Payload, &p); err != nil {
			log.Error().Err(err).Str("module", "client").Msg("bad context failure")
			return
		}
		if p.RoomID == "" {
			// Global resynchronization failure; the listening room
			// state is unknown, drop it.
			s.clearListening()
			return
		}
		s.stopActor(p.RoomID)
	default:
		log.Warn().Str("module", "client").Str("fact", string(fact.Type)).Msg("unknown fact")
	}
}

func (s *Supervisor) setListening(roomID domain.RoomID, state *core.WorkflowState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if roomID == "" {
		s.listening = nil
		return
	}
	s.listening = &ListeningRoomState{RoomID: roomID, State: state}
	log.Info().Str("module", "client").Str("room", string(roomID)).Msg("listening room state set")
}

func (s *Supervisor) clearListening() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listening = nil
	log.Info().Str("module", "client").Msg("listening room cleared")
}

func (s *Supervisor) updatePermissions(p core.PermissionsUpdatePayload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listening == nil || s.listening.RoomID != p.RoomID {
		return
	}
	s.listening.FitsPositionConstraint = p.UserFitsPositionConstraint
}

// ListeningRoom returns a copy of the current listening-room state.
func (s *Supervisor) ListeningRoom() (ListeningRoomState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listening == nil {
		return ListeningRoomState{}, false
	}
	return *s.listening, true
}

// SyncPlaylists reconciles the actor table against the authoritative
// room list: new rooms get an actor, kept rooms keep theirs with all
// local state, gone rooms are stopped.
func (s *Supervisor) SyncPlaylists(roomIDs []domain.RoomID) {
	want := make(map[domain.RoomID]struct{}, len(roomIDs))
	for _, id := range roomIDs {
		want[id] = struct{}{}
	}

	s.mu.Lock()
	var stopped []*roomActor
	for id, a := range s.actors {
		if _, ok := want[id]; !ok {
			stopped = append(stopped, a)
			delete(s.actors, id)
		}
	}
	for id := range want {
		if _, ok := s.actors[id]; !ok {
			s.actors[id] = newRoomActor(id)
		}
	}
	s.mu.Unlock()

	for _, a := range stopped {
		a.stop()
	}
}

// PlaylistRooms lists the rooms with a live actor.
func (s *Supervisor) PlaylistRooms() []domain.RoomID {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.RoomID, 0, len(s.actors))
	for id := range s.actors {
		out = append(out, id)
	}
	return out
}

func (s *Supervisor) actorFor(roomID domain.RoomID) *roomActor {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.actors[roomID]
	if !ok {
		a = newRoomActor(roomID)
		s.actors[roomID] = a
	}
	return a
}

func (s *Supervisor) stopActor(roomID domain.RoomID) {
	s.mu.Lock()
	a, ok := s.actors[roomID]
	delete(s.actors, roomID)
	s.mu.Unlock()
	if ok {
		a.stop()
		log.Info().Str("module", "client").Str("room", string(roomID)).Msg("playlist actor stopped")
	}
}

// AddTrack issues one playlist mutation. The room freezes until the
// matching ack comes back; concurrent mutations on the same room are
// rejected locally.
func (s *Supervisor) AddTrack(roomID domain.RoomID, track domain.PlaylistTrack) error {
	a := s.actorFor(roomID)
	if !a.freeze() {
		return ErrMutationInFlight
	}
	return s.sendOrThaw(a, map[string]any{
		"type":   "MPE_ADD_TRACK",
		"roomID": string(roomID),
		"track":  track,
	})
}

func (s *Supervisor) DeleteTrack(roomID domain.RoomID, trackID string) error {
	a := s.actorFor(roomID)
	if !a.freeze() {
		return ErrMutationInFlight
	}
	return s.sendOrThaw(a, map[string]any{
		"type":    "MPE_DELETE_TRACK",
		"roomID":  string(roomID),
		"trackID": trackID,
	})
}

func (s *Supervisor) MoveTrack(roomID domain.RoomID, trackID string, delta int) error {
	a := s.actorFor(roomID)
	if !a.freeze() {
		return ErrMutationInFlight
	}
	return s.sendOrThaw(a, map[string]any{
		"type":    "MPE_MOVE_TRACK",
		"roomID":  string(roomID),
		"trackID": trackID,
		"delta":   delta,
	})
}

// Tracks returns the client copy of one playlist room's track list.
func (s *Supervisor) Tracks(roomID domain.RoomID) []domain.PlaylistTrack {
	return s.actorFor(roomID).Tracks()
}

// sendOrThaw unfreezes the actor when the command never left the
// process; no ack will ever arrive for it.
func (s *Supervisor) sendOrThaw(a *roomActor, cmd any) error {
	if err := s.cmd.Send(cmd); err != nil {
		a.thaw()
		return err
	}
	return nil
}
