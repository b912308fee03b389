package orch

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/mberthe/chorus/internal/core"
	"github.com/mberthe/chorus/internal/domain"
	"github.com/rs/zerolog/log"
)

// Playlist rooms (MPE) are independent of listening-room membership: a
// user may belong to many at once, so none of these operations touch
// User.ActiveRoomID or the registry room association.

type CreatePlaylistParams struct {
	Name          string                 `json:"name"`
	IsOpen        bool                   `json:"isOpen"`
	InitialTracks []domain.PlaylistTrack `json:"initialTracks"`
}

func (o *Orchestrator) CreatePlaylist(ctx context.Context, creatorID domain.UserID, params CreatePlaylistParams) (*domain.PlaylistRoom, error) {
	if params.Name == "" {
		return nil, fmt.Errorf("%w: playlist name is required", core.ErrValidation)
	}
	if _, err := o.Repos.Users.FindByID(ctx, creatorID); err != nil {
		return nil, err
	}

	room := &domain.PlaylistRoom{
		ID:        domain.RoomID(uuid.NewString()),
		Name:      domain.RoomName(params.Name),
		CreatorID: creatorID,
		IsOpen:    params.IsOpen,
	}
	if err := o.Repos.Playlists.Create(ctx, room); err != nil {
		return nil, err
	}
	if err := o.Repos.Playlists.AssociateUser(ctx, room.ID, creatorID); err != nil {
		_ = o.Repos.Playlists.Delete(ctx, room.ID)
		return nil, err
	}
	for i, track := range params.InitialTracks {
		track.Position = i
		if err := o.Repos.Playlists.AddTrack(ctx, room.ID, track); err != nil {
			return nil, err
		}
	}
	log.Info().Str("module", "orch").Str("playlist", string(room.ID)).Str("user", string(creatorID)).Msg("playlist created")
	return room, nil
}

func (o *Orchestrator) JoinPlaylist(ctx context.Context, userID domain.UserID, roomID domain.RoomID) ([]domain.PlaylistTrack, error) {
	h := o.handle(roomID)
	h.mu.Lock()
	defer h.mu.Unlock()

	room, err := o.Repos.Playlists.FindByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.IsOpen {
		return nil, core.ErrNotInvited
	}
	if err := o.Repos.Playlists.AssociateUser(ctx, roomID, userID); err != nil {
		return nil, err
	}
	tracks, err := o.Repos.Playlists.Tracks(ctx, roomID)
	if err != nil {
		return nil, err
	}
	log.Info().Str("module", "orch").Str("playlist", string(roomID)).Str("user", string(userID)).Msg("joined playlist")
	return tracks, nil
}

// LeavePlaylist detaches the user. A leaving creator deletes the
// playlist; members receive a context-failure fact so their room
// actors tear themselves down.
func (o *Orchestrator) LeavePlaylist(ctx context.Context, userID domain.UserID, roomID domain.RoomID) error {
	h := o.handle(roomID)
	h.mu.Lock()
	defer h.mu.Unlock()

	room, err := o.Repos.Playlists.FindByID(ctx, roomID)
	if err != nil {
		return err
	}
	if err := o.Repos.Playlists.DissociateUser(ctx, roomID, userID); err != nil {
		return err
	}
	if userID != room.CreatorID {
		return nil
	}

	members, err := o.Repos.Playlists.Members(ctx, roomID)
	if err != nil {
		return err
	}
	memberIDs := make([]domain.UserID, 0, len(members))
	for _, m := range members {
		memberIDs = append(memberIDs, m.ID)
	}
	o.Hub.ToUsers(memberIDs, core.FactGetContextFailure, core.GetContextFailurePayload{RoomID: roomID})
	if err := o.Repos.Playlists.Delete(ctx, roomID); err != nil {
		return err
	}
	log.Info().Str("module", "orch").Str("playlist", string(roomID)).Msg("playlist deleted with creator leave")
	return nil
}

// PlaylistContext serves the resynchronization snapshot for one
// playlist room; a non-member gets a NotFound so the client stops the
// corresponding actor.
func (o *Orchestrator) PlaylistContext(ctx context.Context, userID domain.UserID, roomID domain.RoomID) ([]domain.PlaylistTrack, error) {
	member, err := o.Repos.Playlists.IsMember(ctx, roomID, userID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, core.ErrRoomNotFound
	}
	return o.Repos.Playlists.Tracks(ctx, roomID)
}

// playlistMutation wraps the shared shape of add/delete/move: check
// membership, mutate, ack the issuer, broadcast the new order to the
// other members. The issuer's ack always precedes the broadcast.
func (o *Orchestrator) playlistMutation(ctx context.Context, userID domain.UserID, roomID domain.RoomID, mutate func() error) error {
	h := o.handle(roomID)
	h.mu.Lock()
	defer h.mu.Unlock()

	member, err := o.Repos.Playlists.IsMember(ctx, roomID, userID)
	if err != nil {
		return err
	}
	if !member {
		o.Hub.ToUser(userID, core.FactTrackOpAck, core.TrackOpAckPayload{RoomID: roomID, OK: false, Reason: "not a member"})
		return core.ErrRoomNotFound
	}

	if err := mutate(); err != nil {
		o.Hub.ToUser(userID, core.FactTrackOpAck, core.TrackOpAckPayload{RoomID: roomID, OK: false, Reason: err.Error()})
		return err
	}

	tracks, err := o.Repos.Playlists.Tracks(ctx, roomID)
	if err != nil {
		return err
	}
	o.Hub.ToUser(userID, core.FactTrackOpAck, core.TrackOpAckPayload{RoomID: roomID, OK: true, Tracks: tracks})

	members, err := o.Repos.Playlists.Members(ctx, roomID)
	if err != nil {
		return err
	}
	for _, m := range members {
		if m.ID == userID {
			continue
		}
		o.Hub.ToUser(m.ID, core.FactTrackListUpdate, core.TrackListUpdatePayload{RoomID: roomID, Tracks: tracks})
	}
	return nil
}

func (o *Orchestrator) PlaylistAddTrack(ctx context.Context, userID domain.UserID, roomID domain.RoomID, track domain.PlaylistTrack) error {
	if track.ID == "" {
		return fmt.Errorf("%w: track id is required", core.ErrValidation)
	}
	return o.playlistMutation(ctx, userID, roomID, func() error {
		return o.Repos.Playlists.AddTrack(ctx, roomID, track)
	})
}

func (o *Orchestrator) PlaylistDeleteTrack(ctx context.Context, userID domain.UserID, roomID domain.RoomID, trackID string) error {
	return o.playlistMutation(ctx, userID, roomID, func() error {
		return o.Repos.Playlists.DeleteTrack(ctx, roomID, trackID)
	})
}

// PlaylistMoveTrack moves a track one step up (delta -1) or down (+1).
func (o *Orchestrator) PlaylistMoveTrack(ctx context.Context, userID domain.UserID, roomID domain.RoomID, trackID string, delta int) error {
	if delta != -1 && delta != 1 {
		return fmt.Errorf("%w: move delta must be -1 or 1", core.ErrValidation)
	}
	return o.playlistMutation(ctx, userID, roomID, func() error {
		return o.Repos.Playlists.MoveTrack(ctx, roomID, trackID, delta)
	})
}
