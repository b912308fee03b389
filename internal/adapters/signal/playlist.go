package signal

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/mberthe/chorus/internal/app/orch"
	"github.com/mberthe/chorus/internal/core"
	"github.com/mberthe/chorus/internal/domain"
)

func (ctl *SignalWSController) handleCreatePlaylist(
	ctx context.Context,
	s session,
	conn *WsSignalConn,
	data []byte,
) {
	var p orch.CreatePlaylistParams
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad playlist create payload")
		ctl.sendError(conn, "bad_payload")
		return
	}

	room, err := ctl.Orch.CreatePlaylist(ctx, s.userID, p)
	if err != nil {
		ctl.sendError(conn, err.Error())
		return
	}
	resp := struct {
		Type   string `json:"type"`
		RoomID string `json:"roomID"`
		Name   string `json:"name"`
	}{
		Type:   "MPE_ROOM_CREATED",
		RoomID: string(room.ID),
		Name:   string(room.Name),
	}
	ctl.sendJSON(conn, resp)
}

func (ctl *SignalWSController) handleJoinPlaylist(
	ctx context.Context,
	s session,
	conn *WsSignalConn,
	data []byte,
) {
	var p struct {
		Type   string `json:"type"`
		RoomID string `json:"roomID"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad playlist join payload")
		ctl.sendError(conn, "bad_payload")
		return
	}

	tracks, err := ctl.Orch.JoinPlaylist(ctx, s.userID, domain.RoomID(p.RoomID))
	if err != nil {
		ctl.sendError(conn, err.Error())
		return
	}
	ctl.sendFact(conn, core.FactTrackListUpdate, core.TrackListUpdatePayload{
		RoomID: domain.RoomID(p.RoomID),
		Tracks: tracks,
	})
}

func (ctl *SignalWSController) handleLeavePlaylist(
	ctx context.Context,
	s session,
	conn *WsSignalConn,
	data []byte,
) {
	var p struct {
		Type   string `json:"type"`
		RoomID string `json:"roomID"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad playlist leave payload")
		ctl.sendError(conn, "bad_payload")
		return
	}

	if err := ctl.Orch.LeavePlaylist(ctx, s.userID, domain.RoomID(p.RoomID)); err != nil {
		ctl.sendError(conn, err.Error())
		return
	}
	ctl.sendJSON(conn, map[string]any{"type": "MPE_LEFT_ROOM", "roomID": p.RoomID})
}

func (ctl *SignalWSController) handlePlaylistContext(
	ctx context.Context,
	s session,
	conn *WsSignalConn,
	data []byte,
) {
	var p struct {
		Type   string `json:"type"`
		RoomID string `json:"roomID"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad playlist context payload")
		ctl.sendError(conn, "bad_payload")
		return
	}

	tracks, err := ctl.Orch.PlaylistContext(ctx, s.userID, domain.RoomID(p.RoomID))
	if err != nil {
		ctl.sendFact(conn, core.FactGetContextFailure, core.GetContextFailurePayload{RoomID: domain.RoomID(p.RoomID)})
		return
	}
	ctl.sendFact(conn, core.FactTrackListUpdate, core.TrackListUpdatePayload{
		RoomID: domain.RoomID(p.RoomID),
		Tracks: tracks,
	})
}

func (ctl *SignalWSController) handlePlaylistAddTrack(
	ctx context.Context,
	s session,
	conn *WsSignalConn,
	data []byte,
) {
	var p struct {
		Type   string               `json:"type"`
		RoomID string               `json:"roomID"`
		Track  domain.PlaylistTrack `json:"track"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad add track payload")
		ctl.sendError(conn, "bad_payload")
		return
	}

	// Failure acks travel through the hub; nothing else to send here.
	if err := ctl.Orch.PlaylistAddTrack(ctx, s.userID, domain.RoomID(p.RoomID), p.Track); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("room_id", p.RoomID).Msg("add track rejected")
	}
}

func (ctl *SignalWSController) handlePlaylistDeleteTrack(
	ctx context.Context,
	s session,
	conn *WsSignalConn,
	data []byte,
) {
	var p struct {
		Type    string `json:"type"`
		RoomID  string `json:"roomID"`
		TrackID string `json:"trackID"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad delete track payload")
		ctl.sendError(conn, "bad_payload")
		return
	}

	if err := ctl.Orch.PlaylistDeleteTrack(ctx, s.userID, domain.RoomID(p.RoomID), p.TrackID); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("room_id", p.RoomID).Msg("delete track rejected")
	}
}

func (ctl *SignalWSController) handlePlaylistMoveTrack(
	ctx context.Context,
	s session,
	conn *WsSignalConn,
	data []byte,
) {
	var p struct {
		Type    string `json:"type"`
		RoomID  string `json:"roomID"`
		TrackID string `json:"trackID"`
		Delta   int    `json:"delta"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad move track payload")
		ctl.sendError(conn, "bad_payload")
		return
	}

	if err := ctl.Orch.PlaylistMoveTrack(ctx, s.userID, domain.RoomID(p.RoomID), p.TrackID, p.Delta); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("room_id", p.RoomID).Msg("move track rejected")
	}
}
