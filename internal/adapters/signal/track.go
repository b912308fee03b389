package signal

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/mberthe/chorus/internal/domain"
)

func (ctl *SignalWSController) handleVoteForTrack(
	ctx context.Context,
	s session,
	conn *WsSignalConn,
	data []byte,
) {
	type votePayload struct {
		Type    string `json:"type"`
		RoomID  string `json:"roomID"`
		TrackID string `json:"trackID"`
	}
	var p votePayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad vote payload")
		ctl.sendError(conn, "bad_payload")
		return
	}

	if err := ctl.Orch.VoteForTrack(ctx, s.userID, domain.RoomID(p.RoomID), p.TrackID); err != nil {
		ctl.sendError(conn, err.Error())
	}
}

func (ctl *SignalWSController) handleGoToNextTrack(
	ctx context.Context,
	s session,
	conn *WsSignalConn,
	data []byte,
) {
	type nextPayload struct {
		Type   string `json:"type"`
		RoomID string `json:"roomID"`
	}
	var p nextPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad next track payload")
		ctl.sendError(conn, "bad_payload")
		return
	}

	if err := ctl.Orch.RequestNextTrack(ctx, s.userID, domain.RoomID(p.RoomID)); err != nil {
		ctl.sendError(conn, err.Error())
	}
}

func (ctl *SignalWSController) handleUpdatePosition(
	ctx context.Context,
	s session,
	conn *WsSignalConn,
	data []byte,
) {
	type positionPayload struct {
		Type string  `json:"type"`
		Lat  float64 `json:"lat"`
		Lng  float64 `json:"lng"`
	}
	var p positionPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad position payload")
		ctl.sendError(conn, "bad_payload")
		return
	}

	if err := ctl.Orch.UpdatePosition(ctx, s.userID, s.deviceID, p.Lat, p.Lng); err != nil {
		ctl.sendError(conn, err.Error())
	}
}
