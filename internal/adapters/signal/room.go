package signal

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/mberthe/chorus/internal/app/orch"
	"github.com/mberthe/chorus/internal/core"
	"github.com/mberthe/chorus/internal/domain"
)

func (ctl *SignalWSController) handleCreateRoom(
	ctx context.Context,
	s session,
	conn *WsSignalConn,
	data []byte,
) {
	var p orch.CreateRoomParams
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad create payload")
		ctl.sendError(conn, "bad_payload")
		return
	}

	log.Info().Str("module", "signal").Str("sid", string(s.sid)).Str("name", p.Name).Msg("create room")
	state, err := ctl.Orch.CreateRoom(ctx, s.userID, s.deviceID, p)
	if err != nil {
		ctl.sendError(conn, err.Error())
		return
	}
	ctl.sendFact(conn, core.FactJoinAcknowledgement, core.JoinAcknowledgementPayload{
		RoomID: state.RoomID,
		State:  state,
	})
}

func (ctl *SignalWSController) handleJoinRoom(
	ctx context.Context,
	s session,
	conn *WsSignalConn,
	data []byte,
) {
	type joinPayload struct {
		Type   string `json:"type"`
		RoomID string `json:"roomID"`
	}
	var p joinPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad join payload")
		ctl.sendError(conn, "bad_payload")
		return
	}
	if p.RoomID == "" {
		ctl.sendError(conn, "roomID is required")
		return
	}

	log.Info().Str("module", "signal").Str("sid", string(s.sid)).Str("room_id", p.RoomID).Msg("join room")
	if err := ctl.Orch.JoinRoom(ctx, s.userID, s.deviceID, domain.RoomID(p.RoomID)); err != nil {
		ctl.sendError(conn, err.Error())
	}
	// The acknowledgement travels through the hub so every device of
	// the user converges, not only the issuing one.
}

func (ctl *SignalWSController) handleLeaveRoom(
	ctx context.Context,
	s session,
	conn *WsSignalConn,
) {
	roomID, ok := ctl.Orch.Registry.RoomOf(s.userID)
	if !ok {
		ctl.sendError(conn, "not in a room")
		return
	}

	log.Info().Str("module", "signal").Str("sid", string(s.sid)).Str("room_id", string(roomID)).Msg("leave room")
	if err := ctl.Orch.LeaveRoom(ctx, s.userID, roomID); err != nil {
		ctl.sendError(conn, err.Error())
		return
	}
	ctl.sendJSON(conn, map[string]any{"type": "LEFT_ROOM"})
}

func (ctl *SignalWSController) handleInviteUser(
	ctx context.Context,
	s session,
	conn *WsSignalConn,
	data []byte,
) {
	type invitePayload struct {
		Type          string `json:"type"`
		RoomID        string `json:"roomID"`
		InvitedUserID string `json:"invitedUserID"`
	}
	var p invitePayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad invite payload")
		ctl.sendError(conn, "bad_payload")
		return
	}
	if p.RoomID == "" || p.InvitedUserID == "" {
		ctl.sendError(conn, "roomID and invitedUserID are required")
		return
	}

	log.Info().Str("module", "signal").Str("sid", string(s.sid)).Str("room_id", p.RoomID).Str("invited", p.InvitedUserID).Msg("invite user")
	err := ctl.Orch.InviteUser(ctx, s.userID, domain.UserID(p.InvitedUserID), domain.RoomID(p.RoomID))
	if err != nil {
		ctl.sendError(conn, err.Error())
	}
}

func (ctl *SignalWSController) handleUsersList(
	ctx context.Context,
	s session,
	conn *WsSignalConn,
	data []byte,
) {
	type usersListPayload struct {
		Type   string `json:"type"`
		RoomID string `json:"roomID"`
	}
	var p usersListPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad users list payload")
		ctl.sendError(conn, "bad_payload")
		return
	}

	users, err := ctl.Orch.UsersList(ctx, s.userID, domain.RoomID(p.RoomID))
	if err != nil {
		ctl.sendError(conn, err.Error())
		return
	}
	resp := struct {
		Type   string                  `json:"type"`
		RoomID string                  `json:"roomID"`
		Users  []orch.UsersListElement `json:"users"`
	}{
		Type:   "USERS_LIST",
		RoomID: p.RoomID,
		Users:  users,
	}
	ctl.sendJSON(conn, resp)
}
