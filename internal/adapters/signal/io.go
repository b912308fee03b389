package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mberthe/chorus/internal/core"
)

func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				log.Warn().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

func (ctl *SignalWSController) readPump(ctx context.Context, s session, c *WsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", string(s.sid)).Msg("readPump closing")
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("sid", string(s.sid)).Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				log.Error().Err(err).Str("module", "signal").Str("sid", string(s.sid)).Msg("readPump read error")
				return
			}
			ctl.handleCommand(ctx, s, c, data)
		}
	}
}

func (ctl *SignalWSController) handleCommand(ctx context.Context, s session, c *WsSignalConn, data []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad json")
		return
	}

	switch env.Type {
	case "CREATE_ROOM":
		ctl.handleCreateRoom(ctx, s, c, data)
	case "JOIN_ROOM":
		ctl.handleJoinRoom(ctx, s, c, data)
	case "LEAVE_ROOM":
		ctl.handleLeaveRoom(ctx, s, c)
	case "INVITE_USER":
		ctl.handleInviteUser(ctx, s, c, data)
	case "GET_USERS_LIST":
		ctl.handleUsersList(ctx, s, c, data)
	case "VOTE_FOR_TRACK":
		ctl.handleVoteForTrack(ctx, s, c, data)
	case "GO_TO_NEXT_TRACK":
		ctl.handleGoToNextTrack(ctx, s, c, data)
	case "UPDATE_POSITION":
		ctl.handleUpdatePosition(ctx, s, c, data)
	case "MPE_CREATE_ROOM":
		ctl.handleCreatePlaylist(ctx, s, c, data)
	case "MPE_JOIN_ROOM":
		ctl.handleJoinPlaylist(ctx, s, c, data)
	case "MPE_LEAVE_ROOM":
		ctl.handleLeavePlaylist(ctx, s, c, data)
	case "MPE_GET_CONTEXT":
		ctl.handlePlaylistContext(ctx, s, c, data)
	case "MPE_ADD_TRACK":
		ctl.handlePlaylistAddTrack(ctx, s, c, data)
	case "MPE_DELETE_TRACK":
		ctl.handlePlaylistDeleteTrack(ctx, s, c, data)
	case "MPE_MOVE_TRACK":
		ctl.handlePlaylistMoveTrack(ctx, s, c, data)
	case "ping":
		ctl.handlePing(c)
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown command")
	}
}

func (ctl *SignalWSController) sendJSON(c *WsSignalConn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(b)
}

func (ctl *SignalWSController) sendFact(c *WsSignalConn, t core.FactType, payload any) {
	frame, err := core.NewFact(t, payload)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("fact", string(t)).Msg("sendFact marshal")
		return
	}
	_ = c.TrySend(frame)
}

func (ctl *SignalWSController) sendError(c *WsSignalConn, reason string) {
	ctl.sendJSON(c, map[string]any{
		"type":  "ERROR",
		"error": reason,
	})
}
