package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mberthe/chorus/internal/app/orch"
	"github.com/mberthe/chorus/internal/core"
	"github.com/mberthe/chorus/internal/domain"
)

var ErrBackpressure = errors.New("backpressure")

type SignalWSController struct {
	Orch *orch.Orchestrator
}

func NewSignalWSController(o *orch.Orchestrator) *SignalWSController {
	return &SignalWSController{Orch: o}
}

type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleSignal upgrades the request and binds the connection to the
// authenticated user. The first frame the client receives is always
// the room context snapshot, so a reconnecting device resynchronizes
// before it can issue any command.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	userID := domain.UserID(c.GetString("user_id"))
	deviceID := domain.DeviceID(c.Query("deviceID"))
	if userID == "" || deviceID == "" {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	sid := core.SessionID(uuid.NewString())
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("user", string(userID)).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Msg("ws upgrade")
		return
	}

	conn := &WsSignalConn{
		conn: ws,
		send: make(chan core.Frame, 32),
	}

	ctl.Orch.Registry.RegisterSession(userID, sid, conn)

	ctx, cancel := context.WithCancel(ctx)

	go ctl.writePump(ctx, conn)
	go func() {
		defer cancel()
		ctl.pushContext(ctx, userID, conn)
		ctl.readPump(ctx, session{sid: sid, userID: userID, deviceID: deviceID}, conn)
		ctl.Orch.Registry.RemoveSession(sid)
	}()
}

// session is the per-connection identity threaded through handlers.
type session struct {
	sid      core.SessionID
	userID   domain.UserID
	deviceID domain.DeviceID
}

func (ctl *SignalWSController) pushContext(ctx context.Context, userID domain.UserID, conn *WsSignalConn) {
	snapshot, err := ctl.Orch.RetrieveContext(ctx, userID)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("user", string(userID)).Msg("context retrieval failed")
		ctl.sendFact(conn, core.FactGetContextFailure, core.GetContextFailurePayload{})
		return
	}
	ctl.sendFact(conn, core.FactRoomContextSnapshot, snapshot)
}
