package app

import (
	"sync"

	"github.com/mberthe/chorus/internal/core"
	"github.com/mberthe/chorus/internal/domain"
	"github.com/rs/zerolog/log"
)

// userState carries everything the process knows about one user's live
// connections. Mutations take the per-user lock only, so unrelated
// users (and therefore unrelated rooms) never contend.
type userState struct {
	mu       sync.Mutex
	sessions map[core.SessionID]core.SignalConnection
	roomID   domain.RoomID // active listening room, "" when none
}

// Registry is the single in-process source of truth for which live
// sessions belong to which user and which room a user is in.
type Registry struct {
	mu        sync.RWMutex
	users     map[domain.UserID]*userState
	bySession map[core.SessionID]domain.UserID

	// onOffline fires after a user's last session is removed, carrying
	// the room the user was in at that moment. Set once before any
	// traffic; the orchestrator uses it for room teardown.
	onOffline func(domain.UserID, domain.RoomID)
}

func NewRegistry() *Registry {
	return &Registry{
		users:     make(map[domain.UserID]*userState),
		bySession: make(map[core.SessionID]domain.UserID),
	}
}

func (r *Registry) OnUserWentOffline(fn func(domain.UserID, domain.RoomID)) {
	r.onOffline = fn
}

func (r *Registry) stateOf(userID domain.UserID) *userState {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.users[userID]
	if !ok {
		st = &userState{sessions: make(map[core.SessionID]core.SignalConnection)}
		r.users[userID] = st
	}
	return st
}

// RegisterSession adds a live connection for the user. There is no
// limit on concurrent sessions per user.
func (r *Registry) RegisterSession(userID domain.UserID, sid core.SessionID, conn core.SignalConnection) {
	st := r.stateOf(userID)

	r.mu.Lock()
	r.bySession[sid] = userID
	r.mu.Unlock()

	st.mu.Lock()
	st.sessions[sid] = conn
	st.mu.Unlock()

	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("user", string(userID)).Msg("registered session")
}

// RemoveSession drops the connection. When it was the user's last one,
// the user's state is removed and the UserWentOffline hook fires with
// the room captured at that moment.
func (r *Registry) RemoveSession(sid core.SessionID) {
	r.mu.Lock()
	userID, ok := r.bySession[sid]
	delete(r.bySession, sid)
	st := r.users[userID]
	r.mu.Unlock()
	if !ok || st == nil {
		return
	}

	st.mu.Lock()
	delete(st.sessions, sid)
	empty := len(st.sessions) == 0
	st.mu.Unlock()

	wentOffline := false
	var roomID domain.RoomID
	if empty {
		// Re-check under both locks: a session registered in the
		// meantime keeps the user online. Removing the state makes the
		// offline decision atomic with respect to reconnects.
		r.mu.Lock()
		st.mu.Lock()
		if len(st.sessions) == 0 && r.users[userID] == st {
			roomID = st.roomID
			delete(r.users, userID)
			wentOffline = true
		}
		st.mu.Unlock()
		r.mu.Unlock()
	}

	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("user", string(userID)).Bool("offline", wentOffline).Msg("removed session")

	if wentOffline && r.onOffline != nil {
		r.onOffline(userID, roomID)
	}
}

// SessionsOf returns a consistent snapshot of the user's connections.
// An empty slice is valid: the user is offline.
func (r *Registry) SessionsOf(userID domain.UserID) []core.SignalConnection {
	r.mu.RLock()
	st := r.users[userID]
	r.mu.RUnlock()
	if st == nil {
		return nil
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	out := make([]core.SignalConnection, 0, len(st.sessions))
	for _, conn := range st.sessions {
		out = append(out, conn)
	}
	return out
}

// UserOf resolves a session back to its owner.
func (r *Registry) UserOf(sid core.SessionID) (domain.UserID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	userID, ok := r.bySession[sid]
	return userID, ok
}

// RoomOf returns the user's active listening room, if any.
func (r *Registry) RoomOf(userID domain.UserID) (domain.RoomID, bool) {
	r.mu.RLock()
	st := r.users[userID]
	r.mu.RUnlock()
	if st == nil {
		return "", false
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.roomID == "" {
		return "", false
	}
	return st.roomID, true
}

// SetRoom records the user's active room. Only the orchestrator calls
// this; a user has at most one listening room at a time.
func (r *Registry) SetRoom(userID domain.UserID, roomID domain.RoomID) {
	st := r.stateOf(userID)
	st.mu.Lock()
	st.roomID = roomID
	st.mu.Unlock()
	log.Info().Str("module", "app.registry").Str("user", string(userID)).Str("room", string(roomID)).Msg("set room")
}

func (r *Registry) ClearRoom(userID domain.UserID) {
	r.mu.RLock()
	st := r.users[userID]
	r.mu.RUnlock()
	if st == nil {
		return
	}
	st.mu.Lock()
	st.roomID = ""
	st.mu.Unlock()
	log.Info().Str("module", "app.registry").Str("user", string(userID)).Msg("cleared room")
}

// MembersOnline lists users whose active room is roomID. Offline
// members of the relational membership do not appear here.
func (r *Registry) MembersOnline(roomID domain.RoomID) []domain.UserID {
	r.mu.RLock()
	snapshot := make(map[domain.UserID]*userState, len(r.users))
	for id, st := range r.users {
		snapshot[id] = st
	}
	r.mu.RUnlock()

	out := make([]domain.UserID, 0, len(snapshot))
	for id, st := range snapshot {
		st.mu.Lock()
		if st.roomID == roomID {
			out = append(out, id)
		}
		st.mu.Unlock()
	}
	return out
}
