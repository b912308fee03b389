package app

import (
	"github.com/mberthe/chorus/internal/core"
	"github.com/mberthe/chorus/internal/domain"
	"github.com/rs/zerolog/log"
)

// Hub fans authoritative facts out to live sessions. Delivery is
// at-most-once and best-effort: a fact for an offline user is dropped,
// reconnecting sessions resynchronize with a full context snapshot.
type Hub struct {
	registry *Registry
}

func NewHub(registry *Registry) *Hub {
	return &Hub{registry: registry}
}

// ToUser delivers the fact to every live session of the user.
func (h *Hub) ToUser(userID domain.UserID, t core.FactType, payload any) {
	frame, err := core.NewFact(t, payload)
	if err != nil {
		log.Error().Err(err).Str("module", "app.hub").Str("fact", string(t)).Msg("marshal fact")
		return
	}
	sent := 0
	for _, conn := range h.registry.SessionsOf(userID) {
		if err := conn.TrySend(frame); err == nil {
			sent++
		}
	}
	log.Debug().Str("module", "app.hub").Str("fact", string(t)).Str("user", string(userID)).Int("sent_to", sent).Msg("fact to user")
}

// ToUsers delivers the fact to each listed user's sessions. Used for
// playlist rooms whose membership lives in the repository.
func (h *Hub) ToUsers(userIDs []domain.UserID, t core.FactType, payload any) {
	for _, id := range userIDs {
		h.ToUser(id, t, payload)
	}
}

// ToRoom delivers the fact to every online member of the listening
// room, skipping excluded users.
func (h *Hub) ToRoom(roomID domain.RoomID, t core.FactType, payload any, exclude ...domain.UserID) {
	skip := make(map[domain.UserID]struct{}, len(exclude))
	for _, id := range exclude {
		skip[id] = struct{}{}
	}
	for _, userID := range h.registry.MembersOnline(roomID) {
		if _, ok := skip[userID]; ok {
			continue
		}
		h.ToUser(userID, t, payload)
	}
}
