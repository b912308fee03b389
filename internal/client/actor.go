package client

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/mberthe/chorus/internal/core"
	"github.com/mberthe/chorus/internal/domain"
)

// roomActor holds the client copy of one playlist room. Facts arrive
// over the inbound channel and are applied by a dedicated goroutine,
// so applying never blocks Dispatch.
type roomActor struct {
	roomID  domain.RoomID
	inbound chan core.Fact
	done    chan struct{}

	mu     sync.Mutex
	frozen bool
	tracks []domain.PlaylistTrack
}

func newRoomActor(roomID domain.RoomID) *roomActor {
	a := &roomActor{
		roomID:  roomID,
		inbound: make(chan core.Fact, 16),
		done:    make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *roomActor) run() {
	for {
		select {
		case <-a.done:
			return
		case fact := <-a.inbound:
			a.apply(fact)
		}
	}
}

func (a *roomActor) apply(fact core.Fact) {
	switch fact.Type {
	case core.FactTrackListUpdate:
		var p core.TrackListUpdatePayload
		if err := json.Unmarshal(fact.Payload, &p); err != nil {
			log.Error().Err(err).Str("module", "client").Msg("actor: bad track list update")
			return
		}
		a.mu.Lock()
		a.tracks = p.Tracks
		a.mu.Unlock()
	case core.FactTrackOpAck:
		var p core.TrackOpAckPayload
		if err := json.Unmarshal(fact.Payload, &p); err != nil {
			log.Error().Err(err).Str("module", "client").Msg("actor: bad track op ack")
			return
		}
		a.mu.Lock()
		// Only the ack unfreezes the room, success or not. A rejected
		// op keeps the previous track list.
		a.frozen = false
		if p.OK {
			a.tracks = p.Tracks
		}
		a.mu.Unlock()
		if !p.OK {
			log.Warn().Str("module", "client").Str("room", string(a.roomID)).Str("reason", p.Reason).Msg("track op rejected")
		}
	}
}

func (a *roomActor) deliver(fact core.Fact) {
	select {
	case a.inbound <- fact:
	case <-a.done:
	}
}

func (a *roomActor) stop() {
	close(a.done)
}

// freeze marks a mutation in flight. Returns false when one already is.
func (a *roomActor) freeze() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.frozen {
		return false
	}
	a.frozen = true
	return true
}

func (a *roomActor) thaw() {
	a.mu.Lock()
	a.frozen = false
	a.mu.Unlock()
}

// Tracks returns a copy of the actor's current track list.
func (a *roomActor) Tracks() []domain.PlaylistTrack {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]domain.PlaylistTrack, len(a.tracks))
	copy(out, a.tracks)
	return out
}
