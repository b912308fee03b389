package core

import (
	"encoding/json"

	"github.com/mberthe/chorus/internal/domain"
)

// FactType names an authoritative server-to-client event.
type FactType string

const (
	FactRoomContextSnapshot FactType = "ROOM_CONTEXT_SNAPSHOT"
	FactForcedDisconnection FactType = "FORCED_DISCONNECTION"
	FactPermissionsUpdate   FactType = "USER_PERMISSIONS_UPDATE"
	FactJoinAcknowledgement FactType = "JOIN_ACKNOWLEDGEMENT"
	FactTrackListUpdate     FactType = "TRACK_LIST_UPDATE"
	FactTrackOpAck          FactType = "TRACK_OP_ACK"
	FactRoomInvitation      FactType = "RECEIVED_ROOM_INVITATION"
	FactGetContextFailure   FactType = "GET_CONTEXT_FAILURE"
)

// Fact is the envelope every authoritative broadcast travels in.
// Delivery is at-most-once; a reconnecting session is resynchronized
// with a full RoomContextSnapshot instead of replay.
type Fact struct {
	Type    FactType        `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewFact marshals payload into a ready-to-send frame.
func NewFact(t FactType, payload any) (Frame, error) {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		raw = b
	}
	return json.Marshal(Fact{Type: t, Payload: raw})
}

type ForcedDisconnectionPayload struct {
	RoomID domain.RoomID `json:"roomID"`
}

type PermissionsUpdatePayload struct {
	RoomID                     domain.RoomID `json:"roomID"`
	UserFitsPositionConstraint bool          `json:"userFitsPositionConstraint"`
}

type JoinAcknowledgementPayload struct {
	RoomID domain.RoomID  `json:"roomID"`
	State  *WorkflowState `json:"state"`
}

type RoomContextSnapshotPayload struct {
	RoomID domain.RoomID  `json:"roomID"`
	State  *WorkflowState `json:"state"`
}

type TrackListUpdatePayload struct {
	RoomID domain.RoomID          `json:"roomID"`
	Tracks []domain.PlaylistTrack `json:"tracks"`
}

// TrackOpAckPayload closes one in-flight playlist mutation for the
// issuing session. OK false carries no track list: the client keeps
// its previous state.
type TrackOpAckPayload struct {
	RoomID domain.RoomID          `json:"roomID"`
	OK     bool                   `json:"ok"`
	Reason string                 `json:"reason,omitempty"`
	Tracks []domain.PlaylistTrack `json:"tracks,omitempty"`
}

type GetContextFailurePayload struct {
	RoomID domain.RoomID `json:"roomID"`
}

// RoomSummary is the search-result (and invitation push) shape.
type RoomSummary struct {
	RoomID      domain.RoomID   `json:"roomID"`
	RoomName    domain.RoomName `json:"roomName"`
	CreatorName string          `json:"creatorName"`
	IsOpen      bool            `json:"isOpen"`
	IsInvited   bool            `json:"isInvited"`
}
