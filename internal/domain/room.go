package domain

import "time"

type (
	RoomName string
	RoomID   string
	RunID    string
)

// Room is a synchronized listening room. RunID is the handle of the
// workflow run owning playback and voting state; it is non-empty from
// the moment the workflow accepted creation.
type Room struct {
	ID        RoomID
	Name      RoomName
	CreatorID UserID
	RunID     RunID

	// IsOpen false means invitation-only. An open room may still
	// restrict voting to invited users.
	IsOpen                 bool
	OnlyInvitedUsersCanVote bool

	Constraints *RoomConstraints
}

// RoomConstraints gate voting rights to a circular region and a time
// window. Radius is in meters.
type RoomConstraints struct {
	Lat      float64
	Lng      float64
	Radius   float64
	StartsAt time.Time
	EndsAt   time.Time
}

// HasConstraints reports whether the room carries a geofence at all.
func (r *Room) HasConstraints() bool {
	return r.Constraints != nil
}
