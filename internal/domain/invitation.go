package domain

type InvitationID string

// Invitation grants a user access to a restricted room. The triple
// (RoomID, InvitingUserID, InvitedUserID) is unique; more than one row
// for the same triple is data corruption, never a value to pick from.
type Invitation struct {
	ID             InvitationID
	RoomID         RoomID
	InvitingUserID UserID
	InvitedUserID  UserID
}
