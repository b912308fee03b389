package temporal

import "github.com/mberthe/chorus/internal/domain"

// Wire names shared with the workflow worker. Signals travel over one
// channel and carry a route discriminator.
const (
	SignalChannelName = "control"
	GetStateQuery     = "getState"
	GetUsersListQuery = "getUsersList"

	RoomWorkflowName = "RoomWorkflow"

	routeJoin           = "join"
	routeLeave          = "leave"
	routeTerminate      = "terminate"
	routeVoteForTrack   = "voteForTrack"
	routeGoToNextTrack  = "goToNextTrack"
	routeUpdateUserFits = "updateUserFitsPositionConstraint"
)

type joinSignal struct {
	Route              string          `json:"route"`
	UserID             domain.UserID   `json:"userID"`
	DeviceID           domain.DeviceID `json:"deviceID"`
	UserHasBeenInvited bool            `json:"userHasBeenInvited"`
}

type leaveSignal struct {
	Route  string        `json:"route"`
	UserID domain.UserID `json:"userID"`
}

type terminateSignal struct {
	Route string `json:"route"`
}

type voteForTrackSignal struct {
	Route   string        `json:"route"`
	UserID  domain.UserID `json:"userID"`
	TrackID string        `json:"trackID"`
}

type goToNextTrackSignal struct {
	Route  string        `json:"route"`
	UserID domain.UserID `json:"userID"`
}

type updateUserFitsSignal struct {
	Route                      string        `json:"route"`
	UserID                     domain.UserID `json:"userID"`
	UserFitsPositionConstraint bool          `json:"userFitsPositionConstraint"`
}

// createRunParams is the workflow input; field names are part of the
// worker contract.
type createRunParams struct {
	RoomID                        domain.RoomID   `json:"roomID"`
	RoomName                      domain.RoomName `json:"name"`
	RoomCreatorUserID             domain.UserID   `json:"roomCreatorUserID"`
	CreatorDeviceID               domain.DeviceID `json:"creatorDeviceID"`
	InitialTracksIDs              []string        `json:"initialTracksIDs"`
	IsOpen                        bool            `json:"isOpen"`
	IsOpenOnlyInvitedUsersCanVote bool            `json:"isOpenOnlyInvitedUsersCanVote"`
	HasPhysicalAndTimeConstraints bool            `json:"hasPhysicalAndTimeConstraints"`
	ConstraintLat                 float64         `json:"constraintLat,omitempty"`
	ConstraintLng                 float64         `json:"constraintLng,omitempty"`
	ConstraintRadius              float64         `json:"constraintRadius,omitempty"`
	ConstraintStartsAt            string          `json:"constraintStartsAt,omitempty"`
	ConstraintEndsAt              string          `json:"constraintEndsAt,omitempty"`
	CreatorFitsPositionConstraint *bool           `json:"creatorFitsPositionConstraint,omitempty"`
}
