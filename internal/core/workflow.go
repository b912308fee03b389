package core

import (
	"context"

	"github.com/mberthe/chorus/internal/domain"
)

// The workflow engine is the authority on playback and voting. This
// client is the only way the orchestrator talks to it; everything here
// is a suspension point from the orchestrator's point of view.

type TrackMetadata struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	ArtistName string `json:"artistName"`
	Duration   int64  `json:"duration"`
}

type TrackWithScore struct {
	TrackMetadata
	Score int `json:"score"`
}

type CurrentTrack struct {
	TrackWithScore
	Elapsed int64 `json:"elapsed"`
}

// RunUserInfo is the caller-scoped slice of workflow state.
type RunUserInfo struct {
	UserID                     domain.UserID   `json:"userID"`
	EmittingDeviceID           domain.DeviceID `json:"emittingDeviceID"`
	TracksVotedFor             []string        `json:"tracksVotedFor"`
	UserFitsPositionConstraint *bool           `json:"userFitsPositionConstraint"`
}

// WorkflowState is the authoritative room state as exposed by the run.
type WorkflowState struct {
	RoomID                        domain.RoomID    `json:"roomID"`
	RoomCreatorUserID             domain.UserID    `json:"roomCreatorUserID"`
	Name                          string           `json:"name"`
	Playing                       bool             `json:"playing"`
	UsersLength                   int              `json:"usersLength"`
	CurrentTrack                  *CurrentTrack    `json:"currentTrack"`
	Tracks                        []TrackWithScore `json:"tracks"`
	MinimumScoreToBePlayed        int              `json:"minimumScoreToBePlayed"`
	HasTimeAndPositionConstraints bool             `json:"roomHasTimeAndPositionConstraints"`
	TimeConstraintIsValid         *bool            `json:"timeConstraintIsValid"`
	UserRelatedInformation        *RunUserInfo     `json:"userRelatedInformation"`
}

// RunUser is one element of the run's users list.
type RunUser struct {
	UserID  domain.UserID `json:"userID"`
	CanVote bool          `json:"canVote"`
}

type CreateRunParams struct {
	RoomID                        domain.RoomID
	RoomName                      domain.RoomName
	CreatorID                     domain.UserID
	DeviceID                      domain.DeviceID
	InitialTracksIDs              []string
	IsOpen                        bool
	OnlyInvitedUsersCanVote       bool
	Constraints                   *domain.RoomConstraints
	CreatorFitsPositionConstraint *bool
}

type CreateRunResponse struct {
	RunID domain.RunID
	State *WorkflowState
}

// WorkflowClient is the RPC surface of the external workflow engine.
// Implementations must not retry; retries belong to the transport.
type WorkflowClient interface {
	CreateRun(ctx context.Context, params CreateRunParams) (*CreateRunResponse, error)
	JoinRun(ctx context.Context, roomID domain.RoomID, runID domain.RunID, userID domain.UserID, deviceID domain.DeviceID, invited bool) error
	LeaveRun(ctx context.Context, roomID domain.RoomID, runID domain.RunID, userID domain.UserID) error
	TerminateRun(ctx context.Context, roomID domain.RoomID, runID domain.RunID) error
	GetState(ctx context.Context, roomID domain.RoomID, runID domain.RunID, userID domain.UserID) (*WorkflowState, error)
	GetUsersList(ctx context.Context, roomID domain.RoomID, runID domain.RunID) ([]RunUser, error)
	PushEligibilityUpdate(ctx context.Context, roomID domain.RoomID, runID domain.RunID, userID domain.UserID, fits bool) error
	VoteForTrack(ctx context.Context, roomID domain.RoomID, runID domain.RunID, userID domain.UserID, trackID string) error
	RequestNextTrack(ctx context.Context, roomID domain.RoomID, runID domain.RunID, userID domain.UserID) error
}

// Geocoder resolves an address or place reference to coordinates.
// The lookup itself is an external concern; the orchestrator only
// needs the pure mapping.
type Geocoder interface {
	Coords(ctx context.Context, placeID string) (lat, lng float64, err error)
}
