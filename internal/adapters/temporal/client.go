package temporal

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"go.temporal.io/sdk/client"

	"github.com/mberthe/chorus/internal/core"
	"github.com/mberthe/chorus/internal/domain"
)

// Client implements core.WorkflowClient on top of the Temporal SDK.
// Every room maps to one workflow execution whose ID is the room ID;
// the run ID pins the exact execution so a stale signal can never land
// on a recreated room with the same name.
type Client struct {
	tc        client.Client
	taskQueue string
}

func Dial(hostPort, namespace, taskQueue string) (*Client, error) {
	tc, err := client.Dial(client.Options{
		HostPort:  hostPort,
		Namespace: namespace,
	})
	if err != nil {
		return nil, core.ExternalFailure("temporal dial", err)
	}
	log.Info().
		Str("module", "adapters.temporal").
		Str("host", hostPort).
		Str("task_queue", taskQueue).
		Msg("connected to workflow engine")
	return &Client{tc: tc, taskQueue: taskQueue}, nil
}

// NewWithClient is used by tests and by callers owning the connection.
func NewWithClient(tc client.Client, taskQueue string) *Client {
	return &Client{tc: tc, taskQueue: taskQueue}
}

func (c *Client) Close() {
	c.tc.Close()
}

func (c *Client) CreateRun(ctx context.Context, params core.CreateRunParams) (*core.CreateRunResponse, error) {
	input := createRunParams{
		RoomID:                        params.RoomID,
		RoomName:                      params.RoomName,
		RoomCreatorUserID:             params.CreatorID,
		CreatorDeviceID:               params.DeviceID,
		InitialTracksIDs:              params.InitialTracksIDs,
		IsOpen:                        params.IsOpen,
		IsOpenOnlyInvitedUsersCanVote: params.OnlyInvitedUsersCanVote,
		CreatorFitsPositionConstraint: params.CreatorFitsPositionConstraint,
	}
	if cons := params.Constraints; cons != nil {
		input.HasPhysicalAndTimeConstraints = true
		input.ConstraintLat = cons.Lat
		input.ConstraintLng = cons.Lng
		input.ConstraintRadius = cons.Radius
		input.ConstraintStartsAt = cons.StartsAt.Format(time.RFC3339)
		input.ConstraintEndsAt = cons.EndsAt.Format(time.RFC3339)
	}

	run, err := c.tc.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        string(params.RoomID),
		TaskQueue: c.taskQueue,
	}, RoomWorkflowName, input)
	if err != nil {
		return nil, core.ExternalFailure("start room workflow", err)
	}

	runID := domain.RunID(run.GetRunID())
	state, err := c.GetState(ctx, params.RoomID, runID, params.CreatorID)
	if err != nil {
		// The execution exists but never answered; the caller decides
		// whether to compensate.
		return nil, err
	}

	log.Info().
		Str("module", "adapters.temporal").
		Str("room_id", string(params.RoomID)).
		Str("run_id", string(runID)).
		Msg("room workflow started")
	return &core.CreateRunResponse{RunID: runID, State: state}, nil
}

func (c *Client) JoinRun(ctx context.Context, roomID domain.RoomID, runID domain.RunID, userID domain.UserID, deviceID domain.DeviceID, invited bool) error {
	return c.signal(ctx, roomID, runID, joinSignal{
		Route:              routeJoin,
		UserID:             userID,
		DeviceID:           deviceID,
		UserHasBeenInvited: invited,
	})
}

func (c *Client) LeaveRun(ctx context.Context, roomID domain.RoomID, runID domain.RunID, userID domain.UserID) error {
	return c.signal(ctx, roomID, runID, leaveSignal{Route: routeLeave, UserID: userID})
}

func (c *Client) TerminateRun(ctx context.Context, roomID domain.RoomID, runID domain.RunID) error {
	// A terminate signal lets the workflow run its cleanup path instead
	// of being killed mid-activity.
	return c.signal(ctx, roomID, runID, terminateSignal{Route: routeTerminate})
}

func (c *Client) GetState(ctx context.Context, roomID domain.RoomID, runID domain.RunID, userID domain.UserID) (*core.WorkflowState, error) {
	enc, err := c.tc.QueryWorkflow(ctx, string(roomID), string(runID), GetStateQuery, userID)
	if err != nil {
		return nil, core.ExternalFailure("query room state", err)
	}
	var state core.WorkflowState
	if err := enc.Get(&state); err != nil {
		return nil, core.ExternalFailure("decode room state", err)
	}
	return &state, nil
}

func (c *Client) GetUsersList(ctx context.Context, roomID domain.RoomID, runID domain.RunID) ([]core.RunUser, error) {
	enc, err := c.tc.QueryWorkflow(ctx, string(roomID), string(runID), GetUsersListQuery)
	if err != nil {
		return nil, core.ExternalFailure("query room users list", err)
	}
	var users []core.RunUser
	if err := enc.Get(&users); err != nil {
		return nil, core.ExternalFailure("decode room users list", err)
	}
	return users, nil
}

func (c *Client) PushEligibilityUpdate(ctx context.Context, roomID domain.RoomID, runID domain.RunID, userID domain.UserID, fits bool) error {
	return c.signal(ctx, roomID, runID, updateUserFitsSignal{
		Route:                      routeUpdateUserFits,
		UserID:                     userID,
		UserFitsPositionConstraint: fits,
	})
}

func (c *Client) VoteForTrack(ctx context.Context, roomID domain.RoomID, runID domain.RunID, userID domain.UserID, trackID string) error {
	return c.signal(ctx, roomID, runID, voteForTrackSignal{
		Route:   routeVoteForTrack,
		UserID:  userID,
		TrackID: trackID,
	})
}

func (c *Client) RequestNextTrack(ctx context.Context, roomID domain.RoomID, runID domain.RunID, userID domain.UserID) error {
	return c.signal(ctx, roomID, runID, goToNextTrackSignal{Route: routeGoToNextTrack, UserID: userID})
}

func (c *Client) signal(ctx context.Context, roomID domain.RoomID, runID domain.RunID, payload any) error {
	if err := c.tc.SignalWorkflow(ctx, string(roomID), string(runID), SignalChannelName, payload); err != nil {
		return core.ExternalFailure("signal room workflow", err)
	}
	return nil
}
