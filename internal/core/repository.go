package core

import (
	"context"
	"time"

	"github.com/mberthe/chorus/internal/domain"
)

// The repository is the only durable shared resource. Implementations
// map driver errors to the sentinels in errors.go.

type RoomRepository interface {
	FindByID(ctx context.Context, id domain.RoomID) (*domain.Room, error)
	FindByName(ctx context.Context, name domain.RoomName) (*domain.Room, error)
	Create(ctx context.Context, room *domain.Room) error
	SetRunID(ctx context.Context, id domain.RoomID, runID domain.RunID) error
	Delete(ctx context.Context, id domain.RoomID) error

	AssociateUser(ctx context.Context, id domain.RoomID, userID domain.UserID) error
	DissociateUser(ctx context.Context, id domain.RoomID, userID domain.UserID) error
	Members(ctx context.Context, id domain.RoomID) ([]domain.User, error)

	// SearchCandidates returns rooms whose name matches the prefix
	// case-insensitively and which the user is not a member of, with the
	// user's invitation status joined in. Ordering and pagination are
	// applied by the caller.
	SearchCandidates(ctx context.Context, userID domain.UserID, prefix string) ([]RoomCandidate, error)
}

// RoomCandidate is the raw search row before ordering/visibility.
type RoomCandidate struct {
	RoomID       domain.RoomID
	RoomName     domain.RoomName
	CreatorName  string
	IsOpen       bool
	InvitationID domain.InvitationID // empty when the user holds no invitation
}

type InvitationRepository interface {
	// Create enforces triple uniqueness and returns ErrDuplicateEntry
	// when the same (room, inviting, invited) row already exists.
	Create(ctx context.Context, inv *domain.Invitation) error

	// Query returns every row matching the triple. Callers must treat
	// more than one result as corruption, never pick the first.
	Query(ctx context.Context, roomID domain.RoomID, invitingUserID, invitedUserID domain.UserID) ([]domain.Invitation, error)
}

type DeviceRepository interface {
	Save(ctx context.Context, d *domain.Device) error
	FindByID(ctx context.Context, id domain.DeviceID) (*domain.Device, error)
	UpdatePosition(ctx context.Context, id domain.DeviceID, lat, lng float64, at time.Time) error
	WithFreshPosition(ctx context.Context, userID domain.UserID, window time.Duration) ([]domain.Device, error)
}

type UserRepository interface {
	FindByID(ctx context.Context, id domain.UserID) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error

	// SetActiveRoom with an empty roomID clears the association.
	SetActiveRoom(ctx context.Context, id domain.UserID, roomID domain.RoomID) error
}

type PlaylistRepository interface {
	FindByID(ctx context.Context, id domain.RoomID) (*domain.PlaylistRoom, error)
	Create(ctx context.Context, room *domain.PlaylistRoom) error
	Delete(ctx context.Context, id domain.RoomID) error

	AssociateUser(ctx context.Context, id domain.RoomID, userID domain.UserID) error
	DissociateUser(ctx context.Context, id domain.RoomID, userID domain.UserID) error
	Members(ctx context.Context, id domain.RoomID) ([]domain.User, error)
	IsMember(ctx context.Context, id domain.RoomID, userID domain.UserID) (bool, error)

	// Tracks returns the ordered list; mutations keep positions dense.
	Tracks(ctx context.Context, id domain.RoomID) ([]domain.PlaylistTrack, error)
	AddTrack(ctx context.Context, id domain.RoomID, track domain.PlaylistTrack) error
	DeleteTrack(ctx context.Context, id domain.RoomID, trackID string) error
	MoveTrack(ctx context.Context, id domain.RoomID, trackID string, delta int) error
}

// Repositories bundles what the orchestrator consumes.
type Repositories struct {
	Rooms       RoomRepository
	Invitations InvitationRepository
	Devices     DeviceRepository
	Users       UserRepository
	Playlists   PlaylistRepository
}
