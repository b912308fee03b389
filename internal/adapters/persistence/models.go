package persistence

import (
	"time"

	"github.com/mberthe/chorus/internal/domain"
)

type userRow struct {
	ID           string  `gorm:"primaryKey;size:36"`
	Nickname     string  `gorm:"size:36;not null"`
	ActiveRoomID *string `gorm:"size:36"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (userRow) TableName() string { return "users" }

func (r *userRow) toDomain() *domain.User {
	u := &domain.User{ID: domain.UserID(r.ID), Nickname: r.Nickname}
	if r.ActiveRoomID != nil {
		u.ActiveRoomID = domain.RoomID(*r.ActiveRoomID)
	}
	return u
}

type deviceRow struct {
	ID           string `gorm:"primaryKey;size:36"`
	UserID       string `gorm:"size:36;index;not null"`
	Name         string `gorm:"size:64"`
	Lat          *float64
	Lng          *float64
	PosUpdatedAt *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (deviceRow) TableName() string { return "devices" }

func (r *deviceRow) toDomain() domain.Device {
	return domain.Device{
		ID:           domain.DeviceID(r.ID),
		UserID:       domain.UserID(r.UserID),
		Name:         r.Name,
		Lat:          r.Lat,
		Lng:          r.Lng,
		PosUpdatedAt: r.PosUpdatedAt,
	}
}

type roomRow struct {
	ID                      string `gorm:"primaryKey;size:36"`
	Name                    string `gorm:"size:128;index;not null"`
	CreatorID               string `gorm:"size:36;not null"`
	RunID                   string `gorm:"size:64"`
	IsOpen                  bool
	OnlyInvitedUsersCanVote bool
	HasConstraints          bool
	ConstraintLat           *float64
	ConstraintLng           *float64
	ConstraintRadius        *float64
	ConstraintStartsAt      *time.Time
	ConstraintEndsAt        *time.Time
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

func (roomRow) TableName() string { return "mtv_rooms" }

func (r *roomRow) toDomain() *domain.Room {
	room := &domain.Room{
		ID:                      domain.RoomID(r.ID),
		Name:                    domain.RoomName(r.Name),
		CreatorID:               domain.UserID(r.CreatorID),
		RunID:                   domain.RunID(r.RunID),
		IsOpen:                  r.IsOpen,
		OnlyInvitedUsersCanVote: r.OnlyInvitedUsersCanVote,
	}
	if r.HasConstraints && r.ConstraintLat != nil && r.ConstraintLng != nil && r.ConstraintRadius != nil &&
		r.ConstraintStartsAt != nil && r.ConstraintEndsAt != nil {
		room.Constraints = &domain.RoomConstraints{
			Lat:      *r.ConstraintLat,
			Lng:      *r.ConstraintLng,
			Radius:   *r.ConstraintRadius,
			StartsAt: *r.ConstraintStartsAt,
			EndsAt:   *r.ConstraintEndsAt,
		}
	}
	return room
}

func fromDomainRoom(room *domain.Room) *roomRow {
	r := &roomRow{
		ID:                      string(room.ID),
		Name:                    string(room.Name),
		CreatorID:               string(room.CreatorID),
		RunID:                   string(room.RunID),
		IsOpen:                  room.IsOpen,
		OnlyInvitedUsersCanVote: room.OnlyInvitedUsersCanVote,
	}
	if c := room.Constraints; c != nil {
		r.HasConstraints = true
		lat, lng, radius := c.Lat, c.Lng, c.Radius
		startsAt, endsAt := c.StartsAt, c.EndsAt
		r.ConstraintLat = &lat
		r.ConstraintLng = &lng
		r.ConstraintRadius = &radius
		r.ConstraintStartsAt = &startsAt
		r.ConstraintEndsAt = &endsAt
	}
	return r
}

type roomMemberRow struct {
	RoomID    string `gorm:"primaryKey;size:36"`
	UserID    string `gorm:"primaryKey;size:36"`
	CreatedAt time.Time
}

func (roomMemberRow) TableName() string { return "mtv_room_members" }

type invitationRow struct {
	ID             string `gorm:"primaryKey;size:36"`
	RoomID         string `gorm:"size:36;not null;uniqueIndex:idx_invitation_triple"`
	InvitingUserID string `gorm:"size:36;not null;uniqueIndex:idx_invitation_triple"`
	InvitedUserID  string `gorm:"size:36;not null;uniqueIndex:idx_invitation_triple"`
	CreatedAt      time.Time
}

func (invitationRow) TableName() string { return "mtv_room_invitations" }

func (r *invitationRow) toDomain() domain.Invitation {
	return domain.Invitation{
		ID:             domain.InvitationID(r.ID),
		RoomID:         domain.RoomID(r.RoomID),
		InvitingUserID: domain.UserID(r.InvitingUserID),
		InvitedUserID:  domain.UserID(r.InvitedUserID),
	}
}

type playlistRow struct {
	ID        string `gorm:"primaryKey;size:36"`
	Name      string `gorm:"size:128;index;not null"`
	CreatorID string `gorm:"size:36;not null"`
	IsOpen    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (playlistRow) TableName() string { return "mpe_rooms" }

type playlistMemberRow struct {
	RoomID    string `gorm:"primaryKey;size:36"`
	UserID    string `gorm:"primaryKey;size:36"`
	CreatedAt time.Time
}

func (playlistMemberRow) TableName() string { return "mpe_room_members" }

type playlistTrackRow struct {
	RoomID     string `gorm:"primaryKey;size:36"`
	TrackID    string `gorm:"primaryKey;size:64"`
	Title      string `gorm:"size:256"`
	ArtistName string `gorm:"size:256"`
	Duration   int64
	Position   int `gorm:"not null"`
	CreatedAt  time.Time
}

func (playlistTrackRow) TableName() string { return "mpe_room_tracks" }

func (r *playlistTrackRow) toDomain() domain.PlaylistTrack {
	return domain.PlaylistTrack{
		ID:         r.TrackID,
		Title:      r.Title,
		ArtistName: r.ArtistName,
		Duration:   r.Duration,
		Position:   r.Position,
	}
}
