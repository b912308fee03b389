package persistence

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/mberthe/chorus/internal/core"
	"github.com/mberthe/chorus/internal/domain"
)

type UserRepo struct {
	db *gorm.DB
}

func (r *UserRepo) FindByID(ctx context.Context, id domain.UserID) (*domain.User, error) {
	var row userRow
	if err := r.db.WithContext(ctx).First(&row, "id = ?", string(id)).Error; err != nil {
		if isNotFound(err) {
			return nil, core.ErrUserNotFound
		}
		return nil, fmt.Errorf("gorm: find user %s: %w", id, err)
	}
	return row.toDomain(), nil
}

func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	row := userRow{ID: string(u.ID), Nickname: u.Nickname}
	if u.ActiveRoomID != "" {
		s := string(u.ActiveRoomID)
		row.ActiveRoomID = &s
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isDuplicate(err) {
			return core.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: create user %s: %w", u.ID, err)
	}
	return nil
}

func (r *UserRepo) SetActiveRoom(ctx context.Context, id domain.UserID, roomID domain.RoomID) error {
	var value any
	if roomID != "" {
		value = string(roomID)
	}
	res := r.db.WithContext(ctx).Model(&userRow{}).Where("id = ?", string(id)).Update("active_room_id", value)
	if res.Error != nil {
		return fmt.Errorf("gorm: set active room of user %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return core.ErrUserNotFound
	}
	return nil
}
