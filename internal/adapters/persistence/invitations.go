package persistence

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/mberthe/chorus/internal/core"
	"github.com/mberthe/chorus/internal/domain"
)

type InvitationRepo struct {
	db *gorm.DB
}

// Create relies on the composite unique index over the triple; a
// second row for the same triple comes back as ErrDuplicateEntry.
func (r *InvitationRepo) Create(ctx context.Context, inv *domain.Invitation) error {
	row := invitationRow{
		ID:             string(inv.ID),
		RoomID:         string(inv.RoomID),
		InvitingUserID: string(inv.InvitingUserID),
		InvitedUserID:  string(inv.InvitedUserID),
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isDuplicate(err) {
			return core.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: create invitation %s: %w", inv.ID, err)
	}
	return nil
}

// Query returns every row matching the triple, deliberately without a
// LIMIT: the caller is the one deciding that >1 is corruption.
func (r *InvitationRepo) Query(ctx context.Context, roomID domain.RoomID, invitingUserID, invitedUserID domain.UserID) ([]domain.Invitation, error) {
	var rows []invitationRow
	err := r.db.WithContext(ctx).
		Where("room_id = ? AND inviting_user_id = ? AND invited_user_id = ?",
			string(roomID), string(invitingUserID), string(invitedUserID)).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: query invitations for room %s: %w", roomID, err)
	}
	out := make([]domain.Invitation, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain())
	}
	return out, nil
}
