package persistence

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/mberthe/chorus/internal/core"
	"github.com/mberthe/chorus/internal/domain"
)

type RoomRepo struct {
	db *gorm.DB
}

func (r *RoomRepo) FindByID(ctx context.Context, id domain.RoomID) (*domain.Room, error) {
	var row roomRow
	if err := r.db.WithContext(ctx).First(&row, "id = ?", string(id)).Error; err != nil {
		if isNotFound(err) {
			return nil, core.ErrRoomNotFound
		}
		return nil, fmt.Errorf("gorm: find room %s: %w", id, err)
	}
	return row.toDomain(), nil
}

func (r *RoomRepo) FindByName(ctx context.Context, name domain.RoomName) (*domain.Room, error) {
	var row roomRow
	if err := r.db.WithContext(ctx).First(&row, "name = ?", string(name)).Error; err != nil {
		if isNotFound(err) {
			return nil, core.ErrRoomNotFound
		}
		return nil, fmt.Errorf("gorm: find room by name %q: %w", name, err)
	}
	return row.toDomain(), nil
}

func (r *RoomRepo) Create(ctx context.Context, room *domain.Room) error {
	if err := r.db.WithContext(ctx).Create(fromDomainRoom(room)).Error; err != nil {
		if isDuplicate(err) {
			return core.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: create room %s: %w", room.ID, err)
	}
	return nil
}

func (r *RoomRepo) SetRunID(ctx context.Context, id domain.RoomID, runID domain.RunID) error {
	res := r.db.WithContext(ctx).Model(&roomRow{}).Where("id = ?", string(id)).Update("run_id", string(runID))
	if res.Error != nil {
		return fmt.Errorf("gorm: set run id on room %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return core.ErrRoomNotFound
	}
	return nil
}

// Delete removes the room row and its membership rows in one
// transaction; invitations are kept for audit.
func (r *RoomRepo) Delete(ctx context.Context, id domain.RoomID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&roomMemberRow{}, "room_id = ?", string(id)).Error; err != nil {
			return fmt.Errorf("gorm: delete room members %s: %w", id, err)
		}
		if err := tx.Delete(&roomRow{}, "id = ?", string(id)).Error; err != nil {
			return fmt.Errorf("gorm: delete room %s: %w", id, err)
		}
		return nil
	})
}

func (r *RoomRepo) AssociateUser(ctx context.Context, id domain.RoomID, userID domain.UserID) error {
	err := r.db.WithContext(ctx).Create(&roomMemberRow{RoomID: string(id), UserID: string(userID)}).Error
	if err != nil {
		if isDuplicate(err) {
			// Membership is a set; re-association is harmless.
			return nil
		}
		return fmt.Errorf("gorm: associate user %s to room %s: %w", userID, id, err)
	}
	return nil
}

func (r *RoomRepo) DissociateUser(ctx context.Context, id domain.RoomID, userID domain.UserID) error {
	err := r.db.WithContext(ctx).Delete(&roomMemberRow{}, "room_id = ? AND user_id = ?", string(id), string(userID)).Error
	if err != nil {
		return fmt.Errorf("gorm: dissociate user %s from room %s: %w", userID, id, err)
	}
	return nil
}

func (r *RoomRepo) Members(ctx context.Context, id domain.RoomID) ([]domain.User, error) {
	var rows []userRow
	err := r.db.WithContext(ctx).
		Joins("JOIN mtv_room_members m ON m.user_id = users.id").
		Where("m.room_id = ?", string(id)).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: members of room %s: %w", id, err)
	}
	out := make([]domain.User, 0, len(rows))
	for i := range rows {
		out = append(out, *rows[i].toDomain())
	}
	return out, nil
}

// escapeLike neutralizes LIKE metacharacters so the user's query only
// ever matches literally.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// SearchCandidates joins each matching room with the requesting
// user's invitation, excluding rooms the user already belongs to.
func (r *RoomRepo) SearchCandidates(ctx context.Context, userID domain.UserID, prefix string) ([]core.RoomCandidate, error) {
	type candidateRow struct {
		RoomID       string
		RoomName     string
		CreatorName  string
		IsOpen       bool
		InvitationID string
	}
	var rows []candidateRow
	err := r.db.WithContext(ctx).
		Table("mtv_rooms AS r").
		Select("r.id AS room_id, r.name AS room_name, u.nickname AS creator_name, r.is_open, COALESCE(i.id, '') AS invitation_id").
		Joins("JOIN users u ON u.id = r.creator_id").
		Joins("LEFT JOIN mtv_room_invitations i ON i.room_id = r.id AND i.inviting_user_id = r.creator_id AND i.invited_user_id = ?", string(userID)).
		Where("LOWER(r.name) LIKE LOWER(?) ESCAPE '\\'", escapeLike(prefix)+"%").
		Where("r.id NOT IN (?)", r.db.Table("mtv_room_members").Select("room_id").Where("user_id = ?", string(userID))).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: search rooms %q for user %s: %w", prefix, userID, err)
	}

	out := make([]core.RoomCandidate, 0, len(rows))
	for _, row := range rows {
		out = append(out, core.RoomCandidate{
			RoomID:       domain.RoomID(row.RoomID),
			RoomName:     domain.RoomName(row.RoomName),
			CreatorName:  row.CreatorName,
			IsOpen:       row.IsOpen,
			InvitationID: domain.InvitationID(row.InvitationID),
		})
	}
	return out, nil
}
