package persistence

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/mberthe/chorus/internal/core"
	"github.com/mberthe/chorus/internal/domain"
)

type PlaylistRepo struct {
	db *gorm.DB
}

func (r *PlaylistRepo) FindByID(ctx context.Context, id domain.RoomID) (*domain.PlaylistRoom, error) {
	var row playlistRow
	if err := r.db.WithContext(ctx).First(&row, "id = ?", string(id)).Error; err != nil {
		if isNotFound(err) {
			return nil, core.ErrRoomNotFound
		}
		return nil, fmt.Errorf("gorm: find playlist %s: %w", id, err)
	}
	return &domain.PlaylistRoom{
		ID:        domain.RoomID(row.ID),
		Name:      domain.RoomName(row.Name),
		CreatorID: domain.UserID(row.CreatorID),
		IsOpen:    row.IsOpen,
	}, nil
}

func (r *PlaylistRepo) Create(ctx context.Context, room *domain.PlaylistRoom) error {
	row := playlistRow{
		ID:        string(room.ID),
		Name:      string(room.Name),
		CreatorID: string(room.CreatorID),
		IsOpen:    room.IsOpen,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isDuplicate(err) {
			return core.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: create playlist %s: %w", room.ID, err)
	}
	return nil
}

func (r *PlaylistRepo) Delete(ctx context.Context, id domain.RoomID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&playlistTrackRow{}, "room_id = ?", string(id)).Error; err != nil {
			return fmt.Errorf("gorm: delete playlist tracks %s: %w", id, err)
		}
		if err := tx.Delete(&playlistMemberRow{}, "room_id = ?", string(id)).Error; err != nil {
			return fmt.Errorf("gorm: delete playlist members %s: %w", id, err)
		}
		if err := tx.Delete(&playlistRow{}, "id = ?", string(id)).Error; err != nil {
			return fmt.Errorf("gorm: delete playlist %s: %w", id, err)
		}
		return nil
	})
}

func (r *PlaylistRepo) AssociateUser(ctx context.Context, id domain.RoomID, userID domain.UserID) error {
	err := r.db.WithContext(ctx).Create(&playlistMemberRow{RoomID: string(id), UserID: string(userID)}).Error
	if err != nil {
		if isDuplicate(err) {
			return nil
		}
		return fmt.Errorf("gorm: associate user %s to playlist %s: %w", userID, id, err)
	}
	return nil
}

func (r *PlaylistRepo) DissociateUser(ctx context.Context, id domain.RoomID, userID domain.UserID) error {
	err := r.db.WithContext(ctx).Delete(&playlistMemberRow{}, "room_id = ? AND user_id = ?", string(id), string(userID)).Error
	if err != nil {
		return fmt.Errorf("gorm: dissociate user %s from playlist %s: %w", userID, id, err)
	}
	return nil
}

func (r *PlaylistRepo) Members(ctx context.Context, id domain.RoomID) ([]domain.User, error) {
	var rows []userRow
	err := r.db.WithContext(ctx).
		Joins("JOIN mpe_room_members m ON m.user_id = users.id").
		Where("m.room_id = ?", string(id)).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: members of playlist %s: %w", id, err)
	}
	out := make([]domain.User, 0, len(rows))
	for i := range rows {
		out = append(out, *rows[i].toDomain())
	}
	return out, nil
}

func (r *PlaylistRepo) IsMember(ctx context.Context, id domain.RoomID, userID domain.UserID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&playlistMemberRow{}).
		Where("room_id = ? AND user_id = ?", string(id), string(userID)).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("gorm: membership of user %s in playlist %s: %w", userID, id, err)
	}
	return count > 0, nil
}

func (r *PlaylistRepo) Tracks(ctx context.Context, id domain.RoomID) ([]domain.PlaylistTrack, error) {
	var rows []playlistTrackRow
	err := r.db.WithContext(ctx).
		Where("room_id = ?", string(id)).
		Order("position ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: tracks of playlist %s: %w", id, err)
	}
	out := make([]domain.PlaylistTrack, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain())
	}
	return out, nil
}

// AddTrack appends at the end of the list.
func (r *PlaylistRepo) AddTrack(ctx context.Context, id domain.RoomID, track domain.PlaylistTrack) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&playlistTrackRow{}).Where("room_id = ?", string(id)).Count(&count).Error; err != nil {
			return fmt.Errorf("gorm: count tracks of playlist %s: %w", id, err)
		}
		row := playlistTrackRow{
			RoomID:     string(id),
			TrackID:    track.ID,
			Title:      track.Title,
			ArtistName: track.ArtistName,
			Duration:   track.Duration,
			Position:   int(count),
		}
		if err := tx.Create(&row).Error; err != nil {
			if isDuplicate(err) {
				return core.ErrDuplicateEntry
			}
			return fmt.Errorf("gorm: add track %s to playlist %s: %w", track.ID, id, err)
		}
		return nil
	})
}

// DeleteTrack removes the row and closes the position gap so the list
// stays dense.
func (r *PlaylistRepo) DeleteTrack(ctx context.Context, id domain.RoomID, trackID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row playlistTrackRow
		if err := tx.First(&row, "room_id = ? AND track_id = ?", string(id), trackID).Error; err != nil {
			if isNotFound(err) {
				return core.ErrRoomNotFound
			}
			return fmt.Errorf("gorm: find track %s in playlist %s: %w", trackID, id, err)
		}
		if err := tx.Delete(&playlistTrackRow{}, "room_id = ? AND track_id = ?", string(id), trackID).Error; err != nil {
			return fmt.Errorf("gorm: delete track %s from playlist %s: %w", trackID, id, err)
		}
		err := tx.Model(&playlistTrackRow{}).
			Where("room_id = ? AND position > ?", string(id), row.Position).
			Update("position", gorm.Expr("position - 1")).Error
		if err != nil {
			return fmt.Errorf("gorm: reindex playlist %s: %w", id, err)
		}
		return nil
	})
}

// MoveTrack swaps the track with its neighbor at position+delta.
func (r *PlaylistRepo) MoveTrack(ctx context.Context, id domain.RoomID, trackID string, delta int) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row playlistTrackRow
		if err := tx.First(&row, "room_id = ? AND track_id = ?", string(id), trackID).Error; err != nil {
			if isNotFound(err) {
				return core.ErrRoomNotFound
			}
			return fmt.Errorf("gorm: find track %s in playlist %s: %w", trackID, id, err)
		}
		target := row.Position + delta
		var neighbor playlistTrackRow
		if err := tx.First(&neighbor, "room_id = ? AND position = ?", string(id), target).Error; err != nil {
			if isNotFound(err) {
				return fmt.Errorf("%w: track %s cannot move to position %d", core.ErrValidation, trackID, target)
			}
			return fmt.Errorf("gorm: find neighbor at %d in playlist %s: %w", target, id, err)
		}
		if err := tx.Model(&playlistTrackRow{}).
			Where("room_id = ? AND track_id = ?", string(id), neighbor.TrackID).
			Update("position", row.Position).Error; err != nil {
			return fmt.Errorf("gorm: move neighbor %s: %w", neighbor.TrackID, err)
		}
		if err := tx.Model(&playlistTrackRow{}).
			Where("room_id = ? AND track_id = ?", string(id), trackID).
			Update("position", target).Error; err != nil {
			return fmt.Errorf("gorm: move track %s: %w", trackID, err)
		}
		return nil
	})
}
