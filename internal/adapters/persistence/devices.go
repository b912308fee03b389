package persistence

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/mberthe/chorus/internal/core"
	"github.com/mberthe/chorus/internal/domain"
)

type DeviceRepo struct {
	db *gorm.DB
}

func (r *DeviceRepo) Save(ctx context.Context, d *domain.Device) error {
	row := deviceRow{
		ID:           string(d.ID),
		UserID:       string(d.UserID),
		Name:         d.Name,
		Lat:          d.Lat,
		Lng:          d.Lng,
		PosUpdatedAt: d.PosUpdatedAt,
	}
	if err := r.db.WithContext(ctx).Save(&row).Error; err != nil {
		return fmt.Errorf("gorm: save device %s: %w", d.ID, err)
	}
	return nil
}

func (r *DeviceRepo) FindByID(ctx context.Context, id domain.DeviceID) (*domain.Device, error) {
	var row deviceRow
	if err := r.db.WithContext(ctx).First(&row, "id = ?", string(id)).Error; err != nil {
		if isNotFound(err) {
			return nil, core.ErrDeviceNotFound
		}
		return nil, fmt.Errorf("gorm: find device %s: %w", id, err)
	}
	d := row.toDomain()
	return &d, nil
}

func (r *DeviceRepo) UpdatePosition(ctx context.Context, id domain.DeviceID, lat, lng float64, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&deviceRow{}).Where("id = ?", string(id)).Updates(map[string]any{
		"lat":            lat,
		"lng":            lng,
		"pos_updated_at": at,
	})
	if res.Error != nil {
		return fmt.Errorf("gorm: update position of device %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return core.ErrDeviceNotFound
	}
	return nil
}

// WithFreshPosition only returns devices carrying a full fix newer
// than now-window; stale or partial fixes never reach the evaluator.
func (r *DeviceRepo) WithFreshPosition(ctx context.Context, userID domain.UserID, window time.Duration) ([]domain.Device, error) {
	var rows []deviceRow
	cutoff := time.Now().Add(-window)
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND lat IS NOT NULL AND lng IS NOT NULL AND pos_updated_at >= ?", string(userID), cutoff).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: fresh devices of user %s: %w", userID, err)
	}
	out := make([]domain.Device, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain())
	}
	return out, nil
}
