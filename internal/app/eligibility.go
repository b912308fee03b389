package app

import (
	"math"
	"time"

	"github.com/mberthe/chorus/internal/domain"
)

// PositionFreshness is how recent a device fix must be to count for
// geofence evaluation.
const PositionFreshness = 24 * time.Hour

const earthRadiusMeters = 6371000

// EligibilitySnapshot is derived per (user, room) pair at evaluation
// time and never stored.
type EligibilitySnapshot struct {
	UserHasBeenInvited         bool `json:"userHasBeenInvited"`
	UserFitsPositionConstraint bool `json:"userFitsPositionConstraint"`
	TimeConstraintIsValid      bool `json:"timeConstraintIsValid"`
}

// Evaluator decides whether a user may vote in a constrained room.
// It is pure apart from the clock, which tests override.
type Evaluator struct {
	Now func() time.Time
}

func NewEvaluator() *Evaluator {
	return &Evaluator{Now: time.Now}
}

// FitsPosition is true iff at least one device has a fresh fix inside
// the geofence. One fitting device is enough; zero fresh fixes is
// always false, whatever stale coordinates say.
func (e *Evaluator) FitsPosition(c *domain.RoomConstraints, devices []domain.Device) bool {
	if c == nil {
		return true
	}
	now := e.Now()
	for i := range devices {
		d := &devices[i]
		if !d.HasFreshFix(now, PositionFreshness) {
			continue
		}
		if greatCircleMeters(*d.Lat, *d.Lng, c.Lat, c.Lng) <= c.Radius {
			return true
		}
	}
	return false
}

// TimeValid evaluates the [StartsAt, EndsAt) window against the wall
// clock. The result is never cached beyond this call.
func (e *Evaluator) TimeValid(c *domain.RoomConstraints) bool {
	if c == nil {
		return true
	}
	now := e.Now()
	return !now.Before(c.StartsAt) && now.Before(c.EndsAt)
}

// Snapshot bundles the three gates for one (user, room) pair.
func (e *Evaluator) Snapshot(c *domain.RoomConstraints, invited bool, devices []domain.Device) EligibilitySnapshot {
	return EligibilitySnapshot{
		UserHasBeenInvited:         invited,
		UserFitsPositionConstraint: e.FitsPosition(c, devices),
		TimeConstraintIsValid:      e.TimeValid(c),
	}
}

// greatCircleMeters is the haversine distance. Containment must be
// great-circle, not a bounding box.
func greatCircleMeters(lat1, lng1, lat2, lng2 float64) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusMeters * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
