package domain

import "time"

type DeviceID string

// Device is one physical connection source of a user. Position fields
// are the last known fix and may be absent; a session (socketID) is
// volatile and never persisted.
type Device struct {
	ID     DeviceID
	UserID UserID
	Name   string

	Lat          *float64
	Lng          *float64
	PosUpdatedAt *time.Time
}

// HasFreshFix reports whether the device has a full position fix newer
// than now-window.
func (d *Device) HasFreshFix(now time.Time, window time.Duration) bool {
	if d.Lat == nil || d.Lng == nil || d.PosUpdatedAt == nil {
		return false
	}
	return d.PosUpdatedAt.After(now.Add(-window))
}
