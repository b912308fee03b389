package client

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// PositionSource yields the device's last known fix. ok is false while
// no fix exists yet; nothing is sent in that case.
type PositionSource interface {
	Position() (lat, lng float64, ok bool)
}

// LocationWorker periodically pushes the device position upstream so
// the server can re-evaluate geofence eligibility.
type LocationWorker struct {
	cmd      Commander
	source   PositionSource
	interval time.Duration
}

func NewLocationWorker(cmd Commander, source PositionSource, interval time.Duration) *LocationWorker {
	return &LocationWorker{cmd: cmd, source: source, interval: interval}
}

func (w *LocationWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			lat, lng, ok := w.source.Position()
			if !ok {
				continue
			}
			err := w.cmd.Send(map[string]any{
				"type": "UPDATE_POSITION",
				"lat":  lat,
				"lng":  lng,
			})
			if err != nil {
				log.Warn().Err(err).Str("module", "client").Msg("position push failed")
			}
		}
	}
}
