// Package persistence implements the repository interfaces on GORM.
// Driver errors are mapped to the core sentinels at this boundary so
// nothing above it knows about SQL.
package persistence

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/mberthe/chorus/internal/core"
)

const pgUniqueViolation = "23505"

func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(
		&userRow{},
		&deviceRow{},
		&roomRow{},
		&roomMemberRow{},
		&invitationRow{},
		&playlistRow{},
		&playlistMemberRow{},
		&playlistTrackRow{},
	); err != nil {
		return nil, err
	}
	log.Info().Str("module", "persistence").Msg("database migrated")
	return db, nil
}

// NewRepositories wires every repository over one shared connection.
func NewRepositories(db *gorm.DB) core.Repositories {
	return core.Repositories{
		Rooms:       &RoomRepo{db: db},
		Invitations: &InvitationRepo{db: db},
		Devices:     &DeviceRepo{db: db},
		Users:       &UserRepo{db: db},
		Playlists:   &PlaylistRepo{db: db},
	}
}

func isDuplicate(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
