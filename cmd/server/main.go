package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mberthe/chorus/internal/adapters/geo"
	router "github.com/mberthe/chorus/internal/adapters/http"
	"github.com/mberthe/chorus/internal/adapters/persistence"
	"github.com/mberthe/chorus/internal/adapters/temporal"
	"github.com/mberthe/chorus/internal/app"
	"github.com/mberthe/chorus/internal/app/orch"
	"github.com/mberthe/chorus/internal/config"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	db, err := persistence.Open(cfg.DatabaseDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	repos := persistence.NewRepositories(db)

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal().Err(err).Msg("failed to reach redis")
	}

	wf, err := temporal.Dial(cfg.TemporalHost, cfg.TemporalNamespace, cfg.TemporalTaskQueue)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to reach workflow engine")
	}
	defer wf.Close()

	geocoder := geo.NewHTTPGeocoder(cfg.GeocoderURL)

	reg := app.NewRegistry()
	hub := app.NewHub(reg)
	o := orch.New(reg, hub, repos, wf, geocoder)

	r := router.SetupRouter(ctx, cfg, o, rdb)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Chorus server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
