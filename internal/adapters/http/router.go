package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mberthe/chorus/internal/adapters/signal"
	"github.com/mberthe/chorus/internal/app/orch"
	"github.com/mberthe/chorus/internal/config"
	"github.com/mberthe/chorus/internal/core"
	"github.com/mberthe/chorus/internal/domain"
)

func genClientToken() string {
	return uuid.NewString()
}

func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = genClientToken()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, o *orch.Orchestrator, rdb *redis.Client) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("ChorusSessions", store))
	r.Use(ClientTokenMiddleware())
	r.Use(RateLimitMiddleware(rdb, cfg.RateLimitPerMinute, time.Minute))

	log.Info().Str("module", "adapters.http").Msg("router setup")

	api := r.Group("/api")
	api.Use(AuthMiddleware(cfg.JWTSecret))

	api.GET("/ws/signal", func(c *gin.Context) {
		ctrl := signal.NewSignalWSController(o)
		log.Info().Str("module", "adapters.http").Str("sid", c.GetString("client_token")).Msg("ws signal endpoint hit")
		ctrl.HandleSignal(ctx, c)
	})

	api.POST("/search/rooms", func(c *gin.Context) {
		searchRooms(c, o)
	})

	return r
}

func searchRooms(c *gin.Context, o *orch.Orchestrator) {
	var body struct {
		SearchQuery string `json:"searchQuery"`
		Page        int    `json:"page"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request body"})
		return
	}

	userID := domain.UserID(c.GetString("user_id"))
	resp, err := o.SearchRooms(c.Request.Context(), userID, body.SearchQuery, body.Page)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrValidation):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case core.IsNotFound(err):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		default:
			log.Error().Err(err).Str("module", "adapters.http").Msg("search rooms failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}
	c.JSON(http.StatusOK, resp)
}
