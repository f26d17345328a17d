package http

import (
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/NooksApp/accelerator-core/internal/config"
	"github.com/NooksApp/accelerator-core/internal/session"
)

func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = uuid.NewString()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

// SetupRouter exposes the hosted session core over a small REST surface.
func SetupRouter(cfg *config.Config, core *session.Core) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("CoreSessions", store))
	r.Use(ClientTokenMiddleware())

	log.Info().Str("module", "adapters.http").Msg("router setup")

	h := &Handlers{Core: core}
	api := r.Group("/api")
	api.GET("/session", h.GetSession)
	api.POST("/call/start", h.StartCall)
	api.POST("/call/end", h.EndCall)
	api.POST("/signal", h.SendSignal)
	api.POST("/av/local", h.ToggleLocalAV)
	api.POST("/av/remote", h.ToggleRemoteAV)

	return r
}
