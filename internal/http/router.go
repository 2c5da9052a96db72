package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"meetup-sync/internal/metrics"
	"meetup-sync/internal/service"
)

// Handlers agrupa los handlers montados por NewRouter.
type Handlers struct {
	Health       *HealthHandler
	Users        *UserHandler
	BlockedDates *BlockedDatesHandler
	Follows      *FollowHandler
	Events       *EventHandler
}

// NewRouter configura el router de Gin con middlewares y rutas.
func NewRouter(
	logger *zap.Logger,
	m *metrics.Metrics,
	gatherer prometheus.Gatherer,
	jwtSvc *service.JWTService,
	h Handlers,
) *gin.Engine {
	registerValidators()

	r := gin.New()
	r.Use(requestIDMiddleware(), zapLoggerMiddleware(logger), metricsMiddleware(m), recoveryMiddleware(logger))

	r.GET("/healthz", h.Health.Live)
	r.GET("/readyz", h.Health.Ready)
	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	r.POST("/users", h.Users.Register)

	auth := r.Group("/auth")
	auth.POST("/confirm", h.Users.Confirm)
	auth.POST("/confirm/resend", h.Users.ResendConfirmation)
	auth.POST("/login", h.Users.Login)
	auth.POST("/refresh", h.Users.RefreshToken)
	auth.POST("/logout", h.Users.Logout)

	protected := r.Group("", JWTAuthMiddleware(jwtSvc))

	users := protected.Group("/users")
	users.GET("/me", h.Users.Me)
	users.DELETE("/me", h.Users.DeleteMe)
	users.GET("/:id", h.Users.GetUser)
	users.POST("/:id/follow", h.Follows.Follow)
	users.DELETE("/:id/follow", h.Follows.Unfollow)
	users.GET("/:id/followers", h.Follows.Followers)
	users.GET("/:id/following", h.Follows.Following)

	events := protected.Group("/events")
	events.POST("", h.Events.Create)
	events.GET("", h.Events.List)
	events.POST("/join", h.Events.Join)
	events.GET("/:id", h.Events.Get)
	events.DELETE("/:id", h.Events.Delete)
	events.DELETE("/:id/participants/me", h.Events.Leave)
	events.GET("/:id/availability", h.Events.Availability)

	blocked := protected.Group("/blockedDates")
	blocked.GET("", h.BlockedDates.List)
	blocked.PUT("/:fromDate/:toDate", h.BlockedDates.Add)
	blocked.DELETE("/:fromDate/:toDate", h.BlockedDates.Remove)

	return r
}
