// Package router builds the echo instance and registers the route groups
// of every service this process mounts.
package router

import (
	"database/sql"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/grp-2-projet-elective/cesieats-back/internal/config"
	"github.com/grp-2-projet-elective/cesieats-back/internal/handler"
	"github.com/grp-2-projet-elective/cesieats-back/internal/metrics"
	"github.com/grp-2-projet-elective/cesieats-back/internal/middleware"
	"github.com/grp-2-projet-elective/cesieats-back/internal/queue"
	"github.com/grp-2-projet-elective/cesieats-back/internal/repository"
	"github.com/grp-2-projet-elective/cesieats-back/internal/service"
)

// Deps carries everything the route groups need. Repositories and DB are
// nil when this process runs only the auth service against a remote
// users service.
type Deps struct {
	Cfg       config.Config
	Log       zerolog.Logger
	Metrics   *metrics.Metrics
	Gatherer  prometheus.Gatherer
	Redis     *redis.Client
	RateLimit config.RateLimitConfig
	Cache     config.CacheConfig

	Authz *middleware.Authorizer
	Auth  *service.AuthService

	DB          *sql.DB
	Users       *repository.UserRepo
	Restaurants *repository.RestaurantRepo
	Documents   *repository.DocumentRepo
	Credentials queue.Backend
}

// maxBodySize caps every request body.
const maxBodySize = "1M"

// New returns the configured echo instance.
func New(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	// only the socket peer counts for the trusted-host check
	e.IPExtractor = echo.ExtractIPDirect()
	e.HTTPErrorHandler = middleware.ErrorHandler(d.Log)
	e.Use(middleware.RequestID(), middleware.RequestLogger(d.Log, d.Metrics), middleware.Recover(d.Log),
		echomw.BodyLimit(maxBodySize))

	RegisterRoutes(e, d)
	if d.Cfg.Mounts("auth") && d.Auth != nil {
		RegisterAuth(e, d)
	}
	if d.Cfg.Mounts("users") && d.Users != nil {
		RegisterUsers(e, d)
		if d.Credentials != nil {
			RegisterInternal(e, d)
		}
	}
	if d.Cfg.Mounts("restaurants") && d.Restaurants != nil {
		RegisterRestaurants(e, d)
	}
	if d.Documents != nil {
		RegisterDocuments(e, d)
	}
	return e
}

// RegisterRoutes registers the probes and the metrics endpoint.
func RegisterRoutes(e *echo.Echo, d Deps) {
	e.GET("/healthz", handler.Health)
	if d.DB != nil {
		e.GET("/readyz", handler.Ready(d.DB))
	}
	if d.Gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}
}
