package router

import (
	"github.com/labstack/echo/v4"

	"github.com/grp-2-projet-elective/cesieats-back/internal/handler"
	"github.com/grp-2-projet-elective/cesieats-back/internal/middleware"
)

// RegisterAuth mounts /api/v1/auth. Register, login and refresh sit behind
// the Redis token bucket; refresh also needs a valid access token.
func RegisterAuth(e *echo.Echo, d Deps) {
	h := handler.NewAuthHandler(d.Auth)
	limit := middleware.NewTokenBucket(d.RateLimit, d.Redis, d.Log)

	g := e.Group("/api/v1/auth")
	g.POST("/register", h.Register, limit, d.Authz.VerifyNoDuplicateMail())
	g.POST("/login", h.Login, limit)
	g.POST("/refreshToken", h.RefreshToken, limit, d.Authz.VerifyAccessToken())
	g.POST("/logout", h.Logout)
}
