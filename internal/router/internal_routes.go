package router

import (
	"github.com/labstack/echo/v4"

	"github.com/grp-2-projet-elective/cesieats-back/internal/handler"
)

// RegisterInternal mounts /internal/v1/credentials, reachable only from
// the trusted hosts. client.UsersHTTP is its caller.
func RegisterInternal(e *echo.Echo, d Deps) {
	h := handler.NewCredentialsHandler(d.Credentials)

	g := e.Group("/internal/v1/credentials", d.Authz.InternalCall())
	g.POST("/users", h.Create)
	g.GET("/users/:mail", h.Find)
	g.GET("/ids/:id", h.FindByID)
	g.GET("/users/:mail/exists", h.MailExists)
	g.GET("/users/:mail/roles/:role", h.HasRole)
	g.GET("/users/:mail/restaurants/:id", h.OwnsRestaurant)
	g.PUT("/users/:mail/refresh", h.StoreRefresh)
	g.POST("/users/:mail/refresh/rotate", h.RotateRefresh)
	g.DELETE("/users/:mail/refresh", h.ClearRefresh)
}
