package router

import (
	"github.com/labstack/echo/v4"

	"github.com/grp-2-projet-elective/cesieats-back/internal/handler"
	"github.com/grp-2-projet-elective/cesieats-back/internal/middleware"
	"github.com/grp-2-projet-elective/cesieats-back/internal/model"
)

// RegisterUsers mounts /api/v1/users. Listing is reserved to the
// commercial and technical departments.
func RegisterUsers(e *echo.Echo, d Deps) {
	h := handler.NewUsersHandler(d.Users, d.Auth)
	a := d.Authz

	g := e.Group("/api/v1/users", a.VerifyAccessToken())
	g.GET("", h.List, a.RequireRole(model.RoleCommercialDepartment, model.RoleTechnicalDepartment))
	g.GET("/mail/:mail", h.GetByMail)
	g.GET("/asRole/:mail/:role", h.AsRole)
	g.GET("/:id", h.Get)
	g.PATCH("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
	if d.Auth != nil {
		g.POST("", h.Create,
			a.RequireRole(model.RoleCommercialDepartment, model.RoleTechnicalDepartment),
			a.VerifyNoDuplicateMail())
	}
}

// RegisterRestaurants mounts /api/v1/restaurants. Reads are public and
// cached; writes need the RESTAURANT_OWNER role and, for an existing
// restaurant, to be one of its owners.
func RegisterRestaurants(e *echo.Echo, d Deps) {
	h := handler.NewRestaurantsHandler(d.Restaurants)
	a := d.Authz
	cache := middleware.NewRedisCache(d.Cache, d.Redis, d.Log)
	invalidate := middleware.InvalidateCache(d.Cache, d.Redis, d.Log)
	owns := a.RequireOwnership(middleware.FromParam("id"))

	g := e.Group("/api/v1/restaurants")
	g.GET("", h.List, cache)
	g.GET("/:id", h.Get, cache)
	g.POST("", h.Create, a.VerifyAccessToken(), a.RequireRole(model.RoleRestaurantOwner), invalidate)
	g.PUT("/:id", h.Update, a.VerifyAccessToken(), a.RequireRole(model.RoleRestaurantOwner), owns, invalidate)
	g.PATCH("/:id", h.Update, a.VerifyAccessToken(), a.RequireRole(model.RoleRestaurantOwner), owns, invalidate)
	g.DELETE("/:id", h.Delete, a.VerifyAccessToken(), a.RequireRole(model.RoleRestaurantOwner), owns, invalidate)
}

// RegisterDocuments mounts /api/v1/{orders,menus,products,deliveries} for
// every kind this process serves.
func RegisterDocuments(e *echo.Echo, d Deps) {
	for _, kind := range model.Kinds {
		if d.Cfg.Mounts(string(kind)) {
			registerKind(e, d, kind)
		}
	}
}

func registerKind(e *echo.Echo, d Deps, kind model.Kind) {
	h := handler.NewDocumentsHandler(d.Documents, kind)
	a := d.Authz

	var create, mutate []echo.MiddlewareFunc
	switch kind {
	case model.KindOrder:
		create = []echo.MiddlewareFunc{a.RequireRole(model.RoleCustomer)}
	case model.KindDelivery:
		create = []echo.MiddlewareFunc{a.RequireRole(model.RoleDeliveryMan)}
		mutate = create
	case model.KindMenu, model.KindProduct:
		create = []echo.MiddlewareFunc{
			a.RequireRole(model.RoleRestaurantOwner),
			a.RequireOwnership(middleware.FromBody("restaurantId")),
		}
		mutate = []echo.MiddlewareFunc{
			a.RequireRole(model.RoleRestaurantOwner),
			a.RequireOwnership(h.RestaurantOf),
		}
	}

	g := e.Group("/api/v1/"+string(kind), a.VerifyAccessToken())
	g.GET("", h.List)
	g.GET("/stats", h.Stats, a.RequireRole(model.RoleCommercialDepartment, model.RoleTechnicalDepartment))
	g.GET("/:id", h.Get)
	g.POST("", h.Create, create...)
	g.PUT("/:id", h.Update, mutate...)
	g.PATCH("/:id", h.Update, mutate...)
	g.DELETE("/:id", h.Delete, mutate...)
}
