package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/grp-2-projet-elective/cesieats-back/internal/apperr"
	"github.com/grp-2-projet-elective/cesieats-back/internal/model"
	"github.com/grp-2-projet-elective/cesieats-back/internal/repository"
)

// RestaurantsHandler serves /api/v1/restaurants. Role and ownership are
// enforced by the route middleware.
type RestaurantsHandler struct {
	Repo *repository.RestaurantRepo
}

func NewRestaurantsHandler(repo *repository.RestaurantRepo) *RestaurantsHandler {
	return &RestaurantsHandler{Repo: repo}
}

func (h *RestaurantsHandler) List(c echo.Context) error {
	list, err := h.Repo.List(c.Request().Context())
	if err != nil {
		return repoErr(err)
	}
	return c.JSON(http.StatusOK, list)
}

func (h *RestaurantsHandler) Get(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	r, err := h.Repo.GetByID(c.Request().Context(), id)
	if err != nil {
		return repoErr(err)
	}
	return c.JSON(http.StatusOK, r)
}

// Create stores a restaurant; the caller always becomes one of its owners.
func (h *RestaurantsHandler) Create(c echo.Context) error {
	cl, err := claims(c)
	if err != nil {
		return err
	}
	var in model.Restaurant
	if err := bind(c, &in); err != nil {
		return err
	}
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return apperr.BadRequest("Restaurant name not provided")
	}
	ctx := c.Request().Context()
	exists, err := h.Repo.NameExists(ctx, in.Name)
	if err != nil {
		return repoErr(err)
	}
	if exists {
		return apperr.Duplicate("Restaurant already exists")
	}
	if !in.HasOwner(cl.ID) {
		in.OwnerIDs = append(in.OwnerIDs, cl.ID)
	}
	r, err := h.Repo.Create(ctx, in)
	if err != nil {
		return repoErr(err)
	}
	return c.JSON(http.StatusCreated, r)
}

func (h *RestaurantsHandler) Update(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	current, err := h.Repo.GetByID(ctx, id)
	if err != nil {
		return repoErr(err)
	}
	// fields absent from the body keep their stored value
	in := current
	in.OwnerIDs = nil
	if err := bind(c, &in); err != nil {
		return err
	}
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return apperr.BadRequest("Restaurant name not provided")
	}
	if in.OwnerIDs != nil && len(in.OwnerIDs) == 0 {
		return apperr.BadRequest("A restaurant needs at least one owner")
	}
	r, err := h.Repo.Update(ctx, id, in)
	if err != nil {
		return repoErr(err)
	}
	return c.JSON(http.StatusOK, r)
}

func (h *RestaurantsHandler) Delete(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.Repo.Delete(c.Request().Context(), id); err != nil {
		return repoErr(err)
	}
	return c.NoContent(http.StatusNoContent)
}
