package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/grp-2-projet-elective/cesieats-back/internal/apperr"
	"github.com/grp-2-projet-elective/cesieats-back/internal/middleware"
	"github.com/grp-2-projet-elective/cesieats-back/internal/model"
	"github.com/grp-2-projet-elective/cesieats-back/internal/repository"
	"github.com/grp-2-projet-elective/cesieats-back/internal/service"
)

// UsersHandler serves /api/v1/users.
type UsersHandler struct {
	Users *repository.UserRepo
	Auth  *service.AuthService
}

func NewUsersHandler(users *repository.UserRepo, auth *service.AuthService) *UsersHandler {
	return &UsersHandler{Users: users, Auth: auth}
}

func publicUsers(in []model.User) []model.User {
	out := make([]model.User, len(in))
	for i, u := range in {
		out[i] = u.Public()
	}
	return out
}

func (h *UsersHandler) List(c echo.Context) error {
	users, err := h.Users.List(c.Request().Context())
	if err != nil {
		return repoErr(err)
	}
	return c.JSON(http.StatusOK, publicUsers(users))
}

func (h *UsersHandler) Get(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	u, err := h.Users.GetByID(c.Request().Context(), id)
	if err != nil {
		return repoErr(err)
	}
	return c.JSON(http.StatusOK, u.Public())
}

func (h *UsersHandler) GetByMail(c echo.Context) error {
	u, err := h.Users.GetByMail(c.Request().Context(), c.Param("mail"))
	if err != nil {
		return repoErr(err)
	}
	return c.JSON(http.StatusOK, u.Public())
}

// Create registers a user on behalf of a staff member. Unlike
// /auth/register any role can be assigned.
func (h *UsersHandler) Create(c echo.Context) error {
	var req service.RegisterInput
	if err := bind(c, &req); err != nil {
		return err
	}
	u, err := h.Auth.CreateUser(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, u)
}

// self allows the user to act on their own record only.
func self(c echo.Context, id uint64) error {
	if middleware.IsInternal(c) {
		return nil
	}
	cl, err := claims(c)
	if err != nil {
		return err
	}
	if cl.ID != id {
		return apperr.Forbidden("Unauthorized")
	}
	return nil
}

func (h *UsersHandler) Update(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := self(c, id); err != nil {
		return err
	}
	var patch model.UserPatch
	if err := bind(c, &patch); err != nil {
		return err
	}
	u, err := h.Users.Update(c.Request().Context(), id, patch)
	if err != nil {
		return repoErr(err)
	}
	return c.JSON(http.StatusOK, u.Public())
}

func (h *UsersHandler) Delete(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := self(c, id); err != nil {
		return err
	}
	if err := h.Users.Delete(c.Request().Context(), id); err != nil {
		return repoErr(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// AsRole answers GET /users/asRole/:mail/:role with a bare boolean.
func (h *UsersHandler) AsRole(c echo.Context) error {
	role, err := model.ParseRole(c.Param("role"))
	if err != nil {
		return apperr.BadRequest("Invalid role")
	}
	ok, err := h.Users.HasRole(c.Request().Context(), c.Param("mail"), role)
	if err != nil {
		return repoErr(err)
	}
	return c.JSON(http.StatusOK, ok)
}
