package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/grp-2-projet-elective/cesieats-back/internal/apperr"
	"github.com/grp-2-projet-elective/cesieats-back/internal/model"
	"github.com/grp-2-projet-elective/cesieats-back/internal/queue"
	"github.com/grp-2-projet-elective/cesieats-back/internal/repository"
)

// CredentialsHandler serves /internal/v1/credentials, the API behind
// client.UsersHTTP. Errors carry a repository code next to the message.
type CredentialsHandler struct {
	Backend queue.Backend
}

func NewCredentialsHandler(b queue.Backend) *CredentialsHandler {
	return &CredentialsHandler{Backend: b}
}

type refreshInput struct {
	OldHash   string    `json:"oldHash"`
	Hash      string    `json:"hash"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func credentialError(c echo.Context, err error) error {
	code := repository.ErrorCode(err)
	var status int
	switch {
	case errors.Is(err, repository.ErrUserNotFound):
		status = http.StatusNotFound
	case errors.Is(err, repository.ErrMailExists):
		status = http.StatusBadRequest
	case errors.Is(err, repository.ErrStaleRefreshToken):
		status = http.StatusConflict
	default:
		return apperr.From(err)
	}
	return c.JSON(status, echo.Map{"message": err.Error(), "code": code})
}

func result(c echo.Context, ok bool, err error) error {
	if err != nil {
		return credentialError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"result": ok})
}

func (h *CredentialsHandler) Find(c echo.Context) error {
	u, err := h.Backend.FindByMail(c.Request().Context(), c.Param("mail"))
	if err != nil {
		return credentialError(c, err)
	}
	return c.JSON(http.StatusOK, model.NewUserRecord(u))
}

func (h *CredentialsHandler) FindByID(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return apperr.BadRequest("Invalid user id")
	}
	u, err := h.Backend.FindByID(c.Request().Context(), id)
	if err != nil {
		return credentialError(c, err)
	}
	return c.JSON(http.StatusOK, model.NewUserRecord(u))
}

func (h *CredentialsHandler) Create(c echo.Context) error {
	var rec model.UserRecord
	if err := bind(c, &rec); err != nil {
		return err
	}
	u, err := h.Backend.CreateUser(c.Request().Context(), rec.ToUser())
	if err != nil {
		return credentialError(c, err)
	}
	return c.JSON(http.StatusCreated, model.NewUserRecord(u))
}

func (h *CredentialsHandler) StoreRefresh(c echo.Context) error {
	var in refreshInput
	if err := bind(c, &in); err != nil {
		return err
	}
	if err := h.Backend.StoreRefreshToken(c.Request().Context(), c.Param("mail"), in.Hash, in.ExpiresAt); err != nil {
		return credentialError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *CredentialsHandler) RotateRefresh(c echo.Context) error {
	var in refreshInput
	if err := bind(c, &in); err != nil {
		return err
	}
	err := h.Backend.RotateRefreshToken(c.Request().Context(), c.Param("mail"), in.OldHash, in.Hash, in.ExpiresAt)
	if err != nil {
		return credentialError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *CredentialsHandler) ClearRefresh(c echo.Context) error {
	if err := h.Backend.ClearRefreshToken(c.Request().Context(), c.Param("mail")); err != nil {
		return credentialError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *CredentialsHandler) HasRole(c echo.Context) error {
	role, err := model.ParseRole(c.Param("role"))
	if err != nil {
		return apperr.BadRequest("Invalid role")
	}
	ok, err := h.Backend.HasRole(c.Request().Context(), c.Param("mail"), role)
	return result(c, ok, err)
}

func (h *CredentialsHandler) OwnsRestaurant(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return apperr.BadRequest("Invalid id")
	}
	ok, err := h.Backend.OwnsResource(c.Request().Context(), c.Param("mail"), id)
	return result(c, ok, err)
}

func (h *CredentialsHandler) MailExists(c echo.Context) error {
	ok, err := h.Backend.MailExists(c.Request().Context(), c.Param("mail"))
	return result(c, ok, err)
}
