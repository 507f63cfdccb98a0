package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/grp-2-projet-elective/cesieats-back/internal/apperr"
	"github.com/grp-2-projet-elective/cesieats-back/internal/repository"
	"github.com/grp-2-projet-elective/cesieats-back/internal/service"
)

// AuthHandler exposes the authentication lifecycle under /api/v1/auth.
type AuthHandler struct {
	Auth *service.AuthService
}

func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{Auth: auth}
}

type loginReq struct {
	Mail     string `json:"mail"`
	Password string `json:"password"`
}

type refreshReq struct {
	Mail         string `json:"mail"`
	RefreshToken string `json:"refreshToken"`
}

type logoutReq struct {
	Mail string `json:"mail"`
	ID   uint64 `json:"id"`
}

// Register creates the account and returns it without secrets (201).
func (h *AuthHandler) Register(c echo.Context) error {
	var req service.RegisterInput
	if err := bind(c, &req); err != nil {
		return err
	}
	u, err := h.Auth.Register(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, u)
}

// Login returns a fresh token pair (201).
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := bind(c, &req); err != nil {
		return err
	}
	pair, err := h.Auth.Login(c.Request().Context(), req.Mail, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, pair)
}

// RefreshToken rotates the caller's refresh token (200). The mail in the
// body must be the one of the verified access token.
func (h *AuthHandler) RefreshToken(c echo.Context) error {
	var req refreshReq
	if err := bind(c, &req); err != nil {
		return err
	}
	cl, err := claims(c)
	if err != nil {
		return err
	}
	if strings.TrimSpace(req.Mail) == "" {
		req.Mail = cl.Mail
	}
	if repository.NormalizeMail(req.Mail) != repository.NormalizeMail(cl.Mail) {
		return apperr.Forbidden("Unauthorized")
	}
	pair, err := h.Auth.RefreshToken(c.Request().Context(), req.Mail, req.RefreshToken)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pair)
}

// Logout clears the refresh token of {mail} or {id} (204). The mail wins
// when both are given.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req logoutReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	var err error
	if strings.TrimSpace(req.Mail) == "" && req.ID != 0 {
		err = h.Auth.LogoutByID(ctx, req.ID)
	} else {
		err = h.Auth.Logout(ctx, req.Mail)
	}
	if err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
