package handler

import (
	"errors"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/grp-2-projet-elective/cesieats-back/internal/apperr"
	"github.com/grp-2-projet-elective/cesieats-back/internal/middleware"
	"github.com/grp-2-projet-elective/cesieats-back/internal/model"
	"github.com/grp-2-projet-elective/cesieats-back/internal/repository"
)

// parseID reads a numeric path parameter.
func parseID(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.BadRequest("Invalid " + name)
	}
	return id, nil
}

// bind decodes the JSON body into v.
func bind(c echo.Context, v any) error {
	if err := c.Bind(v); err != nil {
		return apperr.BadRequest("Invalid request body")
	}
	return nil
}

// claims returns the verified identity of the caller.
func claims(c echo.Context) (model.TokenClaims, error) {
	cl, ok := middleware.ClaimsFrom(c)
	if !ok {
		return model.TokenClaims{}, apperr.Forbidden("Auth token not provided")
	}
	return cl, nil
}

// repoErr turns repository sentinels into client-facing errors.
func repoErr(err error) error {
	switch {
	case errors.Is(err, repository.ErrUserNotFound):
		return apperr.NotFound("User not found")
	case errors.Is(err, repository.ErrMailExists):
		return apperr.Duplicate("User already exists")
	case errors.Is(err, repository.ErrRestaurantNotFound):
		return apperr.NotFound("Restaurant not found")
	case errors.Is(err, repository.ErrRestaurantExists):
		return apperr.Duplicate("Restaurant already exists")
	case errors.Is(err, repository.ErrDocumentNotFound):
		return apperr.NotFound("Document not found")
	}
	return apperr.From(err)
}
