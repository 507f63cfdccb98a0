package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/grp-2-projet-elective/cesieats-back/internal/apperr"
	"github.com/grp-2-projet-elective/cesieats-back/internal/model"
	"github.com/grp-2-projet-elective/cesieats-back/internal/repository"
)

// RequireRole asks the authorization client whether the token's user has
// one of roles. It must run after VerifyAccessToken. The role is looked
// up, not read from the token, so a demoted user loses access before the
// token expires.
func (a *Authorizer) RequireRole(roles ...model.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if IsInternal(c) {
				return next(c)
			}
			claims, ok := ClaimsFrom(c)
			if !ok {
				return apperr.Forbidden("Auth token not provided")
			}
			for _, role := range roles {
				has, err := a.lookup(c.Request().Context(), "role", func(ctx context.Context) (bool, error) {
					return a.Client.HasRole(ctx, claims.Mail, role)
				})
				if err != nil {
					return err
				}
				if has {
					return next(c)
				}
			}
			return apperr.Forbidden("Invalid role")
		}
	}
}

// ResourceID extracts the restaurant id an ownership check applies to.
type ResourceID func(c echo.Context) (uint64, error)

// FromParam reads the id from a path parameter.
func FromParam(name string) ResourceID {
	return func(c echo.Context) (uint64, error) {
		id, err := strconv.ParseUint(c.Param(name), 10, 64)
		if err != nil {
			return 0, apperr.BadRequest("Invalid " + name)
		}
		return id, nil
	}
}

// FromBody reads the id from a top-level JSON field of the request body.
// The body is restored for the handler.
func FromBody(field string) ResourceID {
	return func(c echo.Context) (uint64, error) {
		var id uint64
		raw, err := peekField(c, field)
		if errors.Is(err, errBodyTooLarge) {
			return 0, err
		}
		if err != nil || len(raw) == 0 {
			return 0, apperr.BadRequest(field + " not provided")
		}
		if err := json.Unmarshal(raw, &id); err != nil || id == 0 {
			return 0, apperr.BadRequest("Invalid " + field)
		}
		return id, nil
	}
}

// RequireOwnership checks that the token's user is one of the owners of
// the restaurant designated by source. It must run after VerifyAccessToken.
func (a *Authorizer) RequireOwnership(source ResourceID) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if IsInternal(c) {
				return next(c)
			}
			claims, ok := ClaimsFrom(c)
			if !ok {
				return apperr.Forbidden("Auth token not provided")
			}
			id, err := source(c)
			if err != nil {
				return err
			}
			owns, err := a.lookup(c.Request().Context(), "ownership", func(ctx context.Context) (bool, error) {
				return a.Client.OwnsResource(ctx, claims.Mail, id)
			})
			if err != nil {
				return err
			}
			if !owns {
				return apperr.Forbidden("Unauthorized")
			}
			return next(c)
		}
	}
}

// VerifyNoDuplicateMail rejects a registration whose body mail is missing
// (400 "User mail not provided") or already used (400 "User already
// exists").
func (a *Authorizer) VerifyNoDuplicateMail() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, err := peekField(c, "mail")
			if errors.Is(err, errBodyTooLarge) {
				return err
			}
			var mail string
			if err == nil && len(raw) > 0 {
				_ = json.Unmarshal(raw, &mail)
			}
			mail = repository.NormalizeMail(mail)
			if mail == "" {
				return apperr.BadRequest("User mail not provided")
			}
			exists, err := a.lookup(c.Request().Context(), "duplicate_mail", func(ctx context.Context) (bool, error) {
				return a.Client.MailExists(ctx, mail)
			})
			if err != nil {
				return err
			}
			if exists {
				return apperr.Duplicate("User already exists")
			}
			return next(c)
		}
	}
}

// MaxPeekBytes bounds how much of a body peekField buffers.
const MaxPeekBytes = 1 << 20

var errBodyTooLarge = echo.NewHTTPError(http.StatusRequestEntityTooLarge, "Request body too large")

type peekedBody struct {
	io.Reader
	io.Closer
}

// peekField reads one top-level field of a JSON body and puts the body
// back so the handler can bind it. Bodies over MaxPeekBytes are not
// parsed.
func peekField(c echo.Context, field string) (json.RawMessage, error) {
	req := c.Request()
	if req.Body == nil {
		return nil, nil
	}
	body, err := io.ReadAll(io.LimitReader(req.Body, MaxPeekBytes+1))
	if err == nil && len(body) > MaxPeekBytes {
		req.Body = peekedBody{io.MultiReader(bytes.NewReader(body), req.Body), req.Body}
		return nil, errBodyTooLarge
	}
	_ = req.Body.Close()
	req.Body = io.NopCloser(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	return fields[field], nil
}
