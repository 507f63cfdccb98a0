package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/grp-2-projet-elective/cesieats-back/internal/apperr"
)

// VerifyAccessToken validates the x-access-token header and stores the
// claims in the context. A missing or invalid token is rejected with 403.
func (a *Authorizer) VerifyAccessToken() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if IsInternal(c) {
				return next(c)
			}
			raw := strings.TrimSpace(c.Request().Header.Get(tokenHeader))
			if raw == "" {
				a.Metrics.Decision("token", "deny")
				return apperr.Forbidden("Auth token not provided")
			}
			claims, err := a.Tokens.VerifyAccess(raw)
			if err != nil {
				a.Metrics.Decision("token", "deny")
				a.Log.Debug().Err(err).Str("path", c.Path()).Msg("access token rejected")
				return apperr.Forbidden("Auth token invalid")
			}
			a.Metrics.Decision("token", "allow")
			c.Set(claimsKey, claims)
			return next(c)
		}
	}
}
