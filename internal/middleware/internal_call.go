package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/grp-2-projet-elective/cesieats-back/internal/apperr"
)

// InternalCall admits only requests from a trusted host and marks them as
// internal, which makes the token, role and ownership checks of the same
// chain pass through. Mount it on internal-only route groups: public
// routes never consult the allow-list.
func (a *Authorizer) InternalCall() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()
			if !a.trusted(ip) {
				a.Metrics.Decision("internal", "deny")
				a.Log.Warn().Str("ip", ip).Str("path", c.Path()).Msg("internal route called from untrusted host")
				return apperr.Forbidden("Internal route")
			}
			a.Metrics.Decision("internal", "allow")
			c.Set(internalKey, true)
			return next(c)
		}
	}
}
