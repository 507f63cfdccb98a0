package middleware

// identity.go holds the context keys set by the authorization middleware
// and the accessors handlers use to read them back.

import (
	"github.com/labstack/echo/v4"

	"github.com/grp-2-projet-elective/cesieats-back/internal/model"
)

const (
	claimsKey   = "claims"
	internalKey = "internal_call"
	tokenHeader = "x-access-token"
)

// ClaimsFrom returns the verified access-token claims of the request.
func ClaimsFrom(c echo.Context) (model.TokenClaims, bool) {
	cl, ok := c.Get(claimsKey).(model.TokenClaims)
	return cl, ok
}

// IsInternal reports whether InternalCall admitted the request.
func IsInternal(c echo.Context) bool {
	v, _ := c.Get(internalKey).(bool)
	return v
}

// userID identifies the caller for rate limiting; "anon" before login.
func userID(c echo.Context) string {
	if cl, ok := ClaimsFrom(c); ok && cl.Mail != "" {
		return cl.Mail
	}
	return "anon"
}
