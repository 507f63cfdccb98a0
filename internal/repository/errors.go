// Package repository defines error types that are reused across multiple
// repositories and the credential store clients. These sentinel values let
// the service layer tell "no such row" from a uniqueness clash or a lost
// refresh-token race without inspecting driver errors.
package repository

import "errors"

// ErrUserNotFound is returned when no user matches the mail or id.
var ErrUserNotFound = errors.New("user not found")

// ErrMailExists is returned when a user with the same mail already exists.
var ErrMailExists = errors.New("mail already exists")

// ErrStaleRefreshToken is returned by a rotation when the stored refresh
// token no longer matches the one presented: it was rotated by another
// request, cleared by a logout, or never issued.
var ErrStaleRefreshToken = errors.New("stale refresh token")

// ErrRestaurantNotFound is returned when a restaurant id does not exist.
var ErrRestaurantNotFound = errors.New("restaurant not found")

// ErrRestaurantExists is returned when the restaurant name is taken.
var ErrRestaurantExists = errors.New("restaurant already exists")

// ErrDocumentNotFound is returned when a document id does not exist for
// its kind.
var ErrDocumentNotFound = errors.New("document not found")

// Wire codes for the sentinels above. The internal HTTP API and the
// credential RPC server send them so remote clients can rebuild the same
// sentinel on their side.
const (
	CodeUserNotFound       = "user_not_found"
	CodeMailExists         = "mail_exists"
	CodeStaleRefreshToken  = "stale_refresh_token"
	CodeRestaurantNotFound = "restaurant_not_found"
	CodeRestaurantExists   = "restaurant_exists"
	CodeDocumentNotFound   = "document_not_found"
)

var codes = map[string]error{
	CodeUserNotFound:       ErrUserNotFound,
	CodeMailExists:         ErrMailExists,
	CodeStaleRefreshToken:  ErrStaleRefreshToken,
	CodeRestaurantNotFound: ErrRestaurantNotFound,
	CodeRestaurantExists:   ErrRestaurantExists,
	CodeDocumentNotFound:   ErrDocumentNotFound,
}

// ErrorCode returns the wire code of a repository sentinel, or "" for any
// other error.
func ErrorCode(err error) string {
	for code, sentinel := range codes {
		if errors.Is(err, sentinel) {
			return code
		}
	}
	return ""
}

// FromCode returns the sentinel for code, or nil when code is unknown.
func FromCode(code string) error {
	return codes[code]
}
