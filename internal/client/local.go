// Package client holds the implementations of the credential store and
// authorization lookups used by the auth routes and the authorization
// middleware: in-process over the repositories, or remote over HTTP or
// RabbitMQ depending on where the users service runs.
package client

import (
	"context"
	"errors"

	"github.com/grp-2-projet-elective/cesieats-back/internal/model"
	"github.com/grp-2-projet-elective/cesieats-back/internal/repository"
)

// Local answers authorization lookups straight from the database.
type Local struct {
	Users       *repository.UserRepo
	Restaurants *repository.RestaurantRepo
}

func NewLocal(users *repository.UserRepo, restaurants *repository.RestaurantRepo) *Local {
	return &Local{Users: users, Restaurants: restaurants}
}

func (l *Local) HasRole(ctx context.Context, mail string, role model.Role) (bool, error) {
	return l.Users.HasRole(ctx, mail, role)
}

// OwnsResource reports whether the user behind mail is an owner of the
// restaurant. Unknown users own nothing.
func (l *Local) OwnsResource(ctx context.Context, mail string, restaurantID uint64) (bool, error) {
	u, err := l.Users.GetByMail(ctx, mail)
	if errors.Is(err, repository.ErrUserNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return l.Restaurants.IsOwner(ctx, restaurantID, u.ID)
}

func (l *Local) MailExists(ctx context.Context, mail string) (bool, error) {
	return l.Users.MailExists(ctx, mail)
}

// Backend joins the local credential store and lookups; it is what the
// internal HTTP API and the RPC server serve.
type Backend struct {
	*repository.Credentials
	*Local
}
