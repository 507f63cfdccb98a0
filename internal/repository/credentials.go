package repository

import (
	"context"
	"time"

	"github.com/grp-2-projet-elective/cesieats-back/internal/model"
)

// Credentials is the in-process credential store: the users table seen
// through UserRepo and TokenRepo. It is used when the auth routes run in
// the same process as the users database.
type Credentials struct {
	Users  *UserRepo
	Tokens *TokenRepo
}

func NewCredentials(u *UserRepo, t *TokenRepo) *Credentials {
	return &Credentials{Users: u, Tokens: t}
}

func (c *Credentials) FindByMail(ctx context.Context, mail string) (model.User, error) {
	return c.Users.GetByMail(ctx, mail)
}

func (c *Credentials) FindByID(ctx context.Context, id uint64) (model.User, error) {
	return c.Users.GetByID(ctx, id)
}

func (c *Credentials) CreateUser(ctx context.Context, u model.User) (model.User, error) {
	return c.Users.Create(ctx, u)
}

func (c *Credentials) StoreRefreshToken(ctx context.Context, mail, hash string, exp time.Time) error {
	return c.Tokens.StoreRefresh(ctx, mail, hash, exp)
}

func (c *Credentials) RotateRefreshToken(ctx context.Context, mail, oldHash, newHash string, exp time.Time) error {
	return c.Tokens.RotateRefresh(ctx, mail, oldHash, newHash, exp)
}

func (c *Credentials) ClearRefreshToken(ctx context.Context, mail string) error {
	return c.Tokens.ClearRefresh(ctx, mail)
}
