// Package service implements the authentication lifecycle on top of a
// credential store and the token service.
package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/grp-2-projet-elective/cesieats-back/internal/apperr"
	"github.com/grp-2-projet-elective/cesieats-back/internal/model"
	"github.com/grp-2-projet-elective/cesieats-back/internal/queue"
	"github.com/grp-2-projet-elective/cesieats-back/internal/repository"
	"github.com/grp-2-projet-elective/cesieats-back/internal/utils"
)

// CredentialStore owns the persisted user records. It is implemented by
// repository.Credentials (same process), client.UsersHTTP and
// client.UsersAMQP (remote users service). Implementations report missing
// users with repository.ErrUserNotFound, duplicates with
// repository.ErrMailExists and lost rotations with
// repository.ErrStaleRefreshToken.
type CredentialStore interface {
	FindByMail(ctx context.Context, mail string) (model.User, error)
	FindByID(ctx context.Context, id uint64) (model.User, error)
	CreateUser(ctx context.Context, u model.User) (model.User, error)
	StoreRefreshToken(ctx context.Context, mail, hash string, exp time.Time) error
	RotateRefreshToken(ctx context.Context, mail, oldHash, newHash string, exp time.Time) error
	ClearRefreshToken(ctx context.Context, mail string) error
}

// RestaurantLocator resolves the restaurant a restaurant owner is bound
// to. It is optional; without it tokens carry no restaurantId.
type RestaurantLocator interface {
	OwnedBy(ctx context.Context, userID uint64) ([]uint64, error)
}

// EventPublisher receives lifecycle events. Publishing is best effort.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.AuthEvent) error
}

// RegisterInput is the body of POST /auth/register.
type RegisterInput struct {
	Mail      string         `json:"mail"`
	Password  string         `json:"password"`
	RoleID    *model.RoleRef `json:"roleId"`
	Firstname string         `json:"firstname"`
	Lastname  string         `json:"lastname"`
	Phone     string         `json:"phone"`
	Address   string         `json:"address"`
	City      string         `json:"city"`
	ZipCode   string         `json:"zipCode"`
	Thumbnail string         `json:"thumbnail"`
	SponsorID *uint64        `json:"sponsorId"`
}

// selfServiceRoles are the roles a caller may pick on the public register
// route. Staff accounts are created through CreateUser.
var selfServiceRoles = map[model.Role]bool{
	model.RoleCustomer:        true,
	model.RoleRestaurantOwner: true,
	model.RoleDeliveryMan:     true,
}

var errRefreshInvalid = apperr.BadRequest("Refresh Token Invalid")

// AuthService orchestrates register, login, logout and refresh.
type AuthService struct {
	Store       CredentialStore
	Tokens      *utils.TokenService
	Restaurants RestaurantLocator
	Events      EventPublisher
	BcryptCost  int
	Now         func() time.Time
	Log         zerolog.Logger
}

func NewAuthService(store CredentialStore, tokens *utils.TokenService, log zerolog.Logger) *AuthService {
	return &AuthService{Store: store, Tokens: tokens, BcryptCost: utils.DefaultBcryptCost, Log: log}
}

func (s *AuthService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Register creates a user with a bcrypt-hashed password. The returned user
// carries no secret. Only customer, restaurant owner and delivery man
// accounts can be self-registered.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (model.User, error) {
	return s.register(ctx, in, false)
}

// CreateUser is Register on behalf of a staff member: every role is
// accepted.
func (s *AuthService) CreateUser(ctx context.Context, in RegisterInput) (model.User, error) {
	return s.register(ctx, in, true)
}

func (s *AuthService) register(ctx context.Context, in RegisterInput, anyRole bool) (model.User, error) {
	mail := repository.NormalizeMail(in.Mail)
	if mail == "" {
		return model.User{}, apperr.BadRequest("User mail not provided")
	}
	if in.Password == "" {
		return model.User{}, apperr.BadRequest("User password not provided")
	}
	role := model.RoleCustomer
	if in.RoleID != nil {
		r, err := model.ParseRole(string(*in.RoleID))
		if err != nil {
			return model.User{}, apperr.BadRequest("Invalid role")
		}
		if !anyRole && !selfServiceRoles[r] {
			return model.User{}, apperr.Forbidden("Role cannot be self-assigned")
		}
		role = r
	}
	hash, err := utils.HashPassword(in.Password, s.BcryptCost)
	if err != nil {
		return model.User{}, apperr.Internal("hash password failed", err)
	}
	u, err := s.Store.CreateUser(ctx, model.User{
		Mail:         mail,
		PasswordHash: hash,
		Role:         role,
		Firstname:    strings.TrimSpace(in.Firstname),
		Lastname:     strings.TrimSpace(in.Lastname),
		Phone:        in.Phone,
		Address:      in.Address,
		City:         in.City,
		ZipCode:      in.ZipCode,
		Thumbnail:    in.Thumbnail,
		SponsorID:    in.SponsorID,
		ReferralCode: ReferralCode(role),
	})
	if err != nil {
		if errors.Is(err, repository.ErrMailExists) {
			return model.User{}, apperr.Duplicate("User already exists")
		}
		return model.User{}, storeErr(err)
	}
	s.publish(ctx, queue.EventRegistered, u)
	return u.Public(), nil
}

// Login checks the password and issues a new token pair. The refresh
// token overwrites whatever token the user held before.
func (s *AuthService) Login(ctx context.Context, mail, password string) (model.TokenPair, error) {
	if strings.TrimSpace(mail) == "" || password == "" {
		return model.TokenPair{}, apperr.BadRequest("User mail and password required")
	}
	u, err := s.find(ctx, mail)
	if err != nil {
		return model.TokenPair{}, err
	}
	if !utils.VerifyPassword(u.PasswordHash, password) {
		return model.TokenPair{}, apperr.Unauthorized("Invalid password")
	}
	pair, err := s.issue(ctx, u)
	if err != nil {
		return model.TokenPair{}, err
	}
	exp := s.now().Add(s.Tokens.RefreshTTL)
	if err := s.Store.StoreRefreshToken(ctx, u.Mail, utils.HashRefreshToken(pair.RefreshToken), exp); err != nil {
		return model.TokenPair{}, storeErr(err)
	}
	s.publish(ctx, queue.EventLogin, u)
	return pair, nil
}

// Logout clears the user's refresh token. It succeeds when no token is
// active.
func (s *AuthService) Logout(ctx context.Context, mail string) error {
	if strings.TrimSpace(mail) == "" {
		return apperr.BadRequest("User mail not provided")
	}
	u, err := s.find(ctx, mail)
	if err != nil {
		return err
	}
	return s.logout(ctx, u)
}

// LogoutByID is Logout for a caller that identifies the user by id.
func (s *AuthService) LogoutByID(ctx context.Context, id uint64) error {
	if id == 0 {
		return apperr.BadRequest("User id not provided")
	}
	u, err := s.Store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return apperr.NotFound("User not found")
		}
		return storeErr(err)
	}
	return s.logout(ctx, u)
}

func (s *AuthService) logout(ctx context.Context, u model.User) error {
	if err := s.Store.ClearRefreshToken(ctx, u.Mail); err != nil {
		return storeErr(err)
	}
	s.publish(ctx, queue.EventLogout, u)
	return nil
}

// RefreshToken exchanges the presented refresh token for a new pair. The
// presented token must equal the stored one and be unexpired; the swap is
// a compare-and-swap so only one of two concurrent refreshes wins.
func (s *AuthService) RefreshToken(ctx context.Context, mail, presented string) (model.TokenPair, error) {
	if strings.TrimSpace(mail) == "" {
		return model.TokenPair{}, apperr.BadRequest("User mail not provided")
	}
	u, err := s.find(ctx, mail)
	if err != nil {
		return model.TokenPair{}, err
	}
	if presented == "" || u.RefreshToken == "" {
		return model.TokenPair{}, errRefreshInvalid
	}
	presentedHash := utils.HashRefreshToken(presented)
	if subtle.ConstantTimeCompare([]byte(presentedHash), []byte(u.RefreshToken)) != 1 {
		return model.TokenPair{}, errRefreshInvalid
	}
	if u.RefreshExpiresAt != nil && !s.now().Before(*u.RefreshExpiresAt) {
		return model.TokenPair{}, errRefreshInvalid
	}

	pair, err := s.issue(ctx, u)
	if err != nil {
		return model.TokenPair{}, err
	}
	exp := s.now().Add(s.Tokens.RefreshTTL)
	err = s.Store.RotateRefreshToken(ctx, u.Mail, presentedHash, utils.HashRefreshToken(pair.RefreshToken), exp)
	if err != nil {
		if errors.Is(err, repository.ErrStaleRefreshToken) {
			return model.TokenPair{}, errRefreshInvalid
		}
		return model.TokenPair{}, storeErr(err)
	}
	s.publish(ctx, queue.EventRefresh, u)
	return pair, nil
}

func (s *AuthService) find(ctx context.Context, mail string) (model.User, error) {
	u, err := s.Store.FindByMail(ctx, mail)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return model.User{}, apperr.NotFound("User not found")
		}
		return model.User{}, storeErr(err)
	}
	return u, nil
}

func (s *AuthService) issue(ctx context.Context, u model.User) (model.TokenPair, error) {
	claims := model.TokenClaims{ID: u.ID, Mail: u.Mail, Role: u.Role}
	if u.Role == model.RoleRestaurantOwner && s.Restaurants != nil {
		ids, err := s.Restaurants.OwnedBy(ctx, u.ID)
		if err != nil {
			return model.TokenPair{}, storeErr(err)
		}
		if len(ids) > 0 {
			claims.RestaurantID = &ids[0]
		}
	}
	pair, err := s.Tokens.IssuePair(claims)
	if err != nil {
		return model.TokenPair{}, apperr.Internal("token signing failed", err)
	}
	return pair, nil
}

func (s *AuthService) publish(ctx context.Context, typ string, u model.User) {
	if s.Events == nil {
		return
	}
	ev := queue.AuthEvent{Type: typ, UserID: u.ID, Mail: u.Mail, Role: u.Role.String(), OccurredAt: s.now().UTC()}
	if err := s.Events.Publish(ctx, ev); err != nil {
		s.Log.Warn().Err(err).Str("event", typ).Msg("publish auth event failed")
	}
}

// storeErr classifies a credential store failure. Context deadlines are
// reported as a downstream timeout.
func storeErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperr.Internal("credential store timeout", err)
	}
	return apperr.From(err)
}

// ReferralCode builds a sponsorship code of the form <roleId>-###-###.
func ReferralCode(role model.Role) string {
	return fmt.Sprintf("%d-%03d-%03d", role, rand.IntN(1000), rand.IntN(1000))
}
