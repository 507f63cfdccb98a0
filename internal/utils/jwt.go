package utils // package utils provides helper functions for token creation and hashing

import (
	"crypto/sha256" // SHA‑256 hashing for persisted refresh tokens
	"encoding/hex"  // hex encoding of the digest
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens
	"github.com/google/uuid"       // random jti so identical claims never yield identical tokens

	"github.com/grp-2-projet-elective/cesieats-back/internal/model"
)

// Default lifetimes. The refresh token is deliberately short lived.
const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 20 * time.Minute
)

var (
	// ErrSigning is returned when a token cannot be signed, typically
	// because the secret is not configured.
	ErrSigning = errors.New("token signing failed")

	// ErrInvalidToken is returned when the signature, algorithm or expiry
	// check fails, or when the token cannot be parsed at all.
	ErrInvalidToken = errors.New("invalid token")
)

// Claims is the JWT payload: the user identity plus the registered claims
// (exp, iat, jti).
type Claims struct {
	UserID       uint64     `json:"id"`
	Mail         string     `json:"mail"`
	Role         model.Role `json:"role"`
	RestaurantID *uint64    `json:"restaurantId,omitempty"`
	jwt.RegisteredClaims
}

func (c Claims) identity() model.TokenClaims {
	return model.TokenClaims{ID: c.UserID, Mail: c.Mail, Role: c.Role, RestaurantID: c.RestaurantID}
}

// TokenService signs and verifies access and refresh tokens. It holds no
// state besides its configuration and is safe for concurrent use.
type TokenService struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	// Now is the clock used for issuing and verifying; nil means time.Now.
	Now func() time.Time
}

// NewTokenService builds a TokenService with the default lifetimes.
func NewTokenService(accessSecret, refreshSecret string) *TokenService {
	return &TokenService{
		AccessSecret:  accessSecret,
		RefreshSecret: refreshSecret,
		AccessTTL:     DefaultAccessTTL,
		RefreshTTL:    DefaultRefreshTTL,
	}
}

func (s *TokenService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// IssueAccessToken signs claims with the access secret, valid for AccessTTL.
func (s *TokenService) IssueAccessToken(claims model.TokenClaims) (string, error) {
	return s.sign(claims, s.AccessSecret, s.AccessTTL)
}

// IssueRefreshToken signs claims with the refresh secret, valid for RefreshTTL.
func (s *TokenService) IssueRefreshToken(claims model.TokenClaims) (string, error) {
	return s.sign(claims, s.RefreshSecret, s.RefreshTTL)
}

// IssuePair issues an access and a refresh token for the same identity.
func (s *TokenService) IssuePair(claims model.TokenClaims) (model.TokenPair, error) {
	access, err := s.IssueAccessToken(claims)
	if err != nil {
		return model.TokenPair{}, err
	}
	refresh, err := s.IssueRefreshToken(claims)
	if err != nil {
		return model.TokenPair{}, err
	}
	return model.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *TokenService) sign(claims model.TokenClaims, secret string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("%w: secret not configured", ErrSigning)
	}
	now := s.now().UTC()
	c := Claims{
		UserID:       claims.ID,
		Mail:         claims.Mail,
		Role:         claims.Role,
		RestaurantID: claims.RestaurantID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSigning, err)
	}
	return signed, nil
}

// Verify checks signature and expiry of token against secret and returns
// its identity claims.
func (s *TokenService) Verify(token, secret string) (model.TokenClaims, error) {
	if token == "" || secret == "" {
		return model.TokenClaims{}, ErrInvalidToken
	}
	var c Claims
	tok, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil || !tok.Valid {
		return model.TokenClaims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return c.identity(), nil
}

// VerifyAccess verifies an access token.
func (s *TokenService) VerifyAccess(token string) (model.TokenClaims, error) {
	return s.Verify(token, s.AccessSecret)
}

// VerifyRefresh verifies a refresh token.
func (s *TokenService) VerifyRefresh(token string) (model.TokenClaims, error) {
	return s.Verify(token, s.RefreshSecret)
}

// Decode extracts the claims without checking the signature or expiry.
// The result is for inspection only and must never back an authorization
// decision.
func (s *TokenService) Decode(token string) (model.TokenClaims, error) {
	var c Claims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &c); err != nil {
		return model.TokenClaims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return c.identity(), nil
}

// HashRefreshToken returns the SHA‑256 hash of a refresh token as a hex
// string. Only this hash is persisted on the user row.
func HashRefreshToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
