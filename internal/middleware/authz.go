package middleware

import (
	"context"
	"net"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/grp-2-projet-elective/cesieats-back/internal/apperr"
	"github.com/grp-2-projet-elective/cesieats-back/internal/metrics"
	"github.com/grp-2-projet-elective/cesieats-back/internal/model"
	"github.com/grp-2-projet-elective/cesieats-back/internal/utils"
)

// AuthorizationClient answers the role, ownership and duplicate-mail
// lookups. client.Local, client.UsersHTTP and client.UsersAMQP implement
// it.
type AuthorizationClient interface {
	HasRole(ctx context.Context, mail string, role model.Role) (bool, error)
	OwnsResource(ctx context.Context, mail string, restaurantID uint64) (bool, error)
	MailExists(ctx context.Context, mail string) (bool, error)
}

// DefaultCheckTimeout bounds each lookup made by the Authorizer.
const DefaultCheckTimeout = 3 * time.Second

// Authorizer builds the middleware chain that gates resource routes:
// trusted host, access token, duplicate mail, role and ownership checks.
// Every lookup runs under Timeout and any error denies the request; a
// failed check is never retried.
type Authorizer struct {
	Tokens       *utils.TokenService
	Client       AuthorizationClient
	TrustedHosts []string
	Timeout      time.Duration
	Log          zerolog.Logger
	Metrics      *metrics.Metrics
}

func NewAuthorizer(tokens *utils.TokenService, client AuthorizationClient, trusted []string, timeout time.Duration, log zerolog.Logger, m *metrics.Metrics) *Authorizer {
	if timeout <= 0 {
		timeout = DefaultCheckTimeout
	}
	return &Authorizer{Tokens: tokens, Client: client, TrustedHosts: trusted, Timeout: timeout, Log: log, Metrics: m}
}

const errCheckFailed = "authorization check failed"

// lookup runs one remote check under the timeout. It returns a classified
// error (500) on failure so callers only deal with the boolean outcome.
func (a *Authorizer) lookup(parent context.Context, check string, fn func(ctx context.Context) (bool, error)) (bool, error) {
	timeout := a.Timeout
	if timeout <= 0 {
		timeout = DefaultCheckTimeout
	}
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ok, err := fn(ctx)
	if err != nil {
		a.Metrics.Decision(check, "error")
		a.Log.Error().Err(err).Str("check", check).Msg("authorization lookup failed; denying")
		return false, apperr.Internal(errCheckFailed, err)
	}
	if ok {
		a.Metrics.Decision(check, "allow")
	} else {
		a.Metrics.Decision(check, "deny")
	}
	return ok, nil
}

// trusted reports whether ip matches an allow-list entry. Entries are
// IPs, CIDRs or host names; "localhost" matches any loopback address.
func (a *Authorizer) trusted(ip string) bool {
	addr := net.ParseIP(ip)
	for _, h := range a.TrustedHosts {
		h = strings.TrimSpace(h)
		switch {
		case h == "":
			continue
		case h == ip:
			return true
		case strings.EqualFold(h, "localhost"):
			if addr != nil && addr.IsLoopback() {
				return true
			}
		case strings.Contains(h, "/"):
			if _, n, err := net.ParseCIDR(h); err == nil && addr != nil && n.Contains(addr) {
				return true
			}
		}
	}
	return false
}
