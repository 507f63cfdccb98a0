package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grp-2-projet-elective/cesieats-back/internal/config"
	"github.com/grp-2-projet-elective/cesieats-back/internal/model"
)

func TestCaptureWriterLimit(t *testing.T) {
	rec := httptest.NewRecorder()
	cw := &captureWriter{ResponseWriter: rec, status: http.StatusOK, limit: 8}
	_, _ = cw.Write([]byte("1234"))
	assert.False(t, cw.truncated)
	assert.Equal(t, "1234", cw.buf.String())

	_, _ = cw.Write([]byte("56789"))
	assert.True(t, cw.truncated)
	assert.Equal(t, "123456789", rec.Body.String(), "client still gets the whole body")
}

func TestCacheKey(t *testing.T) {
	e := echo.New()
	cfg := config.CacheConfig{Prefix: "p", KeyStrategy: "route_query"}
	key := func(target string) string {
		return cacheKeyFrom(cfg, e.NewContext(httptest.NewRequest(http.MethodGet, target, nil), httptest.NewRecorder()))
	}
	assert.True(t, strings.HasPrefix(key("/api/v1/restaurants"), "p:restaurants:"))
	assert.True(t, strings.HasPrefix(key("/api/v1/menus/4"), "p:menus:"))
	assert.Equal(t, key("/api/v1/restaurants?page=1"), key("/api/v1/restaurants?page=1"))
	assert.NotEqual(t, key("/api/v1/restaurants?page=1"), key("/api/v1/restaurants?page=2"))
	assert.NotEqual(t, key("/api/v1/restaurants/1"), key("/api/v1/restaurants/2"))

	cfg.KeyStrategy = "route"
	assert.Equal(t, key("/api/v1/restaurants?page=1"), key("/api/v1/restaurants?page=2"))
}

func TestRateKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
	req.RemoteAddr = "192.0.2.7:1000"
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/api/v1/auth/login")

	cfg := config.RateLimitConfig{Prefix: "rl", KeyStrategy: "ip_route"}
	assert.Equal(t, "rl:ip:192.0.2.7:route:POST /api/v1/auth/login", buildRateKey(cfg, c))

	cfg.KeyStrategy = "user"
	assert.Equal(t, "rl:user:anon", buildRateKey(cfg, c))
	c.Set(claimsKey, model.TokenClaims{Mail: "a@b.com"})
	assert.Equal(t, "rl:user:a@b.com", buildRateKey(cfg, c))

	cfg.KeyStrategy = "bogus"
	assert.Equal(t, "rl:ip:192.0.2.7:route:POST /api/v1/auth/login", buildRateKey(cfg, c))
}

func TestRateKeyByMail(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"mail":" A@b.com","password":"x"}`))
	req.RemoteAddr = "192.0.2.7:1000"
	c := e.NewContext(req, httptest.NewRecorder())

	cfg := config.RateLimitConfig{Prefix: "rl", KeyStrategy: "ip_mail"}
	assert.Equal(t, "rl:ip:192.0.2.7:mail:a@b.com", buildRateKey(cfg, c))

	body, err := io.ReadAll(c.Request().Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "password", "body is left for the handler")

	c.Request().Body = io.NopCloser(strings.NewReader("not json"))
	assert.Equal(t, "rl:mail:none", buildRateKey(config.RateLimitConfig{Prefix: "rl", KeyStrategy: "mail"}, c))

	big := `{"mail":"a@b.com","pad":"` + strings.Repeat("x", MaxPeekBytes) + `"}`
	c.Request().Body = io.NopCloser(strings.NewReader(big))
	assert.Equal(t, "rl:mail:none", buildRateKey(config.RateLimitConfig{Prefix: "rl", KeyStrategy: "mail"}, c))
	body, err = io.ReadAll(c.Request().Body)
	require.NoError(t, err)
	assert.Len(t, body, len(big), "an unparsed body is still handed on whole")
}

func TestDisabledMiddlewaresPassThrough(t *testing.T) {
	e := newEcho()
	e.GET("/r", ok,
		NewTokenBucket(config.RateLimitConfig{Enabled: true}, nil, zerolog.Nop()),
		NewRedisCache(config.CacheConfig{Enabled: true}, nil, zerolog.Nop()),
		InvalidateCache(config.CacheConfig{Enabled: true}, nil, zerolog.Nop()))
	assert.Equal(t, http.StatusNoContent, do(e, http.MethodGet, "/r", "", "", "").Code)
}
