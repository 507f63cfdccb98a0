package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grp-2-projet-elective/cesieats-back/internal/model"
	"github.com/grp-2-projet-elective/cesieats-back/internal/utils"
)

type fakeClient struct {
	roles  map[string]model.Role
	owners map[uint64][]string
	delay  time.Duration
	calls  atomic.Int32
}

func (f *fakeClient) wait(ctx context.Context) error {
	f.calls.Add(1)
	if f.delay == 0 {
		return nil
	}
	select {
	case <-time.After(f.delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeClient) HasRole(ctx context.Context, mail string, role model.Role) (bool, error) {
	if err := f.wait(ctx); err != nil {
		return false, err
	}
	return f.roles[mail] == role, nil
}

func (f *fakeClient) OwnsResource(ctx context.Context, mail string, id uint64) (bool, error) {
	if err := f.wait(ctx); err != nil {
		return false, err
	}
	for _, m := range f.owners[id] {
		if m == mail {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeClient) MailExists(ctx context.Context, mail string) (bool, error) {
	if err := f.wait(ctx); err != nil {
		return false, err
	}
	_, ok := f.roles[mail]
	return ok, nil
}

func newTestAuthorizer(client *fakeClient) *Authorizer {
	tokens := utils.NewTokenService("access-secret", "refresh-secret")
	return NewAuthorizer(tokens, client, []string{"localhost", "10.0.0.0/8"}, 50*time.Millisecond, zerolog.Nop(), nil)
}

func newEcho() *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler(zerolog.Nop())
	return e
}

func ok(c echo.Context) error { return c.NoContent(http.StatusNoContent) }

func token(t *testing.T, a *Authorizer, mail string, role model.Role) string {
	t.Helper()
	tok, err := a.Tokens.IssueAccessToken(model.TokenClaims{ID: 1, Mail: mail, Role: role})
	require.NoError(t, err)
	return tok
}

func do(e *echo.Echo, method, path, tok, body, remote string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if tok != "" {
		req.Header.Set("x-access-token", tok)
	}
	if remote != "" {
		req.RemoteAddr = remote
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func message(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Message
}

func TestVerifyAccessToken(t *testing.T) {
	a := newTestAuthorizer(&fakeClient{})
	e := newEcho()
	e.GET("/r", ok, a.VerifyAccessToken())

	t.Run("missing", func(t *testing.T) {
		rec := do(e, http.MethodGet, "/r", "", "", "")
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "Auth token not provided", message(t, rec))
	})
	t.Run("garbage", func(t *testing.T) {
		rec := do(e, http.MethodGet, "/r", "not-a-jwt", "", "")
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "Auth token invalid", message(t, rec))
	})
	t.Run("refresh token is not an access token", func(t *testing.T) {
		rt, err := a.Tokens.IssueRefreshToken(model.TokenClaims{Mail: "a@b.com"})
		require.NoError(t, err)
		rec := do(e, http.MethodGet, "/r", rt, "", "")
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
	t.Run("expired", func(t *testing.T) {
		old := utils.NewTokenService("access-secret", "refresh-secret")
		old.Now = func() time.Time { return time.Now().Add(-16 * time.Minute) }
		tok, err := old.IssueAccessToken(model.TokenClaims{Mail: "a@b.com"})
		require.NoError(t, err)
		rec := do(e, http.MethodGet, "/r", tok, "", "")
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "Auth token invalid", message(t, rec))
	})
	t.Run("valid", func(t *testing.T) {
		rec := do(e, http.MethodGet, "/r", token(t, a, "a@b.com", model.RoleCustomer), "", "")
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}

func TestRequireRole(t *testing.T) {
	client := &fakeClient{roles: map[string]model.Role{
		"c@b.com": model.RoleCustomer,
		"d@b.com": model.RoleDeliveryMan,
	}}
	a := newTestAuthorizer(client)
	e := newEcho()
	e.GET("/r", ok, a.VerifyAccessToken(), a.RequireRole(model.RoleCustomer, model.RoleCommercialDepartment))

	rec := do(e, http.MethodGet, "/r", token(t, a, "c@b.com", model.RoleCustomer), "", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(e, http.MethodGet, "/r", token(t, a, "d@b.com", model.RoleDeliveryMan), "", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Invalid role", message(t, rec))

	t.Run("role comes from the store, not the token", func(t *testing.T) {
		rec := do(e, http.MethodGet, "/r", token(t, a, "d@b.com", model.RoleCustomer), "", "")
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("no lookup without a token", func(t *testing.T) {
		before := client.calls.Load()
		rec := do(e, http.MethodGet, "/r", "", "", "")
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, before, client.calls.Load())
	})
}

func TestLookupTimeoutFailsClosed(t *testing.T) {
	client := &fakeClient{
		roles:  map[string]model.Role{"c@b.com": model.RoleCustomer},
		owners: map[uint64][]string{1: {"c@b.com"}},
		delay:  time.Second,
	}
	a := newTestAuthorizer(client)
	e := newEcho()
	e.GET("/role", ok, a.VerifyAccessToken(), a.RequireRole(model.RoleCustomer))
	e.PUT("/own/:id", ok, a.VerifyAccessToken(), a.RequireOwnership(FromParam("id")))
	e.POST("/register", ok, a.VerifyNoDuplicateMail())

	tok := token(t, a, "c@b.com", model.RoleCustomer)
	for _, tc := range []struct {
		method, path, body string
	}{
		{http.MethodGet, "/role", ""},
		{http.MethodPut, "/own/1", ""},
		{http.MethodPost, "/register", `{"mail":"new@b.com"}`},
	} {
		t.Run(tc.path, func(t *testing.T) {
			before := client.calls.Load()
			rec := do(e, tc.method, tc.path, tok, tc.body, "")
			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			assert.Equal(t, "authorization check failed", message(t, rec))
			assert.Equal(t, before+1, client.calls.Load(), "no retry")
		})
	}
}

func TestRequireOwnership(t *testing.T) {
	client := &fakeClient{owners: map[uint64][]string{7: {"o@b.com"}}}
	a := newTestAuthorizer(client)
	e := newEcho()
	e.PUT("/restaurants/:id", ok, a.VerifyAccessToken(), a.RequireOwnership(FromParam("id")))
	e.POST("/menus", func(c echo.Context) error {
		var body struct {
			RestaurantID uint64 `json:"restaurantId"`
			Name         string `json:"name"`
		}
		if err := c.Bind(&body); err != nil {
			return err
		}
		return c.JSON(http.StatusCreated, body)
	}, a.VerifyAccessToken(), a.RequireOwnership(FromBody("restaurantId")))

	owner := token(t, a, "o@b.com", model.RoleRestaurantOwner)
	other := token(t, a, "x@b.com", model.RoleRestaurantOwner)

	assert.Equal(t, http.StatusNoContent, do(e, http.MethodPut, "/restaurants/7", owner, "", "").Code)

	rec := do(e, http.MethodPut, "/restaurants/7", other, "", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Unauthorized", message(t, rec))

	assert.Equal(t, http.StatusBadRequest, do(e, http.MethodPut, "/restaurants/abc", owner, "", "").Code)

	t.Run("body is restored for the handler", func(t *testing.T) {
		rec := do(e, http.MethodPost, "/menus", owner, `{"restaurantId":7,"name":"lunch"}`, "")
		require.Equal(t, http.StatusCreated, rec.Code)
		assert.JSONEq(t, `{"restaurantId":7,"name":"lunch"}`, rec.Body.String())
	})
	t.Run("missing body id", func(t *testing.T) {
		rec := do(e, http.MethodPost, "/menus", owner, `{"name":"lunch"}`, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestVerifyNoDuplicateMail(t *testing.T) {
	a := newTestAuthorizer(&fakeClient{roles: map[string]model.Role{"a@b.com": model.RoleCustomer}})
	e := newEcho()
	e.POST("/register", ok, a.VerifyNoDuplicateMail())

	rec := do(e, http.MethodPost, "/register", "", `{"password":"x"}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "User mail not provided", message(t, rec))

	rec = do(e, http.MethodPost, "/register", "", `{"mail":"A@b.com ","password":"x"}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "User already exists", message(t, rec))

	rec = do(e, http.MethodPost, "/register", "", `{"mail":"new@b.com","password":"x"}`, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	big := `{"mail":"new@b.com","password":"` + strings.Repeat("x", MaxPeekBytes) + `"}`
	rec = do(e, http.MethodPost, "/register", "", big, "")
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "Request body too large", message(t, rec))
}

func TestInternalCall(t *testing.T) {
	a := newTestAuthorizer(&fakeClient{})
	e := newEcho()
	internal := e.Group("/internal", a.InternalCall())
	internal.GET("/r", ok, a.VerifyAccessToken(), a.RequireRole(model.RoleTechnicalDepartment))
	e.GET("/public", ok, a.VerifyAccessToken())

	assert.Equal(t, http.StatusNoContent, do(e, http.MethodGet, "/internal/r", "", "", "127.0.0.1:5555").Code)
	assert.Equal(t, http.StatusNoContent, do(e, http.MethodGet, "/internal/r", "", "", "10.1.2.3:5555").Code)

	rec := do(e, http.MethodGet, "/internal/r", "", "", "203.0.113.9:5555")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	t.Run("public routes ignore the allow-list", func(t *testing.T) {
		rec := do(e, http.MethodGet, "/public", "", "", "127.0.0.1:5555")
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "Auth token not provided", message(t, rec))
	})
}
