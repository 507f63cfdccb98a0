package router

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grp-2-projet-elective/cesieats-back/internal/config"
	"github.com/grp-2-projet-elective/cesieats-back/internal/middleware"
	"github.com/grp-2-projet-elective/cesieats-back/internal/model"
	"github.com/grp-2-projet-elective/cesieats-back/internal/repository"
	"github.com/grp-2-projet-elective/cesieats-back/internal/service"
	"github.com/grp-2-projet-elective/cesieats-back/internal/utils"
)

// memStore is both the credential store and the authorization client.
type memStore struct {
	mu    sync.Mutex
	users map[string]model.User
}

func (m *memStore) FindByMail(_ context.Context, mail string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[repository.NormalizeMail(mail)]
	if !ok {
		return model.User{}, repository.ErrUserNotFound
	}
	return u, nil
}

func (m *memStore) FindByID(_ context.Context, id uint64) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return model.User{}, repository.ErrUserNotFound
}

func (m *memStore) CreateUser(_ context.Context, u model.User) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.Mail]; ok {
		return model.User{}, repository.ErrMailExists
	}
	u.ID = uint64(len(m.users) + 1)
	m.users[u.Mail] = u
	return u, nil
}

func (m *memStore) StoreRefreshToken(_ context.Context, mail, hash string, exp time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.users[mail]
	u.RefreshToken, u.RefreshExpiresAt = hash, &exp
	m.users[mail] = u
	return nil
}

func (m *memStore) RotateRefreshToken(_ context.Context, mail, oldHash, newHash string, exp time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.users[mail]
	if u.RefreshToken != oldHash {
		return repository.ErrStaleRefreshToken
	}
	u.RefreshToken, u.RefreshExpiresAt = newHash, &exp
	m.users[mail] = u
	return nil
}

func (m *memStore) ClearRefreshToken(_ context.Context, mail string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.users[mail]
	u.RefreshToken, u.RefreshExpiresAt = "", nil
	m.users[mail] = u
	return nil
}

func (m *memStore) HasRole(_ context.Context, mail string, role model.Role) (bool, error) {
	u, err := m.FindByMail(context.Background(), mail)
	if err != nil {
		return false, nil
	}
	return u.Role == role, nil
}

func (m *memStore) OwnsResource(context.Context, string, uint64) (bool, error) { return false, nil }

func (m *memStore) MailExists(ctx context.Context, mail string) (bool, error) {
	_, err := m.FindByMail(ctx, mail)
	return err == nil, nil
}

func newAuthServer(t *testing.T) *echo.Echo {
	t.Helper()
	store := &memStore{users: map[string]model.User{}}
	tokens := utils.NewTokenService("access-secret", "refresh-secret")
	auth := service.NewAuthService(store, tokens, zerolog.Nop())
	auth.BcryptCost = 4

	return New(Deps{
		Cfg:   config.Config{Services: []string{"auth"}},
		Log:   zerolog.Nop(),
		Authz: middleware.NewAuthorizer(tokens, store, nil, time.Second, zerolog.Nop(), nil),
		Auth:  auth,
	})
}

func do(e *echo.Echo, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set("x-access-token", token)
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

func TestAuthFlow(t *testing.T) {
	e := newAuthServer(t)

	rec := do(e, "/api/v1/auth/register", `{"mail":"a@b.com","password":"pw1","firstname":"Ada"}`, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "password")

	rec = do(e, "/api/v1/auth/register", `{"mail":"a@b.com","password":"pw2"}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "User already exists", message(t, rec))

	rec = do(e, "/api/v1/auth/login", `{"mail":"a@b.com","password":"nope"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(e, "/api/v1/auth/login", `{"mail":"x@b.com","password":"pw1"}`, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(e, "/api/v1/auth/login", `{"mail":"a@b.com","password":"pw1"}`, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	var pair model.TokenPair
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pair))

	refresh := `{"mail":"a@b.com","refreshToken":"` + pair.RefreshToken + `"}`

	rec = do(e, "/api/v1/auth/refreshToken", refresh, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Auth token not provided", message(t, rec))

	rec = do(e, "/api/v1/auth/refreshToken", refresh, pair.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var next model.TokenPair
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &next))
	assert.NotEqual(t, pair.RefreshToken, next.RefreshToken)

	rec = do(e, "/api/v1/auth/refreshToken", refresh, pair.AccessToken)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "rotated token is single use")
	assert.Equal(t, "Refresh Token Invalid", message(t, rec))

	rec = do(e, "/api/v1/auth/logout", `{"mail":"a@b.com"}`, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(e, "/api/v1/auth/refreshToken",
		`{"mail":"a@b.com","refreshToken":"`+next.RefreshToken+`"}`, next.AccessToken)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegisterRoleID(t *testing.T) {
	e := newAuthServer(t)

	rec := do(e, "/api/v1/auth/register", `{"mail":"o@b.com","password":"pw","roleId":2}`, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var u model.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &u))
	assert.Equal(t, model.RoleRestaurantOwner, u.Role)

	rec = do(e, "/api/v1/auth/register", `{"mail":"d@b.com","password":"pw","roleId":"3"}`, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"roleId":3`)

	rec = do(e, "/api/v1/auth/register", `{"mail":"t@b.com","password":"pw","roleId":4}`, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Role cannot be self-assigned", message(t, rec))

	rec = do(e, "/api/v1/auth/register", `{"mail":"x@b.com","password":"pw","roleId":[2]}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogoutByID(t *testing.T) {
	e := newAuthServer(t)

	rec := do(e, "/api/v1/auth/register", `{"mail":"a@b.com","password":"pw"}`, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	var u model.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &u))

	rec = do(e, "/api/v1/auth/login", `{"mail":"a@b.com","password":"pw"}`, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	var pair model.TokenPair
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pair))

	rec = do(e, "/api/v1/auth/logout", fmt.Sprintf(`{"id":%d}`, u.ID), "")
	assert.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = do(e, "/api/v1/auth/refreshToken",
		`{"mail":"a@b.com","refreshToken":"`+pair.RefreshToken+`"}`, pair.AccessToken)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Refresh Token Invalid", message(t, rec))

	rec = do(e, "/api/v1/auth/logout", `{"id":77}`, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(e, "/api/v1/auth/logout", `{}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "User mail not provided", message(t, rec))
}

func TestOversizedBody(t *testing.T) {
	e := newAuthServer(t)
	big := `{"mail":"a@b.com","password":"` + strings.Repeat("x", 2<<20) + `"}`

	rec := do(e, "/api/v1/auth/register", big, "")
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	rec = do(e, "/api/v1/auth/login", `{"mail":"a@b.com","password":"pw"}`, "")
	assert.Equal(t, http.StatusNotFound, rec.Code, "nothing was registered")
}

func TestRefreshRejectsForeignMail(t *testing.T) {
	e := newAuthServer(t)
	require.Equal(t, http.StatusCreated, do(e, "/api/v1/auth/register", `{"mail":"a@b.com","password":"pw"}`, "").Code)
	require.Equal(t, http.StatusCreated, do(e, "/api/v1/auth/register", `{"mail":"c@b.com","password":"pw"}`, "").Code)

	rec := do(e, "/api/v1/auth/login", `{"mail":"a@b.com","password":"pw"}`, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	var pair model.TokenPair
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pair))

	rec = do(e, "/api/v1/auth/refreshToken", `{"mail":"c@b.com","refreshToken":"x"}`, pair.AccessToken)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Unauthorized", message(t, rec))
}

func TestHealthz(t *testing.T) {
	e := newAuthServer(t)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/internal/v1/credentials/users", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code, "internal API is not mounted without the users service")
}
