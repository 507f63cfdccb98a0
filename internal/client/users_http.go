package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/grp-2-projet-elective/cesieats-back/internal/model"
	"github.com/grp-2-projet-elective/cesieats-back/internal/repository"
)

// DefaultTimeout bounds every call to the users service.
const DefaultTimeout = 3 * time.Second

// UsersHTTP talks to the internal credentials API of a remote users
// service. A failed call is never retried.
type UsersHTTP struct {
	BaseURL string
	HTTP    *http.Client
}

func NewUsersHTTP(baseURL string, timeout time.Duration) *UsersHTTP {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &UsersHTTP{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: timeout},
	}
}

type refreshBody struct {
	OldHash   string    `json:"oldHash,omitempty"`
	Hash      string    `json:"hash"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type resultBody struct {
	Result bool `json:"result"`
}

type errorBody struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

func userPath(mail string, rest ...string) string {
	p := "/internal/v1/credentials/users/" + url.PathEscape(repository.NormalizeMail(mail))
	for _, r := range rest {
		p += "/" + r
	}
	return p
}

func (c *UsersHTTP) FindByMail(ctx context.Context, mail string) (model.User, error) {
	var rec model.UserRecord
	if err := c.do(ctx, http.MethodGet, userPath(mail), nil, &rec); err != nil {
		return model.User{}, err
	}
	return rec.ToUser(), nil
}

func (c *UsersHTTP) FindByID(ctx context.Context, id uint64) (model.User, error) {
	var rec model.UserRecord
	path := "/internal/v1/credentials/ids/" + strconv.FormatUint(id, 10)
	if err := c.do(ctx, http.MethodGet, path, nil, &rec); err != nil {
		return model.User{}, err
	}
	return rec.ToUser(), nil
}

func (c *UsersHTTP) CreateUser(ctx context.Context, u model.User) (model.User, error) {
	var rec model.UserRecord
	if err := c.do(ctx, http.MethodPost, "/internal/v1/credentials/users", model.NewUserRecord(u), &rec); err != nil {
		return model.User{}, err
	}
	return rec.ToUser(), nil
}

func (c *UsersHTTP) StoreRefreshToken(ctx context.Context, mail, hash string, exp time.Time) error {
	return c.do(ctx, http.MethodPut, userPath(mail, "refresh"), refreshBody{Hash: hash, ExpiresAt: exp}, nil)
}

func (c *UsersHTTP) RotateRefreshToken(ctx context.Context, mail, oldHash, newHash string, exp time.Time) error {
	return c.do(ctx, http.MethodPost, userPath(mail, "refresh", "rotate"),
		refreshBody{OldHash: oldHash, Hash: newHash, ExpiresAt: exp}, nil)
}

func (c *UsersHTTP) ClearRefreshToken(ctx context.Context, mail string) error {
	return c.do(ctx, http.MethodDelete, userPath(mail, "refresh"), nil, nil)
}

func (c *UsersHTTP) HasRole(ctx context.Context, mail string, role model.Role) (bool, error) {
	var out resultBody
	err := c.do(ctx, http.MethodGet, userPath(mail, "roles", strconv.Itoa(int(role))), nil, &out)
	return out.Result, err
}

func (c *UsersHTTP) OwnsResource(ctx context.Context, mail string, restaurantID uint64) (bool, error) {
	var out resultBody
	err := c.do(ctx, http.MethodGet, userPath(mail, "restaurants", strconv.FormatUint(restaurantID, 10)), nil, &out)
	return out.Result, err
}

func (c *UsersHTTP) MailExists(ctx context.Context, mail string) (bool, error) {
	var out resultBody
	err := c.do(ctx, http.MethodGet, userPath(mail, "exists"), nil, &out)
	return out.Result, err
}

func (c *UsersHTTP) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("users service %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var eb errorBody
		_ = json.NewDecoder(resp.Body).Decode(&eb)
		if sentinel := repository.FromCode(eb.Code); sentinel != nil {
			return sentinel
		}
		return fmt.Errorf("users service %s %s: status %d: %s", method, path, resp.StatusCode, eb.Message)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
