package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/grp-2-projet-elective/cesieats-back/internal/model"
	"github.com/grp-2-projet-elective/cesieats-back/internal/repository"
)

// UsersRPCQueue carries credential store requests to the users service.
const UsersRPCQueue = "users.rpc"

// Action is a credential RPC operation.
type Action uint8

const (
	ActionFindByMail Action = iota + 1
	ActionCreateUser
	ActionStoreRefresh
	ActionRotateRefresh
	ActionClearRefresh
	ActionHasRole
	ActionOwnsRestaurant
	ActionMailExists
	ActionFindByID
)

func (a Action) String() string {
	switch a {
	case ActionFindByMail:
		return "findByMail"
	case ActionCreateUser:
		return "createUser"
	case ActionStoreRefresh:
		return "storeRefresh"
	case ActionRotateRefresh:
		return "rotateRefresh"
	case ActionClearRefresh:
		return "clearRefresh"
	case ActionHasRole:
		return "hasRole"
	case ActionOwnsRestaurant:
		return "ownsRestaurant"
	case ActionMailExists:
		return "mailExists"
	case ActionFindByID:
		return "findById"
	}
	return fmt.Sprintf("Action(%d)", uint8(a))
}

// Request is the body of a message on users.rpc. Only the fields used by
// Action are set.
type Request struct {
	Action       Action            `json:"action"`
	Mail         string            `json:"mail,omitempty"`
	UserID       uint64            `json:"userId,omitempty"`
	User         *model.UserRecord `json:"user,omitempty"`
	Hash         string            `json:"hash,omitempty"`
	OldHash      string            `json:"oldHash,omitempty"`
	ExpiresAt    time.Time         `json:"expiresAt"`
	Role         model.Role        `json:"role,omitempty"`
	RestaurantID uint64            `json:"restaurantId,omitempty"`
}

// Response is the reply sent to the request's reply-to queue. Code holds a
// repository error code when Error is set.
type Response struct {
	User   *model.UserRecord `json:"user,omitempty"`
	Result bool              `json:"result,omitempty"`
	Code   string            `json:"code,omitempty"`
	Error  string            `json:"error,omitempty"`
}

// Backend is what the users service exposes over RPC: the credential
// store plus the authorization lookups.
type Backend interface {
	FindByMail(ctx context.Context, mail string) (model.User, error)
	FindByID(ctx context.Context, id uint64) (model.User, error)
	CreateUser(ctx context.Context, u model.User) (model.User, error)
	StoreRefreshToken(ctx context.Context, mail, hash string, exp time.Time) error
	RotateRefreshToken(ctx context.Context, mail, oldHash, newHash string, exp time.Time) error
	ClearRefreshToken(ctx context.Context, mail string) error
	HasRole(ctx context.Context, mail string, role model.Role) (bool, error)
	OwnsResource(ctx context.Context, mail string, restaurantID uint64) (bool, error)
	MailExists(ctx context.Context, mail string) (bool, error)
}

// Dispatch runs one request against b.
func Dispatch(ctx context.Context, b Backend, req Request) Response {
	var (
		resp Response
		err  error
	)
	switch req.Action {
	case ActionFindByMail:
		var u model.User
		if u, err = b.FindByMail(ctx, req.Mail); err == nil {
			rec := model.NewUserRecord(u)
			resp.User = &rec
		}
	case ActionFindByID:
		var u model.User
		if u, err = b.FindByID(ctx, req.UserID); err == nil {
			rec := model.NewUserRecord(u)
			resp.User = &rec
		}
	case ActionCreateUser:
		if req.User == nil {
			err = errors.New("missing user")
			break
		}
		var u model.User
		if u, err = b.CreateUser(ctx, req.User.ToUser()); err == nil {
			rec := model.NewUserRecord(u)
			resp.User = &rec
		}
	case ActionStoreRefresh:
		err = b.StoreRefreshToken(ctx, req.Mail, req.Hash, req.ExpiresAt)
	case ActionRotateRefresh:
		err = b.RotateRefreshToken(ctx, req.Mail, req.OldHash, req.Hash, req.ExpiresAt)
	case ActionClearRefresh:
		err = b.ClearRefreshToken(ctx, req.Mail)
	case ActionHasRole:
		resp.Result, err = b.HasRole(ctx, req.Mail, req.Role)
	case ActionOwnsRestaurant:
		resp.Result, err = b.OwnsResource(ctx, req.Mail, req.RestaurantID)
	case ActionMailExists:
		resp.Result, err = b.MailExists(ctx, req.Mail)
	default:
		err = fmt.Errorf("unknown action %s", req.Action)
	}
	if err != nil {
		return Response{Code: repository.ErrorCode(err), Error: err.Error()}
	}
	return resp
}

// RPCServer consumes users.rpc and answers on each message's reply-to
// queue with the same correlation id.
type RPCServer struct {
	URL     string
	Backend Backend
	Timeout time.Duration
	Log     zerolog.Logger
}

// Start serves until ctx is cancelled, reconnecting with backoff.
func (s *RPCServer) Start(ctx context.Context) error {
	op := func() error {
		conn, err := amqp.Dial(s.URL)
		if err != nil {
			return fmt.Errorf("dial broker: %w", err)
		}
		defer func() { _ = conn.Close() }()
		return s.serve(ctx, conn)
	}
	policy := backoff.NewExponentialBackOff()
	policy.MaxInterval = 30 * time.Second
	policy.MaxElapsedTime = 0
	for {
		err := backoff.RetryNotify(op, backoff.WithContext(policy, ctx), func(err error, next time.Duration) {
			s.Log.Warn().Err(err).Dur("retry_in", next).Msg("rpc server disconnected")
		})
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			s.Log.Error().Err(err).Msg("rpc server stopped; restarting")
		}
		policy.Reset()
	}
}

func (s *RPCServer) serve(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(UsersRPCQueue, false, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(UsersRPCQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}
	s.Log.Info().Str("queue", UsersRPCQueue).Msg("rpc server started")

	for {
		select {
		case <-ctx.Done():
			return backoff.Permanent(ctx.Err())
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			s.handle(ctx, ch, d)
		}
	}
}

func (s *RPCServer) handle(ctx context.Context, ch *amqp.Channel, d amqp.Delivery) {
	var (
		req  Request
		resp Response
	)
	if err := json.Unmarshal(d.Body, &req); err != nil {
		resp = Response{Error: "malformed request"}
	} else {
		timeout := s.Timeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		cctx, cancel := context.WithTimeout(ctx, timeout)
		resp = Dispatch(cctx, s.Backend, req)
		cancel()
	}
	if d.ReplyTo == "" {
		_ = d.Ack(false)
		return
	}
	body, _ := json.Marshal(resp)
	err := ch.PublishWithContext(ctx, "", d.ReplyTo, false, false, amqp.Publishing{
		ContentType:   "application/json",
		CorrelationId: d.CorrelationId,
		Body:          body,
	})
	if err != nil {
		s.Log.Error().Err(err).Str("action", req.Action.String()).Msg("rpc reply failed")
	}
	_ = d.Ack(false)
}
