package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/grp-2-projet-elective/cesieats-back/internal/model"
	"github.com/grp-2-projet-elective/cesieats-back/internal/queue"
	"github.com/grp-2-projet-elective/cesieats-back/internal/repository"
)

// UsersAMQP sends credential requests to users.rpc and waits on an
// exclusive reply queue. Replies are matched by correlation id; a call
// that outlives its context is abandoned. When the broker drops the
// connection the client redials with backoff and calls in flight fail.
type UsersAMQP struct {
	URL     string
	Timeout time.Duration
	Log     zerolog.Logger

	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	conn    *amqp.Connection
	pub     publisher
	replyTo string
	pending map[string]chan queue.Response
}

// publisher is the part of *amqp.Channel a call needs.
type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

var errNotConnected = errors.New("users rpc: broker not connected")

func newUsersAMQP(url string, timeout time.Duration, log zerolog.Logger) *UsersAMQP {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &UsersAMQP{URL: url, Timeout: timeout, Log: log, pending: map[string]chan queue.Response{}}
}

// DialUsersAMQP opens the connection and the reply queue, then keeps them
// open until Close.
func DialUsersAMQP(url string, timeout time.Duration, log zerolog.Logger) (*UsersAMQP, error) {
	c := newUsersAMQP(url, timeout, log)
	msgs, err := c.connect()
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.run(ctx, msgs)
	return c, nil
}

func (c *UsersAMQP) connect() (<-chan amqp.Delivery, error) {
	conn, err := amqp.Dial(c.URL)
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("channel open: %w", err)
	}
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("queue consume: %w", err)
	}
	c.mu.Lock()
	c.conn, c.pub, c.replyTo = conn, ch, q.Name
	c.mu.Unlock()
	return msgs, nil
}

// run reads replies until the deliveries channel closes, then redials
// until ctx is cancelled.
func (c *UsersAMQP) run(ctx context.Context, msgs <-chan amqp.Delivery) {
	defer close(c.done)
	policy := backoff.NewExponentialBackOff()
	policy.MaxInterval = 30 * time.Second
	policy.MaxElapsedTime = 0
	for {
		c.readReplies(msgs)
		c.disconnect()
		if ctx.Err() != nil {
			return
		}
		c.Log.Warn().Msg("users rpc connection lost; reconnecting")

		policy.Reset()
		err := backoff.RetryNotify(func() error {
			var err error
			msgs, err = c.connect()
			return err
		}, backoff.WithContext(policy, ctx), func(err error, next time.Duration) {
			c.Log.Warn().Err(err).Dur("retry_in", next).Msg("users rpc redial failed")
		})
		if err != nil || ctx.Err() != nil {
			c.disconnect()
			return
		}
		c.Log.Info().Msg("users rpc reconnected")
	}
}

// disconnect drops the current connection and fails the calls waiting on
// it: their reply queue is gone with it.
func (c *UsersAMQP) disconnect() {
	c.mu.Lock()
	conn := c.conn
	waiting := c.pending
	c.conn, c.pub, c.replyTo = nil, nil, ""
	c.pending = map[string]chan queue.Response{}
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	for _, w := range waiting {
		w <- queue.Response{Error: "connection lost"}
	}
}

func (c *UsersAMQP) Close() error {
	if c.cancel != nil {
		c.cancel()
	}
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	var err error
	if conn != nil {
		err = conn.Close()
	}
	if c.done != nil {
		<-c.done
	}
	return err
}

func (c *UsersAMQP) readReplies(msgs <-chan amqp.Delivery) {
	for d := range msgs {
		var resp queue.Response
		if err := json.Unmarshal(d.Body, &resp); err != nil {
			resp = queue.Response{Error: "malformed reply"}
		}
		c.mu.Lock()
		ch, ok := c.pending[d.CorrelationId]
		delete(c.pending, d.CorrelationId)
		c.mu.Unlock()
		if ok {
			ch <- resp
		}
	}
}

func (c *UsersAMQP) call(ctx context.Context, req queue.Request) (queue.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	body, err := json.Marshal(req)
	if err != nil {
		return queue.Response{}, err
	}
	id := uuid.NewString()
	wait := make(chan queue.Response, 1)
	c.mu.Lock()
	pub, replyTo := c.pub, c.replyTo
	if pub == nil {
		c.mu.Unlock()
		return queue.Response{}, errNotConnected
	}
	c.pending[id] = wait
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	err = pub.PublishWithContext(ctx, "", queue.UsersRPCQueue, false, false, amqp.Publishing{
		ContentType:   "application/json",
		CorrelationId: id,
		ReplyTo:       replyTo,
		Expiration:    fmt.Sprintf("%d", c.Timeout.Milliseconds()),
		Body:          body,
	})
	if err != nil {
		return queue.Response{}, err
	}
	select {
	case resp := <-wait:
		if resp.Error != "" {
			if sentinel := repository.FromCode(resp.Code); sentinel != nil {
				return resp, sentinel
			}
			return resp, fmt.Errorf("users rpc %s: %s", req.Action, resp.Error)
		}
		return resp, nil
	case <-ctx.Done():
		return queue.Response{}, fmt.Errorf("users rpc %s: %w", req.Action, ctx.Err())
	}
}

func (c *UsersAMQP) FindByMail(ctx context.Context, mail string) (model.User, error) {
	resp, err := c.call(ctx, queue.Request{Action: queue.ActionFindByMail, Mail: mail})
	if err != nil {
		return model.User{}, err
	}
	if resp.User == nil {
		return model.User{}, errors.New("users rpc: empty reply")
	}
	return resp.User.ToUser(), nil
}

func (c *UsersAMQP) FindByID(ctx context.Context, id uint64) (model.User, error) {
	resp, err := c.call(ctx, queue.Request{Action: queue.ActionFindByID, UserID: id})
	if err != nil {
		return model.User{}, err
	}
	if resp.User == nil {
		return model.User{}, errors.New("users rpc: empty reply")
	}
	return resp.User.ToUser(), nil
}

func (c *UsersAMQP) CreateUser(ctx context.Context, u model.User) (model.User, error) {
	rec := model.NewUserRecord(u)
	resp, err := c.call(ctx, queue.Request{Action: queue.ActionCreateUser, User: &rec})
	if err != nil {
		return model.User{}, err
	}
	if resp.User == nil {
		return model.User{}, errors.New("users rpc: empty reply")
	}
	return resp.User.ToUser(), nil
}

func (c *UsersAMQP) StoreRefreshToken(ctx context.Context, mail, hash string, exp time.Time) error {
	_, err := c.call(ctx, queue.Request{Action: queue.ActionStoreRefresh, Mail: mail, Hash: hash, ExpiresAt: exp})
	return err
}

func (c *UsersAMQP) RotateRefreshToken(ctx context.Context, mail, oldHash, newHash string, exp time.Time) error {
	_, err := c.call(ctx, queue.Request{Action: queue.ActionRotateRefresh, Mail: mail, OldHash: oldHash, Hash: newHash, ExpiresAt: exp})
	return err
}

func (c *UsersAMQP) ClearRefreshToken(ctx context.Context, mail string) error {
	_, err := c.call(ctx, queue.Request{Action: queue.ActionClearRefresh, Mail: mail})
	return err
}

func (c *UsersAMQP) HasRole(ctx context.Context, mail string, role model.Role) (bool, error) {
	resp, err := c.call(ctx, queue.Request{Action: queue.ActionHasRole, Mail: mail, Role: role})
	return resp.Result, err
}

func (c *UsersAMQP) OwnsResource(ctx context.Context, mail string, restaurantID uint64) (bool, error) {
	resp, err := c.call(ctx, queue.Request{Action: queue.ActionOwnsRestaurant, Mail: mail, RestaurantID: restaurantID})
	return resp.Result, err
}

func (c *UsersAMQP) MailExists(ctx context.Context, mail string) (bool, error) {
	resp, err := c.call(ctx, queue.Request{Action: queue.ActionMailExists, Mail: mail})
	return resp.Result, err
}
