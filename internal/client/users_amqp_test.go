package client

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grp-2-projet-elective/cesieats-back/internal/model"
	"github.com/grp-2-projet-elective/cesieats-back/internal/queue"
	"github.com/grp-2-projet-elective/cesieats-back/internal/repository"
)

// replyBroker stands in for the users service: every published request is
// answered on the reply deliveries by reply.
type replyBroker struct {
	mu        sync.Mutex
	published []amqp.Publishing
	replies   chan amqp.Delivery
	reply     func(queue.Request) *queue.Response
}

func (b *replyBroker) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp.Publishing) error {
	b.mu.Lock()
	b.published = append(b.published, msg)
	b.mu.Unlock()

	var req queue.Request
	if err := json.Unmarshal(msg.Body, &req); err != nil {
		return err
	}
	if b.reply == nil {
		return nil
	}
	resp := b.reply(req)
	if resp == nil {
		return nil
	}
	body, _ := json.Marshal(resp)
	go func() {
		// A stray reply first: it must not reach the caller.
		b.replies <- amqp.Delivery{CorrelationId: "someone-else", Body: []byte(`{"result":true}`)}
		b.replies <- amqp.Delivery{CorrelationId: msg.CorrelationId, Body: body}
	}()
	return nil
}

func newTestAMQP(t *testing.T, timeout time.Duration, reply func(queue.Request) *queue.Response) (*UsersAMQP, *replyBroker) {
	t.Helper()
	b := &replyBroker{replies: make(chan amqp.Delivery), reply: reply}
	c := newUsersAMQP("amqp://unused", timeout, zerolog.Nop())
	c.pub, c.replyTo = b, "amq.gen-reply"
	go c.readReplies(b.replies)
	t.Cleanup(func() { close(b.replies) })
	return c, b
}

func TestUsersAMQPMatchesReplyByCorrelationID(t *testing.T) {
	c, b := newTestAMQP(t, time.Second, func(req queue.Request) *queue.Response {
		rec := model.NewUserRecord(model.User{ID: 4, Mail: req.Mail, PasswordHash: "pw-hash", Role: model.RoleDeliveryMan})
		return &queue.Response{User: &rec}
	})

	u, err := c.FindByMail(context.Background(), "d@b.com")
	require.NoError(t, err)
	assert.Equal(t, uint64(4), u.ID)
	assert.Equal(t, "pw-hash", u.PasswordHash)

	b.mu.Lock()
	require.Len(t, b.published, 1)
	msg := b.published[0]
	b.mu.Unlock()
	assert.Equal(t, "amq.gen-reply", msg.ReplyTo)
	assert.NotEmpty(t, msg.CorrelationId)
	assert.Equal(t, "1000", msg.Expiration)

	c.mu.Lock()
	assert.Empty(t, c.pending)
	c.mu.Unlock()
}

func TestUsersAMQPFindByID(t *testing.T) {
	c, _ := newTestAMQP(t, time.Second, func(req queue.Request) *queue.Response {
		if req.Action != queue.ActionFindByID || req.UserID != 9 {
			return &queue.Response{Error: "unexpected request"}
		}
		rec := model.NewUserRecord(model.User{ID: 9, Mail: "n@b.com"})
		return &queue.Response{User: &rec}
	})

	u, err := c.FindByID(context.Background(), 9)
	require.NoError(t, err)
	assert.Equal(t, "n@b.com", u.Mail)
}

func TestUsersAMQPMapsErrorCodes(t *testing.T) {
	c, _ := newTestAMQP(t, time.Second, func(req queue.Request) *queue.Response {
		switch req.Action {
		case queue.ActionFindByMail:
			return &queue.Response{Code: repository.ErrorCode(repository.ErrUserNotFound), Error: "user not found"}
		case queue.ActionRotateRefresh:
			return &queue.Response{Code: repository.ErrorCode(repository.ErrStaleRefreshToken), Error: "stale"}
		}
		return &queue.Response{Error: "boom"}
	})
	ctx := context.Background()

	_, err := c.FindByMail(ctx, "nobody@b.com")
	assert.ErrorIs(t, err, repository.ErrUserNotFound)

	err = c.RotateRefreshToken(ctx, "a@b.com", "old", "new", time.Now())
	assert.ErrorIs(t, err, repository.ErrStaleRefreshToken)

	_, err = c.MailExists(ctx, "a@b.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mailExists: boom")
}

func TestUsersAMQPTimesOut(t *testing.T) {
	c, _ := newTestAMQP(t, 30*time.Millisecond, nil)

	start := time.Now()
	_, err := c.HasRole(context.Background(), "a@b.com", model.RoleCustomer)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)

	c.mu.Lock()
	assert.Empty(t, c.pending, "abandoned call is unregistered")
	c.mu.Unlock()
}

func TestUsersAMQPFailsFastWhileDisconnected(t *testing.T) {
	c := newUsersAMQP("amqp://unused", time.Second, zerolog.Nop())

	_, err := c.FindByMail(context.Background(), "a@b.com")
	assert.ErrorIs(t, err, errNotConnected)
}

func TestUsersAMQPDisconnectFailsWaitingCalls(t *testing.T) {
	c, b := newTestAMQP(t, 5*time.Second, nil)

	errc := make(chan error, 1)
	go func() {
		_, err := c.MailExists(context.Background(), "a@b.com")
		errc <- err
	}()
	require.Eventually(t, func() bool {
		b.mu.Lock()
		defer b.mu.Unlock()
		return len(b.published) == 1
	}, time.Second, 5*time.Millisecond)

	c.disconnect()

	select {
	case err := <-errc:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection lost")
	case <-time.After(time.Second):
		t.Fatal("call still waiting after the connection dropped")
	}

	_, err := c.MailExists(context.Background(), "a@b.com")
	assert.ErrorIs(t, err, errNotConnected, "no publishing until redialled")
}
