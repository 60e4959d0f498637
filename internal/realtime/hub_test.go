package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/raci-tracker/backend/internal/authz"
	"github.com/raci-tracker/backend/internal/models"
	"github.com/raci-tracker/backend/pkg/apperr"
)

func testClient(h *Hub, userID uuid.UUID) *Client {
	return &Client{ID: uuid.NewString(), UserID: userID, hub: h, send: make(chan WSMessage, 8)}
}

func receive(t *testing.T, c *Client) WSMessage {
	t.Helper()
	select {
	case msg := <-c.send:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("no message delivered")
		return WSMessage{}
	}
}

func assertEmpty(t *testing.T, c *Client) {
	t.Helper()
	select {
	case msg := <-c.send:
		t.Fatalf("unexpected message %q", msg.Event)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestNotifyLocal(t *testing.T) {
	h := NewHub(zaptest.NewLogger(t), nil, nil)
	alice, bob := uuid.New(), uuid.New()
	a1, a2, b := testClient(h, alice), testClient(h, alice), testClient(h, bob)
	h.Register(a1)
	h.Register(a2)
	h.Register(b)
	assert.Equal(t, 2, h.Connections(alice))

	h.Notify(context.Background(), []uuid.UUID{alice, alice, uuid.Nil}, EventApprovalDecided, map[string]string{"status": "approved"})

	for _, c := range []*Client{a1, a2} {
		msg := receive(t, c)
		assert.Equal(t, EventApprovalDecided, msg.Event)
		assert.JSONEq(t, `{"status":"approved"}`, string(msg.Data))
		assertEmpty(t, c)
	}
	assertEmpty(t, b)

	h.Unregister(a1)
	h.Unregister(a1)
	assert.Equal(t, 1, h.Connections(alice))
	_, open := <-a1.send
	assert.False(t, open, "send channel closed on unregister")
}

func TestNotifyAcrossInstances(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	logger := zaptest.NewLogger(t)

	ps := NewRedisPubSub(client, logger)
	sender := NewHub(logger, ps, ps)
	receiver := NewHub(logger, ps, ps)

	userID := uuid.New()
	c := testClient(receiver, userID)
	receiver.Register(c)
	t.Cleanup(func() { receiver.Unregister(c) })

	sender.Notify(context.Background(), []uuid.UUID{userID}, EventEventStatusChanged, map[string]string{"approvalStatus": "rejected"})

	msg := receive(t, c)
	assert.Equal(t, EventEventStatusChanged, msg.Event)
	var data map[string]string
	require.NoError(t, json.Unmarshal(msg.Data, &data))
	assert.Equal(t, "rejected", data["approvalStatus"])
	assertEmpty(t, c)
}

func TestServeWs(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger := zaptest.NewLogger(t)
	h := NewHub(logger, nil, nil)
	userID := uuid.New()
	validate := func(token string) (authz.Principal, error) {
		if token != "good" {
			return authz.Principal{}, apperr.Authentication("invalid token").WithCode(apperr.CodeInvalidToken)
		}
		return authz.Principal{ID: userID, Role: models.RoleUser, CompanyID: uuid.New()}, nil
	}
	r := gin.New()
	r.GET("/api/ws", ServeWs(h, logger, validate, []string{"http://localhost:3000"}))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws"

	_, resp, err := websocket.DefaultDialer.Dial(url+"?token=bad", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	header := http.Header{"Origin": []string{"http://evil.example"}}
	_, resp, err = websocket.DefaultDialer.Dial(url+"?token=good", header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(url+"?token=good", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.Eventually(t, func() bool { return h.Connections(userID) == 1 }, 2*time.Second, 10*time.Millisecond)

	h.Notify(context.Background(), []uuid.UUID{userID}, EventMeetingScheduled, map[string]string{"title": "Kickoff"})
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg WSMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, EventMeetingScheduled, msg.Event)

	require.NoError(t, conn.WriteJSON(WSMessage{Event: "ping"}))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "pong", msg.Event)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return h.Connections(userID) == 0 }, 2*time.Second, 10*time.Millisecond)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) PublishUserEvent(ctx context.Context, userID uuid.UUID, event string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

// flakySubscriber fails its first fails subscribes. With gate set, each attempt waits for it.
type flakySubscriber struct {
	mu       sync.Mutex
	fails    int
	attempts int
	gate     chan struct{}
}

func (s *flakySubscriber) SubscribeUser(ctx context.Context, userID uuid.UUID, handler func(event string, payload []byte)) (func(), error) {
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts++
	if s.fails > 0 {
		s.fails--
		return nil, errors.New("connection refused")
	}
	return func() {}, nil
}

func TestFailedSubscribeRetriedAndDeliveredLocally(t *testing.T) {
	pub := &recordingPublisher{}
	sub := &flakySubscriber{fails: 1}
	h := NewHub(zaptest.NewLogger(t), pub, sub)
	alice := uuid.New()

	first := testClient(h, alice)
	h.Register(first)
	assert.False(t, h.subscribed(alice))

	h.Notify(context.Background(), []uuid.UUID{alice}, EventEventAssigned, map[string]string{"eventName": "Budget"})
	assert.Equal(t, EventEventAssigned, receive(t, first).Event, "unsubscribed user still served locally")
	assert.Equal(t, []string{EventEventAssigned}, pub.events)

	second := testClient(h, alice)
	h.Register(second)
	assert.Equal(t, 2, sub.attempts)
	assert.True(t, h.subscribed(alice))

	h.Notify(context.Background(), []uuid.UUID{alice}, EventEventAssigned, map[string]string{})
	assertEmpty(t, first)
	assertEmpty(t, second)
}

func TestSlowSubscribeDoesNotBlockDelivery(t *testing.T) {
	sub := &flakySubscriber{}
	h := NewHub(zaptest.NewLogger(t), &recordingPublisher{}, sub)
	bob := uuid.New()
	b := testClient(h, bob)
	h.Register(b)

	sub.gate = make(chan struct{})
	registered := make(chan struct{})
	go func() {
		h.Register(testClient(h, uuid.New()))
		close(registered)
	}()

	done := make(chan struct{})
	go func() {
		h.Deliver(bob, EventMeetingScheduled, map[string]string{})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("deliver blocked behind a pending subscribe")
	}
	assert.Equal(t, EventMeetingScheduled, receive(t, b).Event)

	close(sub.gate)
	<-registered
}
