package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nayon117/custome-chat-server/internal/cache"
	"github.com/nayon117/custome-chat-server/internal/config"
	"github.com/nayon117/custome-chat-server/internal/domain"
	"github.com/nayon117/custome-chat-server/internal/hub"
)

// memoryRepo is an in-process MessageRepository for tests. Insertion order
// doubles as the store-assigned sequence.
type memoryRepo struct {
	mu         sync.Mutex
	messages   []domain.ChatMessage
	nextID     uint64
	failAppend bool
}

var errAppendFailed = errors.New("append failed")

func (r *memoryRepo) Append(_ context.Context, msg *domain.ChatMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAppend {
		return errAppendFailed
	}
	r.nextID++
	msg.ID = r.nextID
	r.messages = append(r.messages, *msg)
	return nil
}

func (r *memoryRepo) ListByUser(_ context.Context, userID string) ([]domain.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.ChatMessage
	for _, m := range r.messages {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *memoryRepo) ListAll(_ context.Context) ([]domain.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.ChatMessage, len(r.messages))
	copy(out, r.messages)
	return out, nil
}

func (r *memoryRepo) Close() error { return nil }

type fixture struct {
	hub  *hub.Hub
	repo *memoryRepo
	svc  RelayService
}

func newFixture() *fixture {
	h := hub.NewHub(config.WebSocketConfig{})
	go h.Run()
	repo := &memoryRepo{}
	return &fixture{
		hub:  h,
		repo: repo,
		svc:  NewRelayService(h, repo, nil, 0),
	}
}

func (f *fixture) connect(t *testing.T, id, identity string) *hub.Client {
	t.Helper()
	c := hub.NewClient(id, identity, f.hub, nil, config.WebSocketConfig{})
	f.hub.Register(c)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if f.hub.ClientCount(identity) > 0 {
			return c
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("client %s never registered", id)
	return nil
}

func receiveTyped(t *testing.T, c *hub.Client) (string, []byte) {
	t.Helper()
	select {
	case data := <-c.Send:
		var base domain.BaseMessage
		if err := json.Unmarshal(data, &base); err != nil {
			t.Fatalf("invalid JSON on client %s: %v", c.ID, err)
		}
		return base.Type, data
	case <-time.After(time.Second):
		t.Fatalf("client %s: timed out waiting for event", c.ID)
		return "", nil
	}
}

func assertSilent(t *testing.T, c *hub.Client) {
	t.Helper()
	select {
	case data := <-c.Send:
		t.Fatalf("client %s unexpectedly received: %s", c.ID, data)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSendMessageFansOutToUserAndAdmin(t *testing.T) {
	f := newFixture()
	user := f.connect(t, "c1", "u1")
	admin := f.connect(t, "c2", domain.AdminIdentity)

	if err := f.svc.HandleSendMessage(context.Background(), user, "hello"); err != nil {
		t.Fatalf("HandleSendMessage failed: %v", err)
	}

	typ, data := receiveTyped(t, user)
	if typ != domain.MsgTypeMessage {
		t.Errorf("user event type = %q, want %q", typ, domain.MsgTypeMessage)
	}
	var out domain.ChatMessageOut
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Message.UserID != "u1" || out.Message.Content != "hello" || out.Message.Origin != domain.OriginUser {
		t.Errorf("unexpected message payload: %+v", out.Message)
	}

	typ, _ = receiveTyped(t, admin)
	if typ != domain.MsgTypeNewMessage {
		t.Errorf("admin event type = %q, want %q", typ, domain.MsgTypeNewMessage)
	}
}

func TestSendMessageNotDeliveredToOtherUsers(t *testing.T) {
	f := newFixture()
	user := f.connect(t, "c1", "u1")
	bystander := f.connect(t, "c2", "u2")

	if err := f.svc.HandleSendMessage(context.Background(), user, "hello"); err != nil {
		t.Fatalf("HandleSendMessage failed: %v", err)
	}

	receiveTyped(t, user)
	assertSilent(t, bystander)
}

func TestAdminReplyReachesTargetAndOtherAdmins(t *testing.T) {
	f := newFixture()
	user := f.connect(t, "c1", "u1")
	admin1 := f.connect(t, "c2", domain.AdminIdentity)
	admin2 := f.connect(t, "c3", domain.AdminIdentity)

	if err := f.svc.HandleAdminReply(context.Background(), admin1, "u1", "hi"); err != nil {
		t.Fatalf("HandleAdminReply failed: %v", err)
	}

	typ, data := receiveTyped(t, user)
	if typ != domain.MsgTypeMessage {
		t.Errorf("user event type = %q, want %q", typ, domain.MsgTypeMessage)
	}
	var out domain.ChatMessageOut
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Message.Origin != domain.OriginAdmin || out.Message.UserID != "u1" {
		t.Errorf("unexpected reply payload: %+v", out.Message)
	}

	for _, admin := range []*hub.Client{admin1, admin2} {
		typ, _ := receiveTyped(t, admin)
		if typ != domain.MsgTypeNewMessage {
			t.Errorf("admin %s event type = %q, want %q", admin.ID, typ, domain.MsgTypeNewMessage)
		}
	}
}

func TestGetHistoryReturnsConversationInOrder(t *testing.T) {
	f := newFixture()
	user := f.connect(t, "c1", "u1")
	admin := f.connect(t, "c2", domain.AdminIdentity)

	ctx := context.Background()
	if err := f.svc.HandleSendMessage(ctx, user, "hello"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := f.svc.HandleAdminReply(ctx, admin, "u1", "hi"); err != nil {
		t.Fatalf("reply: %v", err)
	}

	// Drain fan-out events before requesting history.
	receiveTyped(t, user)
	receiveTyped(t, user)
	receiveTyped(t, admin)
	receiveTyped(t, admin)

	if err := f.svc.HandleGetHistory(ctx, user); err != nil {
		t.Fatalf("HandleGetHistory failed: %v", err)
	}

	typ, data := receiveTyped(t, user)
	if typ != domain.MsgTypeHistory {
		t.Fatalf("event type = %q, want %q", typ, domain.MsgTypeHistory)
	}

	var out domain.HistoryOut
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(out.Messages) != 2 {
		t.Fatalf("history has %d messages, want 2", len(out.Messages))
	}
	if out.Messages[0].Content != "hello" || out.Messages[0].Origin != domain.OriginUser {
		t.Errorf("first message = %+v, want user hello", out.Messages[0])
	}
	if out.Messages[1].Content != "hi" || out.Messages[1].Origin != domain.OriginAdmin {
		t.Errorf("second message = %+v, want admin hi", out.Messages[1])
	}
}

func TestGetAllMessagesSilentlyDroppedForNonAdmin(t *testing.T) {
	f := newFixture()
	user := f.connect(t, "c1", "u1")

	if err := f.svc.HandleSendMessage(context.Background(), user, "hello"); err != nil {
		t.Fatalf("send: %v", err)
	}
	receiveTyped(t, user)

	if err := f.svc.HandleGetAllMessages(context.Background(), user); err != nil {
		t.Fatalf("HandleGetAllMessages returned error for non-admin: %v", err)
	}
	assertSilent(t, user)
}

func TestGetAllMessagesGroupsByUser(t *testing.T) {
	f := newFixture()
	u1 := f.connect(t, "c1", "u1")
	u2 := f.connect(t, "c2", "u2")
	admin := f.connect(t, "c3", domain.AdminIdentity)

	ctx := context.Background()
	if err := f.svc.HandleSendMessage(ctx, u1, "from u1"); err != nil {
		t.Fatalf("send u1: %v", err)
	}
	if err := f.svc.HandleSendMessage(ctx, u2, "from u2"); err != nil {
		t.Fatalf("send u2: %v", err)
	}

	receiveTyped(t, u1)
	receiveTyped(t, u2)
	receiveTyped(t, admin)
	receiveTyped(t, admin)

	if err := f.svc.HandleGetAllMessages(ctx, admin); err != nil {
		t.Fatalf("HandleGetAllMessages failed: %v", err)
	}

	typ, data := receiveTyped(t, admin)
	if typ != domain.MsgTypeAllMessages {
		t.Fatalf("event type = %q, want %q", typ, domain.MsgTypeAllMessages)
	}

	var out domain.AllMessagesOut
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(out.Messages) != 2 {
		t.Fatalf("got %d groups, want 2", len(out.Messages))
	}
	if len(out.Messages["u1"]) != 1 || out.Messages["u1"][0].Content != "from u1" {
		t.Errorf("u1 group = %+v", out.Messages["u1"])
	}
	if len(out.Messages["u2"]) != 1 || out.Messages["u2"][0].Content != "from u2" {
		t.Errorf("u2 group = %+v", out.Messages["u2"])
	}
}

func TestPersistFailureSignalsOriginatorOnly(t *testing.T) {
	f := newFixture()
	f.repo.failAppend = true

	user := f.connect(t, "c1", "u1")
	admin := f.connect(t, "c2", domain.AdminIdentity)

	err := f.svc.HandleSendMessage(context.Background(), user, "hello")
	if err == nil {
		t.Fatal("HandleSendMessage should fail when the store fails")
	}

	typ, data := receiveTyped(t, user)
	if typ != domain.MsgTypeError {
		t.Errorf("user event type = %q, want %q", typ, domain.MsgTypeError)
	}
	var errOut domain.ErrorMessage
	if err := json.Unmarshal(data, &errOut); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if errOut.Message == "" {
		t.Error("error event has empty description")
	}

	// Nothing is delivered and nothing is persisted.
	assertSilent(t, admin)
	all, _ := f.repo.ListAll(context.Background())
	if len(all) != 0 {
		t.Errorf("store has %d messages after failed append, want 0", len(all))
	}
}

func TestMessageToDisconnectedUserStillPersisted(t *testing.T) {
	f := newFixture()
	user := f.connect(t, "c1", "u1")
	admin := f.connect(t, "c2", domain.AdminIdentity)

	f.hub.Unregister(user)
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && f.hub.ClientCount("u1") > 0 {
		time.Sleep(time.Millisecond)
	}

	if err := f.svc.HandleAdminReply(context.Background(), admin, "u1", "are you there?"); err != nil {
		t.Fatalf("HandleAdminReply failed for offline user: %v", err)
	}
	receiveTyped(t, admin)

	messages, err := f.svc.HistoryForUser(context.Background(), "u1")
	if err != nil {
		t.Fatalf("HistoryForUser failed: %v", err)
	}
	if len(messages) != 1 || messages[0].Content != "are you there?" {
		t.Errorf("history = %+v, want the offline reply", messages)
	}
}

func TestAdminReplyWithoutTargetRejected(t *testing.T) {
	f := newFixture()
	admin := f.connect(t, "c1", domain.AdminIdentity)

	if err := f.svc.HandleAdminReply(context.Background(), admin, "", "hi"); err != nil {
		t.Fatalf("HandleAdminReply returned transport error: %v", err)
	}

	typ, _ := receiveTyped(t, admin)
	if typ != domain.MsgTypeError {
		t.Errorf("event type = %q, want %q", typ, domain.MsgTypeError)
	}

	all, _ := f.repo.ListAll(context.Background())
	if len(all) != 0 {
		t.Errorf("store has %d messages, want 0", len(all))
	}
}

// gatedCache is an in-memory HistoryCache whose first Set parks until
// released, so a test can interleave an append with a running fill.
type gatedCache struct {
	mu      sync.Mutex
	entries map[string][]domain.ChatMessage

	setEntered chan struct{}
	setRelease chan struct{}
	gateUsed   bool
}

func newGatedCache() *gatedCache {
	return &gatedCache{
		entries:    make(map[string][]domain.ChatMessage),
		setEntered: make(chan struct{}),
		setRelease: make(chan struct{}),
	}
}

func (c *gatedCache) Get(_ context.Context, userID string) ([]domain.ChatMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	msgs, ok := c.entries[userID]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	out := make([]domain.ChatMessage, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (c *gatedCache) Set(_ context.Context, userID string, messages []domain.ChatMessage, _ time.Duration) error {
	c.mu.Lock()
	gate := !c.gateUsed
	c.gateUsed = true
	c.mu.Unlock()

	if gate {
		close(c.setEntered)
		<-c.setRelease
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	stored := make([]domain.ChatMessage, len(messages))
	copy(stored, messages)
	c.entries[userID] = stored
	return nil
}

func (c *gatedCache) Invalidate(_ context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, userID)
	return nil
}

func (c *gatedCache) Close() error { return nil }

func TestHistoryNotStaleAfterConcurrentAppend(t *testing.T) {
	h := hub.NewHub(config.WebSocketConfig{})
	go h.Run()
	repo := &memoryRepo{}
	gated := newGatedCache()
	svc := NewRelayService(h, repo, gated, time.Minute)

	ctx := context.Background()
	if _, err := svc.AppendMessage(ctx, "u1", "A", domain.OriginUser); err != nil {
		t.Fatalf("append A: %v", err)
	}

	// Start a history read whose cache fill parks mid-flight.
	done := make(chan error, 1)
	go func() {
		_, err := svc.HistoryForUser(ctx, "u1")
		done <- err
	}()

	select {
	case <-gated.setEntered:
	case <-time.After(time.Second):
		t.Fatal("cache fill never started")
	}

	// A second message lands while the fill is parked.
	if _, err := svc.AppendMessage(ctx, "u1", "B", domain.OriginUser); err != nil {
		t.Fatalf("append B: %v", err)
	}

	close(gated.setRelease)
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("HistoryForUser during fill: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("HistoryForUser never returned")
	}

	messages, err := svc.HistoryForUser(ctx, "u1")
	if err != nil {
		t.Fatalf("HistoryForUser after append: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("history after appending B = %d messages, want 2", len(messages))
	}
	if messages[0].Content != "A" || messages[1].Content != "B" {
		t.Errorf("history = %+v, want A then B", messages)
	}
}
