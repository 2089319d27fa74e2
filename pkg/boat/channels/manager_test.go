package channels

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeChannel is an in-memory Channel.
type fakeChannel struct {
	name      string
	failFirst int

	mu        sync.Mutex
	attempts  int
	connected bool
	in        chan *IncomingMessage
	direct    []string
	group     []string
}

func newFakeChannel(name string) *fakeChannel {
	return &fakeChannel{name: name, in: make(chan *IncomingMessage, 8)}
}

func (f *fakeChannel) Name() string { return f.name }

func (f *fakeChannel) Connect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	if f.attempts <= f.failFirst {
		return errors.New("not yet")
	}
	f.connected = true
	return nil
}

func (f *fakeChannel) Disconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	return nil
}

func (f *fakeChannel) SendDirect(_ context.Context, to, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.direct = append(f.direct, to+":"+text)
	return nil
}

func (f *fakeChannel) SendGroup(_ context.Context, groupID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.group = append(f.group, groupID+":"+text)
	return nil
}

func (f *fakeChannel) Receive() <-chan *IncomingMessage { return f.in }

func (f *fakeChannel) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeChannel) Health() HealthStatus {
	return HealthStatus{Connected: f.IsConnected()}
}

func testManager() *Manager {
	policy := ConnectPolicy{InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond, MaxAttempts: 3}
	return NewManager(policy, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestManager_Register(t *testing.T) {
	t.Parallel()

	m := testManager()
	if err := m.Register(newFakeChannel("console")); err != nil {
		t.Fatal(err)
	}
	if err := m.Register(newFakeChannel("console")); !errors.Is(err, ErrAlreadyRegistered) {
		t.Errorf("second Register() error = %v, want ErrAlreadyRegistered", err)
	}
	if err := m.Register(newFakeChannel("discord")); err != nil {
		t.Fatal(err)
	}
	names := m.Names()
	if len(names) != 2 || names[0] != "console" || names[1] != "discord" {
		t.Errorf("Names() = %v", names)
	}
}

func TestManager_StartRetriesAndForwards(t *testing.T) {
	t.Parallel()

	m := testManager()
	ch := newFakeChannel("console")
	ch.failFirst = 2
	if err := m.Register(ch); err != nil {
		t.Fatal(err)
	}
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer m.Stop()

	ch.in <- &IncomingMessage{ID: "1", Content: "hi"}

	select {
	case msg := <-m.Messages():
		if msg.Channel != "console" {
			t.Errorf("Channel = %q, want console", msg.Channel)
		}
		if msg.Content != "hi" {
			t.Errorf("Content = %q, want hi", msg.Content)
		}
	case <-time.After(time.Second):
		t.Fatal("message not forwarded")
	}
}

func TestManager_StartNoneConnected(t *testing.T) {
	t.Parallel()

	m := testManager()
	ch := newFakeChannel("discord")
	ch.failFirst = 100
	if err := m.Register(ch); err != nil {
		t.Fatal(err)
	}
	err := m.Start(context.Background())
	if !errors.Is(err, ErrNoChannelConnected) {
		t.Errorf("Start() error = %v, want ErrNoChannelConnected", err)
	}
	m.Stop()
}

func TestManager_SendRouting(t *testing.T) {
	t.Parallel()

	m := testManager()
	ch := newFakeChannel("console")
	if err := m.Register(ch); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if err := m.SendDirect(ctx, "console", "alice", "x"); !errors.Is(err, ErrChannelDisconnected) {
		t.Errorf("send before Start error = %v, want ErrChannelDisconnected", err)
	}
	if err := m.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer m.Stop()

	if err := m.SendDirect(ctx, "console", "alice", "hello"); err != nil {
		t.Fatal(err)
	}
	if err := m.SendGroup(ctx, "console", "party", "all"); err != nil {
		t.Fatal(err)
	}
	if err := m.SendGroup(ctx, "irc", "x", "y"); !errors.Is(err, ErrUnknownChannel) {
		t.Errorf("unknown channel error = %v, want ErrUnknownChannel", err)
	}

	ch.mu.Lock()
	defer ch.mu.Unlock()
	if len(ch.direct) != 1 || ch.direct[0] != "alice:hello" {
		t.Errorf("direct = %v", ch.direct)
	}
	if len(ch.group) != 1 || ch.group[0] != "party:all" {
		t.Errorf("group = %v", ch.group)
	}
}

func TestManager_InjectAndStop(t *testing.T) {
	t.Parallel()

	m := testManager()
	if err := m.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	if err := m.Inject(context.Background(), &IncomingMessage{Channel: "scheduler", Content: "!ping"}); err != nil {
		t.Fatal(err)
	}
	msg := <-m.Messages()
	if msg.Content != "!ping" {
		t.Errorf("Content = %q", msg.Content)
	}

	m.Stop()
	m.Stop()

	if _, ok := <-m.Messages(); ok {
		t.Error("Messages() still open after Stop")
	}
	if err := m.Inject(context.Background(), &IncomingMessage{}); !errors.Is(err, ErrChannelDisconnected) {
		t.Errorf("Inject after Stop error = %v, want ErrChannelDisconnected", err)
	}
}

func TestKind_String(t *testing.T) {
	t.Parallel()

	if KindDirect.String() != "direct" || KindGroup.String() != "group" || Kind(9).String() != "unknown" {
		t.Error("unexpected Kind strings")
	}
	if got := (Identity{ID: "42"}).String(); got != "42" {
		t.Errorf("Identity.String() = %q, want 42", got)
	}
}
