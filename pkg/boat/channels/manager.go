package channels

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ConnectPolicy bounds how hard Start tries to connect each channel.
type ConnectPolicy struct {
	// InitialInterval is the first retry delay.
	InitialInterval time.Duration

	// MaxInterval caps the delay between attempts.
	MaxInterval time.Duration

	// MaxAttempts is the number of retries after the first attempt.
	MaxAttempts uint64
}

// DefaultConnectPolicy retries a failing connect three times within a few seconds.
func DefaultConnectPolicy() ConnectPolicy {
	return ConnectPolicy{
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		MaxAttempts:     3,
	}
}

// Manager orchestrates several channels, merging their incoming messages
// into a single stream and routing replies back by channel name.
type Manager struct {
	channels map[string]Channel
	messages chan *IncomingMessage
	policy   ConnectPolicy
	logger   *slog.Logger

	listenWg sync.WaitGroup
	stopOnce sync.Once

	mu     sync.RWMutex
	closed bool
	ctx    context.Context
	cancel context.CancelFunc
}

// NewManager creates a channel manager.
func NewManager(policy ConnectPolicy, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		channels: make(map[string]Channel),
		messages: make(chan *IncomingMessage, 256),
		policy:   policy,
		logger:   logger.With("component", "channels"),
	}
}

// Register adds a channel. Must be called before Start.
func (m *Manager) Register(ch Channel) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := ch.Name()
	if _, exists := m.channels[name]; exists {
		return fmt.Errorf("%w: %q", ErrAlreadyRegistered, name)
	}

	m.channels[name] = ch
	m.logger.Info("channel registered", "channel", name)
	return nil
}

// Start connects every registered channel and begins forwarding messages.
// Channels that fail to connect after retries are logged and skipped.
// It fails only when channels were registered and none connected.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	m.ctx, m.cancel = context.WithCancel(ctx)
	snapshot := make([]Channel, 0, len(m.channels))
	for _, ch := range m.channels {
		snapshot = append(snapshot, ch)
	}
	m.mu.Unlock()

	if len(snapshot) == 0 {
		m.logger.Warn("no channels registered, only scheduled commands will run")
		return nil
	}

	var connected int
	for _, ch := range snapshot {
		if err := m.connect(ch); err != nil {
			m.logger.Error("failed to connect channel", "channel", ch.Name(), "error", err)
			continue
		}

		connected++
		m.logger.Info("channel connected", "channel", ch.Name())

		m.listenWg.Add(1)
		go func(c Channel) {
			defer m.listenWg.Done()
			m.listen(c)
		}(ch)
	}

	if connected == 0 {
		return ErrNoChannelConnected
	}
	return nil
}

// connect calls ch.Connect with exponential backoff.
func (m *Manager) connect(ch Channel) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = m.policy.InitialInterval
	b.MaxInterval = m.policy.MaxInterval
	b.MaxElapsedTime = 0
	b.Reset()

	attempt := 0
	op := func() error {
		attempt++
		err := ch.Connect(m.ctx)
		if err != nil {
			m.logger.Warn("connect attempt failed",
				"channel", ch.Name(), "attempt", attempt, "error", err)
		}
		return err
	}
	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, m.policy.MaxAttempts), m.ctx))
}

// Stop disconnects every channel and closes the merged stream once all
// listeners have returned. Calling it more than once is a no-op.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		m.mu.RLock()
		if m.cancel != nil {
			m.cancel()
		}
		m.mu.RUnlock()

		m.listenWg.Wait()

		m.mu.Lock()
		defer m.mu.Unlock()
		for name, ch := range m.channels {
			if err := ch.Disconnect(); err != nil {
				m.logger.Error("error disconnecting channel", "channel", name, "error", err)
			}
		}
		m.closed = true
		close(m.messages)
		m.logger.Info("channels stopped")
	})
}

// Messages returns the merged stream of incoming messages.
func (m *Manager) Messages() <-chan *IncomingMessage {
	return m.messages
}

// Inject pushes a synthetic message into the merged stream, as if a
// channel had received it. It blocks until the message is queued or ctx ends.
func (m *Manager) Inject(ctx context.Context, msg *IncomingMessage) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrChannelDisconnected
	}
	var stopped <-chan struct{}
	if m.ctx != nil {
		stopped = m.ctx.Done()
	}
	select {
	case m.messages <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-stopped:
		return ErrChannelDisconnected
	}
}

// SendDirect implements Sender.
func (m *Manager) SendDirect(ctx context.Context, channel, to, text string) error {
	ch, err := m.connected(channel)
	if err != nil {
		return err
	}
	return ch.SendDirect(ctx, to, text)
}

// SendGroup implements Sender.
func (m *Manager) SendGroup(ctx context.Context, channel, groupID, text string) error {
	ch, err := m.connected(channel)
	if err != nil {
		return err
	}
	return ch.SendGroup(ctx, groupID, text)
}

func (m *Manager) connected(name string) (Channel, error) {
	m.mu.RLock()
	ch, ok := m.channels[name]
	m.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownChannel, name)
	}
	if !ch.IsConnected() {
		return nil, fmt.Errorf("%q: %w", name, ErrChannelDisconnected)
	}
	return ch, nil
}

// Channel returns a channel by name.
func (m *Manager) Channel(name string) (Channel, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ch, ok := m.channels[name]
	return ch, ok
}

// Names returns the registered channel names, sorted.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.channels))
	for name := range m.channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HealthAll returns the health status of every registered channel.
func (m *Manager) HealthAll() map[string]HealthStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	statuses := make(map[string]HealthStatus, len(m.channels))
	for name, ch := range m.channels {
		statuses[name] = ch.Health()
	}
	return statuses
}

// listen forwards one channel's messages into the merged stream.
func (m *Manager) listen(ch Channel) {
	in := ch.Receive()
	for {
		select {
		case msg, ok := <-in:
			if !ok {
				return
			}
			if msg.Channel == "" {
				msg.Channel = ch.Name()
			}
			select {
			case m.messages <- msg:
			case <-m.ctx.Done():
				return
			}
		case <-m.ctx.Done():
			return
		}
	}
}

var _ Sender = (*Manager)(nil)
