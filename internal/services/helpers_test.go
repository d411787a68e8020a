package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"safeher/internal/config"
	"safeher/internal/models"
	"safeher/pkg/logger"
	"safeher/pkg/websocket"
)

type recordingSink struct {
	mu      sync.Mutex
	notices []models.Notice
}

func (s *recordingSink) Post(_ context.Context, n models.Notice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notices = append(s.notices, n)
}

func (s *recordingSink) titles() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.notices))
	for _, n := range s.notices {
		out = append(out, n.Title)
	}
	return out
}

func (s *recordingSink) last() models.Notice {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.notices) == 0 {
		return models.Notice{}
	}
	return s.notices[len(s.notices)-1]
}

// manualTimer hands out channels that only fire when told to.
type manualTimer struct {
	mu      sync.Mutex
	waiting []chan time.Time
	armed   chan struct{}
}

func newManualTimer() *manualTimer {
	return &manualTimer{armed: make(chan struct{}, 16)}
}

func (m *manualTimer) After(time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	m.mu.Lock()
	m.waiting = append(m.waiting, ch)
	m.mu.Unlock()
	m.armed <- struct{}{}
	return ch
}

// fire waits for a pending timer and releases every pending one.
func (m *manualTimer) fire() {
	<-m.armed
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range m.waiting {
		ch <- time.Now()
	}
	m.waiting = nil
}

type stubChannel struct {
	name  string
	fail  map[string]bool
	panic bool
	block chan struct{}

	mu   sync.Mutex
	sent []Alert
}

func (c *stubChannel) Name() string {
	return c.name
}

func (c *stubChannel) Send(ctx context.Context, alert Alert) (string, error) {
	if c.block != nil {
		select {
		case <-c.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if c.panic {
		panic("boom")
	}

	c.mu.Lock()
	c.sent = append(c.sent, alert)
	c.mu.Unlock()

	if c.fail[alert.Recipient.Phone] {
		return "", errors.New("undeliverable")
	}
	return c.name + "-" + alert.Recipient.ID, nil
}

func (c *stubChannel) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

type fakeBroadcaster struct {
	mu       sync.Mutex
	clients  int
	messages []websocket.Message
}

func (b *fakeBroadcaster) SendToSession(sessionID string, msg websocket.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	msg.SessionID = sessionID
	b.messages = append(b.messages, msg)
}

func (b *fakeBroadcaster) ClientCount(string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.clients
}

func (b *fakeBroadcaster) types() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.messages))
	for _, m := range b.messages {
		out = append(out, m.Type)
	}
	return out
}

func testSafetyConfig() *config.SafetyConfig {
	return &config.SafetyConfig{
		TriggerPhrases:   []string{"danger", "help me", "emergency"},
		LocationSource:   "none",
		LocationTimeout:  50 * time.Millisecond,
		DispatchTimeout:  time.Second,
		ContactChannel:   "simulated",
		AuthorityChannel: "simulated",
		SessionTTL:       time.Minute,
		NoticeHistory:    10,
		Protected: []config.ProtectedContact{
			{Name: "Emergency Police", Phone: "112", Relationship: models.RelationshipPolice},
			{Name: "Women Helpline", Phone: "181", Relationship: models.RelationshipHelpline},
		},
	}
}

func nopLogger() *logger.Logger {
	return logger.NewNop()
}
