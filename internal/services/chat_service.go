package services

import (
	"context"
	"sync"
	"time"
	"unicode/utf8"

	"safeher/internal/models"
	"safeher/internal/utils"
	"safeher/pkg/logger"
	"safeher/pkg/metrics"

	"github.com/google/uuid"
)

const (
	ChatGreeting = "Hello! I'm your SafeHer AI assistant. I can help you with safety tips, self-defense guidance, and emergency protocols. How can I assist you today?"

	CannedReply = "Thank you for your question. I'm here to help with safety advice. In a real implementation, I would provide detailed guidance using AI. For now, here are some general safety tips:\n\n" +
		"1. Always trust your instincts\n" +
		"2. Stay aware of your surroundings\n" +
		"3. Keep emergency contacts readily accessible\n" +
		"4. Use the SafeHer SOS feature if you feel threatened\n" +
		"5. Travel in well-lit, populated areas when possible\n\n" +
		"Is there anything specific you'd like to know more about?"
)

var quickQuestions = []string{
	"Self-defense tips for beginners",
	"What to do if I'm being followed?",
	"Safe travel advice",
	"Emergency preparedness checklist",
}

// QuickQuestions are suggested prompts. They only pre-fill the input box.
func QuickQuestions() []string {
	out := make([]string, len(quickQuestions))
	copy(out, quickQuestions)
	return out
}

// Responder produces the assistant reply for a transcript ending in the user's message.
type Responder interface {
	Reply(ctx context.Context, history []models.Message) (string, error)
}

// CannedResponder answers every question with the same safety tips after Delay.
type CannedResponder struct {
	Text  string
	Delay time.Duration
	// After defaults to time.After.
	After func(time.Duration) <-chan time.Time
}

func NewCannedResponder(delay time.Duration) *CannedResponder {
	return &CannedResponder{Text: CannedReply, Delay: delay, After: time.After}
}

// Reply ignores ctx cancellation; a reply finishes even when the caller goes away.
func (r *CannedResponder) Reply(_ context.Context, _ []models.Message) (string, error) {
	if r.Delay > 0 {
		after := r.After
		if after == nil {
			after = time.After
		}
		<-after(r.Delay)
	}
	if r.Text == "" {
		return CannedReply, nil
	}
	return r.Text, nil
}

// ChatSession is an append-only transcript with one assistant reply per user message.
type ChatSession struct {
	mu        sync.RWMutex
	sessionID string
	messages  []models.Message
	pending   int
	closed    bool
	// lastReply is closed once the newest outstanding reply has been appended or dropped.
	lastReply chan struct{}
	responder Responder
	publish   func(models.Message)
	metrics   *metrics.Metrics
	log       *logger.Logger
	now       func() time.Time
}

// NewChatSession starts a transcript holding the greeting. publish, when set, is called
// with each assistant reply.
func NewChatSession(sessionID string, responder Responder, publish func(models.Message), m *metrics.Metrics, log *logger.Logger) *ChatSession {
	s := &ChatSession{
		sessionID: sessionID,
		responder: responder,
		publish:   publish,
		metrics:   m,
		log:       log.WithSessionID(sessionID).WithField("component", "chat"),
		now:       time.Now,
	}
	s.messages = []models.Message{s.newMessage(models.MessageRoleAssistant, ChatGreeting)}
	return s
}

// Send appends the user message and returns a channel that yields the assistant reply
// once it has been appended. The channel is closed afterwards. Replies are appended in
// the order their messages were sent, however long each responder call takes.
func (s *ChatSession) Send(ctx context.Context, text string) (models.Message, <-chan models.Message, error) {
	text = utils.SanitizeString(text)
	if text == "" {
		return models.Message{}, nil, ErrEmptyMessage
	}
	if utf8.RuneCountInString(text) > utils.MaxMessageLength {
		return models.Message{}, nil, ErrMessageTooLong
	}

	userMsg := s.newMessage(models.MessageRoleUser, text)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return models.Message{}, nil, ErrSessionNotFound
	}
	s.messages = append(s.messages, userMsg)
	s.pending++
	history := make([]models.Message, len(s.messages))
	copy(history, s.messages)
	prev := s.lastReply
	done := make(chan struct{})
	s.lastReply = done
	s.mu.Unlock()

	s.metrics.RecordChatMessage(string(models.MessageRoleUser))

	replies := make(chan models.Message, 1)
	go s.reply(context.WithoutCancel(ctx), history, prev, done, replies)

	return userMsg, replies, nil
}

func (s *ChatSession) reply(ctx context.Context, history []models.Message, prev <-chan struct{}, done chan struct{}, out chan<- models.Message) {
	defer close(out)
	defer close(done)

	content, err := s.responder.Reply(ctx, history)
	if err != nil {
		s.log.WithError(err).Error("responder failed")
		content = CannedReply
	}

	// Wait for the reply to the previous message.
	if prev != nil {
		<-prev
	}
	msg := s.newMessage(models.MessageRoleAssistant, content)

	s.mu.Lock()
	s.pending--
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.messages = append(s.messages, msg)
	s.mu.Unlock()

	s.metrics.RecordChatMessage(string(models.MessageRoleAssistant))
	if s.publish != nil {
		s.publish(msg)
	}
	out <- msg
}

func (s *ChatSession) Messages() []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Pending is true while at least one reply is outstanding.
func (s *ChatSession) Pending() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pending > 0
}

func (s *ChatSession) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// Close stops further appends. Outstanding replies still run but are dropped.
func (s *ChatSession) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

func (s *ChatSession) newMessage(role models.MessageRole, content string) models.Message {
	return models.Message{
		ID:        uuid.New().String(),
		Role:      role,
		Content:   content,
		CreatedAt: s.now(),
	}
}
