package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"safeher/internal/models"
	"safeher/pkg/logger"
	"safeher/pkg/websocket"
)

// Notifier delivers a notice for a session to wherever the user can see it.
type Notifier interface {
	Notify(ctx context.Context, sessionID string, notice models.Notice)
}

// NoticeSink is what session components post notices to.
type NoticeSink interface {
	Post(ctx context.Context, notice models.Notice)
}

// SessionBroadcaster is satisfied by *websocket.Hub.
type SessionBroadcaster interface {
	SendToSession(sessionID string, message websocket.Message)
	ClientCount(sessionID string) int
}

type BroadcastNotifier struct {
	hub SessionBroadcaster
}

func NewBroadcastNotifier(hub SessionBroadcaster) *BroadcastNotifier {
	return &BroadcastNotifier{hub: hub}
}

func (n *BroadcastNotifier) Notify(_ context.Context, sessionID string, notice models.Notice) {
	n.hub.SendToSession(sessionID, websocket.Message{
		Type: websocket.TypeNotice,
		Data: toData(notice),
	})
}

type LogNotifier struct {
	log *logger.Logger
}

func NewLogNotifier(log *logger.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(_ context.Context, sessionID string, notice models.Notice) {
	entry := n.log.WithSessionID(sessionID).WithFields(map[string]interface{}{
		"title":       notice.Title,
		"description": notice.Description,
		"severity":    notice.Severity,
	})
	if notice.Severity == models.NoticeSeverityDestructive {
		entry.Warn("notice")
		return
	}
	entry.Info("notice")
}

type multiNotifier []Notifier

// MultiNotifier fans a notice out to every non-nil notifier in order.
func MultiNotifier(notifiers ...Notifier) Notifier {
	var m multiNotifier
	for _, n := range notifiers {
		if n != nil {
			m = append(m, n)
		}
	}
	return m
}

func (m multiNotifier) Notify(ctx context.Context, sessionID string, notice models.Notice) {
	for _, n := range m {
		n.Notify(ctx, sessionID, notice)
	}
}

// NoticeBoard keeps the most recent notices of one session and forwards each one.
type NoticeBoard struct {
	mu        sync.RWMutex
	sessionID string
	limit     int
	notices   []models.Notice
	next      Notifier
}

func NewNoticeBoard(sessionID string, limit int, next Notifier) *NoticeBoard {
	if limit <= 0 {
		limit = 50
	}
	return &NoticeBoard{
		sessionID: sessionID,
		limit:     limit,
		next:      next,
	}
}

func (b *NoticeBoard) Post(ctx context.Context, notice models.Notice) {
	if notice.CreatedAt.IsZero() {
		notice.CreatedAt = time.Now()
	}
	if notice.Severity == "" {
		notice.Severity = models.NoticeSeverityDefault
	}

	b.mu.Lock()
	b.notices = append(b.notices, notice)
	if over := len(b.notices) - b.limit; over > 0 {
		b.notices = append([]models.Notice(nil), b.notices[over:]...)
	}
	b.mu.Unlock()

	if b.next != nil {
		b.next.Notify(ctx, b.sessionID, notice)
	}
}

// History returns the retained notices, oldest first.
func (b *NoticeBoard) History() []models.Notice {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]models.Notice, len(b.notices))
	copy(out, b.notices)
	return out
}

func notice(title, description string) models.Notice {
	return models.Notice{Title: title, Description: description, Severity: models.NoticeSeverityDefault}
}

func destructiveNotice(title, description string) models.Notice {
	return models.Notice{Title: title, Description: description, Severity: models.NoticeSeverityDestructive}
}

// toData converts a value into the map form carried by websocket messages.
func toData(v interface{}) map[string]interface{} {
	raw, err := json.Marshal(v)
	if err != nil {
		return map[string]interface{}{}
	}
	data := map[string]interface{}{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return map[string]interface{}{"value": v}
	}
	return data
}
