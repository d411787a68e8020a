package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"safeher/internal/models"
	"safeher/pkg/logger"
	"safeher/pkg/metrics"
	"safeher/pkg/websocket"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ContactLister is the part of the registry the dispatcher reads.
type ContactLister interface {
	List() []models.Contact
}

// LocationAcquirer is the part of the location provider the dispatcher reads.
type LocationAcquirer interface {
	Acquire(ctx context.Context) models.LocationResult
}

type AlertDispatcherConfig struct {
	// ContactChannel reaches personal contacts, AuthorityChannel police and helplines.
	ContactChannel   AlertChannel
	AuthorityChannel AlertChannel
	Guard            DispatchGuard
	Timeout          time.Duration
	LinkFormat       string
}

// AlertDispatcher runs the SOS sequence for one session.
type AlertDispatcher struct {
	sessionID  string
	contacts   ContactLister
	location   LocationAcquirer
	contactCh  AlertChannel
	authorCh   AlertChannel
	guard      DispatchGuard
	timeout    time.Duration
	linkFormat string
	notices    NoticeSink
	publish    PublishFunc
	metrics    *metrics.Metrics
	log        *logger.Logger
	now        func() time.Time

	inProgress atomic.Bool
	mu         sync.RWMutex
	last       *models.DispatchResult
}

func NewAlertDispatcher(sessionID string, contacts ContactLister, location LocationAcquirer, cfg AlertDispatcherConfig, notices NoticeSink, publish PublishFunc, m *metrics.Metrics, log *logger.Logger) *AlertDispatcher {
	if cfg.ContactChannel == nil {
		cfg.ContactChannel = NewSimulatedChannel(0)
	}
	if cfg.AuthorityChannel == nil {
		cfg.AuthorityChannel = cfg.ContactChannel
	}
	if cfg.Guard == nil {
		cfg.Guard = NewLocalDispatchGuard()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &AlertDispatcher{
		sessionID:  sessionID,
		contacts:   contacts,
		location:   location,
		contactCh:  cfg.ContactChannel,
		authorCh:   cfg.AuthorityChannel,
		guard:      cfg.Guard,
		timeout:    cfg.Timeout,
		linkFormat: cfg.LinkFormat,
		notices:    notices,
		publish:    publish,
		metrics:    m,
		log:        log.WithSessionID(sessionID).WithField("component", "dispatcher"),
		now:        time.Now,
	}
}

// TriggerEmergency acquires the location and alerts every contact. A second trigger
// while one is running returns ErrDispatchInProgress and does nothing.
func (d *AlertDispatcher) TriggerEmergency(ctx context.Context, method models.TriggerMethod) (models.DispatchResult, error) {
	if !method.Valid() {
		return models.DispatchResult{}, ErrInvalidTrigger
	}

	if !d.inProgress.CompareAndSwap(false, true) {
		d.metrics.RecordDispatchRejected()
		return models.DispatchResult{}, ErrDispatchInProgress
	}
	defer d.inProgress.Store(false)

	release, ok := d.guard.Acquire(ctx, d.sessionID)
	if !ok {
		d.metrics.RecordDispatchRejected()
		return models.DispatchResult{}, ErrDispatchInProgress
	}
	defer release()

	// The alert must go out even if the request that started it is gone.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	defer cancel()

	started := d.now()
	event := models.EmergencyEvent{
		ID:          uuid.New().String(),
		SessionID:   d.sessionID,
		Method:      method,
		TriggeredAt: started,
	}

	loc := d.location.Acquire(ctx)
	if loc.Available() {
		event.Location = loc.Coordinate
	}

	d.log.LogEmergencyEvent(d.sessionID, event.ID, "triggered", map[string]interface{}{
		"method":   method,
		"location": loc.Status,
	})

	message := d.composeMessage(event)
	recipients := d.contacts.List()
	deliveries := make([]models.Delivery, len(recipients))

	var g errgroup.Group
	for i, recipient := range recipients {
		i, recipient := i, recipient
		g.Go(func() error {
			deliveries[i] = d.deliver(ctx, Alert{Event: event, Recipient: recipient, Message: message})
			return nil
		})
	}
	_ = g.Wait()

	result := models.DispatchResult{
		Event:       event,
		Status:      summarize(deliveries),
		Deliveries:  deliveries,
		CompletedAt: d.now(),
	}

	d.mu.Lock()
	d.last = &result
	d.mu.Unlock()

	d.metrics.RecordAlert(string(method), string(result.Status), result.CompletedAt.Sub(started))
	d.log.LogEmergencyEvent(d.sessionID, event.ID, "dispatched", map[string]interface{}{
		"status":     result.Status,
		"recipients": len(deliveries),
	})
	d.report(ctx, result)

	return result, nil
}

// InProgress reports whether a dispatch is running for this session.
func (d *AlertDispatcher) InProgress() bool {
	return d.inProgress.Load()
}

// LastResult returns the most recent dispatch outcome, if any.
func (d *AlertDispatcher) LastResult() *models.DispatchResult {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.last == nil {
		return nil
	}
	r := *d.last
	return &r
}

func (d *AlertDispatcher) deliver(ctx context.Context, alert Alert) (delivery models.Delivery) {
	channel := d.contactCh
	if alert.Recipient.Protected || alert.Recipient.IsAuthority() {
		channel = d.authorCh
	}

	delivery = models.Delivery{
		ContactID: alert.Recipient.ID,
		Name:      alert.Recipient.Name,
		Phone:     alert.Recipient.Phone,
		Channel:   channel.Name(),
	}

	defer func() {
		if r := recover(); r != nil {
			delivery.Status = models.DeliveryStatusFailed
			delivery.Error = fmt.Sprintf("panic: %v", r)
			d.log.WithField("contact_id", alert.Recipient.ID).Errorf("alert channel panicked: %v", r)
		}
		d.metrics.RecordDelivery(delivery.Channel, string(delivery.Status))
	}()

	id, err := channel.Send(ctx, alert)
	if err != nil {
		delivery.Status = models.DeliveryStatusFailed
		delivery.Error = err.Error()
		d.log.WithError(err).WithField("contact_id", alert.Recipient.ID).Warn("alert delivery failed")
		return delivery
	}

	delivery.Status = models.DeliveryStatusSent
	delivery.MessageID = id
	return delivery
}

func (d *AlertDispatcher) report(ctx context.Context, result models.DispatchResult) {
	if result.Success() {
		d.post(ctx, notice("🚨 Emergency Alert Sent!",
			fmt.Sprintf("Your emergency contacts, police, and women helpline have been notified via %s.", result.Event.Method)))
	} else {
		d.post(ctx, destructiveNotice("Emergency Alert Failed",
			"None of your emergency contacts could be reached. Call emergency services directly."))
	}

	if c := result.Event.Location; c != nil {
		d.post(ctx, notice("📍 Location Shared", "Your location has been shared: "+c.String()))
	}

	if d.publish != nil {
		d.publish(websocket.TypeDispatchResult, toData(result))
	}
}

func (d *AlertDispatcher) composeMessage(event models.EmergencyEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "SafeHer emergency alert: I need help. Triggered by %s at %s.",
		event.Method, event.TriggeredAt.UTC().Format("15:04 MST, 02 Jan 2006"))

	if c := event.Location; c != nil {
		fmt.Fprintf(&b, " My location: %s", c.String())
		if d.linkFormat != "" {
			b.WriteString(" ")
			fmt.Fprintf(&b, d.linkFormat, c.Latitude, c.Longitude)
		}
		if c.Address != "" {
			fmt.Fprintf(&b, " (%s)", c.Address)
		}
	} else {
		b.WriteString(" My location is unavailable.")
	}

	return b.String()
}

func (d *AlertDispatcher) post(ctx context.Context, n models.Notice) {
	if d.notices != nil {
		d.notices.Post(ctx, n)
	}
}

func summarize(deliveries []models.Delivery) models.DispatchStatus {
	sent := 0
	for _, d := range deliveries {
		if d.Status == models.DeliveryStatusSent {
			sent++
		}
	}

	switch {
	case sent == 0:
		return models.DispatchStatusFailed
	case sent == len(deliveries):
		return models.DispatchStatusSent
	default:
		return models.DispatchStatusPartial
	}
}
