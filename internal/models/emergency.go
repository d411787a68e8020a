package models

import (
	"time"
)

type TriggerMethod string
type DispatchStatus string
type DeliveryStatus string

const (
	TriggerMethodButton TriggerMethod = "button"
	TriggerMethodVoice  TriggerMethod = "voice"

	DispatchStatusSent    DispatchStatus = "sent"
	DispatchStatusPartial DispatchStatus = "partial"
	DispatchStatusFailed  DispatchStatus = "failed"

	DeliveryStatusSent   DeliveryStatus = "sent"
	DeliveryStatusFailed DeliveryStatus = "failed"
)

func (m TriggerMethod) Valid() bool {
	return m == TriggerMethodButton || m == TriggerMethodVoice
}

// EmergencyEvent lives for one alert cycle only.
type EmergencyEvent struct {
	ID          string        `json:"id"`
	SessionID   string        `json:"session_id"`
	Method      TriggerMethod `json:"method"`
	TriggeredAt time.Time     `json:"triggered_at"`
	Location    *Coordinate   `json:"location,omitempty"`
}

type Delivery struct {
	ContactID string         `json:"contact_id"`
	Name      string         `json:"name"`
	Phone     string         `json:"phone"`
	Channel   string         `json:"channel"`
	Status    DeliveryStatus `json:"status"`
	MessageID string         `json:"message_id,omitempty"`
	Error     string         `json:"error,omitempty"`
}

type DispatchResult struct {
	Event       EmergencyEvent `json:"event"`
	Status      DispatchStatus `json:"status"`
	Deliveries  []Delivery     `json:"deliveries"`
	CompletedAt time.Time      `json:"completed_at"`
}

// Success is true when at least one recipient was reached.
func (r DispatchResult) Success() bool {
	return r.Status == DispatchStatusSent || r.Status == DispatchStatusPartial
}
