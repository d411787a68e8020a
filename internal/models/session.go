package models

import (
	"time"
)

// SessionSummary is the view of a session returned by the API.
type SessionSummary struct {
	ID                 string          `json:"id"`
	CreatedAt          time.Time       `json:"created_at"`
	ContactCount       int             `json:"contact_count"`
	MessageCount       int             `json:"message_count"`
	Location           *Coordinate     `json:"location,omitempty"`
	Voice              VoiceState      `json:"voice_state"`
	DispatchInProgress bool            `json:"dispatch_in_progress"`
	LastDispatch       *DispatchResult `json:"last_dispatch,omitempty"`
}
