package models

import (
	"time"
)

type NoticeSeverity string

const (
	NoticeSeverityDefault     NoticeSeverity = "default"
	NoticeSeverityDestructive NoticeSeverity = "destructive"
)

// Notice is an ephemeral, non-blocking message shown to the user.
type Notice struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Severity    NoticeSeverity `json:"severity"`
	CreatedAt   time.Time      `json:"created_at"`
}
