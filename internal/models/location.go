package models

import (
	"fmt"
	"time"
)

type LocationStatus string

const (
	LocationStatusAvailable   LocationStatus = "available"
	LocationStatusUnavailable LocationStatus = "unavailable"
	LocationStatusError       LocationStatus = "error"
)

type Coordinate struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Accuracy  float64   `json:"accuracy,omitempty"`
	Address   string    `json:"address,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// String renders the coordinate the way it is shown in alerts.
func (c Coordinate) String() string {
	return fmt.Sprintf("%.6f, %.6f", c.Latitude, c.Longitude)
}

// LocationResult is the outcome of one acquisition attempt. Coordinate is nil unless
// Status is LocationStatusAvailable.
type LocationResult struct {
	Status     LocationStatus `json:"status"`
	Coordinate *Coordinate    `json:"coordinate,omitempty"`
	Reason     string         `json:"reason,omitempty"`
	Cached     bool           `json:"cached"`
}

func (r LocationResult) Available() bool {
	return r.Status == LocationStatusAvailable && r.Coordinate != nil
}
