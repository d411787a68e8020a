package handlers

import (
	"errors"
	"io"
	"time"

	"safeher/internal/models"
	"safeher/internal/services"
	"safeher/internal/utils"

	"github.com/gin-gonic/gin"
)

type EmergencyHandler struct {
	sessions services.SessionService
}

func NewEmergencyHandler(sessions services.SessionService) *EmergencyHandler {
	return &EmergencyHandler{sessions: sessions}
}

type triggerRequest struct {
	Method models.TriggerMethod `json:"method"`
}

type emergencyStatus struct {
	InProgress bool                   `json:"in_progress"`
	LastResult *models.DispatchResult `json:"last_result,omitempty"`
}

type locationReport struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Accuracy  float64  `json:"accuracy"`
	Error     string   `json:"error"`
}

// TriggerEmergency runs the SOS sequence and returns once every recipient was tried.
// An empty body means the SOS button.
func (h *EmergencyHandler) TriggerEmergency(c *gin.Context) {
	session, ok := loadSession(c, h.sessions)
	if !ok {
		return
	}

	req := triggerRequest{Method: models.TriggerMethodButton}
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}
	if req.Method == "" {
		req.Method = models.TriggerMethodButton
	}

	result, err := session.Dispatcher.TriggerEmergency(c.Request.Context(), req.Method)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, "Emergency alert dispatched", result)
}

func (h *EmergencyHandler) GetEmergencyStatus(c *gin.Context) {
	session, ok := loadSession(c, h.sessions)
	if !ok {
		return
	}

	utils.SuccessResponse(c, "Emergency status retrieved successfully", emergencyStatus{
		InProgress: session.Dispatcher.InProgress(),
		LastResult: session.Dispatcher.LastResult(),
	})
}

// ReportLocation stores a client position, or resolves a pending request as unavailable
// when the body carries an error.
func (h *EmergencyHandler) ReportLocation(c *gin.Context) {
	session, ok := loadSession(c, h.sessions)
	if !ok {
		return
	}

	var req locationReport
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}

	if req.Error != "" {
		session.Location.ReportFailure(req.Error)
		utils.SuccessResponse(c, "Location failure recorded", nil)
		return
	}
	if req.Latitude == nil || req.Longitude == nil {
		utils.ValidationErrorResponse(c, map[string]string{
			"latitude":  "is required",
			"longitude": "is required",
		})
		return
	}

	coord, err := session.Location.Report(c.Request.Context(), models.Coordinate{
		Latitude:  *req.Latitude,
		Longitude: *req.Longitude,
		Accuracy:  req.Accuracy,
		Timestamp: time.Now(),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, "Location updated successfully", coord)
}

func (h *EmergencyHandler) GetLocation(c *gin.Context) {
	session, ok := loadSession(c, h.sessions)
	if !ok {
		return
	}

	last := session.Location.Last()
	if last == nil {
		utils.SuccessResponse(c, "Location not available", models.LocationResult{Status: models.LocationStatusUnavailable})
		return
	}

	utils.SuccessResponse(c, "Location retrieved successfully", models.LocationResult{
		Status:     models.LocationStatusAvailable,
		Coordinate: last,
		Cached:     true,
	})
}
