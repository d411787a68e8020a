package handlers

import (
	"errors"
	"io"

	"safeher/internal/models"
	"safeher/internal/services"
	"safeher/internal/utils"

	"github.com/gin-gonic/gin"
)

type VoiceHandler struct {
	sessions services.SessionService
}

func NewVoiceHandler(sessions services.SessionService) *VoiceHandler {
	return &VoiceHandler{sessions: sessions}
}

type startVoiceRequest struct {
	Supported *bool `json:"supported"`
}

type transcriptRequest struct {
	Index int    `json:"index" binding:"min=0"`
	Text  string `json:"text"`
	Final bool   `json:"final"`
}

// StartVoice begins listening. A body of {"supported": false} reports a client without
// speech recognition.
func (h *VoiceHandler) StartVoice(c *gin.Context) {
	session, ok := loadSession(c, h.sessions)
	if !ok {
		return
	}

	var req startVoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}
	if req.Supported != nil {
		session.Speech.SetSupported(*req.Supported)
	}

	if err := session.Voice.Start(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, "Voice detection started", session.Voice.Status())
}

func (h *VoiceHandler) StopVoice(c *gin.Context) {
	session, ok := loadSession(c, h.sessions)
	if !ok {
		return
	}

	if err := session.Voice.Stop(); err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, "Voice detection stopped", session.Voice.Status())
}

// FeedTranscript accepts a recognition result from clients that do not hold a websocket
func (h *VoiceHandler) FeedTranscript(c *gin.Context) {
	session, ok := loadSession(c, h.sessions)
	if !ok {
		return
	}

	var req transcriptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}

	err := session.FeedSpeech(models.SpeechEvent{
		Kind:  models.SpeechEventResult,
		Index: req.Index,
		Text:  req.Text,
		Final: req.Final,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	utils.AcceptedResponse(c, "Transcript accepted", nil)
}

func (h *VoiceHandler) GetVoiceStatus(c *gin.Context) {
	session, ok := loadSession(c, h.sessions)
	if !ok {
		return
	}

	utils.SuccessResponse(c, "Voice status retrieved successfully", session.Voice.Status())
}
