package handlers

import (
	"safeher/internal/services"
	"safeher/internal/utils"

	"github.com/gin-gonic/gin"
)

type SessionHandler struct {
	sessions services.SessionService
}

func NewSessionHandler(sessions services.SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// CreateSession opens a new session seeded with the protected contacts and the chat greeting
func (h *SessionHandler) CreateSession(c *gin.Context) {
	session, err := h.sessions.Create(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	utils.CreatedResponse(c, "Session created successfully", session.Summary())
}

func (h *SessionHandler) GetSession(c *gin.Context) {
	session, ok := loadSession(c, h.sessions)
	if !ok {
		return
	}

	utils.SuccessResponse(c, "Session retrieved successfully", session.Summary())
}

// DeleteSession discards all session state and stops voice capture
func (h *SessionHandler) DeleteSession(c *gin.Context) {
	if err := h.sessions.Close(c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, "Session closed successfully", nil)
}

func (h *SessionHandler) GetNotices(c *gin.Context) {
	session, ok := loadSession(c, h.sessions)
	if !ok {
		return
	}

	notices := session.Notices.History()
	utils.SuccessResponseWithMeta(c, "Notices retrieved successfully", notices, &utils.Meta{Total: len(notices)})
}

// RequireSession aborts with the not-found envelope unless the :id session exists
func (h *SessionHandler) RequireSession(c *gin.Context) {
	if !h.sessions.SessionExists(c.Param("id")) {
		utils.NotFoundResponse(c, "Session")
		c.Abort()
		return
	}
	c.Next()
}
