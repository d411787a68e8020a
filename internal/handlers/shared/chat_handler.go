package handlers

import (
	"safeher/internal/models"
	"safeher/internal/services"
	"safeher/internal/utils"

	"github.com/gin-gonic/gin"
)

type ChatHandler struct {
	sessions services.SessionService
}

func NewChatHandler(sessions services.SessionService) *ChatHandler {
	return &ChatHandler{sessions: sessions}
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

type sendMessageResponse struct {
	Message models.Message  `json:"message"`
	Reply   *models.Message `json:"reply,omitempty"`
	Pending bool            `json:"pending"`
}

func (h *ChatHandler) GetMessages(c *gin.Context) {
	session, ok := loadSession(c, h.sessions)
	if !ok {
		return
	}

	messages := session.Chat.Messages()
	utils.SuccessResponseWithMeta(c, "Messages retrieved successfully", messages, &utils.Meta{Total: len(messages)})
}

// SendMessage appends the user message. The reply is pushed over the websocket; with
// ?wait=true the request blocks until it is available instead.
func (h *ChatHandler) SendMessage(c *gin.Context) {
	session, ok := loadSession(c, h.sessions)
	if !ok {
		return
	}

	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}

	msg, replies, err := session.Chat.Send(c.Request.Context(), req.Content)
	if err != nil {
		respondError(c, err)
		return
	}

	if c.Query("wait") != "true" {
		utils.AcceptedResponse(c, "Message sent", sendMessageResponse{Message: msg, Pending: true})
		return
	}

	select {
	case reply, ok := <-replies:
		resp := sendMessageResponse{Message: msg}
		if ok {
			resp.Reply = &reply
		}
		utils.SuccessResponse(c, "Message sent", resp)
	case <-c.Request.Context().Done():
		utils.AcceptedResponse(c, "Message sent", sendMessageResponse{Message: msg, Pending: true})
	}
}

func (h *ChatHandler) GetQuickQuestions(c *gin.Context) {
	utils.SuccessResponse(c, "Quick questions retrieved successfully", services.QuickQuestions())
}
