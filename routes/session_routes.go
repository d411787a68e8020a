package routes

import (
	handlers "safeher/internal/handlers/shared"
	"safeher/internal/middleware"

	"github.com/gin-gonic/gin"
)

type Handlers struct {
	Session   *handlers.SessionHandler
	Contact   *handlers.ContactHandler
	Emergency *handlers.EmergencyHandler
	Voice     *handlers.VoiceHandler
	Chat      *handlers.ChatHandler
}

// SetupSessionRoutes sets up the per-session API
func SetupSessionRoutes(r *gin.RouterGroup, h Handlers) {
	r.POST("/sessions", h.Session.CreateSession)
	r.GET("/chat/quick-questions", h.Chat.GetQuickQuestions)

	sessions := r.Group("/sessions/:id")
	sessions.Use(middleware.SessionContextMiddleware())
	{
		sessions.GET("", h.Session.GetSession)
		sessions.DELETE("", h.Session.DeleteSession)
		sessions.GET("/notices", h.Session.GetNotices)

		// Contacts
		sessions.GET("/contacts", h.Contact.ListContacts)
		sessions.POST("/contacts", h.Contact.AddContact)
		sessions.PUT("/contacts/:contact_id", h.Contact.UpdateContact)
		sessions.DELETE("/contacts/:contact_id", h.Contact.RemoveContact)

		// Emergency
		sessions.POST("/emergency", h.Emergency.TriggerEmergency)
		sessions.GET("/emergency", h.Emergency.GetEmergencyStatus)
		sessions.POST("/location", h.Emergency.ReportLocation)
		sessions.GET("/location", h.Emergency.GetLocation)

		// Voice trigger
		sessions.GET("/voice", h.Voice.GetVoiceStatus)
		sessions.POST("/voice/start", h.Voice.StartVoice)
		sessions.POST("/voice/stop", h.Voice.StopVoice)
		sessions.POST("/voice/transcript", h.Voice.FeedTranscript)

		// Chat
		sessions.GET("/chat/messages", h.Chat.GetMessages)
		sessions.POST("/chat/messages", h.Chat.SendMessage)
	}
}
