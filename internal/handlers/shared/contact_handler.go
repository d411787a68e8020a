package handlers

import (
	"safeher/internal/models"
	"safeher/internal/services"
	"safeher/internal/utils"

	"github.com/gin-gonic/gin"
)

type ContactHandler struct {
	sessions services.SessionService
}

func NewContactHandler(sessions services.SessionService) *ContactHandler {
	return &ContactHandler{sessions: sessions}
}

func (h *ContactHandler) ListContacts(c *gin.Context) {
	session, ok := loadSession(c, h.sessions)
	if !ok {
		return
	}

	contacts := session.Contacts.List()
	utils.SuccessResponseWithMeta(c, "Contacts retrieved successfully", contacts, &utils.Meta{Total: len(contacts)})
}

// AddContact adds an emergency contact. Name and phone are required
func (h *ContactHandler) AddContact(c *gin.Context) {
	session, ok := loadSession(c, h.sessions)
	if !ok {
		return
	}

	var input models.ContactInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}

	contact, err := session.Contacts.Add(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.CreatedResponse(c, "Contact added successfully", contact)
}

func (h *ContactHandler) UpdateContact(c *gin.Context) {
	session, ok := loadSession(c, h.sessions)
	if !ok {
		return
	}

	var input models.ContactInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}

	contact, err := session.Contacts.Update(c.Request.Context(), c.Param("contact_id"), input)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, "Contact updated successfully", contact)
}

// RemoveContact deletes a contact. Police and helpline entries are refused with 403
func (h *ContactHandler) RemoveContact(c *gin.Context) {
	session, ok := loadSession(c, h.sessions)
	if !ok {
		return
	}

	if err := session.Contacts.Remove(c.Request.Context(), c.Param("contact_id")); err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, "Contact removed successfully", nil)
}
