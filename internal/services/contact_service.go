package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"safeher/internal/config"
	"safeher/internal/models"
	"safeher/internal/utils"
	"safeher/internal/validators"
	"safeher/pkg/logger"
	"safeher/pkg/metrics"

	"github.com/google/uuid"
)

// ContactRegistry is the ordered list of people and services alerted in an emergency.
type ContactRegistry struct {
	mu        sync.RWMutex
	sessionID string
	contacts  []models.Contact
	notices   NoticeSink
	metrics   *metrics.Metrics
	log       *logger.Logger
	now       func() time.Time
}

func NewContactRegistry(sessionID string, seed []config.ProtectedContact, notices NoticeSink, m *metrics.Metrics, log *logger.Logger) *ContactRegistry {
	r := &ContactRegistry{
		sessionID: sessionID,
		notices:   notices,
		metrics:   m,
		log:       log.WithSessionID(sessionID).WithField("component", "contacts"),
		now:       time.Now,
	}

	created := r.now()
	for _, p := range seed {
		r.contacts = append(r.contacts, models.Contact{
			ID:           uuid.New().String(),
			Name:         p.Name,
			Phone:        p.Phone,
			Relationship: p.Relationship,
			Protected:    models.IsProtectedRelationship(p.Relationship),
			CreatedAt:    created,
			UpdatedAt:    created,
		})
	}

	return r
}

// Add appends a contact. Name and phone are required; nothing is stored on failure.
func (r *ContactRegistry) Add(ctx context.Context, input models.ContactInput) (models.Contact, error) {
	input = normalizeContactInput(input)
	if err := validateContactInput(input); err != nil {
		r.rejected(ctx, "add", err)
		return models.Contact{}, err
	}

	now := r.now()
	contact := models.Contact{
		ID:           uuid.New().String(),
		Name:         input.Name,
		Phone:        input.Phone,
		Email:        input.Email,
		Relationship: input.Relationship,
		Protected:    models.IsProtectedRelationship(input.Relationship),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	r.mu.Lock()
	r.contacts = append(r.contacts, contact)
	r.mu.Unlock()

	r.metrics.RecordContactOperation("add", "ok")
	r.log.WithFields(map[string]interface{}{
		"contact_id": contact.ID,
		"phone":      utils.MaskPhone(contact.Phone),
	}).Info("contact added")
	r.post(ctx, notice("Contact Added", fmt.Sprintf("%s has been added to your emergency contacts", contact.Name)))

	return contact, nil
}

// Update replaces the user-supplied fields of a non-protected contact.
func (r *ContactRegistry) Update(ctx context.Context, id string, input models.ContactInput) (models.Contact, error) {
	input = normalizeContactInput(input)
	if err := validateContactInput(input); err != nil {
		r.rejected(ctx, "update", err)
		return models.Contact{}, err
	}

	r.mu.Lock()
	i := r.indexOf(id)
	if i < 0 {
		r.mu.Unlock()
		r.metrics.RecordContactOperation("update", "not_found")
		return models.Contact{}, ErrContactNotFound
	}
	if r.contacts[i].Protected || models.IsProtectedRelationship(input.Relationship) {
		r.mu.Unlock()
		r.metrics.RecordContactOperation("update", "protected")
		r.post(ctx, destructiveNotice("Contact Protected", "Police and helpline contacts cannot be changed"))
		return models.Contact{}, ErrProtectedContact
	}

	c := &r.contacts[i]
	c.Name = input.Name
	c.Phone = input.Phone
	c.Email = input.Email
	c.Relationship = input.Relationship
	c.UpdatedAt = r.now()
	updated := *c
	r.mu.Unlock()

	r.metrics.RecordContactOperation("update", "ok")
	r.post(ctx, notice("Contact Updated", fmt.Sprintf("%s has been updated", updated.Name)))

	return updated, nil
}

// Remove deletes a contact. Police and helpline entries always stay.
func (r *ContactRegistry) Remove(ctx context.Context, id string) error {
	r.mu.Lock()
	i := r.indexOf(id)
	if i < 0 {
		r.mu.Unlock()
		r.metrics.RecordContactOperation("remove", "not_found")
		return ErrContactNotFound
	}
	removed := r.contacts[i]
	if removed.Protected {
		r.mu.Unlock()
		r.metrics.RecordContactOperation("remove", "protected")
		r.post(ctx, destructiveNotice("Contact Protected", fmt.Sprintf("%s cannot be removed from your emergency contacts", removed.Name)))
		return ErrProtectedContact
	}
	r.contacts = append(r.contacts[:i:i], r.contacts[i+1:]...)
	r.mu.Unlock()

	r.metrics.RecordContactOperation("remove", "ok")
	r.log.WithField("contact_id", id).Info("contact removed")
	r.post(ctx, notice("Contact Removed", fmt.Sprintf("%s has been removed from your emergency contacts", removed.Name)))

	return nil
}

func (r *ContactRegistry) Get(id string) (models.Contact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i := r.indexOf(id)
	if i < 0 {
		return models.Contact{}, ErrContactNotFound
	}
	return r.contacts[i], nil
}

// List returns a copy of the contacts in insertion order.
func (r *ContactRegistry) List() []models.Contact {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Contact, len(r.contacts))
	copy(out, r.contacts)
	return out
}

func (r *ContactRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.contacts)
}

// indexOf expects the lock to be held.
func (r *ContactRegistry) indexOf(id string) int {
	for i := range r.contacts {
		if r.contacts[i].ID == id {
			return i
		}
	}
	return -1
}

func (r *ContactRegistry) rejected(ctx context.Context, operation string, err error) {
	r.metrics.RecordContactOperation(operation, "invalid")

	var verr *ValidationError
	if errors.As(err, &verr) && (verr.Has("name") || verr.Has("phone")) {
		r.post(ctx, destructiveNotice("Missing Information", "Please provide at least name and phone number"))
		return
	}
	r.post(ctx, destructiveNotice("Invalid Information", "Please check the contact details and try again"))
}

func (r *ContactRegistry) post(ctx context.Context, n models.Notice) {
	if r.notices != nil {
		r.notices.Post(ctx, n)
	}
}

func normalizeContactInput(input models.ContactInput) models.ContactInput {
	return models.ContactInput{
		Name:         utils.SanitizeString(input.Name),
		Phone:        utils.SanitizeString(input.Phone),
		Email:        strings.ToLower(utils.SanitizeString(input.Email)),
		Relationship: utils.SanitizeString(input.Relationship),
	}
}

func validateContactInput(input models.ContactInput) error {
	if errs := validators.ValidateContactInput(&input); errs != nil {
		return &ValidationError{Fields: errs.Fields()}
	}
	return nil
}
