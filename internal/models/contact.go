package models

import (
	"time"
)

const (
	RelationshipPolice   = "Police"
	RelationshipHelpline = "Helpline"
)

type Contact struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Phone        string    `json:"phone"`
	Email        string    `json:"email,omitempty"`
	Relationship string    `json:"relationship"`
	Protected    bool      `json:"protected"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ContactInput is the user-supplied part of a contact.
type ContactInput struct {
	Name         string `json:"name" validate:"notblank,max=100"`
	Phone        string `json:"phone" validate:"notblank,max=32,phone_number"`
	Email        string `json:"email" validate:"omitempty,email"`
	Relationship string `json:"relationship" validate:"max=50"`
}

// IsProtectedRelationship reports whether entries with this label can never be removed.
func IsProtectedRelationship(relationship string) bool {
	return relationship == RelationshipPolice || relationship == RelationshipHelpline
}

// IsAuthority is true for the police and helpline entries.
func (c Contact) IsAuthority() bool {
	return IsProtectedRelationship(c.Relationship)
}
