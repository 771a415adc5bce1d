// Package models defines the records stored by the directory service.
package models

import "time"

// User is an application user record. ExternalID is the identity provider
// user id; ID is the record id handed out as recordId.
type User struct {
	ID            string    `json:"recordId"`
	ExternalID    string    `json:"externalId"`
	Email         string    `json:"email"`
	FirstName     string    `json:"firstName"`
	LastName      string    `json:"lastName"`
	ImageURL      string    `json:"imageUrl,omitempty"`
	EmailVerified bool      `json:"emailVerified"`
	CreatedAt     time.Time `json:"createdAt"`
}
