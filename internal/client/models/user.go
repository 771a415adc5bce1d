// Package models defines client-side data models used by the wardrobe CLI.
package models

// ApplicationUser is the canonical user record kept by the user directory.
type ApplicationUser struct {
	RecordID      string `json:"recordId"`
	ExternalID    string `json:"externalId"`
	Email         string `json:"email"`
	FirstName     string `json:"firstName"`
	LastName      string `json:"lastName"`
	ImageURL      string `json:"imageUrl,omitempty"`
	EmailVerified bool   `json:"emailVerified"`
}

// CreateUserRequest is the payload for creating a directory record.
// ExternalID is the identity provider user id.
type CreateUserRequest struct {
	Email      string `json:"email"`
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	ExternalID string `json:"externalId"`
	ImageURL   string `json:"imageUrl,omitempty"`
}

// CachedUser is what the local auth cache exposes while signed in: the
// provider identity merged with the directory record.
type CachedUser struct {
	ID            string
	RecordID      string
	Email         string
	FirstName     string
	LastName      string
	ImageURL      string
	EmailVerified bool
}

// DisplayName returns "First Last", falling back to the e-mail.
func (u CachedUser) DisplayName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	case u.LastName != "":
		return u.LastName
	default:
		return u.Email
	}
}

// MergeDirectory returns u with the directory-owned fields taken from rec.
// The provider image is kept when the record has none.
func (u CachedUser) MergeDirectory(rec ApplicationUser) CachedUser {
	u.RecordID = rec.RecordID
	u.EmailVerified = rec.EmailVerified
	if rec.ImageURL != "" {
		u.ImageURL = rec.ImageURL
	}
	if u.FirstName == "" {
		u.FirstName = rec.FirstName
	}
	if u.LastName == "" {
		u.LastName = rec.LastName
	}
	if u.Email == "" {
		u.Email = rec.Email
	}
	return u
}
