package model

import "time"

// Account is the persistent record of an authenticated identity.
// PageName is claimed at most once.
type Account struct {
	ID            string    `json:"id"`
	UID           string    `json:"uid"`
	Email         string    `json:"email"`
	DisplayName   string    `json:"displayName"`
	PhotoURL      string    `json:"photoUrl"`
	EmailVerified bool      `json:"emailVerified"`
	PageName      string    `json:"pageName,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// HasPage reports whether the account already claimed a page name.
func (a *Account) HasPage() bool {
	return a != nil && a.PageName != ""
}

// Principal is the verified identity behind a single request.
// It only ever lives in a request context.
type Principal struct {
	UID           string `json:"uid"`
	Email         string `json:"email,omitempty"`
	DisplayName   string `json:"displayName,omitempty"`
	PhotoURL      string `json:"photoUrl,omitempty"`
	EmailVerified bool   `json:"emailVerified"`
}

// NewAccountFromPrincipal seeds an account from identity claims.
func NewAccountFromPrincipal(id string, p *Principal) *Account {
	return &Account{
		ID:            id,
		UID:           p.UID,
		Email:         p.Email,
		DisplayName:   p.DisplayName,
		PhotoURL:      p.PhotoURL,
		EmailVerified: p.EmailVerified,
	}
}
