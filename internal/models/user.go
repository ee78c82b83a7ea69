package models

import (
	"time"
)

type UserStatus string

const (
	UserPending   UserStatus = "PENDING"
	UserActive    UserStatus = "ACTIVE"
	UserSuspended UserStatus = "SUSPENDED"
)

type User struct {
	ID          string     `json:"id"`
	PhoneNumber string     `json:"phone_number"`
	Verified    bool       `json:"verified"`
	Status      UserStatus `json:"status"`
	AutoSave    bool       `json:"auto_save"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type LinkSource string

const (
	LinkRegistered LinkSource = "REGISTERED"
	LinkInferred   LinkSource = "INFERRED"
)

type PartnerUser struct {
	PartnerID   string        `json:"partner_id"`
	PartnerName string        `json:"partner_name"`
	UserID      string        `json:"user_id"`
	PhoneNumber string        `json:"phone_number"`
	Source      LinkSource    `json:"source"`
	Status      PartnerStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
}

// Ineligibility returns the reason a user cannot receive automated savings
// for a partner, or "" when eligible. link may be nil when no link exists yet.
func (u User) Ineligibility(link *PartnerUser) string {
	switch {
	case u.Status != UserActive:
		return "user not active"
	case !u.Verified:
		return "user not verified"
	case !u.AutoSave:
		return "user not opted in to automated savings"
	case link != nil && link.Status != PartnerActive:
		return "user link suspended for partner"
	}
	return ""
}
