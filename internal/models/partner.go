package models

import "time"

type PartnerStatus string

const (
	PartnerActive    PartnerStatus = "ACTIVE"
	PartnerSuspended PartnerStatus = "SUSPENDED"
)

// Partner is owned by the onboarding surface; the core only reads it.
type Partner struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	APIKey     string        `json:"-"`
	APISecret  string        `json:"-"`
	Status     PartnerStatus `json:"status"`
	WebhookURL string        `json:"webhook_url,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

func (p Partner) Active() bool { return p.Status == PartnerActive }

// PartnerIdentity is what the signature verifier attaches to a request.
type PartnerIdentity struct {
	ID   string
	Name string
}
