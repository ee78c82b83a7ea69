package queue

import "github.com/baharkarakas/betsave-core/internal/models"

// EventJob asks the event processor to handle one ingested event.
type EventJob struct {
	EventID     string `json:"eventId"`
	PartnerName string `json:"partnerName"`
}

// Outcome is the processing result carried to the webhook queue.
type Outcome struct {
	Status        models.EventStatus `json:"status"`
	SavingsAmount int64              `json:"savingsAmount,omitempty"`
	Reason        string             `json:"reason,omitempty"`
}

// WebhookJob asks the notifier to tell a partner about an outcome.
type WebhookJob struct {
	EventID     string  `json:"eventId"`
	PartnerName string  `json:"partnerName"`
	Result      Outcome `json:"result"`
}
