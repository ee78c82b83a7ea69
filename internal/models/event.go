package models

import "time"

type EventStatus string

const (
	EventReceived   EventStatus = "RECEIVED"
	EventProcessing EventStatus = "PROCESSING"
	EventProcessed  EventStatus = "PROCESSED"
	EventFailed     EventStatus = "FAILED"
)

const DefaultEventType = "BET_PLACED"

func (s EventStatus) Valid() bool {
	switch s {
	case EventReceived, EventProcessing, EventProcessed, EventFailed:
		return true
	}
	return false
}

func (s EventStatus) Terminal() bool {
	return s == EventProcessed || s == EventFailed
}

// CanTransition reports whether from -> to is an edge of the event state machine.
// The empty status stands for "not yet persisted".
func CanTransition(from, to EventStatus) bool {
	switch from {
	case "":
		return to == EventReceived || to == EventFailed
	case EventReceived:
		return to == EventProcessing
	case EventProcessing:
		return to == EventProcessed || to == EventFailed
	}
	return false
}

type Event struct {
	ID            string      `json:"id"`
	PartnerName   string      `json:"partner_name"`
	EventID       string      `json:"event_id"`
	UserID        *string     `json:"user_id,omitempty"`
	Phone         string      `json:"phone"`
	Type          string      `json:"type"`
	Amount        int64       `json:"amount"`
	Status        EventStatus `json:"status"`
	FailureReason string      `json:"failure_reason,omitempty"`
	SavingsAmount int64       `json:"savings_amount"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// JobKey is the deterministic queue identity for processing this event.
func (e Event) JobKey() string { return EventJobKey(e.PartnerName, e.EventID) }

func EventJobKey(partnerName, eventID string) string {
	return partnerName + "-" + eventID
}

func WebhookJobKey(partnerName, eventID string) string {
	return "webhook-" + partnerName + "-" + eventID
}

type EventFilter struct {
	PartnerName string
	UserID      string
	Status      EventStatus
	Limit       int
	Offset      int
}
