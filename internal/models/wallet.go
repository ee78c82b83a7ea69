package models

import "time"

type Wallet struct {
	UserID                string    `json:"user_id"`
	Balance               int64     `json:"balance"`
	LastProcessedLedgerID *string   `json:"last_processed_ledger_id,omitempty"`
	UpdatedAt             time.Time `json:"updated_at"`
}
