package models

import "time"

type Account string

const (
	AccountUserSavings      Account = "USER_SAVINGS"
	AccountOperatorClearing Account = "OPERATOR_CLEARING"
)

// LedgerEntry is append-only. EventID references events.id.
type LedgerEntry struct {
	ID        string    `json:"id"`
	EventID   string    `json:"event_id"`
	UserID    string    `json:"user_id"`
	Account   Account   `json:"account"`
	Amount    int64     `json:"amount"`
	Currency  string    `json:"currency"`
	Reference string    `json:"reference"`
	CreatedAt time.Time `json:"created_at"`
}

// SumEntries returns the signed total of the entries.
func SumEntries(entries []LedgerEntry) int64 {
	var total int64
	for _, e := range entries {
		total += e.Amount
	}
	return total
}
