package entity

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/yape-tracker/constants"
)

// Transaction represents a persisted Yape transaction for data transfer between layers.
type Transaction struct {
	ID              int64           `json:"id"`
	TransactionType string          `json:"transaction_type"`
	Origin          string          `json:"origin"`
	Destination     string          `json:"destination"`
	Amount          decimal.Decimal `json:"amount"`
	Message         *string         `json:"message,omitempty"`
	OperationDate   time.Time       `json:"operation_date"`
	PhoneNumber     *string         `json:"phone_number,omitempty"`
	Status          *string         `json:"status,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// IsReceived reports whether the transaction is incoming money.
func (t *Transaction) IsReceived() bool {
	return constants.IsReceived(t.TransactionType)
}

// IsPaid reports whether the transaction is outgoing money.
func (t *Transaction) IsPaid() bool {
	return constants.IsPaid(t.TransactionType)
}

// FormattedAmount renders the amount in soles, e.g. "S/ 25.50".
func (t *Transaction) FormattedAmount() string {
	return "S/ " + t.Amount.StringFixed(2)
}

// TransactionFilter narrows transaction listings. Zero values mean "no filter".
type TransactionFilter struct {
	TransactionType string           `json:"transaction_type,omitempty"`
	StartDate       *time.Time       `json:"start_date,omitempty"`
	EndDate         *time.Time       `json:"end_date,omitempty"`
	MinAmount       *decimal.Decimal `json:"min_amount,omitempty"`
	MaxAmount       *decimal.Decimal `json:"max_amount,omitempty"`
	Search          string           `json:"search,omitempty"`
	Page            int              `json:"page,omitempty"`
	Limit           int              `json:"limit,omitempty"`
}

// Pagination defaults for TransactionFilter.
const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// Normalize clamps page and limit into their valid ranges.
func (f TransactionFilter) Normalize() TransactionFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit <= 0 {
		f.Limit = DefaultPageLimit
	}
	if f.Limit > MaxPageLimit {
		f.Limit = MaxPageLimit
	}
	return f
}

// Offset is the number of rows skipped for the filter's page.
func (f TransactionFilter) Offset() int {
	n := f.Normalize()
	return (n.Page - 1) * n.Limit
}

// TransactionStatistics aggregates all persisted transactions.
type TransactionStatistics struct {
	TotalTransactions int64           `json:"total_transactions"`
	ReceivedCount     int64           `json:"received_count"`
	PaidCount         int64           `json:"paid_count"`
	TotalReceived     decimal.Decimal `json:"total_received"`
	TotalPaid         decimal.Decimal `json:"total_paid"`
	Balance           decimal.Decimal `json:"balance"`
}
