package ledger

import (
	"fmt"
	"time"

	"github.com/diniznaomi/desafio-dev-api-rest/internal/core/account"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Type is the transaction type.
type Type string

const (
	TypeDeposit    Type = "DEPOSIT"
	TypeWithdrawal Type = "WITHDRAWAL"
)

// ParseType converts a raw string into a Type.
func ParseType(value string) (Type, error) {
	switch t := Type(value); t {
	case TypeDeposit, TypeWithdrawal:
		return t, nil
	}
	return "", fmt.Errorf("parsing transaction type %q: %w", value, ErrInvalidType)
}

// Account is the ledger view of an account: just enough to validate
// and apply a transaction.
type Account struct {
	ID      uuid.UUID
	Number  string
	Balance decimal.Decimal
	Status  account.Status
}

// Transaction is an immutable ledger record. NewBalance is the account
// balance right after the transaction was applied.
type Transaction struct {
	ID            uuid.UUID
	AccountNumber string
	Amount        decimal.Decimal
	Type          Type
	NewBalance    decimal.Decimal
	CreatedAt     time.Time
}

// Filter narrows a history query. Zero value fields are ignored.
type Filter struct {
	StartDate time.Time
	EndDate   time.Time
	Type      Type
}

// History is the result of a transaction history query, newest first.
type History struct {
	Total        int
	Transactions []Transaction
}
