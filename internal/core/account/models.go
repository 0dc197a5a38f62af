package account

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is the account lifecycle status.
type Status string

const (
	StatusActive  Status = "ACTIVE"
	StatusBlocked Status = "BLOCKED"
	StatusClosed  Status = "CLOSED"
)

// ParseStatus converts a raw string into a Status.
func ParseStatus(value string) (Status, error) {
	switch s := Status(value); s {
	case StatusActive, StatusBlocked, StatusClosed:
		return s, nil
	}
	return "", fmt.Errorf("parsing status %q: %w", value, ErrInvalidStatus)
}

type Account struct {
	ID       uuid.UUID
	Number   string
	Agency   string
	Balance  decimal.Decimal
	Status   Status
	HolderID uuid.UUID
}
