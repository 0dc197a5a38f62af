// Package account deals with the account registry: identity, status
// lifecycle and account number allocation.
package account

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"

	"github.com/diniznaomi/desafio-dev-api-rest/internal/core/holder"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Set of errors for account API.
var (
	ErrNotFound             = errors.New("account not found")
	ErrHolderNotFound       = errors.New("holder not found for provided cpf")
	ErrAlreadyExists        = errors.New("account already exists for this holder")
	ErrClosedAccountBlocked = errors.New("closed accounts cannot be blocked")
	ErrInvalidStatus        = errors.New("invalid account status")
	ErrNumberTaken          = errors.New("account number already taken")
)

// maxNumberRetries bounds the number draws when the store reports the
// drawn account number as taken. The store unique constraint is the
// final authority on uniqueness.
const maxNumberRetries = 5

// Store is used to persist account's data.
type Store interface {
	// ExecUnderTx executes the fn function under a transaction. If fn
	// returns an error the transaction is rolled back and the error is
	// returned.
	ExecUnderTx(ctx context.Context, fn func(tx Store) error) error

	Create(ctx context.Context, a Account) error

	// UpdateStatus writes only the status column. The balance belongs
	// to the ledger and must never be written from registry reads.
	UpdateStatus(ctx context.Context, accountID uuid.UUID, status Status) error

	QueryByNumber(ctx context.Context, number string) (Account, error)
	QueryByHolderID(ctx context.Context, holderID uuid.UUID) (Account, error)

	// The ForUpdate variants read the account row locked for the
	// duration of the surrounding transaction.
	QueryByNumberForUpdate(ctx context.Context, number string) (Account, error)
	QueryByHolderIDForUpdate(ctx context.Context, holderID uuid.UUID) (Account, error)
}

// Core deals with account's business logic.
type Core struct {
	store   Store
	holders *holder.Core
	agency  string
}

func NewCore(store Store, holders *holder.Core, agency string) *Core {
	return &Core{
		store:   store,
		holders: holders,
		agency:  agency,
	}
}

// Create opens an account for the holder with the given cpf. A holder
// with a CLOSED account gets it reactivated instead of a new one; a
// holder with any other account cannot open a second one.
func (c *Core) Create(ctx context.Context, cpf string) (Account, error) {
	h, err := c.holders.QueryByCPF(ctx, cpf)
	if err != nil {
		if errors.Is(err, holder.ErrNotFound) {
			return Account{}, ErrHolderNotFound
		}
		return Account{}, err
	}

	_, err = c.store.QueryByHolderID(ctx, h.ID)
	switch {
	case err == nil:
		return c.reactivate(ctx, h.ID)
	case !errors.Is(err, ErrNotFound):
		return Account{}, err
	}

	for i := 0; i < maxNumberRetries; i++ {
		a := Account{
			ID:       uuid.New(),
			Number:   drawNumber(),
			Agency:   c.agency,
			Balance:  decimal.Zero,
			Status:   StatusActive,
			HolderID: h.ID,
		}

		err := c.store.Create(ctx, a)
		switch {
		case err == nil:
			return a, nil
		case errors.Is(err, ErrAlreadyExists):
			// Lost the race against a concurrent create for the same
			// holder.
			return Account{}, ErrAlreadyExists
		case !errors.Is(err, ErrNumberTaken):
			return Account{}, fmt.Errorf("failed to create account: %w", err)
		}
	}

	return Account{}, fmt.Errorf("failed to allocate account number after %d draws: %w", maxNumberRetries, ErrNumberTaken)
}

func (c *Core) reactivate(ctx context.Context, holderID uuid.UUID) (Account, error) {
	var out Account

	fn := func(tx Store) error {
		a, err := tx.QueryByHolderIDForUpdate(ctx, holderID)
		if err != nil {
			return err
		}
		if a.Status != StatusClosed {
			return ErrAlreadyExists
		}

		if err := tx.UpdateStatus(ctx, a.ID, StatusActive); err != nil {
			return fmt.Errorf("failed to reactivate account: %w", err)
		}

		a.Status = StatusActive
		out = a
		return nil
	}

	if err := c.store.ExecUnderTx(ctx, fn); err != nil {
		return Account{}, err
	}

	return out, nil
}

// QueryByCPFOrNumber finds an account by an 11 digit cpf, resolved
// through the owning holder, or by its account number.
func (c *Core) QueryByCPFOrNumber(ctx context.Context, value string) (Account, error) {
	if !holder.IsCPF(value) {
		return c.store.QueryByNumber(ctx, value)
	}

	h, err := c.holders.QueryByCPF(ctx, value)
	if err != nil {
		if errors.Is(err, holder.ErrNotFound) {
			return Account{}, ErrNotFound
		}
		return Account{}, err
	}

	return c.store.QueryByHolderID(ctx, h.ID)
}

// UpdateStatus moves the account to newStatus. Moving to the current
// status is a no-op success. A CLOSED account can only be reactivated,
// never blocked. The read and write run under one transaction with the
// row locked, so a concurrent ledger write cannot slip in between.
func (c *Core) UpdateStatus(ctx context.Context, number string, newStatus Status) error {
	fn := func(tx Store) error {
		a, err := tx.QueryByNumberForUpdate(ctx, number)
		if err != nil {
			return err
		}

		if a.Status == StatusClosed && newStatus == StatusBlocked {
			return ErrClosedAccountBlocked
		}
		if a.Status == newStatus {
			return nil
		}

		if err := tx.UpdateStatus(ctx, a.ID, newStatus); err != nil {
			return fmt.Errorf("failed to update account status: %w", err)
		}

		return nil
	}

	return c.store.ExecUnderTx(ctx, fn)
}

// drawNumber returns a random 6 digit account number candidate.
func drawNumber() string {
	return strconv.Itoa(100000 + rand.IntN(900000))
}
