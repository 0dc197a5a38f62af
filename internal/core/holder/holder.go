// Package holder deals with account holder registration.
package holder

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/google/uuid"
)

// Set of errors for holder API.
var (
	ErrNotFound       = errors.New("holder not found")
	ErrInvalidCPF     = errors.New("cpf must be exactly 11 digits")
	ErrCPFRegistered  = errors.New("cpf already registered")
	ErrHasOpenAccount = errors.New("holder still has an open account")
)

// Store is used to persist holder's data.
type Store interface {
	// ExecUnderTx executes the fn function under a transaction. If fn
	// returns an error the transaction is rolled back and the error is
	// returned.
	ExecUnderTx(ctx context.Context, fn func(tx Store) error) error

	Create(ctx context.Context, h Holder) error
	Delete(ctx context.Context, holderID uuid.UUID) error
	QueryByID(ctx context.Context, holderID uuid.UUID) (Holder, error)
	QueryByCPF(ctx context.Context, cpf string) (Holder, error)

	// QueryByIDForUpdate reads the holder row locked for the duration
	// of the surrounding transaction.
	QueryByIDForUpdate(ctx context.Context, holderID uuid.UUID) (Holder, error)

	// CountOpenAccounts returns how many non closed accounts the
	// holder owns.
	CountOpenAccounts(ctx context.Context, holderID uuid.UUID) (int, error)
}

// Core deals with holder's business logic.
type Core struct {
	store Store
}

func NewCore(store Store) *Core {
	return &Core{store: store}
}

func (c *Core) Create(ctx context.Context, nh NewHolder) (Holder, error) {
	if !IsCPF(nh.CPF) {
		return Holder{}, ErrInvalidCPF
	}

	h := Holder{
		ID:       uuid.New(),
		FullName: nh.FullName,
		CPF:      nh.CPF,
	}

	if err := c.store.Create(ctx, h); err != nil {
		return Holder{}, fmt.Errorf("failed to create holder: %w", err)
	}

	return h, nil
}

// Delete removes a holder. A holder that still owns an ACTIVE or
// BLOCKED account cannot be deleted; a CLOSED account is removed
// together with the holder. The check and the delete run under one
// transaction with the holder row locked, so an account opened
// concurrently either lands before the check or waits out the delete.
func (c *Core) Delete(ctx context.Context, holderID uuid.UUID) error {
	fn := func(tx Store) error {
		if _, err := tx.QueryByIDForUpdate(ctx, holderID); err != nil {
			return err
		}

		open, err := tx.CountOpenAccounts(ctx, holderID)
		if err != nil {
			return fmt.Errorf("failed to count open accounts: %w", err)
		}
		if open > 0 {
			return ErrHasOpenAccount
		}

		return tx.Delete(ctx, holderID)
	}

	return c.store.ExecUnderTx(ctx, fn)
}

func (c *Core) QueryByCPF(ctx context.Context, cpf string) (Holder, error) {
	if !IsCPF(cpf) {
		return Holder{}, ErrInvalidCPF
	}
	return c.store.QueryByCPF(ctx, cpf)
}

var reCPF = regexp.MustCompile(`^\d{11}$`)

// IsCPF reports whether value looks like a national identifier.
func IsCPF(value string) bool {
	return reCPF.MatchString(value)
}
