// Package ledger applies deposits and withdrawals against accounts and
// serves the transaction history. Every write runs as one unit of work:
// the account read, validation, balance update and transaction append
// commit or roll back together.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/diniznaomi/desafio-dev-api-rest/internal/core/account"
	"github.com/diniznaomi/desafio-dev-api-rest/internal/web"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Set of errors for ledger API.
var (
	ErrAccountNotFound    = errors.New("account not found")
	ErrAccountNotActive   = errors.New("account is not active")
	ErrInvalidAmount      = errors.New("amount must be at least 0.01")
	ErrInvalidType        = errors.New("invalid transaction type")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrDailyLimitExceeded = errors.New("daily withdrawal limit exceeded")
)

// businessTimeZone is the fixed timezone used for transaction
// timestamps, day boundaries and the history window, regardless of the
// caller timezone.
const businessTimeZone = "America/Sao_Paulo"

// historyMonths is how far back the history query reaches at most.
const historyMonths = 6

var (
	// dailyWithdrawalLimit caps the aggregate withdrawn per account
	// per business day.
	dailyWithdrawalLimit = decimal.NewFromInt(2000)

	// minAmount is the smallest accepted transaction amount.
	minAmount = decimal.New(1, -2)
)

// Store is used to persist ledger's data.
type Store interface {
	// ExecUnderTx executes the fn function under a transaction. If fn
	// returns an error the transaction is rolled back and the error is
	// returned.
	ExecUnderTx(ctx context.Context, fn func(tx Store) error) error

	QueryAccount(ctx context.Context, number string) (Account, error)

	// QueryAccountForUpdate reads the account row locked for the
	// duration of the surrounding transaction, serializing concurrent
	// writes to the same account.
	QueryAccountForUpdate(ctx context.Context, number string) (Account, error)

	UpdateBalance(ctx context.Context, accountID uuid.UUID, balance decimal.Decimal) error
	AddTransaction(ctx context.Context, t Transaction) error

	// WithdrawnBetween sums the WITHDRAWAL amounts of the account with
	// timestamps inside [from, to].
	WithdrawnBetween(ctx context.Context, number string, from, to time.Time) (decimal.Decimal, error)

	QueryTransactions(ctx context.Context, number string, start, end time.Time, typ Type) ([]Transaction, error)
}

// Locker serializes writes to the same account across service
// instances. The store row lock already serializes writers sharing one
// database; the locker covers deployments that want the contention kept
// out of the database.
type Locker interface {
	Lock(ctx context.Context, name string) (unlock func() error, err error)
}

// Core deals with ledger's business logic.
type Core struct {
	log    *slog.Logger
	store  Store
	locker Locker
	tz     *time.Location
}

type Option func(*Core)

// WithLocker makes the core take a per account lock around writes.
func WithLocker(l Locker) Option {
	return func(c *Core) { c.locker = l }
}

func NewCore(log *slog.Logger, store Store, opts ...Option) (*Core, error) {
	tz, err := time.LoadLocation(businessTimeZone)
	if err != nil {
		return nil, fmt.Errorf("loading business timezone: %w", err)
	}

	c := &Core{
		log:   log,
		store: store,
		tz:    tz,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Deposit adds amount to the account balance and records a DEPOSIT
// transaction. Only ACTIVE accounts accept deposits.
func (c *Core) Deposit(ctx context.Context, accountNumber string, amount decimal.Decimal) (Transaction, error) {
	if amount.LessThan(minAmount) {
		return Transaction{}, ErrInvalidAmount
	}

	t := Transaction{
		ID:            uuid.New(),
		AccountNumber: accountNumber,
		Amount:        amount,
		Type:          TypeDeposit,
		CreatedAt:     c.now(ctx),
	}

	unlock, err := c.lock(ctx, accountNumber)
	if err != nil {
		return Transaction{}, err
	}
	defer c.release(unlock, accountNumber)

	fn := func(tx Store) error {
		a, err := tx.QueryAccountForUpdate(ctx, accountNumber)
		if err != nil {
			return err
		}
		if a.Status != account.StatusActive {
			return ErrAccountNotActive
		}

		t.NewBalance = a.Balance.Add(amount)

		if err := tx.UpdateBalance(ctx, a.ID, t.NewBalance); err != nil {
			return fmt.Errorf("failed to update balance: %w", err)
		}
		if err := tx.AddTransaction(ctx, t); err != nil {
			return fmt.Errorf("failed to add transaction: %w", err)
		}

		return nil
	}

	if err := c.store.ExecUnderTx(ctx, fn); err != nil {
		return Transaction{}, err
	}

	return t, nil
}

// Withdraw subtracts amount from the account balance and records a
// WITHDRAWAL transaction. The account must be ACTIVE, the balance must
// cover the amount and the business day withdrawal total, this amount
// included, must stay within the daily limit. A failed check leaves the
// account untouched.
func (c *Core) Withdraw(ctx context.Context, accountNumber string, amount decimal.Decimal) (Transaction, error) {
	if amount.LessThan(minAmount) {
		return Transaction{}, ErrInvalidAmount
	}

	now := c.now(ctx)
	t := Transaction{
		ID:            uuid.New(),
		AccountNumber: accountNumber,
		Amount:        amount,
		Type:          TypeWithdrawal,
		CreatedAt:     now,
	}

	unlock, err := c.lock(ctx, accountNumber)
	if err != nil {
		return Transaction{}, err
	}
	defer c.release(unlock, accountNumber)

	fn := func(tx Store) error {
		a, err := tx.QueryAccountForUpdate(ctx, accountNumber)
		if err != nil {
			return err
		}
		if a.Status != account.StatusActive {
			return ErrAccountNotActive
		}
		if a.Balance.LessThan(amount) {
			return ErrInsufficientFunds
		}

		dayStart, dayEnd := dayBounds(now)
		withdrawn, err := tx.WithdrawnBetween(ctx, accountNumber, dayStart, dayEnd)
		if err != nil {
			return fmt.Errorf("failed to sum daily withdrawals: %w", err)
		}
		if withdrawn.Add(amount).GreaterThan(dailyWithdrawalLimit) {
			return ErrDailyLimitExceeded
		}

		t.NewBalance = a.Balance.Sub(amount)

		if err := tx.UpdateBalance(ctx, a.ID, t.NewBalance); err != nil {
			return fmt.Errorf("failed to update balance: %w", err)
		}
		if err := tx.AddTransaction(ctx, t); err != nil {
			return fmt.Errorf("failed to add transaction: %w", err)
		}

		return nil
	}

	if err := c.store.ExecUnderTx(ctx, fn); err != nil {
		return Transaction{}, err
	}

	return t, nil
}

// History returns the account transactions inside the effective window,
// newest first. The window floor is 6 months back from now; an earlier
// start date filter is silently clamped to it.
func (c *Core) History(ctx context.Context, accountNumber string, f Filter) (History, error) {
	if _, err := c.store.QueryAccount(ctx, accountNumber); err != nil {
		return History{}, err
	}

	now := c.now(ctx)
	floor := now.AddDate(0, -historyMonths, 0)

	start := floor
	if !f.StartDate.IsZero() {
		if s := startOfDay(f.StartDate.In(c.tz)); s.After(floor) {
			start = s
		}
	}

	var end time.Time
	if !f.EndDate.IsZero() {
		end = endOfDay(f.EndDate.In(c.tz))
	}

	ts, err := c.store.QueryTransactions(ctx, accountNumber, start, end, f.Type)
	if err != nil {
		return History{}, err
	}

	return History{
		Total:        len(ts),
		Transactions: ts,
	}, nil
}

// now is the request instant in the business timezone.
func (c *Core) now(ctx context.Context) time.Time {
	return web.GetTime(ctx).In(c.tz).Round(time.Microsecond)
}

func (c *Core) lock(ctx context.Context, accountNumber string) (func() error, error) {
	if c.locker == nil {
		return func() error { return nil }, nil
	}
	return c.locker.Lock(ctx, "account:"+accountNumber)
}

// release runs the unlock func. A failed release only gets logged: the
// write already committed and the lock expires on its own.
func (c *Core) release(unlock func() error, accountNumber string) {
	if err := unlock(); err != nil {
		c.log.Error("failed to release account lock", "account", accountNumber, "ERROR", err)
	}
}

func dayBounds(t time.Time) (time.Time, time.Time) {
	start := startOfDay(t)
	return start, endOfDay(t)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	return startOfDay(t).AddDate(0, 0, 1).Add(-time.Microsecond)
}
