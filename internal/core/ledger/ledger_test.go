package ledger_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/diniznaomi/desafio-dev-api-rest/internal/core/account"
	"github.com/diniznaomi/desafio-dev-api-rest/internal/core/account/store/accountdb"
	"github.com/diniznaomi/desafio-dev-api-rest/internal/core/holder"
	"github.com/diniznaomi/desafio-dev-api-rest/internal/core/holder/store/holderdb"
	"github.com/diniznaomi/desafio-dev-api-rest/internal/core/ledger"
	"github.com/diniznaomi/desafio-dev-api-rest/internal/core/ledger/store/ledgerdb"
	"github.com/diniznaomi/desafio-dev-api-rest/internal/data/dbtest"
	"github.com/diniznaomi/desafio-dev-api-rest/internal/web"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type testBank struct {
	log      *slog.Logger
	db       *pgxpool.Pool
	holders  *holder.Core
	accounts *account.Core
	ledger   *ledger.Core
}

func newTestBank(t *testing.T) *testBank {
	t.Helper()

	log, database, teardown := dbtest.NewUnit(t, dbtest.WithMigrations())
	t.Cleanup(teardown)

	holders := holder.NewCore(holderdb.NewStore(log, database))
	accounts := account.NewCore(accountdb.NewStore(log, database), holders, "0001")
	l, err := ledger.NewCore(log, ledgerdb.NewStore(log, database))
	if err != nil {
		t.Fatalf("creating ledger core: %v", err)
	}

	return &testBank{
		log:      log,
		db:       database,
		holders:  holders,
		accounts: accounts,
		ledger:   l,
	}
}

func (b *testBank) newAccount(t *testing.T, cpf string) account.Account {
	t.Helper()

	ctx := context.Background()
	if _, err := b.holders.Create(ctx, holder.NewHolder{FullName: "Maria Silva", CPF: cpf}); err != nil {
		t.Fatalf("creating holder: %v", err)
	}
	a, err := b.accounts.Create(ctx, cpf)
	if err != nil {
		t.Fatalf("creating account: %v", err)
	}
	return a
}

// ctxAt pins the request clock, the same way the web middleware does.
func ctxAt(now time.Time) context.Context {
	return web.SetValues(context.Background(), &web.Values{Now: now})
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestDepositAndWithdraw(t *testing.T) {
	bank := newTestBank(t)
	a := bank.newAccount(t, "12345678901")
	ctx := ctxAt(time.Now().UTC())

	dt, err := bank.ledger.Deposit(ctx, a.Number, dec("100.00"))
	if err != nil {
		t.Fatalf("depositing: %v", err)
	}
	if dt.Type != ledger.TypeDeposit {
		t.Fatalf("got type %v, want %v", dt.Type, ledger.TypeDeposit)
	}
	if !dt.NewBalance.Equal(dec("100.00")) {
		t.Fatalf("got newBalance %v, want 100.00", dt.NewBalance)
	}

	wt, err := bank.ledger.Withdraw(ctx, a.Number, dec("30.00"))
	if err != nil {
		t.Fatalf("withdrawing: %v", err)
	}
	if !wt.NewBalance.Equal(dec("70.00")) {
		t.Fatalf("got newBalance %v, want 70.00", wt.NewBalance)
	}

	if _, err := bank.ledger.Withdraw(ctx, a.Number, dec("2000.00")); !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("withdrawing more than balance: got %v, want %v", err, ledger.ErrInsufficientFunds)
	}

	got, err := bank.accounts.QueryByCPFOrNumber(context.Background(), a.Number)
	if err != nil {
		t.Fatalf("querying account: %v", err)
	}
	if !got.Balance.Equal(dec("70.00")) {
		t.Fatalf("got balance %v, want 70.00", got.Balance)
	}

	// The balance must match the newBalance of the most recent
	// transaction.
	h, err := bank.ledger.History(ctx, a.Number, ledger.Filter{})
	if err != nil {
		t.Fatalf("querying history: %v", err)
	}
	if h.Total != 2 {
		t.Fatalf("got %d transactions, want 2", h.Total)
	}
	if !h.Transactions[0].NewBalance.Equal(got.Balance) {
		t.Fatalf("latest newBalance %v should equal balance %v",
			h.Transactions[0].NewBalance, got.Balance)
	}
}

func TestInvalidAmount(t *testing.T) {
	bank := newTestBank(t)
	a := bank.newAccount(t, "12345678901")
	ctx := ctxAt(time.Now().UTC())

	for _, amount := range []string{"0", "-10", "0.001"} {
		if _, err := bank.ledger.Deposit(ctx, a.Number, dec(amount)); !errors.Is(err, ledger.ErrInvalidAmount) {
			t.Errorf("deposit of %s: got %v, want %v", amount, err, ledger.ErrInvalidAmount)
		}
		if _, err := bank.ledger.Withdraw(ctx, a.Number, dec(amount)); !errors.Is(err, ledger.ErrInvalidAmount) {
			t.Errorf("withdraw of %s: got %v, want %v", amount, err, ledger.ErrInvalidAmount)
		}
	}
}

func TestNonActiveAccount(t *testing.T) {
	bank := newTestBank(t)
	a := bank.newAccount(t, "12345678901")
	ctx := ctxAt(time.Now().UTC())

	if _, err := bank.ledger.Deposit(ctx, a.Number, dec("50.00")); err != nil {
		t.Fatalf("depositing: %v", err)
	}

	for _, status := range []account.Status{account.StatusBlocked, account.StatusClosed} {
		if err := bank.accounts.UpdateStatus(context.Background(), a.Number, status); err != nil {
			t.Fatalf("setting status %v: %v", status, err)
		}

		if _, err := bank.ledger.Deposit(ctx, a.Number, dec("10.00")); !errors.Is(err, ledger.ErrAccountNotActive) {
			t.Fatalf("depositing to %v account: got %v, want %v", status, err, ledger.ErrAccountNotActive)
		}
		if _, err := bank.ledger.Withdraw(ctx, a.Number, dec("10.00")); !errors.Is(err, ledger.ErrAccountNotActive) {
			t.Fatalf("withdrawing from %v account: got %v, want %v", status, err, ledger.ErrAccountNotActive)
		}
	}

	got, err := bank.accounts.QueryByCPFOrNumber(context.Background(), a.Number)
	if err != nil {
		t.Fatalf("querying account: %v", err)
	}
	if !got.Balance.Equal(dec("50.00")) {
		t.Fatalf("balance should be untouched: got %v, want 50.00", got.Balance)
	}
}

func TestUnknownAccount(t *testing.T) {
	bank := newTestBank(t)
	ctx := ctxAt(time.Now().UTC())

	if _, err := bank.ledger.Deposit(ctx, "000000", dec("10.00")); !errors.Is(err, ledger.ErrAccountNotFound) {
		t.Fatalf("depositing to unknown account: got %v, want %v", err, ledger.ErrAccountNotFound)
	}
	if _, err := bank.ledger.History(ctx, "000000", ledger.Filter{}); !errors.Is(err, ledger.ErrAccountNotFound) {
		t.Fatalf("querying unknown account history: got %v, want %v", err, ledger.ErrAccountNotFound)
	}
}

func TestDailyWithdrawalLimit(t *testing.T) {
	bank := newTestBank(t)
	a := bank.newAccount(t, "12345678901")

	day1 := time.Date(2024, 3, 12, 15, 0, 0, 0, time.UTC)
	ctx := ctxAt(day1)

	if _, err := bank.ledger.Deposit(ctx, a.Number, dec("5000.00")); err != nil {
		t.Fatalf("depositing: %v", err)
	}

	for _, amount := range []string{"800.00", "800.00"} {
		if _, err := bank.ledger.Withdraw(ctx, a.Number, dec(amount)); err != nil {
			t.Fatalf("withdrawing %s: %v", amount, err)
		}
	}

	// 1600 withdrawn today: 500 breaks the 2000 cap, 400 fits exactly.
	if _, err := bank.ledger.Withdraw(ctx, a.Number, dec("500.00")); !errors.Is(err, ledger.ErrDailyLimitExceeded) {
		t.Fatalf("withdrawing over the cap: got %v, want %v", err, ledger.ErrDailyLimitExceeded)
	}

	wt, err := bank.ledger.Withdraw(ctx, a.Number, dec("400.00"))
	if err != nil {
		t.Fatalf("withdrawing up to the cap: %v", err)
	}
	if !wt.NewBalance.Equal(dec("3000.00")) {
		t.Fatalf("got newBalance %v, want 3000.00", wt.NewBalance)
	}

	// The cap is per business day, so the next day starts from zero.
	day2 := day1.AddDate(0, 0, 1)
	if _, err := bank.ledger.Withdraw(ctxAt(day2), a.Number, dec("500.00")); err != nil {
		t.Fatalf("withdrawing on the next day: %v", err)
	}
}

func TestHistoryWindow(t *testing.T) {
	bank := newTestBank(t)
	a := bank.newAccount(t, "12345678901")

	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	ctx := ctxAt(now)

	if _, err := bank.ledger.Deposit(ctx, a.Number, dec("300.00")); err != nil {
		t.Fatalf("depositing: %v", err)
	}
	if _, err := bank.ledger.Withdraw(ctx, a.Number, dec("100.00")); err != nil {
		t.Fatalf("withdrawing: %v", err)
	}

	// A transaction from 7 months back must never be returned, no
	// matter the filter.
	const insertOld = `
	INSERT INTO transactions
		(id, account_number, amount, type, new_balance, date_created)
	VALUES
		($1, $2, 50.00, 'DEPOSIT', 50.00, $3)`

	old := now.AddDate(0, -7, 0)
	if _, err := bank.db.Exec(context.Background(), insertOld, uuid.New(), a.Number, old); err != nil {
		t.Fatalf("inserting old transaction: %v", err)
	}

	h, err := bank.ledger.History(ctx, a.Number, ledger.Filter{})
	if err != nil {
		t.Fatalf("querying history: %v", err)
	}
	if h.Total != 2 {
		t.Fatalf("got %d transactions, want 2", h.Total)
	}

	h, err = bank.ledger.History(ctx, a.Number, ledger.Filter{StartDate: now.AddDate(-1, 0, 0)})
	if err != nil {
		t.Fatalf("querying history with old start date: %v", err)
	}
	if h.Total != 2 {
		t.Fatalf("start date should clamp to 6 months: got %d transactions, want 2", h.Total)
	}

	h, err = bank.ledger.History(ctx, a.Number, ledger.Filter{Type: ledger.TypeWithdrawal})
	if err != nil {
		t.Fatalf("querying history by type: %v", err)
	}
	if h.Total != 1 || h.Transactions[0].Type != ledger.TypeWithdrawal {
		t.Fatalf("got %d %v transactions, want 1 WITHDRAWAL", h.Total, h.Transactions)
	}

	h, err = bank.ledger.History(ctx, a.Number, ledger.Filter{EndDate: now.AddDate(0, 0, -1)})
	if err != nil {
		t.Fatalf("querying history with past end date: %v", err)
	}
	if h.Total != 0 {
		t.Fatalf("got %d transactions before today, want 0", h.Total)
	}
}

// failingLocker hands out locks whose release always fails, the way a
// distributed lock behaves once its expiry passed.
type failingLocker struct {
	locked   int
	unlocked int
}

func (l *failingLocker) Lock(ctx context.Context, name string) (func() error, error) {
	l.locked++
	return func() error {
		l.unlocked++
		return errors.New("lock expired")
	}, nil
}

func TestWriteSurvivesUnlockFailure(t *testing.T) {
	bank := newTestBank(t)
	a := bank.newAccount(t, "12345678901")
	ctx := ctxAt(time.Now().UTC())

	locker := &failingLocker{}
	l, err := ledger.NewCore(bank.log, ledgerdb.NewStore(bank.log, bank.db), ledger.WithLocker(locker))
	if err != nil {
		t.Fatalf("creating ledger core: %v", err)
	}

	dt, err := l.Deposit(ctx, a.Number, dec("25.00"))
	if err != nil {
		t.Fatalf("depositing: %v", err)
	}
	if !dt.NewBalance.Equal(dec("25.00")) {
		t.Fatalf("got newBalance %v, want 25.00", dt.NewBalance)
	}

	if _, err := l.Withdraw(ctx, a.Number, dec("5.00")); err != nil {
		t.Fatalf("withdrawing: %v", err)
	}

	if locker.locked != 2 || locker.unlocked != 2 {
		t.Fatalf("got %d locks and %d releases, want 2 and 2", locker.locked, locker.unlocked)
	}

	got, err := bank.accounts.QueryByCPFOrNumber(context.Background(), a.Number)
	if err != nil {
		t.Fatalf("querying account: %v", err)
	}
	if !got.Balance.Equal(dec("20.00")) {
		t.Fatalf("got balance %v, want 20.00", got.Balance)
	}
}

func TestHistoryOrder(t *testing.T) {
	bank := newTestBank(t)
	a := bank.newAccount(t, "12345678901")

	base := time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)
	amounts := []string{"10.00", "20.00", "30.00"}
	for i, amount := range amounts {
		ctx := ctxAt(base.Add(time.Duration(i) * time.Hour))
		if _, err := bank.ledger.Deposit(ctx, a.Number, dec(amount)); err != nil {
			t.Fatalf("depositing %s: %v", amount, err)
		}
	}

	h, err := bank.ledger.History(ctxAt(base.Add(3*time.Hour)), a.Number, ledger.Filter{})
	if err != nil {
		t.Fatalf("querying history: %v", err)
	}
	if h.Total != len(amounts) {
		t.Fatalf("got %d transactions, want %d", h.Total, len(amounts))
	}
	for i, want := range []string{"30.00", "20.00", "10.00"} {
		if !h.Transactions[i].Amount.Equal(dec(want)) {
			t.Fatalf("transaction %d: got amount %v, want %s (newest first)", i, h.Transactions[i].Amount, want)
		}
	}
}
