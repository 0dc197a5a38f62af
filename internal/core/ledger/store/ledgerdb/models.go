package ledgerdb

import (
	"time"

	"github.com/diniznaomi/desafio-dev-api-rest/internal/core/account"
	"github.com/diniznaomi/desafio-dev-api-rest/internal/core/ledger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type dbAccount struct {
	ID      uuid.UUID       `db:"id"`
	Number  string          `db:"account_number"`
	Balance decimal.Decimal `db:"balance"`
	Status  string          `db:"status"`
}

func toLedgerAccount(a dbAccount) ledger.Account {
	return ledger.Account{
		ID:      a.ID,
		Number:  a.Number,
		Balance: a.Balance,
		Status:  account.Status(a.Status),
	}
}

type dbTransaction struct {
	ID            uuid.UUID       `db:"id"`
	AccountNumber string          `db:"account_number"`
	Amount        decimal.Decimal `db:"amount"`
	Type          string          `db:"type"`
	NewBalance    decimal.Decimal `db:"new_balance"`
	CreatedAt     time.Time       `db:"date_created"`
}

func toDBTransaction(t ledger.Transaction) dbTransaction {
	return dbTransaction{
		ID:            t.ID,
		AccountNumber: t.AccountNumber,
		Amount:        t.Amount,
		Type:          string(t.Type),
		NewBalance:    t.NewBalance,
		CreatedAt:     t.CreatedAt,
	}
}

func toTransactions(ts []dbTransaction) []ledger.Transaction {
	slice := make([]ledger.Transaction, len(ts))
	for i, t := range ts {
		slice[i] = toTransaction(t)
	}
	return slice
}

func toTransaction(t dbTransaction) ledger.Transaction {
	return ledger.Transaction{
		ID:            t.ID,
		AccountNumber: t.AccountNumber,
		Amount:        t.Amount,
		Type:          ledger.Type(t.Type),
		NewBalance:    t.NewBalance,
		CreatedAt:     t.CreatedAt,
	}
}
