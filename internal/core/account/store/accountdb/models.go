package accountdb

import (
	"github.com/diniznaomi/desafio-dev-api-rest/internal/core/account"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type dbAccount struct {
	ID       uuid.UUID       `db:"id"`
	Number   string          `db:"account_number"`
	Agency   string          `db:"agency"`
	Balance  decimal.Decimal `db:"balance"`
	Status   string          `db:"status"`
	HolderID uuid.UUID       `db:"holder_id"`
}

func toDBAccount(a account.Account) dbAccount {
	return dbAccount{
		ID:       a.ID,
		Number:   a.Number,
		Agency:   a.Agency,
		Balance:  a.Balance,
		Status:   string(a.Status),
		HolderID: a.HolderID,
	}
}

func toAccount(a dbAccount) account.Account {
	return account.Account{
		ID:       a.ID,
		Number:   a.Number,
		Agency:   a.Agency,
		Balance:  a.Balance,
		Status:   account.Status(a.Status),
		HolderID: a.HolderID,
	}
}
