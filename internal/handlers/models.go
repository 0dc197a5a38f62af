package handlers

import (
	"time"

	"github.com/diniznaomi/desafio-dev-api-rest/internal/core/account"
	"github.com/diniznaomi/desafio-dev-api-rest/internal/core/ledger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CreateHolderReq struct {
	FullName string `json:"fullName"`
	CPF      string `json:"cpf"`
}

type CreateHolderResp struct {
	ID uuid.UUID `json:"id"`
}

type CreateAccountReq struct {
	CPF string `json:"cpf"`
}

type CreateAccountResp struct {
	ID            uuid.UUID `json:"id"`
	AccountNumber string    `json:"accountNumber"`
	Agency        string    `json:"agency"`
}

type AccountResp struct {
	AccountNumber string          `json:"accountNumber"`
	Agency        string          `json:"agency"`
	Balance       decimal.Decimal `json:"balance"`
	Status        string          `json:"status"`
}

type UpdateStatusReq struct {
	Status string `json:"status"`
}

type TransactionReq struct {
	AccountNumber string          `json:"accountNumber"`
	Amount        decimal.Decimal `json:"amount"`
}

type TransactionResp struct {
	TransactionID uuid.UUID       `json:"transactionId"`
	AccountNumber string          `json:"accountNumber"`
	Amount        decimal.Decimal `json:"amount"`
	Type          string          `json:"type"`
	CreatedAt     time.Time       `json:"createdAt"`
	NewBalance    decimal.Decimal `json:"newBalance"`
}

type HistoryResp struct {
	Total   int               `json:"total"`
	History []TransactionResp `json:"history"`
}

func toAccountResp(a account.Account) AccountResp {
	return AccountResp{
		AccountNumber: a.Number,
		Agency:        a.Agency,
		Balance:       a.Balance,
		Status:        string(a.Status),
	}
}

func toHistoryResp(h ledger.History) HistoryResp {
	history := make([]TransactionResp, len(h.Transactions))
	for i, t := range h.Transactions {
		history[i] = toTransactionResp(t)
	}
	return HistoryResp{
		Total:   h.Total,
		History: history,
	}
}

func toTransactionResp(t ledger.Transaction) TransactionResp {
	return TransactionResp{
		TransactionID: t.ID,
		AccountNumber: t.AccountNumber,
		Amount:        t.Amount,
		Type:          string(t.Type),
		CreatedAt:     t.CreatedAt,
		NewBalance:    t.NewBalance,
	}
}
