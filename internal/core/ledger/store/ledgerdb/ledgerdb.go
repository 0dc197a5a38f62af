// Package ledgerdb contains transaction related CRUD functionality.
package ledgerdb

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/diniznaomi/desafio-dev-api-rest/internal/core/ledger"
	db "github.com/diniznaomi/desafio-dev-api-rest/internal/data/dbsql/pgx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Store struct {
	log *slog.Logger
	db  db.DB
}

func NewStore(log *slog.Logger, database db.DB) *Store {
	return &Store{
		log: log,
		db:  database,
	}
}

func (s *Store) ExecUnderTx(ctx context.Context, fn func(txStore ledger.Store) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(NewStore(s.log, tx)); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (s *Store) QueryAccount(ctx context.Context, number string) (ledger.Account, error) {
	const q = `
	SELECT
		id, account_number, balance, status
	FROM
		accounts
	WHERE
		account_number = @account_number`

	return s.queryAccount(ctx, number, q)
}

func (s *Store) QueryAccountForUpdate(ctx context.Context, number string) (ledger.Account, error) {
	const q = `
	SELECT
		id, account_number, balance, status
	FROM
		accounts
	WHERE
		account_number = @account_number
	FOR UPDATE`

	return s.queryAccount(ctx, number, q)
}

func (s *Store) queryAccount(ctx context.Context, number string, q string) (ledger.Account, error) {
	data := struct {
		Number string `db:"account_number"`
	}{
		Number: number,
	}

	a, err := db.NamedQueryStruct[dbAccount](ctx, s.log, s.db, q, data)
	if err != nil {
		if errors.Is(err, db.ErrDBNotFound) {
			return ledger.Account{}, ledger.ErrAccountNotFound
		}
		return ledger.Account{}, err
	}

	return toLedgerAccount(a), nil
}

func (s *Store) UpdateBalance(ctx context.Context, accountID uuid.UUID, balance decimal.Decimal) error {
	data := struct {
		ID      uuid.UUID       `db:"id"`
		Balance decimal.Decimal `db:"balance"`
	}{
		ID:      accountID,
		Balance: balance,
	}

	const q = `
	UPDATE
		accounts
	SET
		balance = @balance
	WHERE
		id = @id`

	return db.NamedExec(ctx, s.log, s.db, q, data)
}

func (s *Store) AddTransaction(ctx context.Context, t ledger.Transaction) error {
	const q = `
	INSERT INTO transactions
		(id, account_number, amount, type, new_balance, date_created)
	VALUES
		(@id, @account_number, @amount, @type, @new_balance, @date_created)`

	return db.NamedExec(ctx, s.log, s.db, q, toDBTransaction(t))
}

func (s *Store) WithdrawnBetween(ctx context.Context, number string, from, to time.Time) (decimal.Decimal, error) {
	data := struct {
		Number string    `db:"account_number"`
		From   time.Time `db:"day_start"`
		To     time.Time `db:"day_end"`
	}{
		Number: number,
		From:   from,
		To:     to,
	}

	const q = `
	SELECT
		COALESCE(SUM(amount), 0) AS total
	FROM
		transactions
	WHERE
		account_number = @account_number
		AND type = 'WITHDRAWAL'
		AND date_created BETWEEN @day_start AND @day_end`

	sum, err := db.NamedQueryStruct[dbWithdrawnTotal](ctx, s.log, s.db, q, data)
	if err != nil {
		return decimal.Zero, err
	}

	return sum.Total, nil
}

func (s *Store) QueryTransactions(ctx context.Context, number string, start, end time.Time, typ ledger.Type) ([]ledger.Transaction, error) {
	var endPtr *time.Time
	if !end.IsZero() {
		endPtr = &end
	}

	data := struct {
		Number string     `db:"account_number"`
		Start  time.Time  `db:"start_date"`
		End    *time.Time `db:"end_date"`
		Type   string     `db:"tx_type"`
	}{
		Number: number,
		Start:  start,
		End:    endPtr,
		Type:   string(typ),
	}

	const q = `
	SELECT
		id, account_number, amount, type, new_balance, date_created
	FROM
		transactions
	WHERE
		account_number = @account_number
		AND date_created >= @start_date
		AND (@end_date::timestamptz IS NULL OR date_created <= @end_date)
		AND (@tx_type::text = '' OR type = @tx_type)
	ORDER BY
		date_created DESC`

	ts, err := db.NamedQuerySlice[dbTransaction](ctx, s.log, s.db, q, data)
	if err != nil {
		return nil, err
	}

	return toTransactions(ts), nil
}

type dbWithdrawnTotal struct {
	Total decimal.Decimal `db:"total"`
}
