// Package accountdb contains account related CRUD functionality.
package accountdb

import (
	"context"
	"errors"
	"log/slog"

	"github.com/diniznaomi/desafio-dev-api-rest/internal/core/account"
	db "github.com/diniznaomi/desafio-dev-api-rest/internal/data/dbsql/pgx"
	"github.com/google/uuid"
)

// holderConstraint is the unique constraint that keeps a holder down to
// one account row.
const holderConstraint = "accounts_holder_id_key"

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

func (s *Store) ExecUnderTx(ctx context.Context, fn func(txStore account.Store) error) error {
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

func (s *Store) Create(ctx context.Context, a account.Account) error {
	const q = `
	INSERT INTO accounts
		(id, account_number, agency, balance, status, holder_id)
	VALUES
		(@id, @account_number, @agency, @balance, @status, @holder_id)`

	if err := db.NamedExec(ctx, s.log, s.db, q, toDBAccount(a)); err != nil {
		var dup *db.DuplicatedEntryError
		if errors.As(err, &dup) {
			if dup.Constraint == holderConstraint {
				return account.ErrAlreadyExists
			}
			return account.ErrNumberTaken
		}
		return err
	}

	return nil
}

func (s *Store) UpdateStatus(ctx context.Context, accountID uuid.UUID, status account.Status) error {
	data := struct {
		ID     uuid.UUID `db:"id"`
		Status string    `db:"status"`
	}{
		ID:     accountID,
		Status: string(status),
	}

	const q = `
	UPDATE
		accounts
	SET
		status = @status
	WHERE
		id = @id`

	return db.NamedExec(ctx, s.log, s.db, q, data)
}

func (s *Store) QueryByNumber(ctx context.Context, number string) (account.Account, error) {
	const q = `
	SELECT
		id, account_number, agency, balance, status, holder_id
	FROM
		accounts
	WHERE
		account_number = @account_number`

	return s.queryByNumber(ctx, number, q)
}

func (s *Store) QueryByNumberForUpdate(ctx context.Context, number string) (account.Account, error) {
	const q = `
	SELECT
		id, account_number, agency, balance, status, holder_id
	FROM
		accounts
	WHERE
		account_number = @account_number
	FOR UPDATE`

	return s.queryByNumber(ctx, number, q)
}

func (s *Store) queryByNumber(ctx context.Context, number string, q string) (account.Account, error) {
	data := struct {
		Number string `db:"account_number"`
	}{
		Number: number,
	}

	a, err := db.NamedQueryStruct[dbAccount](ctx, s.log, s.db, q, data)
	if err != nil {
		if errors.Is(err, db.ErrDBNotFound) {
			return account.Account{}, account.ErrNotFound
		}
		return account.Account{}, err
	}

	return toAccount(a), nil
}

func (s *Store) QueryByHolderID(ctx context.Context, holderID uuid.UUID) (account.Account, error) {
	const q = `
	SELECT
		id, account_number, agency, balance, status, holder_id
	FROM
		accounts
	WHERE
		holder_id = @holder_id`

	return s.queryByHolderID(ctx, holderID, q)
}

func (s *Store) QueryByHolderIDForUpdate(ctx context.Context, holderID uuid.UUID) (account.Account, error) {
	const q = `
	SELECT
		id, account_number, agency, balance, status, holder_id
	FROM
		accounts
	WHERE
		holder_id = @holder_id
	FOR UPDATE`

	return s.queryByHolderID(ctx, holderID, q)
}

func (s *Store) queryByHolderID(ctx context.Context, holderID uuid.UUID, q string) (account.Account, error) {
	data := struct {
		HolderID uuid.UUID `db:"holder_id"`
	}{
		HolderID: holderID,
	}

	a, err := db.NamedQueryStruct[dbAccount](ctx, s.log, s.db, q, data)
	if err != nil {
		if errors.Is(err, db.ErrDBNotFound) {
			return account.Account{}, account.ErrNotFound
		}
		return account.Account{}, err
	}

	return toAccount(a), nil
}
