// Package holderdb contains holder related CRUD functionality.
package holderdb

import (
	"context"
	"errors"
	"log/slog"

	"github.com/diniznaomi/desafio-dev-api-rest/internal/core/holder"
	db "github.com/diniznaomi/desafio-dev-api-rest/internal/data/dbsql/pgx"
	"github.com/google/uuid"
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

func (s *Store) ExecUnderTx(ctx context.Context, fn func(txStore holder.Store) error) error {
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

func (s *Store) Create(ctx context.Context, h holder.Holder) error {
	const q = `
	INSERT INTO holders
		(id, full_name, cpf)
	VALUES
		(@id, @full_name, @cpf)`

	if err := db.NamedExec(ctx, s.log, s.db, q, toDBHolder(h)); err != nil {
		if errors.Is(err, db.ErrDBDuplicatedEntry) {
			return holder.ErrCPFRegistered
		}
		return err
	}

	return nil
}

func (s *Store) Delete(ctx context.Context, holderID uuid.UUID) error {
	data := struct {
		ID uuid.UUID `db:"id"`
	}{
		ID: holderID,
	}

	const q = `
	DELETE FROM
		holders
	WHERE
		id = @id`

	return db.NamedExec(ctx, s.log, s.db, q, data)
}

func (s *Store) QueryByID(ctx context.Context, holderID uuid.UUID) (holder.Holder, error) {
	const q = `
	SELECT
		id, full_name, cpf
	FROM
		holders
	WHERE
		id = @id`

	return s.queryByID(ctx, holderID, q)
}

func (s *Store) QueryByIDForUpdate(ctx context.Context, holderID uuid.UUID) (holder.Holder, error) {
	const q = `
	SELECT
		id, full_name, cpf
	FROM
		holders
	WHERE
		id = @id
	FOR UPDATE`

	return s.queryByID(ctx, holderID, q)
}

func (s *Store) queryByID(ctx context.Context, holderID uuid.UUID, q string) (holder.Holder, error) {
	data := struct {
		ID uuid.UUID `db:"id"`
	}{
		ID: holderID,
	}

	h, err := db.NamedQueryStruct[dbHolder](ctx, s.log, s.db, q, data)
	if err != nil {
		if errors.Is(err, db.ErrDBNotFound) {
			return holder.Holder{}, holder.ErrNotFound
		}
		return holder.Holder{}, err
	}

	return toHolder(h), nil
}

func (s *Store) QueryByCPF(ctx context.Context, cpf string) (holder.Holder, error) {
	data := struct {
		CPF string `db:"cpf"`
	}{
		CPF: cpf,
	}

	const q = `
	SELECT
		id, full_name, cpf
	FROM
		holders
	WHERE
		cpf = @cpf`

	h, err := db.NamedQueryStruct[dbHolder](ctx, s.log, s.db, q, data)
	if err != nil {
		if errors.Is(err, db.ErrDBNotFound) {
			return holder.Holder{}, holder.ErrNotFound
		}
		return holder.Holder{}, err
	}

	return toHolder(h), nil
}

func (s *Store) CountOpenAccounts(ctx context.Context, holderID uuid.UUID) (int, error) {
	data := struct {
		HolderID uuid.UUID `db:"holder_id"`
	}{
		HolderID: holderID,
	}

	const q = `
	SELECT
		COUNT(*) AS open_accounts
	FROM
		accounts
	WHERE
		holder_id = @holder_id
		AND status <> 'CLOSED'`

	count, err := db.NamedQueryStruct[dbOpenAccounts](ctx, s.log, s.db, q, data)
	if err != nil {
		return 0, err
	}

	return count.OpenAccounts, nil
}
