package holderdb

import (
	"github.com/diniznaomi/desafio-dev-api-rest/internal/core/holder"
	"github.com/google/uuid"
)

type dbHolder struct {
	ID       uuid.UUID `db:"id"`
	FullName string    `db:"full_name"`
	CPF      string    `db:"cpf"`
}

func toDBHolder(h holder.Holder) dbHolder {
	return dbHolder(h)
}

func toHolder(h dbHolder) holder.Holder {
	return holder.Holder(h)
}

type dbOpenAccounts struct {
	OpenAccounts int `db:"open_accounts"`
}
