package holder

import "github.com/google/uuid"

type Holder struct {
	ID       uuid.UUID
	FullName string
	CPF      string
}

type NewHolder struct {
	FullName string
	CPF      string
}
