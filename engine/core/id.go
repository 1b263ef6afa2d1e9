package core

import (
	"fmt"

	"github.com/google/uuid"
)

// ID is the stable opaque identifier shared by every persisted entity.
type ID string

func NewID() (ID, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("failed to generate id: %w", err)
	}
	return ID(id.String()), nil
}

// MustNewID panics when the underlying generator fails. Reserved for tests
// and process bootstrap.
func MustNewID() ID {
	id, err := NewID()
	if err != nil {
		panic(err)
	}
	return id
}

func (i ID) String() string {
	return string(i)
}

func (i ID) IsZero() bool {
	return i == ""
}
