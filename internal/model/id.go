package model

import (
	"product_catalog/internal/apperr"

	"github.com/google/uuid"
)

// ParseID validates an identifier received at the boundary. Everything past
// the handler works with the parsed uuid.UUID.
func ParseID(field, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, apperr.Validation("invalid identifier", map[string]string{field: "must be a valid UUID"})
	}
	return id, nil
}
