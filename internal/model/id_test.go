package model

import (
	"testing"

	"product_catalog/internal/apperr"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseID(t *testing.T) {
	valid := uuid.New()

	id, err := ParseID("id", valid.String())
	require.NoError(t, err)
	assert.Equal(t, valid, id)

	for _, raw := range []string{"", "42", "not-a-uuid", uuid.Nil.String()} {
		_, err := ParseID("id", raw)
		require.Error(t, err, raw)
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

		e, _ := apperr.As(err)
		assert.Contains(t, e.Fields, "id")
	}
}

func TestProductPatch_IsEmpty(t *testing.T) {
	assert.True(t, ProductPatch{}.IsEmpty())

	name := "x"
	assert.False(t, ProductPatch{Name: &name}.IsEmpty())
}
