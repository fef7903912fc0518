package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	notFound := New(KindNotFound, "product not found")

	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "direct", err: notFound, want: KindNotFound},
		{name: "wrapped", err: fmt.Errorf("get product: %w", notFound), want: KindNotFound},
		{name: "validation", err: Validation("bad input", nil), want: KindValidation},
		{name: "plain error", err: errors.New("boom"), want: KindInternal},
		{name: "internal wrapper", err: Internal(errors.New("db down")), want: KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestSentinelIdentitySurvivesWrapping(t *testing.T) {
	sentinel := New(KindAuthentication, "token has been revoked")
	wrapped := fmt.Errorf("authenticate: %w", sentinel)

	assert.ErrorIs(t, wrapped, sentinel)

	e, ok := As(wrapped)
	require.True(t, ok)
	assert.Equal(t, "token has been revoked", e.Message)
}

func TestInternalHidesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Internal(cause)

	assert.Equal(t, "internal server error", err.Message)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
}
