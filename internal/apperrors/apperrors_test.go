package apperrors_test

import (
	"errors"
	"fmt"
	"testing"

	"storefront/internal/apperrors"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("initiate checkout: %w", apperrors.ExternalService("payment provider unavailable", cause))

	assert.Equal(t, apperrors.KindExternalService, apperrors.KindOf(err))
	assert.True(t, apperrors.Is(err, apperrors.KindExternalService))
	assert.False(t, apperrors.Is(err, apperrors.KindNotFound))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "payment provider unavailable", apperrors.PublicMessage(err))
}

func TestKindOf_PlainError(t *testing.T) {
	err := errors.New("boom")
	assert.Equal(t, apperrors.KindInternal, apperrors.KindOf(err))
	assert.Equal(t, "internal server error", apperrors.PublicMessage(err))
	assert.False(t, apperrors.Is(nil, apperrors.KindInternal))
}

func TestError_Message(t *testing.T) {
	err := apperrors.Persistence("could not save order", errors.New("disk full"))
	assert.Equal(t, "persistence: could not save order: disk full", err.Error())

	assert.Equal(t, "not_found: order not found", apperrors.NotFound("order not found").Error())
	assert.Equal(t, "forbidden: email not verified", apperrors.Forbidden("email not verified").Error())
}

func TestFieldsOf(t *testing.T) {
	err := fmt.Errorf("checkout: %w", apperrors.ValidationFields("invalid cart", map[string]string{"products[0].quantity": "must be at least 1"}))
	assert.Equal(t, "must be at least 1", apperrors.FieldsOf(err)["products[0].quantity"])
	assert.Nil(t, apperrors.FieldsOf(errors.New("boom")))
}
