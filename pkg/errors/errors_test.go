package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCloneKeepsIdentityByCode(t *testing.T) {
	err := Clone(ErrValidation, "rooms[0].capacity is required")

	assert.Equal(t, "rooms[0].capacity is required", err.Message)
	assert.Equal(t, "validation failed", ErrValidation.Message)
	assert.True(t, errors.Is(err, ErrValidation))
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestFromErrorUnwrapsChains(t *testing.T) {
	wrapped := fmt.Errorf("solve: %w", ErrSearchBudgetExceeded)
	assert.Equal(t, http.StatusUnprocessableEntity, FromError(wrapped).Status)

	plain := FromError(errors.New("boom"))
	assert.Equal(t, ErrInternal.Code, plain.Code)
	assert.EqualError(t, plain, "internal server error: boom")
	assert.Nil(t, FromError(nil))
}

func TestWithDetailsDoesNotMutateTemplate(t *testing.T) {
	err := WithDetails(ErrNoValidSchedule, []string{"C1"})
	assert.Equal(t, []string{"C1"}, err.Details)
	assert.Nil(t, ErrNoValidSchedule.Details)
}
