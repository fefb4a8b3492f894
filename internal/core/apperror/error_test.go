package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPredicatesSeeThroughWrapping(t *testing.T) {
	err := fmt.Errorf("evolve asset: %w", NewInvariantViolation("assets", "version already closed"))

	assert.True(t, IsInvariantViolation(err))
	assert.False(t, IsNotFound(err))
	assert.False(t, IsQueryError(err))
	assert.Equal(t, http.StatusConflict, GetHTTPStatus(err))
}

func TestGetHTTPStatus_UnknownError(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, GetHTTPStatus(errors.New("boom")))
}

func TestWithCause(t *testing.T) {
	cause := errors.New("driver: bad connection")
	err := NewInternal(nil).WithCause(cause).WithDetail("table", "assets")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "assets", err.Details["table"])
	assert.Contains(t, err.Error(), "caused by")
}

func TestQueryError(t *testing.T) {
	err := NewQueryError("empty exact-set").WithDetail("field", "location_id")

	assert.True(t, IsQueryError(err))
	assert.Equal(t, http.StatusBadRequest, err.HTTPStatus)
}
