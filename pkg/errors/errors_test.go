package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Wrapping(t *testing.T) {
	cause := errors.New("row locked")
	appErr := Conflict("Ride was modified", cause)

	wrapped := fmt.Errorf("accept: %w", appErr)
	assert.True(t, IsAppError(wrapped))
	assert.ErrorIs(t, wrapped, cause)
	assert.Equal(t, http.StatusConflict, StatusOf(wrapped))
	assert.Equal(t, appErr, GetAppError(wrapped))
	assert.Equal(t, "Ride was modified: row locked", appErr.Error())

	assert.False(t, IsAppError(cause))
	assert.Nil(t, GetAppError(cause))
	assert.Equal(t, http.StatusInternalServerError, StatusOf(cause))
}

func TestAppError_JSONHidesInternals(t *testing.T) {
	appErr := BadRequest("Invalid request payload", errors.New("secret detail")).WithDetails("passengers: min 1")

	data, err := json.Marshal(appErr)
	require.NoError(t, err)
	assert.JSONEq(t, `{"code":"BAD_REQUEST","message":"Invalid request payload","details":"passengers: min 1"}`, string(data))
}

func TestWithDetails_Copies(t *testing.T) {
	base := NotFound("Ride not found", nil)
	detailed := base.WithDetails("id")
	assert.Empty(t, base.Details)
	assert.Equal(t, "id", detailed.Details)
}
