package models

import (
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func respond(t *testing.T, status int, err error) (int, string, ErrorResponse) {
	t.Helper()
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error { return RespondWithError(c, status, err) })

	resp, reqErr := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, reqErr)
	raw, readErr := io.ReadAll(resp.Body)
	require.NoError(t, readErr)

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(raw, &body))
	return resp.StatusCode, string(raw), body
}

func TestRespondWithError(t *testing.T) {
	cause := errors.New("dial tcp 10.0.0.5:587: connection refused")

	tests := []struct {
		name     string
		status   int
		err      error
		wantText string
		wantCode string
	}{
		{"validation keeps its message", 400, NewValidationError("rating must be 1-5"), "rating must be 1-5", CodeValidation},
		{"internal hides the cause", 500, NewInternalError(cause), "Internal server error", CodeInternal},
		{"custom internal message hides the cause", 500, &AppError{Code: CodeInternal, Message: "Job failed", Err: cause}, "Job failed", CodeInternal},
		{"plain error on 5xx is masked", 500, cause, "Internal server error", CodeInternal},
		{"plain error below 5xx is shown", 404, errors.New("no such route"), "no such route", ""},
		{"non-internal cause goes to details", 409, &AppError{Code: CodeConflict, Message: "busy", Err: errors.New("row changed")}, "busy", CodeConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, raw, body := respond(t, tt.status, tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.wantText, body.Error)
			assert.Equal(t, tt.wantCode, body.Code)
			assert.NotContains(t, raw, "10.0.0.5")
		})
	}
}

func TestAppError_HTTPStatusCodes(t *testing.T) {
	assert.Equal(t, fiber.StatusUnprocessableEntity, NewInvalidTransitionError(SwapStatusPending, SwapStatusCompleted).HTTPStatus())
	assert.Equal(t, fiber.StatusNotFound, NewNotFoundError("Swap", 3).HTTPStatus())
	assert.Equal(t, fiber.StatusInternalServerError, (&AppError{Code: "WHATEVER"}).HTTPStatus())
	assert.True(t, IsCode(NewConflictError("x"), CodeConflict))
	assert.False(t, IsCode(errors.New("x"), CodeConflict))
}
