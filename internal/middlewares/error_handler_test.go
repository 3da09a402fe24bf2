package middlewares

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorHandler(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Get("/bad", func(ctx *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	})
	app.Get("/boom", func(ctx *fiber.Ctx) error {
		return errors.New("database is gone")
	})

	tests := []struct {
		path    string
		code    int
		message string
	}{
		{path: "/bad", code: fiber.StatusBadRequest, message: "Invalid request body"},
		{path: "/boom", code: fiber.StatusInternalServerError, message: "Internal server error"},
		{path: "/missing", code: fiber.StatusNotFound, message: "Cannot GET /missing"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, tt.path, nil))
			require.NoError(t, err)
			assert.Equal(t, tt.code, resp.StatusCode)

			var body map[string]any
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tt.message, body["error"])
		})
	}
}
