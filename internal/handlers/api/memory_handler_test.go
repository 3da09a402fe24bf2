package api

import (
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/khanghh/kbooks/internal/memory"
	"github.com/khanghh/kbooks/internal/store"
	"github.com/khanghh/kbooks/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMemoryTestApp(t *testing.T) *fiber.App {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, model.AutoMigrate(db))

	convRepo := memory.NewConversationRepository(store.NewSQLTable[model.Conversation](db))
	handler := NewMemoryHandler(memory.NewMemoryService(convRepo))

	app := fiber.New()
	app.Post("/session", handler.PostSession)
	app.Get("/session/:sessionId", handler.GetSession)
	app.Delete("/session/:sessionId", handler.DeleteSession)
	app.Post("/message", handler.PostMessage)
	app.Patch("/context/:sessionId", handler.PatchContext)
	app.Get("/health", handler.GetHealth)
	return app
}

func TestMemoryHandler_Session(t *testing.T) {
	app := newMemoryTestApp(t)

	resp, body := doRequest(t, app, fiber.MethodPost, "/session", map[string]string{})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.JSONEq(t, `{"success":false,"error":"Session ID is required"}`, string(body))

	resp, body = doRequest(t, app, fiber.MethodPost, "/session", map[string]string{"sessionId": "s-1", "userId": "alice"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	data := decodeBody(t, body)["data"].(map[string]any)
	assert.Equal(t, "s-1", data["sessionId"])
	assert.Equal(t, "alice", data["userId"])
	assert.Empty(t, data["messages"])

	resp, body = doRequest(t, app, fiber.MethodPost, "/session", map[string]string{"sessionId": "s-1", "userId": "bob"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	data = decodeBody(t, body)["data"].(map[string]any)
	assert.Equal(t, "alice", data["userId"])

	resp, body = doRequest(t, app, fiber.MethodGet, "/session/missing", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.JSONEq(t, `{"success":false,"error":"Session not found"}`, string(body))
}

func TestMemoryHandler_Messages(t *testing.T) {
	app := newMemoryTestApp(t)

	resp, body := doRequest(t, app, fiber.MethodPost, "/message", map[string]any{"sessionId": "s-2"})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.JSONEq(t, `{"success":false,"error":"Session ID and message are required"}`, string(body))

	resp, _ = doRequest(t, app, fiber.MethodPost, "/message", map[string]any{
		"sessionId": "s-2",
		"message":   map[string]string{"role": "system", "content": "hi"},
	})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	for _, content := range []string{"first", "second", "third"} {
		resp, body = doRequest(t, app, fiber.MethodPost, "/message", map[string]any{
			"sessionId": "s-2",
			"message":   map[string]string{"role": "user", "content": content},
			"context":   map[string]any{"entities": map[string]string{"customer": "Acme"}},
		})
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		data := decodeBody(t, body)["data"].(map[string]any)
		assert.Equal(t, "s-2", data["sessionId"])
		assert.Equal(t, content, data["message"].(map[string]any)["content"])
	}

	resp, body = doRequest(t, app, fiber.MethodGet, "/session/s-2?messageLimit=2", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	data := decodeBody(t, body)["data"].(map[string]any)
	assert.Equal(t, "anonymous", data["userId"])
	messages := data["messages"].([]any)
	require.Len(t, messages, 2)
	assert.Equal(t, "second", messages[0].(map[string]any)["content"])
	assert.Equal(t, "third", messages[1].(map[string]any)["content"])
	assert.Equal(t, "Acme", data["context"].(map[string]any)["entities"].(map[string]any)["customer"])
}

func TestMemoryHandler_Context(t *testing.T) {
	app := newMemoryTestApp(t)

	resp, _ := doRequest(t, app, fiber.MethodPatch, "/context/s-3", map[string]any{"context": map[string]any{"lastFunction": "getCashFlow"}})
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	doRequest(t, app, fiber.MethodPost, "/session", map[string]string{"sessionId": "s-3"})

	resp, body := doRequest(t, app, fiber.MethodPatch, "/context/s-3", map[string]any{})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.JSONEq(t, `{"success":false,"error":"Context is required"}`, string(body))

	resp, body = doRequest(t, app, fiber.MethodPatch, "/context/s-3", map[string]any{"context": map[string]any{
		"lastFunction": "getCashFlow",
		"preferences":  map[string]string{"currency": "USD"},
	}})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"success":true,"data":{"sessionId":"s-3","context":{"lastFunction":"getCashFlow","preferences":{"currency":"USD"}}}}`, string(body))
}

func TestMemoryHandler_Delete(t *testing.T) {
	app := newMemoryTestApp(t)
	doRequest(t, app, fiber.MethodPost, "/session", map[string]string{"sessionId": "s-4"})

	resp, body := doRequest(t, app, fiber.MethodDelete, "/session/s-4", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"success":true,"data":{"sessionId":"s-4","deleted":true}}`, string(body))

	resp, _ = doRequest(t, app, fiber.MethodDelete, "/session/s-4", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	_, body = doRequest(t, app, fiber.MethodGet, "/health", nil)
	assert.JSONEq(t, `{"status":"OK","message":"Memory service is running"}`, string(body))
}
