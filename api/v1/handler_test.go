// Package v1_test contains tests for the public ingestion API
package v1_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatlytics/internal/conversations"
	"chatlytics/internal/testsupport"
)

func postConversation(t *testing.T, app *fiber.App, payload map[string]interface{}, headers map[string]string) *http.Response {
	t.Helper()

	jsonPayload, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/x/api/v1/conversations", bytes.NewReader(jsonPayload))
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := app.Test(req, 30000)
	require.NoError(t, err)
	return resp
}

func TestCreateConversationPublicAPIHandler(t *testing.T) {
	t.Run("accepts valid message with registered api key", func(t *testing.T) {
		dbManager, _, chatbot := testsupport.SetupTestDBManagerWithChatbot(t, "Ingest Bot")
		db := dbManager.GetConnection()
		app := testsupport.CreateMinimalTestApp(t, db)

		resp := postConversation(t, app, map[string]interface{}{
			"apiKey":         chatbot.APIKey,
			"userId":         "visitor-1",
			"messageRole":    "user",
			"messageContent": "add this to my cart",
			"metadata": map[string]interface{}{
				"action": map[string]interface{}{
					"type":      "cart",
					"operation": "add",
					"productId": "sku-1",
				},
			},
			"timestamp": time.Now().UTC(),
		}, nil)

		assert.Equal(t, http.StatusAccepted, resp.StatusCode)

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		var respBody map[string]interface{}
		require.NoError(t, json.Unmarshal(body, &respBody))
		assert.Equal(t, "Message recorded successfully", respBody["message"])
		assert.Equal(t, float64(http.StatusAccepted), respBody["status"])

		var count int64
		require.NoError(t, db.Model(&conversations.Conversation{}).Count(&count).Error)
		assert.Equal(t, int64(1), count)
	})

	t.Run("header api key overrides body", func(t *testing.T) {
		dbManager, _, chatbot := testsupport.SetupTestDBManagerWithChatbot(t, "Header Bot")
		db := dbManager.GetConnection()
		app := testsupport.CreateMinimalTestApp(t, db)

		resp := postConversation(t, app, map[string]interface{}{
			"apiKey":         "bogus-key-in-body",
			"userId":         "visitor-1",
			"messageRole":    "assistant",
			"messageContent": "done",
		}, map[string]string{"X-API-Key": chatbot.APIKey})

		assert.Equal(t, http.StatusAccepted, resp.StatusCode)

		var stored conversations.Conversation
		require.NoError(t, db.First(&stored).Error)
		assert.Equal(t, chatbot.APIKey, stored.APIKey)
	})

	t.Run("rejects unknown api key", func(t *testing.T) {
		dbManager, _ := testsupport.SetupTestDBManager(t)
		db := dbManager.GetConnection()
		app := testsupport.CreateMinimalTestApp(t, db)

		resp := postConversation(t, app, map[string]interface{}{
			"apiKey":         "no-such-key",
			"userId":         "visitor-1",
			"messageRole":    "user",
			"messageContent": "hello",
		}, nil)

		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("rejects missing api key", func(t *testing.T) {
		dbManager, _ := testsupport.SetupTestDBManager(t)
		db := dbManager.GetConnection()
		app := testsupport.CreateMinimalTestApp(t, db)

		resp := postConversation(t, app, map[string]interface{}{
			"userId":         "visitor-1",
			"messageRole":    "user",
			"messageContent": "hello",
		}, nil)

		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("rejects missing user id and content", func(t *testing.T) {
		dbManager, _, chatbot := testsupport.SetupTestDBManagerWithChatbot(t, "Strict Bot")
		db := dbManager.GetConnection()
		app := testsupport.CreateMinimalTestApp(t, db)

		resp := postConversation(t, app, map[string]interface{}{
			"apiKey":         chatbot.APIKey,
			"messageRole":    "user",
			"messageContent": "hello",
		}, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		resp = postConversation(t, app, map[string]interface{}{
			"apiKey":      chatbot.APIKey,
			"userId":      "visitor-1",
			"messageRole": "user",
		}, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("rejects invalid role", func(t *testing.T) {
		dbManager, _, chatbot := testsupport.SetupTestDBManagerWithChatbot(t, "Role Bot")
		db := dbManager.GetConnection()
		app := testsupport.CreateMinimalTestApp(t, db)

		resp := postConversation(t, app, map[string]interface{}{
			"apiKey":         chatbot.APIKey,
			"userId":         "visitor-1",
			"messageRole":    "system",
			"messageContent": "hello",
		}, nil)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		var count int64
		require.NoError(t, db.Model(&conversations.Conversation{}).Count(&count).Error)
		assert.Equal(t, int64(0), count)
	})
}
