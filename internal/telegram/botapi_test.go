package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "12345:test-secret"

func newTestAPI(t *testing.T, handler http.HandlerFunc) *BotAPI {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	api := NewBotAPI(testToken, zerolog.Nop())
	api.SetBaseURL(server.URL)
	return api
}

func envelope(result any) []byte {
	raw, _ := json.Marshal(result)
	out, _ := json.Marshal(map[string]any{"ok": true, "result": json.RawMessage(raw)})
	return out
}

func TestBotAPI_GetMe(t *testing.T) {
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bot"+testToken+"/getMe", r.URL.Path)
		w.Write(envelope(BotUser{ID: 42, Username: "managerbot"}))
	})

	user, err := api.GetMe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), user.ID)
	assert.Equal(t, "managerbot", user.Username)
}

func TestBotAPI_SendMessage(t *testing.T) {
	var payload map[string]any
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/bot"+testToken+"/sendMessage", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.Write(envelope(Message{MessageID: 1}))
	})

	err := api.SendMessage(context.Background(), 777, "hello", &SendOptions{
		ReplyToID: 9,
		InlineKeyboard: [][]InlineButton{
			{{Text: "Video", CallbackData: "video:1"}},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, float64(777), payload["chat_id"])
	assert.Equal(t, "hello", payload["text"])
	assert.Equal(t, float64(9), payload["reply_to_message_id"])
	assert.Contains(t, payload, "reply_markup")
}

func TestBotAPI_GetUpdates(t *testing.T) {
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		json.NewDecoder(r.Body).Decode(&payload)
		assert.Equal(t, float64(100), payload["offset"])

		w.Write(envelope([]Update{
			{UpdateID: 100, Message: &Message{MessageID: 5, Chat: Chat{ID: 777}, Text: "hi"}},
			{UpdateID: 101, CallbackQuery: &CallbackQuery{ID: "cb1", Data: "audio:1"}},
		}))
	})

	updates, err := api.GetUpdates(context.Background(), 100, 100, 0)
	require.NoError(t, err)
	require.Len(t, updates, 2)
	assert.Equal(t, "hi", updates[0].Message.Text)
	assert.Equal(t, "audio:1", updates[1].CallbackQuery.Data)
}

func TestBotAPI_GetFile(t *testing.T) {
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write(envelope(File{FileID: "doc-1", FileSize: 2048, FilePath: "documents/file_1.pdf"}))
	})

	file, err := api.GetFile(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "documents/file_1.pdf", file.FilePath)
	assert.Equal(t, int64(2048), file.FileSize)
}

func TestBotAPI_OpenFile(t *testing.T) {
	content := "file body bytes"
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, fmt.Sprintf("/file/bot%s/documents/file_1.pdf", testToken), r.URL.Path)
		io.WriteString(w, content)
	})

	rc, size, err := api.OpenFile(context.Background(), "documents/file_1.pdf")
	require.NoError(t, err)
	defer rc.Close()

	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, content, string(got))
	assert.Equal(t, int64(len(content)), size)
}

func TestBotAPI_OpenFileNotFound(t *testing.T) {
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	})

	_, _, err := api.OpenFile(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestBotAPI_ErrorEnvelope(t *testing.T) {
	api := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"ok":          false,
			"description": "Unauthorized",
		})
	})

	_, err := api.GetMe(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Unauthorized")
}

func TestMaskToken(t *testing.T) {
	assert.Equal(t, "12345:****", MaskToken("12345:abcDEF"))
	assert.Equal(t, "abcd****", MaskToken("abcdefgh"))
	assert.Equal(t, "****", MaskToken("abc"))
	assert.Equal(t, "", MaskToken(""))
}
