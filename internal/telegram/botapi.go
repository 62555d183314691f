package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"
)

const defaultAPIBase = "https://api.telegram.org"

// BotAPI is the small-file protocol client: a plain HTTP client for the
// Telegram Bot API. It covers sending messages, resolving file references
// and streaming file content. The Bot API rejects files above its fixed
// size limit; oversized transfers belong to the large-file client.
type BotAPI struct {
	token   string
	baseURL string
	client  *http.Client
	logger  zerolog.Logger
}

// NewBotAPI creates a Bot API client for the given token.
func NewBotAPI(token string, logger zerolog.Logger) *BotAPI {
	return &BotAPI{
		token:   token,
		baseURL: defaultAPIBase,
		client:  &http.Client{},
		logger:  logger.With().Str("component", "botapi").Logger(),
	}
}

// SetBaseURL overrides the API base URL. Used by tests.
func (b *BotAPI) SetBaseURL(url string) {
	b.baseURL = url
}

// GetMe verifies the token and returns the bot's identity.
func (b *BotAPI) GetMe(ctx context.Context) (*BotUser, error) {
	data, err := b.call(ctx, "getMe", nil)
	if err != nil {
		return nil, err
	}
	var user BotUser
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("parsing getMe response: %w", err)
	}
	return &user, nil
}

// SendMessage sends a text message to a chat.
func (b *BotAPI) SendMessage(ctx context.Context, chatID int64, text string, opts *SendOptions) error {
	payload := map[string]any{
		"chat_id": chatID,
		"text":    text,
	}
	if opts != nil {
		if opts.ParseMode != "" {
			payload["parse_mode"] = opts.ParseMode
		}
		if opts.ReplyToID != 0 {
			payload["reply_to_message_id"] = opts.ReplyToID
		}
		if len(opts.InlineKeyboard) > 0 {
			payload["reply_markup"] = map[string]any{
				"inline_keyboard": opts.InlineKeyboard,
			}
		}
	}

	_, err := b.call(ctx, "sendMessage", payload)
	return err
}

// AnswerCallbackQuery acknowledges an inline keyboard press.
func (b *BotAPI) AnswerCallbackQuery(ctx context.Context, queryID, text string) error {
	payload := map[string]any{"callback_query_id": queryID}
	if text != "" {
		payload["text"] = text
	}
	_, err := b.call(ctx, "answerCallbackQuery", payload)
	return err
}

// GetUpdates fetches new updates using long polling.
func (b *BotAPI) GetUpdates(ctx context.Context, offset int64, limit, timeoutSecs int) ([]Update, error) {
	payload := map[string]any{
		"offset":          offset,
		"limit":           limit,
		"timeout":         timeoutSecs,
		"allowed_updates": []string{"message", "callback_query"},
	}
	data, err := b.call(ctx, "getUpdates", payload)
	if err != nil {
		return nil, err
	}
	var updates []Update
	if err := json.Unmarshal(data, &updates); err != nil {
		return nil, fmt.Errorf("parsing updates: %w", err)
	}
	return updates, nil
}

// GetFile resolves a file reference into a downloadable path and size.
func (b *BotAPI) GetFile(ctx context.Context, fileID string) (*File, error) {
	data, err := b.call(ctx, "getFile", map[string]any{"file_id": fileID})
	if err != nil {
		return nil, err
	}
	var file File
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing getFile response: %w", err)
	}
	return &file, nil
}

// OpenFile opens a streaming reader for a resolved file path. The caller
// must close the returned reader.
func (b *BotAPI) OpenFile(ctx context.Context, filePath string) (io.ReadCloser, int64, error) {
	url := fmt.Sprintf("%s/file/bot%s/%s", b.baseURL, b.token, filePath)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("creating file request: %w", err)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("file request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, 0, fmt.Errorf("file request returned status %d", resp.StatusCode)
	}

	return resp.Body, resp.ContentLength, nil
}

// call performs a Bot API method call and unwraps the response envelope.
func (b *BotAPI) call(ctx context.Context, method string, payload map[string]any) (json.RawMessage, error) {
	url := b.baseURL + "/bot" + b.token + "/" + method

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling %s payload: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", method, err)
	}
	defer resp.Body.Close()

	var result struct {
		OK          bool            `json:"ok"`
		Description string          `json:"description"`
		Result      json.RawMessage `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding %s response: %w", method, err)
	}
	if !result.OK {
		return nil, fmt.Errorf("%s: %s", method, result.Description)
	}
	return result.Result, nil
}
