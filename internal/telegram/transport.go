package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/checkinbot/internal/resilience"
)

// MaxDownloadBytes is the Bot API limit for files a bot may download.
const MaxDownloadBytes = 20 * 1024 * 1024

// API is the subset of *bot.Bot the transport uses.
type API interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	SendChatAction(ctx context.Context, params *bot.SendChatActionParams) (bool, error)
	GetFile(ctx context.Context, params *bot.GetFileParams) (*models.File, error)
	FileDownloadLink(f *models.File) string
}

// Transport sends messages and downloads attachments through the Bot API.
type Transport struct {
	api    API
	http   *http.Client
	retry  resilience.RetryConfig
	logger *slog.Logger
}

// NewTransport wraps api. A nil httpClient uses http.DefaultClient.
func NewTransport(api API, httpClient *http.Client, logger *slog.Logger) *Transport {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Transport{
		api:    api,
		http:   httpClient,
		retry:  resilience.DefaultRetryConfig(),
		logger: logger.With("component", "telegram_transport"),
	}
}

// Send delivers text to chatID, as a reply to replyTo when it is positive.
// The message still goes out if the replied-to message was deleted.
func (t *Transport) Send(ctx context.Context, chatID int64, text string, replyTo int) (int, error) {
	params := &bot.SendMessageParams{ChatID: chatID, Text: text}
	if replyTo > 0 {
		params.ReplyParameters = &models.ReplyParameters{MessageID: replyTo, AllowSendingWithoutReply: true}
	}

	sent, err := t.api.SendMessage(ctx, params)
	if err != nil {
		return 0, fmt.Errorf("failed to send message to chat %d: %w", chatID, err)
	}
	if sent == nil {
		return 0, errors.New("telegram returned no message")
	}

	t.logger.DebugContext(ctx, "Message sent", "chat_id", chatID, "message_id", sent.ID, "reply_to", replyTo)
	return sent.ID, nil
}

// Typing shows the typing indicator once. Failures are only logged.
func (t *Transport) Typing(ctx context.Context, chatID int64) {
	if _, err := t.api.SendChatAction(ctx, &bot.SendChatActionParams{ChatID: chatID, Action: models.ChatActionTyping}); err != nil {
		t.logger.DebugContext(ctx, "Typing action failed", "chat_id", chatID, "error", err)
	}
}

// Download fetches a file by id, retrying transient failures.
func (t *Transport) Download(ctx context.Context, fileID string) ([]byte, error) {
	if fileID == "" {
		return nil, errors.New("empty file id")
	}

	var data []byte
	err := resilience.WithRetry(ctx, func(ctx context.Context) error {
		var err error
		data, err = t.download(ctx, fileID)
		return err
	}, t.retry)
	if err != nil {
		return nil, err
	}

	t.logger.DebugContext(ctx, "File downloaded", "file_id", fileID, "size", len(data))
	return data, nil
}

func (t *Transport) download(ctx context.Context, fileID string) (data []byte, err error) {
	file, err := t.api.GetFile(ctx, &bot.GetFileParams{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("failed to get file: %w", err)
	}
	if file == nil || file.FilePath == "" {
		return nil, resilience.Permanent(errors.New("empty file path returned from Telegram"))
	}
	if file.FileSize > MaxDownloadBytes {
		return nil, resilience.Permanent(fmt.Errorf("file too large: %d bytes", file.FileSize))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.api.FileDownloadLink(file), nil)
	if err != nil {
		return nil, resilience.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	resp, err := t.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download file: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close response body: %w", closeErr)
		}
	}()

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, fmt.Errorf("unexpected status code %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, resilience.Permanent(fmt.Errorf("unexpected status code %d", resp.StatusCode))
	}

	data, err = io.ReadAll(io.LimitReader(resp.Body, MaxDownloadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read file data: %w", err)
	}
	if len(data) > MaxDownloadBytes {
		return nil, resilience.Permanent(errors.New("file exceeds download limit"))
	}
	if len(data) == 0 {
		return nil, resilience.Permanent(errors.New("received empty file data"))
	}
	return data, nil
}
