package telegram

import (
	"context"
	"fmt"

	"github.com/mymmrac/telego"
	"golang.org/x/time/rate"

	"github.com/vulpo-bot/vulpo/pkg/imghash"
	"github.com/vulpo-bot/vulpo/pkg/metrics"
)

// globalSendRate is the bot-wide outgoing request budget. Per-chat limits
// are handled cooperatively by the rate gate; this only smooths bursts.
const globalSendRate = 30

// Client wraps the bot API with rate limiting and request metrics. All
// methods block on the global limiter before issuing a request.
type Client struct {
	bot     *telego.Bot
	limiter *rate.Limiter
	fetcher *imghash.Fetcher
}

func NewClient(token string) (*Client, error) {
	bot, err := telego.NewBot(token, telego.WithDiscardLogger())
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	return &Client{
		bot:     bot,
		limiter: rate.NewLimiter(rate.Limit(globalSendRate), globalSendRate),
		fetcher: imghash.NewFetcher(imghash.MaxDownloadSize),
	}, nil
}

// EditCaption replaces the caption of an existing message.
func (c *Client) EditCaption(ctx context.Context, chatID string, messageID int, caption string) error {
	id, err := ParseChatID(chatID)
	if err != nil {
		return err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	_, err = c.bot.EditMessageCaption(ctx, &telego.EditMessageCaptionParams{
		ChatID:    id,
		MessageID: messageID,
		Caption:   caption,
	})
	observe("editMessageCaption", err)
	return err
}

// EditKeyboard installs an inline keyboard on an existing message.
func (c *Client) EditKeyboard(ctx context.Context, chatID string, messageID int, markup *telego.InlineKeyboardMarkup) error {
	id, err := ParseChatID(chatID)
	if err != nil {
		return err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	_, err = c.bot.EditMessageReplyMarkup(ctx, &telego.EditMessageReplyMarkupParams{
		ChatID:      id,
		MessageID:   messageID,
		ReplyMarkup: markup,
	})
	observe("editMessageReplyMarkup", err)
	return err
}

// SendReply posts text as a silent reply without link previews.
func (c *Client) SendReply(ctx context.Context, chatID string, replyTo int, text string) error {
	id, err := ParseChatID(chatID)
	if err != nil {
		return err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	_, err = c.bot.SendMessage(ctx, &telego.SendMessageParams{
		ChatID:              id,
		Text:                text,
		ReplyParameters:     &telego.ReplyParameters{MessageID: replyTo},
		LinkPreviewOptions:  &telego.LinkPreviewOptions{IsDisabled: true},
		DisableNotification: true,
	})
	observe("sendMessage", err)
	return err
}

// DownloadPhoto fetches the bytes of an uploaded file.
func (c *Client) DownloadPhoto(ctx context.Context, fileID string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	file, err := c.bot.GetFile(ctx, &telego.GetFileParams{FileID: fileID})
	observe("getFile", err)
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}

	return c.fetcher.Fetch(ctx, c.bot.FileDownloadURL(file.FilePath))
}

// GetUpdates passes a long-poll request through the limiter.
func (c *Client) GetUpdates(ctx context.Context, params *telego.GetUpdatesParams) ([]telego.Update, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return c.bot.GetUpdates(ctx, params)
}

func observe(method string, err error) {
	label := "ok"
	switch o := Classify(err); {
	case o.OK():
	case o.RateLimited():
		label = "rate_limited"
	case o.Code != 0:
		label = "rejected"
	default:
		label = "error"
	}
	metrics.TelegramRequests.WithLabelValues(method, label).Inc()
}
