// Package telegram is the Bot API transport. It sends messages and
// classifies API failures; it never decides retry policy.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type Client struct {
	api *tgbotapi.BotAPI
}

func New(token string) (*Client, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram auth failed: %w", err)
	}
	return &Client{api: api}, nil
}

// API exposes the underlying bot client for the command router's update loop.
func (c *Client) API() *tgbotapi.BotAPI {
	return c.api
}

// Send delivers a Markdown message to a recipient. The recipient is either a
// numeric chat ID or an @channel handle.
func (c *Client) Send(ctx context.Context, recipientID, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var msg tgbotapi.MessageConfig
	if strings.HasPrefix(recipientID, "@") {
		msg = tgbotapi.NewMessageToChannel(recipientID, text)
	} else {
		chatID, err := strconv.ParseInt(recipientID, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid recipient %q: %w", recipientID, err)
		}
		msg = tgbotapi.NewMessage(chatID, text)
	}
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.DisableWebPagePreview = true

	if _, err := c.api.Send(msg); err != nil {
		return fmt.Errorf("telegram send to %s: %w", recipientID, err)
	}
	return nil
}

// IsPermanent reports whether a send error is non-retryable: a malformed
// request or a blocked/invalid recipient. Rate limits, server errors and
// plain network failures are transient.
func IsPermanent(err error) bool {
	var tgErr *tgbotapi.Error
	if !errors.As(err, &tgErr) {
		// Network-level failure, worth retrying.
		return false
	}
	switch {
	case tgErr.Code == 429:
		return false
	case tgErr.Code >= 500:
		return false
	default:
		// 400 bad request, 403 bot blocked by user, etc.
		return true
	}
}
