package service

import (
	"context"
	"fmt"
	"net/http"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"market_monitor/internal/models"
)

// Telegram чат-бот канал: sendMessage с parse_mode Markdown.
type Telegram struct {
	bot    *tgbot.BotAPI
	chatID int64
}

// NewTelegram делает getMe: невалидный токен или недоступный API дают ошибку,
// и канал просто не попадает в мультиплексор.
func NewTelegram(token string, chatID int64, apiBase string) (*Telegram, error) {
	if token == "" || chatID == 0 {
		return nil, fmt.Errorf("telegram: token and chat id are required")
	}
	if apiBase == "" {
		apiBase = "https://api.telegram.org"
	}
	client := &http.Client{Timeout: DeliverTimeout}
	b, err := tgbot.NewBotAPIWithClient(token, apiBase+"/bot%s/%s", client)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	return &Telegram{bot: b, chatID: chatID}, nil
}

func (t *Telegram) Name() string { return "telegram" }

// Deliver telegram-bot-api не принимает ctx, таймаут держит http.Client.
func (t *Telegram) Deliver(ctx context.Context, title, body string, meta models.NotifyMeta) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	text := "*" + tgbot.EscapeText(tgbot.ModeMarkdown, title) + "*\n" + tgbot.EscapeText(tgbot.ModeMarkdown, body)
	if meta.URL != "" {
		text += "\n" + tgbot.EscapeText(tgbot.ModeMarkdown, meta.URL)
	}
	msg := tgbot.NewMessage(t.chatID, text)
	msg.ParseMode = tgbot.ModeMarkdown
	msg.DisableNotification = meta.Silent() || meta.Level == models.LevelPassive

	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	return nil
}
