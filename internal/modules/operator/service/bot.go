package service

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"market_monitor/internal/models"
)

const (
	confirmTimeout = time.Minute
	opTimeout      = 5 * time.Second
)

type pending struct {
	ch     chan bool
	msgID  int
	prompt string
}

// Bot команды оператора в чате; принимает апдейты только из своего chatID.
type Bot struct {
	api    *tgbot.BotAPI
	op     *Operator
	chatID int64
	log    *zap.Logger

	mu       sync.Mutex
	pendings map[string]*pending
}

func NewBot(token, apiBase string, chatID int64, op *Operator, log *zap.Logger) (*Bot, error) {
	client := &http.Client{Timeout: 40 * time.Second}
	api, err := tgbot.NewBotAPIWithClient(token, apiBase+"/bot%s/%s", client)
	if err != nil {
		return nil, err
	}
	return &Bot{
		api:      api,
		op:       op,
		chatID:   chatID,
		log:      log,
		pendings: make(map[string]*pending),
	}, nil
}

func (b *Bot) send(chatID int64, text string) (tgbot.Message, error) {
	return b.api.Send(tgbot.NewMessage(chatID, text))
}

// Start long polling до ctx.Done() или Stop.
func (b *Bot) Start(ctx context.Context) {
	u := tgbot.NewUpdate(0)
	u.Timeout = 30
	updates := b.api.GetUpdatesChan(u)
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) Stop() { b.api.StopReceivingUpdates() }

func (b *Bot) handleUpdate(ctx context.Context, update tgbot.Update) {
	if msg := update.Message; msg != nil {
		if msg.Chat == nil || msg.Chat.ID != b.chatID || !msg.IsCommand() {
			return
		}
		cmd, args := msg.Command(), strings.Fields(msg.CommandArguments())
		if cmd == "quant" && len(args) > 0 && strings.EqualFold(args[0], string(models.CommandReset)) {
			symbol := ""
			if len(args) > 1 {
				symbol = args[1]
			}
			go b.confirmReset(ctx, msg.Chat.ID, symbol)
			return
		}
		if _, err := b.send(msg.Chat.ID, b.Handle(ctx, cmd, args)); err != nil {
			b.log.Warn("bot reply failed", zap.Error(err))
		}
		return
	}
	if cb := update.CallbackQuery; cb != nil && cb.Message != nil && cb.Message.Chat != nil {
		if cb.Message.Chat.ID == b.chatID {
			b.handleCallback(cb)
		}
	}
}

// Handle текст ответа на команду; reset идёт через подтверждение.
func (b *Bot) Handle(ctx context.Context, cmd string, args []string) string {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	switch cmd {
	case "start", "help":
		return "Команды:\n" +
			"/status статус кванта\n" +
			"/watch наблюдаемые символы\n" +
			"/quant start|stop|reset [SYMBOL]"
	case "status":
		st, err := b.op.QuantStatus(ctx)
		if err != nil {
			return "❗️ Статус недоступен: " + err.Error()
		}
		return FormatStatus(st)
	case "watch":
		doc, err := b.op.Config(ctx)
		if err != nil {
			return "❗️ " + err.Error()
		}
		if len(doc.WatchSymbols) == 0 {
			return "📭 Список наблюдения пуст"
		}
		return "👀 " + strings.Join(doc.WatchSymbols, ", ")
	case "quant":
		if len(args) == 0 {
			return "Использование: /quant start|stop|reset [SYMBOL]"
		}
		action, err := ParseAction(args[0])
		if err != nil {
			return "❗️ " + err.Error()
		}
		symbol := ""
		if len(args) > 1 {
			symbol = args[1]
		}
		return b.runQuant(ctx, symbol, action)
	default:
		return "Неизвестная команда, см. /help"
	}
}

func (b *Bot) runQuant(ctx context.Context, symbol string, action models.CommandAction) string {
	sym, err := b.op.Quant(ctx, symbol, action)
	if err != nil {
		return "⛔ " + err.Error()
	}
	return fmt.Sprintf("✅ %s %s отправлено", sym, action)
}

func (b *Bot) confirmReset(ctx context.Context, chatID int64, symbol string) {
	prompt := "Сбросить состояние кванта? Баланс и история будут обнулены."
	if !b.Confirm(ctx, chatID, prompt, confirmTimeout) {
		return
	}
	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if _, err := b.send(chatID, b.runQuant(opCtx, symbol, models.CommandReset)); err != nil {
		b.log.Warn("bot reply failed", zap.Error(err))
	}
}

// Confirm сообщение с кнопками и ожиданием callback.
func (b *Bot) Confirm(ctx context.Context, chatID int64, prompt string, timeout time.Duration) bool {
	token := fmt.Sprintf("%d", time.Now().UnixNano())
	p := &pending{ch: make(chan bool, 1), prompt: prompt}

	b.mu.Lock()
	b.pendings[token] = p
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		delete(b.pendings, token)
		b.mu.Unlock()
	}()

	kb := tgbot.NewInlineKeyboardMarkup(tgbot.NewInlineKeyboardRow(
		tgbot.NewInlineKeyboardButtonData("✅ Да", "CONF::"+token),
		tgbot.NewInlineKeyboardButtonData("❌ Нет", "REJ::"+token),
	))
	msg := tgbot.NewMessage(chatID, prompt)
	msg.ReplyMarkup = kb
	sent, err := b.api.Send(msg)
	if err != nil {
		b.log.Warn("confirm prompt failed", zap.Error(err))
		return false
	}
	p.msgID = sent.MessageID

	tmr := time.NewTimer(timeout)
	defer tmr.Stop()

	select {
	case ok := <-p.ch:
		return ok
	case <-tmr.C:
		b.closePrompt(chatID, p, "⏳ Таймаут")
		return false
	case <-ctx.Done():
		b.closePrompt(chatID, p, "⛔️ Отменено")
		return false
	}
}

func (b *Bot) closePrompt(chatID int64, p *pending, suffix string) {
	rm := tgbot.InlineKeyboardMarkup{InlineKeyboard: [][]tgbot.InlineKeyboardButton{}}
	_, _ = b.api.Request(tgbot.NewEditMessageReplyMarkup(chatID, p.msgID, rm))
	_, _ = b.api.Request(tgbot.NewEditMessageText(chatID, p.msgID, p.prompt+"\n\n"+suffix))
}

func (b *Bot) handleCallback(cb *tgbot.CallbackQuery) {
	kind, token, ok := strings.Cut(cb.Data, "::")
	if !ok {
		return
	}
	b.mu.Lock()
	p := b.pendings[token]
	b.mu.Unlock()
	if p == nil {
		_, _ = b.api.Request(tgbot.NewCallback(cb.ID, "Запрос устарел"))
		return
	}
	accepted := kind == "CONF"
	select {
	case p.ch <- accepted:
	default:
	}
	answer := "Отменено"
	if accepted {
		answer = "Принято"
	}
	_, _ = b.api.Request(tgbot.NewCallback(cb.ID, answer))
	b.closePrompt(cb.Message.Chat.ID, p, answer)
}
