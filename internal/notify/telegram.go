package notify

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"request-radar/internal/models"
)

// telegramSender is the part of *tgbotapi.BotAPI used here.
type telegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier posts one HTML message per request to a chat or channel.
type TelegramNotifier struct {
	bot          telegramSender
	chatID       int64
	channel      string
	previewRunes int
}

// NewTelegramNotifier authenticates the bot token (one getMe call) and
// returns a notifier for chat. chat is a numeric id or an @channel name.
func NewTelegramNotifier(token, chat string, previewRunes int) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}
	return newTelegramNotifier(bot, chat, previewRunes)
}

func newTelegramNotifier(bot telegramSender, chat string, previewRunes int) (*TelegramNotifier, error) {
	if previewRunes <= 0 {
		previewRunes = DefaultPreviewRunes
	}
	n := &TelegramNotifier{bot: bot, previewRunes: previewRunes}
	chat = strings.TrimSpace(chat)
	if strings.HasPrefix(chat, "@") {
		n.channel = chat
		return n, nil
	}
	id, err := strconv.ParseInt(chat, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("telegram chat id %q: %w", chat, err)
	}
	n.chatID = id
	return n, nil
}

// Notify sends the message. The context is not used: the bot API call is
// bounded by the bot's own HTTP client timeout.
func (n *TelegramNotifier) Notify(_ context.Context, _ string, req models.Request) error {
	text := FormatMessage(req, n.previewRunes)
	var msg tgbotapi.MessageConfig
	if n.channel != "" {
		msg = tgbotapi.NewMessageToChannel(n.channel, text)
	} else {
		msg = tgbotapi.NewMessage(n.chatID, text)
	}
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if req.Link != "" {
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonURL("عرض الطلب", req.Link)),
		)
	}
	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send request=%d: %w", req.ID, err)
	}
	return nil
}
