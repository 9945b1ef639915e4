package telegram

import (
	"context"
	"errors"
	"fmt"
	"recurring-card/config"
	"time"

	"golang.org/x/time/rate"
	"gopkg.in/telebot.v3"
)

var ErrDisabled = errors.New("telegram alerts disabled")

// AlertNotifier sends log alerts to a single chat. It never polls for updates.
type AlertNotifier struct {
	bot     *telebot.Bot
	chat    *telebot.Chat
	limiter *rate.Limiter
}

func NewAlertNotifier(cfg *config.TelegramConfig) (*AlertNotifier, error) {
	if cfg.BotToken == "" || cfg.ChatID == 0 {
		return nil, ErrDisabled
	}
	bot, err := telebot.NewBot(telebot.Settings{
		Token:   cfg.BotToken,
		Offline: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return &AlertNotifier{
		bot:  bot,
		chat: &telebot.Chat{ID: cfg.ChatID},
		// telegram allows ~20 messages per minute into one group
		limiter: rate.NewLimiter(rate.Every(3*time.Second), 5),
	}, nil
}

func (n *AlertNotifier) Notify(ctx context.Context, message string) error {
	if err := n.limiter.Wait(ctx); err != nil {
		return err
	}
	if _, err := n.bot.Send(n.chat, message, &telebot.SendOptions{DisableWebPagePreview: true}); err != nil {
		return fmt.Errorf("failed to send telegram alert: %w", err)
	}
	return nil
}
