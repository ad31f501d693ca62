package telegram

import (
	"context"
	"fmt"
	"sort"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/selivandex/forecastr/pkg/logger"
	"github.com/selivandex/forecastr/pkg/models"
)

// sender is the part of the bot API used for delivery
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier sends featured and trading-window digests to one chat
type Notifier struct {
	api       sender
	chatID    int64
	templates *TemplateManager
}

// NewNotifier creates Telegram notifier
func NewNotifier(botToken string, chatID int64) (*Notifier, error) {
	if botToken == "" {
		return nil, fmt.Errorf("telegram bot token is required")
	}

	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot API: %w", err)
	}
	bot.Debug = false

	logger.Info("telegram notifier initialized", zap.String("bot_username", bot.Self.UserName))
	return newNotifier(bot, chatID)
}

func newNotifier(api sender, chatID int64) (*Notifier, error) {
	tm, err := NewTemplateManager()
	if err != nil {
		return nil, err
	}
	return &Notifier{api: api, chatID: chatID, templates: tm}, nil
}

type categoryDigest struct {
	Name    string
	Tickers []models.FeaturedTicker
}

// NotifyFeatured sends the featured list of a period
func (n *Notifier) NotifyFeatured(_ context.Context, period string, featured map[string][]models.FeaturedTicker) error {
	categories := make([]categoryDigest, 0, len(featured))
	for _, name := range sortedKeys(featured) {
		categories = append(categories, categoryDigest{Name: name, Tickers: featured[name]})
	}

	msg, err := n.templates.Execute("featured_digest.tmpl", map[string]interface{}{
		"Period":     period,
		"Categories": categories,
	})
	if err != nil {
		return err
	}
	return n.send(msg)
}

// SymbolWindows groups windows of one symbol for the digest
type SymbolWindows struct {
	Symbol  string
	Windows []models.TradingWindow
}

// NotifyWindows sends the top trading windows of several symbols
func (n *Notifier) NotifyWindows(_ context.Context, daysAhead int, windows []SymbolWindows) error {
	msg, err := n.templates.Execute("window_digest.tmpl", map[string]interface{}{
		"DaysAhead": daysAhead,
		"Symbols":   windows,
	})
	if err != nil {
		return err
	}
	return n.send(msg)
}

func (n *Notifier) send(text string) error {
	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ParseMode = "Markdown"

	if _, err := n.api.Send(msg); err != nil {
		logger.Error("failed to send telegram message",
			zap.Int64("chat_id", n.chatID),
			zap.Error(err),
		)
		return err
	}
	return nil
}

func sortedKeys(m map[string][]models.FeaturedTicker) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
