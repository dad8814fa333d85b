package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-telegram/bot"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"metering-service/internal/utils"
)

// TelegramGateway delivers pushes to per-class Telegram chats. The bot
// client and rate limiter are built once at construction, not lazily.
type TelegramGateway struct {
	bot     *bot.Bot
	chats   map[RecipientClass]int64
	limiter *rate.Limiter
	logger  *logrus.Logger
}

// NewTelegramGateway constructs the gateway. residentChatID and boardChatID
// are the group chats of the building's residents and board.
func NewTelegramGateway(token string, residentChatID, boardChatID int64, ratePerSecond int, logger *logrus.Logger) (*TelegramGateway, error) {
	if token == "" {
		return nil, fmt.Errorf("missing Telegram bot token")
	}
	b, err := bot.New(token)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Telegram bot: %w", err)
	}
	if ratePerSecond <= 0 {
		ratePerSecond = 20
	}
	return &TelegramGateway{
		bot: b,
		chats: map[RecipientClass]int64{
			RecipientResident: residentChatID,
			RecipientBoard:    boardChatID,
		},
		limiter: rate.NewLimiter(rate.Limit(float64(ratePerSecond)), ratePerSecond),
		logger:  logger,
	}, nil
}

// SendPush sends a Markdown message to the recipient class's chat.
func (g *TelegramGateway) SendPush(ctx context.Context, recipient RecipientClass, title, message string) error {
	chatID, ok := g.chats[recipient]
	if !ok || chatID == 0 {
		return fmt.Errorf("no Telegram chat configured for recipient %q", recipient)
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("telegram rate limit exceeded: %w", err)
	}

	text := fmt.Sprintf("*%s*\n%s", title, message)
	return utils.Retry(g.logger, 3, time.Second, func() error {
		params := &bot.SendMessageParams{
			ChatID:    chatID,
			Text:      text,
			ParseMode: "Markdown",
		}
		if _, err := g.bot.SendMessage(ctx, params); err != nil {
			return fmt.Errorf("failed to send Telegram message to chat_id %d: %w", chatID, err)
		}
		return nil
	})
}
