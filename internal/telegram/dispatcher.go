package telegram

import (
	"context"
	"fmt"
	"strings"

	"github.com/adminboard/backend-api/internal/logging"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const (
	replyLoggedIn         = "You're logged in! Return to the website to continue."
	replyAlreadyCompleted = "This login was already completed. Return to the website to continue."
	replyExpired          = "This login link has expired. Please start again from the website."
	replyFailed           = "Something went wrong while logging you in. Please try again."
)

// Dispatcher reacts to bot commands.
type Dispatcher struct {
	broker *Broker
	bot    BotAPI
	logger *logging.StandardLogger
}

func NewDispatcher(broker *Broker, bot BotAPI, logger *logging.StandardLogger) *Dispatcher {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Dispatcher{
		broker: broker,
		bot:    bot,
		logger: logger.WithComponent("telegram_dispatcher"),
	}
}

// ParseStart returns the /start payload and whether text is a /start
// command at all. "/start@botname payload" is accepted.
func ParseStart(text string) (string, bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", false
	}
	cmd := fields[0]
	if at := strings.IndexByte(cmd, '@'); at >= 0 {
		cmd = cmd[:at]
	}
	if cmd != "/start" {
		return "", false
	}
	if len(fields) > 1 {
		return fields[1], true
	}
	return "", true
}

// HandleUpdate processes one update. Anything but /start is ignored.
func (d *Dispatcher) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil || msg.From.IsBot {
		return
	}
	payload, ok := ParseStart(msg.Text)
	if !ok {
		return
	}

	token, isAuth := strings.CutPrefix(payload, StartPrefix)
	if !isAuth || token == "" {
		d.reply(ctx, msg.Chat.ID, greeting(msg.From.FirstName))
		return
	}

	result, err := d.broker.CompleteSession(ctx, token, IdentityOf(msg.From))
	if err != nil {
		d.logger.WithError(err).Error("Failed to complete login session", zap.Int("update_id", update.UpdateID))
		RecordAttempt(TransportDeepLink, "error")
		d.reply(ctx, msg.Chat.ID, replyFailed)
		return
	}

	switch result {
	case ResultCompleted:
		RecordAttempt(TransportDeepLink, "success")
		d.reply(ctx, msg.Chat.ID, replyLoggedIn)
	case ResultAlreadyCompleted:
		RecordAttempt(TransportDeepLink, "already_completed")
		d.reply(ctx, msg.Chat.ID, replyAlreadyCompleted)
	default:
		RecordAttempt(TransportDeepLink, "session_not_found")
		d.reply(ctx, msg.Chat.ID, replyExpired)
	}
}

func greeting(firstName string) string {
	if firstName == "" {
		firstName = "there"
	}
	return fmt.Sprintf("Hello %s! I'm the login bot for the admin dashboard.\n\nPlease use the website to log in with Telegram.", firstName)
}

// reply never fails the update; delivery errors are only logged.
func (d *Dispatcher) reply(ctx context.Context, chatID int64, text string) {
	if d.bot == nil {
		return
	}
	if err := d.bot.SendMessage(ctx, chatID, text); err != nil {
		d.logger.WithError(err).Warn("Failed to send bot reply", zap.Int64("chat_id", chatID))
	}
}
