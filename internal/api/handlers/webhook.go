package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"

	"github.com/adminboard/backend-api/internal/logging"
	"github.com/adminboard/backend-api/internal/telegram"
	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// SecretTokenHeader carries the secret registered with setWebhook.
const SecretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

const maxUpdateBody = 1 << 20

// WebhookHandler receives bot updates pushed by Telegram.
type WebhookHandler struct {
	dispatcher *telegram.Dispatcher
	secret     []byte
	logger     *logging.StandardLogger
}

func NewWebhookHandler(dispatcher *telegram.Dispatcher, secret string, logger *logging.StandardLogger) *WebhookHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &WebhookHandler{
		dispatcher: dispatcher,
		secret:     []byte(secret),
		logger:     logger.WithComponent("telegram_webhook"),
	}
}

// HandleUpdate always acknowledges a well-formed update with 200 so that
// Telegram does not redeliver it; dispatch failures are only logged.
func (h *WebhookHandler) HandleUpdate(c *gin.Context) {
	if len(h.secret) == 0 || subtle.ConstantTimeCompare([]byte(c.GetHeader(SecretTokenHeader)), h.secret) != 1 {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid webhook secret."})
		return
	}

	var update tgbotapi.Update
	if err := json.NewDecoder(io.LimitReader(c.Request.Body, maxUpdateBody)).Decode(&update); err != nil {
		h.logger.Warn("Discarding malformed update", zap.Error(err))
		badRequest(c, "Invalid update payload.")
		return
	}

	h.dispatcher.HandleUpdate(c.Request.Context(), update)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
