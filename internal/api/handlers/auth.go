package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/adminboard/backend-api/internal/logging"
	"github.com/adminboard/backend-api/internal/middleware"
	"github.com/adminboard/backend-api/internal/models"
	"github.com/adminboard/backend-api/internal/services"
	"github.com/gin-gonic/gin"
)

const maxAuthBody = 64 << 10

// AuthHandler serves the /api/auth endpoints.
type AuthHandler struct {
	auth   *services.AuthService
	logger *logging.StandardLogger
}

func NewAuthHandler(auth *services.AuthService, logger *logging.StandardLogger) *AuthHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &AuthHandler{auth: auth, logger: logger.WithComponent("auth_handler")}
}

// Register creates a password account. Elevated roles are granted only when
// the caller is an authenticated Admin.
func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Username, a valid email and a password of at least 6 characters are required.")
		return
	}

	resp, err := h.auth.Register(c.Request.Context(), req, middleware.CurrentRole(c))
	if err != nil {
		respondError(c, h.logger, err, "register", http.StatusBadRequest)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Email and password are required.")
		return
	}

	resp, err := h.auth.Login(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.logger, err, "login", http.StatusBadRequest)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// TelegramLogin accepts the Login Widget callback as a JSON object.
func (h *AuthHandler) TelegramLogin(c *gin.Context) {
	fields, err := decodeWidgetFields(io.LimitReader(c.Request.Body, maxAuthBody))
	if err != nil {
		badRequest(c, "Invalid Telegram login payload.")
		return
	}

	resp, err := h.auth.WidgetLogin(c.Request.Context(), fields)
	if err != nil {
		respondError(c, h.logger, err, "telegram_widget_login", http.StatusBadRequest)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *AuthHandler) TelegramMiniApp(c *gin.Context) {
	var req models.MiniAppLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "initData is required.")
		return
	}

	resp, err := h.auth.MiniAppLogin(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.logger, err, "telegram_miniapp_login", http.StatusBadRequest)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *AuthHandler) TelegramInit(c *gin.Context) {
	resp, err := h.auth.InitDeepLink(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err, "telegram_init", http.StatusBadRequest)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *AuthHandler) TelegramStatus(c *gin.Context) {
	resp, err := h.auth.DeepLinkStatus(c.Request.Context(), c.Param("token"))
	if err != nil {
		respondError(c, h.logger, err, "telegram_status", http.StatusBadRequest)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// decodeWidgetFields flattens the widget JSON object into the string map the
// verifier signs over. Numbers keep their literal form so id and auth_date
// hash exactly as Telegram sent them.
func decodeWidgetFields(r io.Reader) (map[string]string, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, fmt.Errorf("payload must be a JSON object")
	}

	fields := make(map[string]string, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case nil:
		case string:
			fields[k] = val
		case json.Number:
			fields[k] = val.String()
		case bool:
			fields[k] = fmt.Sprint(val)
		default:
			return nil, fmt.Errorf("field %s has unsupported type %T", k, v)
		}
	}
	return fields, nil
}
