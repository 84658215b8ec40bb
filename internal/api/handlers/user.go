package handlers

import (
	"net/http"

	"github.com/adminboard/backend-api/internal/logging"
	"github.com/adminboard/backend-api/internal/middleware"
	"github.com/adminboard/backend-api/internal/models"
	"github.com/adminboard/backend-api/internal/services"
	"github.com/gin-gonic/gin"
)

// UserHandler serves the authenticated /api/users endpoints.
type UserHandler struct {
	users  *services.UserService
	logger *logging.StandardLogger
}

func NewUserHandler(users *services.UserService, logger *logging.StandardLogger) *UserHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &UserHandler{users: users, logger: logger.WithComponent("user_handler")}
}

func (h *UserHandler) Me(c *gin.Context) {
	user, err := h.users.Me(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		respondError(c, h.logger, err, "get_me", http.StatusConflict)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *UserHandler) UpdatePhone(c *gin.Context) {
	var req models.UpdatePhoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Phone number is required.")
		return
	}

	user, err := h.users.UpdatePhone(c.Request.Context(), middleware.CurrentUserID(c), req.PhoneNumber)
	if err != nil {
		respondError(c, h.logger, err, "update_phone", http.StatusConflict)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":      "Phone number updated successfully.",
		"phone_number": user.PhoneNumber,
	})
}
