package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/itsmahammad/UniversityERP/internal/models"
	"github.com/itsmahammad/UniversityERP/pkg/response"
)

type accountService interface {
	GetSelf(ctx context.Context, userID string) (*models.User, error)
	ChangePassword(ctx context.Context, actor models.Actor, req models.ChangePasswordRequest) error
}

// AccountHandler serves self-service endpoints for any authenticated user.
type AccountHandler struct {
	service accountService
}

// NewAccountHandler creates a new handler.
func NewAccountHandler(svc accountService) *AccountHandler {
	return &AccountHandler{service: svc}
}

// Me godoc
// @Summary Current account
// @Description Return the authenticated user's account
// @Tags Account
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /account/me [get]
func (h *AccountHandler) Me(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	user, err := h.service.GetSelf(c.Request.Context(), actor.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, user, nil)
}

// ChangePassword godoc
// @Summary Change own password
// @Description Change the authenticated user's password
// @Tags Account
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.ChangePasswordRequest true "Change password payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /account/change-password [post]
func (h *AccountHandler) ChangePassword(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	var req models.ChangePasswordRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.service.ChangePassword(c.Request.Context(), actor, req); err != nil {
		response.Error(c, err)
		return
	}

	response.Message(c, http.StatusOK, "password changed", nil, nil)
}
