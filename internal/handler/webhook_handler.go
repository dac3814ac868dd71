package handler

import (
	"io"
	"net/http"

	"attendance/internal/apperr"
	"attendance/internal/middleware"
	"attendance/internal/service"
	"attendance/pkg/response"

	"github.com/gin-gonic/gin"
)

const maxWebhookBody = 1 << 20

type WebhookHandler struct {
	webhooks service.WebhookService
}

func NewWebhookHandler(webhooks service.WebhookService) *WebhookHandler {
	return &WebhookHandler{webhooks: webhooks}
}

func (h *WebhookHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/webhooks/identity", h.HandleIdentityEvent)
}

// HandleIdentityEvent applies a signed user lifecycle event from the identity provider
// @Summary      Identity provider webhook
// @Description  Verified with the svix-id, svix-timestamp and svix-signature headers
// @Tags         webhooks
// @Accept       json
// @Produce      json
// @Success      200  {object}  response.Response{data=service.WebhookResult}
// @Failure      400  {object}  response.Response
// @Router       /webhooks/identity [post]
func (h *WebhookHandler) HandleIdentityEvent(c *gin.Context) {
	// The signature covers the raw bytes, read them before anything parses the body
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		middleware.WriteError(c, apperr.Wrap(err, apperr.KindInvalidInput, "failed to read webhook body"))
		return
	}

	res, err := h.webhooks.Handle(c.Request.Context(), payload, c.Request.Header)
	if err != nil {
		middleware.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(res))
}
