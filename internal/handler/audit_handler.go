package handler

import (
	"net/http"

	"attendance/internal/middleware"
	"attendance/internal/service"
	"attendance/pkg/pagination"
	"attendance/pkg/response"

	"github.com/gin-gonic/gin"
)

type AuditHandler struct {
	audit service.AuditService
}

func NewAuditHandler(audit service.AuditService) *AuditHandler {
	return &AuditHandler{audit: audit}
}

// RegisterRoutes expects an admin-guarded group
func (h *AuditHandler) RegisterRoutes(admin *gin.RouterGroup) {
	admin.GET("/audit-logs", h.GetAuditLogs)
}

// GetAuditLogs lists attendance and directory changes, newest first
// @Summary      Get audit logs
// @Description  Who changed what and when, including identity provider webhooks
// @Tags         admin
// @Security     BearerAuth
// @Produce      json
// @Param        action    query     string  false  "Only this action, e.g. CHECK_IN"
// @Param        entityId  query     string  false  "Only entries about this record or user"
// @Param        page      query     int     false  "Page number (default 1)"
// @Param        limit     query     int     false  "Number of items per page (default 20)"
// @Success      200       {object}  response.Response{data=object}
// @Failure      400       {object}  response.Response
// @Router       /admin/audit-logs [get]
func (h *AuditHandler) GetAuditLogs(c *gin.Context) {
	p := pagination.Parse(c)

	entries, total, err := h.audit.List(c.Request.Context(), service.AuditQuery{
		Action:   c.Query("action"),
		EntityID: c.Query("entityId"),
		Page:     p.Page,
		Limit:    p.Limit,
	})
	if err != nil {
		middleware.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(p.Listing("logs", entries, total)))
}
