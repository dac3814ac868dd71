package handler

import (
	"net/http"

	"attendance/internal/middleware"
	"attendance/internal/service"
	"attendance/pkg/response"

	"github.com/gin-gonic/gin"
)

type StatisticsHandler struct {
	stats service.StatsService
	users service.UserService
}

func NewStatisticsHandler(stats service.StatsService, users service.UserService) *StatisticsHandler {
	return &StatisticsHandler{stats: stats, users: users}
}

// RegisterRoutes expects an admin-guarded group
func (h *StatisticsHandler) RegisterRoutes(admin *gin.RouterGroup) {
	admin.GET("/attendance/stats", h.GetAttendanceStats)
	admin.GET("/users/stats", h.GetUserStats)
}

// @Summary      Daily attendance statistics
// @Description  Checked-in, checked-out and pending counts plus the average worked hours of closed cycles
// @Tags         admin
// @Produce      json
// @Param        date  query  string  false  "Day as YYYY-MM-DD (default today)"
// @Success      200 {object} response.Response{data=model.AttendanceStats}
// @Failure      400 {object} response.Response "Invalid date format"
// @Failure      403 {object} response.Response
// @Security     BearerAuth
// @Router       /admin/attendance/stats [get]
func (h *StatisticsHandler) GetAttendanceStats(c *gin.Context) {
	stats, err := h.stats.AttendanceStats(c.Request.Context(), c.Query("date"))
	if err != nil {
		middleware.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(stats))
}

// @Summary      Directory statistics
// @Description  Active users by role and how many of them may record attendance
// @Tags         admin
// @Produce      json
// @Success      200 {object} response.Response{data=model.UserStats}
// @Failure      403 {object} response.Response
// @Security     BearerAuth
// @Router       /admin/users/stats [get]
func (h *StatisticsHandler) GetUserStats(c *gin.Context) {
	stats, err := h.users.Stats(c.Request.Context())
	if err != nil {
		middleware.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(stats))
}
