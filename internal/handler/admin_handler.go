package handler

import (
	"net/http"

	"attendance/internal/apperr"
	"attendance/internal/middleware"
	"attendance/internal/service"
	"attendance/pkg/pagination"
	"attendance/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AdminHandler serves directory management and ledger maintenance. Every route sits
// behind RequireAdmin, services re-check the acting user anyway.
type AdminHandler struct {
	users      service.UserService
	attendance service.AttendanceService
}

func NewAdminHandler(users service.UserService, attendance service.AttendanceService) *AdminHandler {
	return &AdminHandler{users: users, attendance: attendance}
}

// RegisterRoutes expects an admin-guarded group
func (h *AdminHandler) RegisterRoutes(admin *gin.RouterGroup) {
	admin.GET("/users", h.ListUsers)
	admin.PATCH("/users/:id", h.UpdateUserRole)
	admin.DELETE("/users/:id", h.DeactivateUser)
	admin.GET("/attendance", h.ListAttendance)
	admin.POST("/clear-attendance", h.ClearAttendance)
}

// ListUsers returns the directory with per-user ledger sizes
// @Summary      List users
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        page   query     int  false  "Page number (default 1)"
// @Param        limit  query     int  false  "Number of items per page (default 20)"
// @Success      200    {object}  response.Response{data=object}
// @Failure      403    {object}  response.Response
// @Router       /admin/users [get]
func (h *AdminHandler) ListUsers(c *gin.Context) {
	p := pagination.Parse(c)

	users, total, err := h.users.List(c.Request.Context(), p.Page, p.Limit)
	if err != nil {
		middleware.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(p.Listing("users", users, total)))
}

// UpdateUserRole changes another user's role, effective on their next request
// @Summary      Update user role
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                     true  "User ID"
// @Param        payload  body      service.UpdateRoleRequest  true  "New role"
// @Success      200      {object}  response.Response{data=model.User}
// @Failure      400      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /admin/users/{id} [patch]
func (h *AdminHandler) UpdateUserRole(c *gin.Context) {
	id, ok := parseUserID(c)
	if !ok {
		return
	}
	var req service.UpdateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.WriteError(c, apperr.InvalidInput("invalid request payload, role is required"))
		return
	}

	user, err := h.users.SetRole(c.Request.Context(), middleware.SubjectID(c), id, req)
	if err != nil {
		middleware.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(user))
}

// DeactivateUser soft-deletes a user. Their attendance history is kept.
// @Summary      Deactivate user
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "User ID"
// @Success      200  {object}  response.Response{data=model.User}
// @Failure      403  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /admin/users/{id} [delete]
func (h *AdminHandler) DeactivateUser(c *gin.Context) {
	id, ok := parseUserID(c)
	if !ok {
		return
	}

	user, err := h.users.Deactivate(c.Request.Context(), middleware.SubjectID(c), id)
	if err != nil {
		middleware.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(user))
}

// ListAttendance returns one day of the ledger with the owning users
// @Summary      List attendance records
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        date   query     string  false  "Day as YYYY-MM-DD (default today)"
// @Param        page   query     int     false  "Page number (default 1)"
// @Param        limit  query     int     false  "Number of items per page (default 20)"
// @Success      200    {object}  response.Response{data=object}
// @Failure      400    {object}  response.Response
// @Router       /admin/attendance [get]
func (h *AdminHandler) ListAttendance(c *gin.Context) {
	p := pagination.Parse(c)
	date := c.Query("date")

	records, total, err := h.attendance.Records(c.Request.Context(), date, p.Page, p.Limit)
	if err != nil {
		middleware.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(p.Listing("records", records, total)))
}

// ClearAttendance deletes every attendance record
// @Summary      Clear all attendance
// @Description  Irreversible. The confirmation phrase must be exactly "DELETE MY DATA".
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.ClearAttendanceRequest  true  "Confirmation"
// @Success      200      {object}  response.Response{data=service.ClearResult}
// @Failure      400      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Router       /admin/clear-attendance [post]
func (h *AdminHandler) ClearAttendance(c *gin.Context) {
	var req service.ClearAttendanceRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	res, err := h.attendance.ClearAll(c.Request.Context(), middleware.SubjectID(c), req)
	if err != nil {
		middleware.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(res))
}

func parseUserID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		middleware.WriteError(c, apperr.InvalidInput("user id must be a UUID"))
		return uuid.Nil, false
	}
	return id, true
}
