package handler

import (
	"net/http"

	"attendance/internal/apperr"
	"attendance/internal/identity"
	"attendance/internal/middleware"
	"attendance/internal/service"
	"attendance/pkg/response"

	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	userService service.UserService
	auth        identity.Authenticator
}

// NewUserHandler sets up the routing dependencies for the caller's own directory entry
func NewUserHandler(userService service.UserService, auth identity.Authenticator) *UserHandler {
	return &UserHandler{userService: userService, auth: auth}
}

// RegisterRoutes binds the endpoints to the gin Engine or RouterGroup
func (h *UserHandler) RegisterRoutes(router *gin.RouterGroup) {
	users := router.Group("/users")
	users.Use(middleware.RequireSession(h.auth))
	{
		users.GET("/me", h.GetMe)
		users.POST("/sync", h.Sync)
		users.GET("/permissions", h.GetPermissions)
	}
}

// Sync upserts the caller from the identity provider's attributes
// @Summary      Sync current user
// @Description  First-touch sync. New users start with role USER and cannot record attendance until promoted.
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=model.User}
// @Failure      400  {object}  response.Response
// @Failure      401  {object}  response.Response
// @Router       /users/sync [post]
func (h *UserHandler) Sync(c *gin.Context) {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		middleware.WriteError(c, apperr.Unauthenticated("authorization is missing"))
		return
	}

	user, err := h.userService.Sync(c.Request.Context(), *id)
	if err != nil {
		middleware.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(user))
}

// GetMe returns the caller's directory record
// @Summary      Get current user
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=model.User}
// @Failure      401  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /users/me [get]
func (h *UserHandler) GetMe(c *gin.Context) {
	user, err := h.userService.Me(c.Request.Context(), middleware.SubjectID(c))
	if err != nil {
		middleware.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(user))
}

// GetPermissions returns what the caller may do, derived from the directory role
// @Summary      Get current capabilities
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=service.PermissionsResponse}
// @Failure      404  {object}  response.Response
// @Router       /users/permissions [get]
func (h *UserHandler) GetPermissions(c *gin.Context) {
	perms, err := h.userService.Permissions(c.Request.Context(), middleware.SubjectID(c))
	if err != nil {
		middleware.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(perms))
}
