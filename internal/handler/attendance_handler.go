package handler

import (
	"errors"
	"io"
	"net/http"

	"attendance/internal/apperr"
	"attendance/internal/identity"
	"attendance/internal/middleware"
	"attendance/internal/model"
	"attendance/internal/service"
	"attendance/pkg/pagination"
	"attendance/pkg/response"

	"github.com/gin-gonic/gin"
)

type AttendanceHandler struct {
	attendance service.AttendanceService
	photos     service.PhotoService
	auth       identity.Authenticator
	maxPhoto   int64
}

// NewAttendanceHandler wires the self-service attendance endpoints
func NewAttendanceHandler(attendance service.AttendanceService, photos service.PhotoService, auth identity.Authenticator, maxPhotoBytes int64) *AttendanceHandler {
	return &AttendanceHandler{attendance: attendance, photos: photos, auth: auth, maxPhoto: maxPhotoBytes}
}

func (h *AttendanceHandler) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/attendance")
	group.Use(middleware.RequireSession(h.auth))
	{
		group.POST("/status", h.GetStatus)
		group.POST("/check-in", h.CheckIn)
		group.POST("/check-out", h.CheckOut)
		group.GET("/history", h.GetHistory)
		group.POST("/photos", h.UploadPhoto)
	}
}

// GetStatus reports today's attendance state of the caller
// @Summary      Today's attendance status
// @Description  Read-only. Tells the client whether check-in or check-out is currently allowed.
// @Tags         attendance
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=service.TodayStatus}
// @Failure      401  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /attendance/status [post]
func (h *AttendanceHandler) GetStatus(c *gin.Context) {
	status, err := h.attendance.TodayStatus(c.Request.Context(), middleware.SubjectID(c))
	if err != nil {
		middleware.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(status))
}

// CheckIn records the caller's check-in for today
// @Summary      Check in
// @Tags         attendance
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CheckInRequest  false  "Verification photo"
// @Success      201      {object}  response.Response{data=service.AttendanceResult}
// @Failure      400      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /attendance/check-in [post]
func (h *AttendanceHandler) CheckIn(c *gin.Context) {
	var req service.CheckInRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	res, err := h.attendance.CheckIn(c.Request.Context(), middleware.SubjectID(c), req)
	if err != nil {
		middleware.WriteError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(res))
}

// CheckOut closes the caller's attendance cycle for today
// @Summary      Check out
// @Tags         attendance
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CheckOutRequest  false  "Verification photo"
// @Success      200      {object}  response.Response{data=service.AttendanceResult}
// @Failure      400      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /attendance/check-out [post]
func (h *AttendanceHandler) CheckOut(c *gin.Context) {
	var req service.CheckOutRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	res, err := h.attendance.CheckOut(c.Request.Context(), middleware.SubjectID(c), req)
	if err != nil {
		middleware.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(res))
}

// GetHistory lists the caller's own attendance, newest day first
// @Summary      Attendance history
// @Tags         attendance
// @Produce      json
// @Security     BearerAuth
// @Param        page   query     int  false  "Page number (default 1)"
// @Param        limit  query     int  false  "Number of items per page (default 20)"
// @Success      200    {object}  response.Response{data=object}
// @Router       /attendance/history [get]
func (h *AttendanceHandler) GetHistory(c *gin.Context) {
	p := pagination.Parse(c)

	records, total, err := h.attendance.History(c.Request.Context(), middleware.SubjectID(c), p.Page, p.Limit)
	if err != nil {
		middleware.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(p.Listing("records", records, total)))
}

// UploadPhoto stores a verification photo and returns its URL for the next attendance call
// @Summary      Upload verification photo
// @Tags         attendance
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        photo  formData  file    true  "Image file"
// @Param        kind   formData  string  true  "checkin or checkout"
// @Success      201    {object}  response.Response{data=service.UploadResult}
// @Failure      400    {object}  response.Response
// @Failure      403    {object}  response.Response
// @Failure      500    {object}  response.Response
// @Router       /attendance/photos [post]
func (h *AttendanceHandler) UploadPhoto(c *gin.Context) {
	// Leave room for the multipart framing around the file
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxPhoto+1<<20)

	fh, err := c.FormFile("photo")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			middleware.WriteError(c, apperr.New(apperr.KindInvalidInput, "photo exceeds the %d MB limit", h.maxPhoto>>20))
			return
		}
		middleware.WriteError(c, apperr.InvalidInput("multipart field \"photo\" is required"))
		return
	}

	f, err := fh.Open()
	if err != nil {
		middleware.WriteError(c, apperr.Wrap(err, apperr.KindInvalidInput, "failed to read photo"))
		return
	}
	defer f.Close()

	kind := model.PhotoKind(c.PostForm("kind"))
	res, err := h.photos.Upload(c.Request.Context(), middleware.SubjectID(c), kind, f)
	if err != nil {
		middleware.WriteError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(res))
}

// bindOptionalJSON accepts an empty body as the zero request.
func bindOptionalJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil && !errors.Is(err, io.EOF) {
		middleware.WriteError(c, apperr.InvalidInput("invalid request payload"))
		return false
	}
	return true
}
