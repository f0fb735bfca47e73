package handlers

import (
	"net/http"

	"jammertime/internal/service"

	"github.com/gin-gonic/gin"
)

// @Summary      Upload schedule
// @Description  Shift calendar as .csv (one row per shift and weekday) or .yaml. Conflicting calendars are rejected with 422.
// @Tags         schedules
// @Accept       multipart/form-data
// @Produce      json
// @Param        file  formData  file    true   "schedule file"
// @Param        name  formData  string  false  "schedule name"
// @Success      201   {object}  models.Schedule
// @Failure      400   {object}  map[string]string
// @Failure      422   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/schedules [post]
// @Security     BearerAuth
func (h *Handler) createSchedule(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errMissingFile})
		return
	}
	format, err := service.FormatFromFilename(fh.Filename)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer f.Close()

	s, err := h.services.Schedules.Create(c.Request.Context(), c.PostForm("name"), format, f)
	if err != nil {
		h.respondError(c, "failed to store schedule", "schedule_create_failed", err, "file", fh.Filename)
		return
	}
	c.JSON(http.StatusCreated, s)
}

// @Summary      Get schedule
// @Tags         schedules
// @Produce      json
// @Param        id   path      string  true  "schedule id"
// @Success      200  {object}  models.Schedule
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/schedules/{id} [get]
// @Security     BearerAuth
func (h *Handler) getSchedule(c *gin.Context) {
	s, err := h.services.Schedules.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, "failed to load schedule", "schedule_get_failed", err, "id", c.Param("id"))
		return
	}
	c.JSON(http.StatusOK, s)
}

// @Summary      List schedules
// @Tags         schedules
// @Produce      json
// @Success      200  {array}   models.Schedule
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/schedules [get]
// @Security     BearerAuth
func (h *Handler) listSchedules(c *gin.Context) {
	list, err := h.services.Schedules.List(c.Request.Context())
	if err != nil {
		h.respondError(c, "failed to load schedules", "schedule_list_failed", err)
		return
	}
	c.JSON(http.StatusOK, list)
}
