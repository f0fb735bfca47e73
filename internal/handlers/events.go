package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"jammertime/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	errFromInvalid  = "invalid 'from' time; use RFC3339 or YYYY-MM-DD"
	errToInvalid    = "invalid 'to' time; use RFC3339 or YYYY-MM-DD"
	errLimitInvalid = "invalid 'limit'; use a positive integer"
	errMissingFile  = "multipart field 'file' is required"

	layoutDateTime = "2006-01-02 15:04:05"
	layoutDate     = "2006-01-02"
)

// isDateOnly reports whether the query string represents a date without time component.
func isDateOnly(s string) bool {
	return !strings.ContainsAny(s, "T ")
}

// @Summary      Upload machine events
// @Description  Wide CSV: a Time column plus one column of state codes per machine.
// @Tags         events
// @Accept       multipart/form-data
// @Produce      json
// @Param        file  formData  file  true  "machine CSV"
// @Success      200   {object}  models.Registry
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/events/upload [post]
// @Security     BearerAuth
func (h *Handler) uploadEvents(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errMissingFile})
		return
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer f.Close()

	reg, err := h.services.EventLog.Import(c.Request.Context(), f)
	if err != nil {
		h.respondError(c, "failed to store events", "events_import_failed", err, "file", fh.Filename)
		return
	}
	c.JSON(http.StatusOK, reg)
}

// @Summary      List events
// @Description  Events intersecting [from, to). If 'to' is date-only, the whole day is included.
// @Tags         events
// @Produce      json
// @Param        machine  query  string  false  "Machine id"
// @Param        from     query  string  false  "Start of range (RFC3339, 'YYYY-MM-DD HH:MM:SS', or 'YYYY-MM-DD')"  example(2025-03-03)
// @Param        to       query  string  false  "End of range; date-only means end of that day"  example(2025-03-04)
// @Param        limit    query  int     false  "Maximum number of events"
// @Success      200  {object}  map[string]interface{}  "count, events"
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/events [get]
// @Security     BearerAuth
func (h *Handler) listEvents(c *gin.Context) {
	f := service.LogFilter{MachineID: c.Query("machine")}
	var err error
	if qs := c.Query("from"); qs != "" {
		if f.From, err = parseQueryTime(qs); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": errFromInvalid})
			return
		}
	}
	if qs := c.Query("to"); qs != "" {
		if f.To, err = parseQueryTime(qs); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": errToInvalid})
			return
		}
		if isDateOnly(qs) {
			f.To = f.To.Add(24 * time.Hour)
		}
	}
	if qs := c.Query("limit"); qs != "" {
		if f.Limit, err = strconv.Atoi(qs); err != nil || f.Limit <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": errLimitInvalid})
			return
		}
	}

	events, err := h.services.EventLog.List(c.Request.Context(), f)
	if err != nil {
		h.respondError(c, "failed to load events", "events_list_failed", err, "from", f.From, "to", f.To)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":  len(events),
		"events": events,
	})
}

// @Summary      Event registry
// @Description  Machines, state codes and time range of the stored log.
// @Tags         events
// @Produce      json
// @Success      200  {object}  models.Registry
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/events/registry [get]
// @Security     BearerAuth
func (h *Handler) getRegistry(c *gin.Context) {
	reg, err := h.services.EventLog.Registry(c.Request.Context())
	if err != nil {
		h.respondError(c, "failed to load registry", "events_registry_failed", err)
		return
	}
	c.JSON(http.StatusOK, reg)
}

func parseQueryTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, layoutDateTime, layoutDate} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf(
		"invalid time format %q, expected one of: "+
			"RFC3339 (e.g. 2025-08-27T15:04:05Z), "+
			"'YYYY-MM-DD HH:MM:SS', "+
			"'YYYY-MM-DD'",
		s,
	)
}
