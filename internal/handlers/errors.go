package handlers

import (
	"errors"
	"net/http"

	"jammertime/internal/annotate"
	"jammertime/internal/repository"
	"jammertime/internal/schedule"
	"jammertime/internal/service"

	"github.com/gin-gonic/gin"
)

const statusOK = "ok"

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": statusOK,
	})
}

// statusFor maps service errors to HTTP codes.
func statusFor(err error) int {
	var (
		conflict *schedule.ConflictError
		order    *annotate.OrderError
	)
	switch {
	case errors.Is(err, service.ErrRunNotFound), errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrRunFinished), errors.Is(err, service.ErrRunNotReady):
		return http.StatusConflict
	case errors.As(err, &conflict), errors.As(err, &order):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrInvalidTimeRange), errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs server-side failures and writes {"error": ...}. Client
// errors echo the message; server errors hide it behind userMsg.
func (h *Handler) respondError(c *gin.Context, userMsg, logKey string, err error, kv ...interface{}) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		if h.log != nil {
			fields := append([]interface{}{"err", err}, kv...)
			h.log.Errorw(logKey, fields...)
		}
		c.JSON(code, gin.H{"error": userMsg})
		return
	}
	c.JSON(code, gin.H{"error": err.Error()})
}
