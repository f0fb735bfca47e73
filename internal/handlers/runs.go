package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"jammertime/internal/models"
	"jammertime/internal/render"
	"jammertime/internal/service"

	"github.com/gin-gonic/gin"
)

const statusCanceling = "canceling"

// runRequest is the body of POST /api/v1/runs. Durations use Go syntax
// ("60m", "90s"); empty fields take the server defaults.
type runRequest struct {
	ScheduleID       string   `json:"schedule_id" binding:"required" example:"6f1c..."`
	From             string   `json:"from,omitempty" example:"2025-03-03"`
	To               string   `json:"to,omitempty" example:"2025-03-10"`
	ErrorState       string   `json:"error_state,omitempty" example:"ERROR"`
	RunningStates    []string `json:"running_states,omitempty" example:"RUNNING"`
	MaxJamDuration   string   `json:"max_jam_duration,omitempty" example:"60m"`
	IdleThreshold    string   `json:"idle_threshold,omitempty" example:"5m"`
	ShiftStartGrace  string   `json:"shift_start_grace,omitempty"`
	BreakEndGrace    string   `json:"break_end_grace,omitempty"`
	Precedence       []string `json:"precedence,omitempty"`
	Workers          int      `json:"workers,omitempty"`
	ValidateRegistry bool     `json:"validate_registry,omitempty"`
}

func (r runRequest) toService() (service.RunRequest, error) {
	out := service.RunRequest{ScheduleID: r.ScheduleID, ValidateRegistry: r.ValidateRegistry}
	var err error
	if r.From != "" {
		if out.From, err = parseQueryTime(r.From); err != nil {
			return out, fmt.Errorf("from: %w", err)
		}
	}
	if r.To != "" {
		if out.To, err = parseQueryTime(r.To); err != nil {
			return out, fmt.Errorf("to: %w", err)
		}
	}
	cfg := models.CalcConfig{ErrorState: r.ErrorState, RunningStates: r.RunningStates, Workers: r.Workers}
	for _, d := range []struct {
		name string
		in   string
		dst  *time.Duration
	}{
		{"max_jam_duration", r.MaxJamDuration, &cfg.MaxJamDuration},
		{"idle_threshold", r.IdleThreshold, &cfg.IdleThreshold},
		{"shift_start_grace", r.ShiftStartGrace, &cfg.ShiftStartGrace},
		{"break_end_grace", r.BreakEndGrace, &cfg.BreakEndGrace},
	} {
		if d.in == "" {
			continue
		}
		if *d.dst, err = time.ParseDuration(d.in); err != nil {
			return out, fmt.Errorf("%s: %w", d.name, err)
		}
	}
	if r.IdleThreshold != "" && cfg.IdleThreshold <= 0 {
		return out, fmt.Errorf("idle_threshold must be positive, got %s", cfg.IdleThreshold)
	}
	if cfg.Precedence, err = models.ParsePrecedence(r.Precedence); err != nil {
		return out, err
	}
	out.Config = cfg
	return out, nil
}

// @Summary      Start a calculation run
// @Description  Runs asynchronously over the stored events; poll GET /api/v1/runs/{id} or stream /ws/runs/{id}.
// @Tags         runs
// @Accept       json
// @Produce      json
// @Param        body  body      runRequest  true  "run parameters"
// @Success      202   {object}  models.Run
// @Failure      400   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Failure      422   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/runs [post]
// @Security     BearerAuth
func (h *Handler) startRun(c *gin.Context) {
	var body runRequest
	if ok := h.bindJSONOrBadRequest(c, &body); !ok {
		return
	}
	req, err := body.toService()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	run, err := h.services.Runs.Start(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, "failed to start run", "run_start_failed", err, "schedule_id", req.ScheduleID)
		return
	}
	c.JSON(http.StatusAccepted, run)
}

// @Summary      Get run
// @Tags         runs
// @Produce      json
// @Param        id   path      string  true  "run id"
// @Success      200  {object}  models.Run
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/runs/{id} [get]
// @Security     BearerAuth
func (h *Handler) getRun(c *gin.Context) {
	run, err := h.services.Runs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, "failed to load run", "run_get_failed", err, "id", c.Param("id"))
		return
	}
	c.JSON(http.StatusOK, run)
}

// @Summary      Run summary tree
// @Description  Shift → state durations plus unmapped time and exclusions. ?format=text renders the terminal tree.
// @Tags         runs
// @Produce      json
// @Produce      plain
// @Param        id      path   string  true   "run id"
// @Param        format  query  string  false  "json or text"  Enums(json,text)
// @Success      200  {object}  render.Node
// @Failure      404  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Router       /api/v1/runs/{id}/tree [get]
// @Security     BearerAuth
func (h *Handler) getRunTree(c *gin.Context) {
	sum, err := h.services.Runs.Summary(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, "failed to load summary", "run_tree_failed", err, "id", c.Param("id"))
		return
	}
	if c.Query("format") == "text" {
		var buf bytes.Buffer
		render.WriteTree(&buf, sum)
		c.String(http.StatusOK, buf.String())
		return
	}
	c.JSON(http.StatusOK, render.Tree(sum))
}

// @Summary      Cancel run
// @Description  The run stops after its current machine partition.
// @Tags         runs
// @Produce      json
// @Param        id   path      string  true  "run id"
// @Success      202  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Router       /api/v1/runs/{id} [delete]
// @Security     BearerAuth
func (h *Handler) cancelRun(c *gin.Context) {
	if err := h.services.Runs.Cancel(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, "failed to cancel run", "run_cancel_failed", err, "id", c.Param("id"))
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": statusCanceling})
}

// @Summary      List runs
// @Tags         runs
// @Produce      json
// @Param        limit  query     int  false  "maximum number of runs"
// @Success      200    {array}   models.Run
// @Failure      400    {object}  map[string]string
// @Router       /api/v1/runs [get]
// @Security     BearerAuth
func (h *Handler) listRuns(c *gin.Context) {
	limit := 0
	if qs := c.Query("limit"); qs != "" {
		n, err := strconv.Atoi(qs)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": errLimitInvalid})
			return
		}
		limit = n
	}
	list, err := h.services.Runs.List(c.Request.Context(), limit)
	if err != nil {
		h.respondError(c, "failed to load runs", "run_list_failed", err)
		return
	}
	c.JSON(http.StatusOK, list)
}
