package handlers

import (
	"errors"
	"net/http"

	"uvchamber/internal/control"
	"uvchamber/internal/profile"
	"uvchamber/internal/repository"
	"uvchamber/internal/service"

	"github.com/gin-gonic/gin"
)

// Status values carried in command responses.
const (
	statusOK      = "ok"
	statusStarted = "started"
	statusStopped = "stopped"
	statusPaused  = "paused"
	statusResumed = "resumed"
	statusModeSet = "mode_set"
	statusLoaded  = "profile_loaded"
	statusAcked   = "fault_acknowledged"

	errGetStatus       = "failed to load status"
	errInvalidBodyPref = "invalid body: "
)

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// respondWithStatus answers 200 with the command outcome; the current
// snapshot rides along when it can be read.
func (h *Handler) respondWithStatus(c *gin.Context, status string, extra gin.H) {
	ctx := c.Request.Context()
	resp := gin.H{"status": status}
	for k, v := range extra {
		resp[k] = v
	}
	st, err := h.services.Monitoring.Status(ctx)
	if err == nil {
		resp["state"] = st
	}
	c.JSON(http.StatusOK, resp)
}

// commandError maps refused commands to machine-readable JSON: state machine
// rejects → 409 (bad mode strings → 400), profile validation → 422, missing
// library profiles → 404, anything else → 500.
func (h *Handler) commandError(c *gin.Context, logKey string, err error, kv ...interface{}) {
	var rej *control.Reject
	if errors.As(err, &rej) {
		code := http.StatusConflict
		if rej.Code == control.RejectInvalidMode {
			code = http.StatusBadRequest
		}
		c.JSON(code, gin.H{"error": rej.Msg, "code": rej.Code})
		return
	}

	var verr *profile.ValidationError
	if errors.As(err, &verr) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error": verr.Error(),
			"code":  verr.Code,
			"path":  verr.Path,
		})
		return
	}

	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	h.logAndJSONError(c, http.StatusInternalServerError, err.Error(), logKey, err, kv...)
}

// Request DTO for selecting the run mode.
type modeRequest struct {
	Mode string `json:"mode" binding:"required"` // STANDARD | CUSTOM
}

// Request DTO for staging a profile: a library name or an inline document.
type loadRequest struct {
	Name    string           `json:"name,omitempty"`
	Profile *profile.Profile `json:"profile,omitempty"`
}

// Request DTO for a standard run. Zero fields fall back to configured
// defaults.
type standardRequest struct {
	DurationMs   int64   `json:"duration_ms,omitempty"`
	IntensityPct float64 `json:"intensity_pct,omitempty"`
}

// SelectModeRequest is an exported model for Swagger docs of the mode payload.
type SelectModeRequest struct {
	// Mode to select. Allowed: STANDARD, CUSTOM
	Mode string `json:"mode" example:"CUSTOM"`
}

// StandardRunRequest is an exported model for Swagger docs of the standard
// run payload.
type StandardRunRequest struct {
	// Run duration in milliseconds (defaulted when omitted)
	DurationMs int64 `json:"duration_ms,omitempty" example:"60000"`
	// Panel intensity in percent (defaulted when omitted)
	IntensityPct float64 `json:"intensity_pct,omitempty" example:"50"`
}

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

// @Summary      Select run mode
// @Description  STANDARD runs a fixed time and intensity; CUSTOM runs a staged profile. Idle only.
// @Tags         chamber
// @Accept       json
// @Produce      json
// @Param        body  body   SelectModeRequest  true  "Mode payload"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Router       /api/v1/chamber/mode [post]
// @Security     BearerAuth
func (h *Handler) selectMode(c *gin.Context) {
	var req modeRequest
	if ok := h.bindJSONOrBadRequest(c, &req); !ok {
		return
	}
	if err := h.services.Chamber.SelectMode(c.Request.Context(), req.Mode); err != nil {
		h.commandError(c, "chamber_select_mode_failed", err, "mode", req.Mode)
		return
	}
	h.respondWithStatus(c, statusModeSet, gin.H{"mode": req.Mode})
}

// @Summary      Stage profile
// @Description  Stages a custom profile for the next run, from the library by name or inline. Custom mode, idle only.
// @Tags         chamber
// @Accept       json
// @Produce      json
// @Param        body  body   loadRequest  true  "Either name or profile"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Failure      422   {object}  map[string]string
// @Router       /api/v1/chamber/load [post]
// @Security     BearerAuth
func (h *Handler) loadProfile(c *gin.Context) {
	var req loadRequest
	if ok := h.bindJSONOrBadRequest(c, &req); !ok {
		return
	}

	ctx := c.Request.Context()
	var (
		name string
		err  error
	)
	switch {
	case req.Name != "" && req.Profile == nil:
		name = req.Name
		err = h.services.Chamber.LoadProfileByName(ctx, req.Name)
	case req.Profile != nil && req.Name == "":
		name = req.Profile.Name
		err = h.services.Chamber.LoadProfile(ctx, *req.Profile)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "body must carry exactly one of name or profile"})
		return
	}
	if err != nil {
		h.commandError(c, "chamber_load_failed", err, "profile", name)
		return
	}
	h.respondWithStatus(c, statusLoaded, gin.H{"profile": name})
}

// @Summary      Start custom run
// @Description  Starts the staged profile. Custom mode, idle, lid closed.
// @Tags         chamber
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "status, state"
// @Failure      401  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Router       /api/v1/chamber/start [post]
// @Security     BearerAuth
func (h *Handler) start(c *gin.Context) {
	if err := h.services.Chamber.Start(c.Request.Context()); err != nil {
		h.commandError(c, "chamber_start_failed", err)
		return
	}
	h.respondWithStatus(c, statusStarted, gin.H{})
}

// @Summary      Start standard run
// @Description  Starts a fixed time-and-intensity run; omitted fields use configured defaults. Idle, lid closed.
// @Tags         chamber
// @Accept       json
// @Produce      json
// @Param        body  body   StandardRunRequest  false  "Run parameters"
// @Success      200   {object}  map[string]interface{}
// @Failure      401   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Failure      422   {object}  map[string]string
// @Router       /api/v1/chamber/standard [post]
// @Security     BearerAuth
func (h *Handler) startStandard(c *gin.Context) {
	var req standardRequest
	if c.Request.ContentLength > 0 {
		if ok := h.bindJSONOrBadRequest(c, &req); !ok {
			return
		}
	}
	params := service.StandardParams{
		DurationMs:   req.DurationMs,
		IntensityPct: req.IntensityPct,
	}
	if err := h.services.Chamber.StartStandard(c.Request.Context(), params); err != nil {
		h.commandError(c, "chamber_standard_failed", err,
			"duration_ms", req.DurationMs, "intensity_pct", req.IntensityPct)
		return
	}
	h.respondWithStatus(c, statusStarted, gin.H{})
}

// @Summary      Pause run
// @Tags         chamber
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Router       /api/v1/chamber/pause [post]
// @Security     BearerAuth
func (h *Handler) pause(c *gin.Context) {
	if err := h.services.Chamber.Pause(c.Request.Context()); err != nil {
		h.commandError(c, "chamber_pause_failed", err)
		return
	}
	h.respondWithStatus(c, statusPaused, gin.H{})
}

// @Summary      Resume run
// @Description  Refused while the lid is open.
// @Tags         chamber
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Router       /api/v1/chamber/resume [post]
// @Security     BearerAuth
func (h *Handler) resume(c *gin.Context) {
	if err := h.services.Chamber.Resume(c.Request.Context()); err != nil {
		h.commandError(c, "chamber_resume_failed", err)
		return
	}
	h.respondWithStatus(c, statusResumed, gin.H{})
}

// @Summary      Stop run
// @Tags         chamber
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Router       /api/v1/chamber/stop [post]
// @Security     BearerAuth
func (h *Handler) stop(c *gin.Context) {
	if err := h.services.Chamber.Stop(c.Request.Context()); err != nil {
		h.commandError(c, "chamber_stop_failed", err)
		return
	}
	h.respondWithStatus(c, statusStopped, gin.H{})
}

// @Summary      Acknowledge fault
// @Description  Clears a latched fault and returns the chamber to idle.
// @Tags         chamber
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Router       /api/v1/chamber/ack-fault [post]
// @Security     BearerAuth
func (h *Handler) ackFault(c *gin.Context) {
	if err := h.services.Chamber.AcknowledgeFault(c.Request.Context()); err != nil {
		h.commandError(c, "chamber_ack_fault_failed", err)
		return
	}
	h.respondWithStatus(c, statusAcked, gin.H{})
}

// @Summary      Get chamber status
// @Tags         chamber
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/status [get]
// @Security     BearerAuth
func (h *Handler) getStatus(c *gin.Context) {
	st, err := h.services.Monitoring.Status(c.Request.Context())
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errGetStatus, "chamber_get_status_failed", err)
		return
	}
	c.JSON(http.StatusOK, st)
}
