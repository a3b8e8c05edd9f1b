package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"smart_ventilation/internal/service"

	"github.com/gin-gonic/gin"
)

// Common response/status constants to avoid magic strings and typos.
const (
	errListFans        = "failed to list fans"
	errGetFan          = "failed to load fan"
	errCreateFan       = "failed to create fan"
	errControlFan      = "failed to apply control"
	errGetReadings     = "failed to load readings"
	errIngestReport    = "failed to ingest report"
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

// fanIDParam parses the :id path segment; writes a 400 and returns false
// when it is not a number.
func fanIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid fan id"})
		return 0, false
	}
	return id, true
}

// Request DTO for fan registration.
type createFanRequest struct {
	Name     string `json:"name" binding:"required"`
	Location string `json:"location" binding:"required"`
	DeviceID string `json:"device_id" binding:"required"`
	ThingID  string `json:"thing_id,omitempty"`
}

// Request DTO for manual control.
type controlRequest struct {
	State string `json:"state" binding:"required"` // ON | OFF
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// @Summary      List fans
// @Tags         fans
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "fans"
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/fans [get]
// @Security     BearerAuth
func (h *Handler) listFans(c *gin.Context) {
	fans, err := h.services.List(c.Request.Context(), callerID(c))
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errListFans, "fans_list_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"fans": fans})
}

// @Summary      Register a fan
// @Tags         fans
// @Accept       json
// @Produce      json
// @Param        body  body   createFanRequest  true  "Fan payload"
// @Success      201   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Router       /api/v1/fans [post]
// @Security     BearerAuth
func (h *Handler) createFan(c *gin.Context) {
	var req createFanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}

	fan, err := h.services.Registry.Create(c.Request.Context(), callerID(c), service.CreateFanParams{
		Name:     req.Name,
		Location: req.Location,
		DeviceID: req.DeviceID,
		ThingID:  req.ThingID,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidFanParams):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrDuplicateDeviceID):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			h.logAndJSONError(c, http.StatusInternalServerError, errCreateFan, "fan_create_failed", err)
		}
		return
	}
	c.JSON(http.StatusCreated, gin.H{"fan": fan})
}

// @Summary      Get a fan
// @Tags         fans
// @Produce      json
// @Param        id  path  int  true  "Fan ID"
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/fans/{id} [get]
// @Security     BearerAuth
func (h *Handler) getFan(c *gin.Context) {
	id, ok := fanIDParam(c)
	if !ok {
		return
	}
	fan, err := h.services.Registry.Get(c.Request.Context(), callerID(c), id)
	if err != nil {
		if errors.Is(err, service.ErrFanNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "fan not found"})
			return
		}
		h.logAndJSONError(c, http.StatusInternalServerError, errGetFan, "fan_get_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"fan": fan})
}

// @Summary      Recent readings
// @Tags         fans
// @Produce      json
// @Param        id     path   int  true   "Fan ID"
// @Param        limit  query  int  false  "Max rows (default 100, cap 1000)"
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/fans/{id}/readings [get]
// @Security     BearerAuth
func (h *Handler) fanReadings(c *gin.Context) {
	id, ok := fanIDParam(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	readings, err := h.services.Registry.Readings(c.Request.Context(), callerID(c), id, limit)
	if err != nil {
		if errors.Is(err, service.ErrFanNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "fan not found"})
			return
		}
		h.logAndJSONError(c, http.StatusInternalServerError, errGetReadings, "fan_readings_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"readings": readings})
}

// @Summary      Manual fan control
// @Description  Applies the desired ON/OFF state through the same runtime-accounting path as device telemetry.
// @Tags         fans
// @Accept       json
// @Produce      json
// @Param        id    path  int             true  "Fan ID"
// @Param        body  body  controlRequest  true  "Desired state"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/fans/{id}/control [post]
// @Security     BearerAuth
func (h *Handler) controlFan(c *gin.Context) {
	id, ok := fanIDParam(c)
	if !ok {
		return
	}

	var req controlRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	if req.State != "ON" && req.State != "OFF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "state must be ON or OFF"})
		return
	}

	fan, err := h.services.Control.SetState(c.Request.Context(), callerID(c), id, req.State == "ON")
	if err != nil {
		if errors.Is(err, service.ErrFanNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "fan not found"})
			return
		}
		h.logAndJSONError(c, http.StatusInternalServerError, errControlFan, "fan_control_failed", err, "fan_id", id)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": fan.Status, "fan": fan})
}
