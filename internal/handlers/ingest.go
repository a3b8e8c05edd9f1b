package handlers

import (
	"errors"
	"net/http"

	"smart_ventilation/internal/models"
	"smart_ventilation/internal/service"

	"github.com/gin-gonic/gin"
)

// Relay acknowledgement messages. The cloud integration disables webhooks
// that return non-2xx, so every outcome on that path is a 200.
const (
	msgIgnoredMalformed = "invalid payload, ignored"
	msgIgnoredUnknown   = "device not found, ignored"
	msgIngestFailed     = "internal error"
)

// @Summary      Cloud relay webhook
// @Description  Third-party IoT cloud telemetry. Always acknowledged with 200; malformed or unknown-device payloads are dropped.
// @Tags         ingest
// @Accept       json
// @Produce      json
// @Param        body  body  service.RelayPayload  true  "Relay payload"
// @Success      200  {object}  map[string]interface{}
// @Router       /webhook/arduino [post]
func (h *Handler) relayWebhook(c *gin.Context) {
	var payload service.RelayPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		// unparseable body is just another malformed event
		c.JSON(http.StatusOK, gin.H{"success": true, "message": msgIgnoredMalformed})
		return
	}

	update, err := h.services.IngestRelay(c.Request.Context(), payload)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMalformedEvent):
			c.JSON(http.StatusOK, gin.H{"success": true, "message": msgIgnoredMalformed})
		case errors.Is(err, service.ErrUnknownDevice):
			c.JSON(http.StatusOK, gin.H{"success": true, "message": msgIgnoredUnknown})
		default:
			// storage failure: rolled back, observed via logs/metrics,
			// still acknowledged so the relay keeps delivering
			if h.log != nil {
				h.log.Errorw("relay_ingest_failed", "err", err)
			}
			c.JSON(http.StatusOK, gin.H{"success": false, "message": msgIngestFailed})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"fan_id":      update.FanID,
		"gas_level":   update.GasLevel,
		"motor_state": update.Status == models.StatusOn,
	})
}

// @Summary      Direct device report
// @Description  First-party telemetry. Unlike the relay, storage failures return 5xx so the device can retry.
// @Tags         ingest
// @Accept       json
// @Produce      json
// @Param        body  body  service.DirectReport  true  "Device report"
// @Success      201  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/devices/report [post]
func (h *Handler) deviceReport(c *gin.Context) {
	var report service.DirectReport
	if err := c.ShouldBindJSON(&report); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}

	update, err := h.services.IngestDirect(c.Request.Context(), report)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMalformedEvent):
			c.JSON(http.StatusBadRequest, gin.H{"error": "device_id and gas_level are required"})
		case errors.Is(err, service.ErrUnknownDevice):
			c.JSON(http.StatusNotFound, gin.H{"error": "no fan registered for device_id"})
		default:
			h.logAndJSONError(c, http.StatusInternalServerError, errIngestReport, "device_report_failed", err)
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"ok":     true,
		"fan_id": update.FanID,
		"status": update.Status,
	})
}
