package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Request DTO for driving the simulated lid.
type simDoorRequest struct {
	Closed      *bool `json:"closed,omitempty"`
	SensorFault *bool `json:"sensor_fault,omitempty"`
}

// @Summary      Drive simulated lid
// @Description  Opens or closes the simulated lid, or injects a sensor fault. Only registered when running on the simulated chamber.
// @Tags         dev
// @Accept       json
// @Produce      json
// @Param        body  body   simDoorRequest  true  "Lid state"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Router       /api/v1/dev/door [post]
// @Security     BearerAuth
func (h *Handler) setSimDoor(c *gin.Context) {
	var req simDoorRequest
	if ok := h.bindJSONOrBadRequest(c, &req); !ok {
		return
	}
	if req.Closed == nil && req.SensorFault == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body must carry closed or sensor_fault"})
		return
	}
	if req.Closed != nil {
		h.simDoor.SetDoor(*req.Closed)
	}
	if req.SensorFault != nil {
		h.simDoor.SetSensorFault(*req.SensorFault)
	}
	h.respondWithStatus(c, statusOK, gin.H{})
}
