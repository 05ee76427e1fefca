package handler

import (
	"net/http"

	"teahaven/internal/dto"
	"teahaven/internal/service"

	"github.com/gin-gonic/gin"
)

type AvailabilityHandler struct{ svc service.AvailabilityService }

func NewAvailabilityHandler(svc service.AvailabilityService) *AvailabilityHandler {
	return &AvailabilityHandler{svc: svc}
}

func (h *AvailabilityHandler) Get(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *AvailabilityHandler) CheckBatch(c *gin.Context) {
	var req dto.AvailabilityCheckRequest
	if !bindAndValidate(c, &req) {
		return
	}
	results, err := h.svc.CheckBatch(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": results})
}

func (h *AvailabilityHandler) LowStockReport(c *gin.Context) {
	results, err := h.svc.LowStockReport(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": results})
}
