package handler

import (
	"net/http"
	"time"

	"teahaven/internal/apierror"
	"teahaven/internal/dto"
	"teahaven/internal/middleware"
	"teahaven/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// StockHandler exposes the admin stock operations and the ledger read side.
type StockHandler struct {
	stock  service.StockService
	ledger service.LedgerService
}

func NewStockHandler(stock service.StockService, ledger service.LedgerService) *StockHandler {
	return &StockHandler{stock: stock, ledger: ledger}
}

func actor(c *gin.Context) *uuid.UUID {
	if id, ok := middleware.UserID(c); ok {
		return &id
	}
	return nil
}

func (h *StockHandler) AddStock(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req dto.AddStockRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.stock.AddStock(c.Request.Context(), id, req, actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *StockHandler) Adjust(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req dto.AdjustStockRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.stock.AdjustTo(c.Request.Context(), id, req.TargetQuantity, req.Reason, actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *StockHandler) RecordDamage(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req dto.RecordDamageRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.stock.RecordDamage(c.Request.Context(), id, req.Quantity, req.Reason, actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *StockHandler) RecordReturn(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req dto.RecordReturnRequest
	if !bindAndValidate(c, &req) {
		return
	}
	meta := service.StockMeta{ActorID: actor(c), Reason: req.Reason}
	if req.OrderID != "" {
		orderID, err := uuid.Parse(req.OrderID)
		if err != nil {
			respondError(c, apierror.InvalidArgument("invalid order id"))
			return
		}
		meta.OrderID = &orderID
	}
	resp, err := h.stock.RecordReturn(c.Request.Context(), id, req.Quantity, meta)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *StockHandler) ListLedger(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var filter dto.LedgerFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		respondError(c, err)
		return
	}
	resp, err := h.ledger.ListByProduct(c.Request.Context(), id, filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *StockHandler) Reconcile(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	resp, err := h.ledger.Reconcile(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// OnHandAt answers "how much did we hold at instant T" from the ledger.
func (h *StockHandler) OnHandAt(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	at, err := time.Parse(time.RFC3339, c.Query("at"))
	if err != nil {
		respondError(c, apierror.InvalidArgument("query parameter 'at' must be RFC3339"))
		return
	}
	onHand, err := h.ledger.OnHandAt(c.Request.Context(), id, at)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"product_id": id.String(),
		"at":         at.UTC().Format(time.RFC3339),
		"on_hand":    onHand,
	})
}

func (h *StockHandler) InventoryValue(c *gin.Context) {
	value, err := h.ledger.InventoryValue(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"inventory_value": value})
}
