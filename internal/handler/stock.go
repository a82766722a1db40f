package handler

import (
	"net/http"

	"github.com/yehgs/icvng-server-sub003/internal/apierror"
	"github.com/yehgs/icvng-server-sub003/internal/dto"
	"github.com/yehgs/icvng-server-sub003/internal/service"

	"github.com/gin-gonic/gin"
)

// StockHandler exposes the reconciliation engine: forced syncs, the manual
// warehouse override and consistency audits.
type StockHandler struct{ svc service.StockSyncService }

func NewStockHandler(svc service.StockSyncService) *StockHandler {
	return &StockHandler{svc: svc}
}

func (h *StockHandler) ForceSync(c *gin.Context) {
	id, ok := uuidParam(c, "productId")
	if !ok {
		return
	}
	resp, err := h.svc.ForceSyncProduct(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	msg := "Stock synced"
	if !resp.Synced {
		msg = resp.Reason
	}
	c.JSON(http.StatusOK, apierror.OK(msg, resp))
}

func (h *StockHandler) ApplyOverride(c *gin.Context) {
	id, ok := uuidParam(c, "productId")
	if !ok {
		return
	}
	var req dto.WarehouseOverrideRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.ApplyWarehouseOverride(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, apierror.OK("Warehouse override applied", resp))
}

func (h *StockHandler) DisableOverride(c *gin.Context) {
	id, ok := uuidParam(c, "productId")
	if !ok {
		return
	}
	resp, err := h.svc.DisableOverrideAndSync(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, apierror.OK("Override disabled, stock synced from batches", resp))
}

func (h *StockHandler) Consistency(c *gin.Context) {
	id, ok := uuidParam(c, "productId")
	if !ok {
		return
	}
	resp, err := h.svc.ValidateStockConsistency(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, apierror.OK("Consistency checked", resp))
}

func (h *StockHandler) ConsistencyMany(c *gin.Context) {
	var req dto.ProductIDsRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp := h.svc.ValidateMultipleProductsStock(c.Request.Context(), parseUUIDs(req.ProductIDs))
	c.JSON(http.StatusOK, apierror.OK("Consistency checked", resp))
}

func (h *StockHandler) Resync(c *gin.Context) {
	var req dto.ProductIDsRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp := h.svc.ResyncProducts(c.Request.Context(), parseUUIDs(req.ProductIDs))
	c.JSON(http.StatusOK, apierror.OK("Resync finished", resp))
}
