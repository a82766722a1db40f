package handler

import (
	"net/http"

	"github.com/yehgs/icvng-server-sub003/internal/apierror"
	"github.com/yehgs/icvng-server-sub003/internal/dto"
	"github.com/yehgs/icvng-server-sub003/internal/middleware"
	"github.com/yehgs/icvng-server-sub003/internal/repository"
	"github.com/yehgs/icvng-server-sub003/internal/service"

	"github.com/gin-gonic/gin"
)

// PricingHandler serves the per-product direct pricing record and its ledger.
// Every write resolves the active record first, creating it if needed.
type PricingHandler struct{ svc service.DirectPricingService }

func NewPricingHandler(svc service.DirectPricingService) *PricingHandler {
	return &PricingHandler{svc: svc}
}

func (h *PricingHandler) Get(c *gin.Context) {
	productID, ok := uuidParam(c, "productId")
	if !ok {
		return
	}
	resp, err := h.svc.CurrentPrices(c.Request.Context(), productID, middleware.ActorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, apierror.OK("Direct pricing", resp))
}

func (h *PricingHandler) UpdatePrice(c *gin.Context) {
	productID, ok := uuidParam(c, "productId")
	if !ok {
		return
	}
	var req dto.UpdatePriceRequest
	if !bindAndValidate(c, &req) {
		return
	}

	ctx := c.Request.Context()
	actor := middleware.ActorID(c)
	rec, err := h.svc.FindOrCreate(ctx, productID, actor)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.svc.UpdateSpecificPrice(ctx, rec, c.Param("tier"), *req.Value, actor, req.Notes); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, apierror.OK("Price updated", service.MapDirectPricing(rec)))
}

func (h *PricingHandler) BulkUpdate(c *gin.Context) {
	productID, ok := uuidParam(c, "productId")
	if !ok {
		return
	}
	var req dto.BulkUpdatePricesRequest
	if !bindAndValidate(c, &req) {
		return
	}

	ctx := c.Request.Context()
	actor := middleware.ActorID(c)
	rec, err := h.svc.FindOrCreate(ctx, productID, actor)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.svc.BulkUpdatePrices(ctx, rec, req.Prices, actor, req.Notes); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, apierror.OK("Prices updated", service.MapDirectPricing(rec)))
}

func (h *PricingHandler) AdminOverride(c *gin.Context) {
	productID, ok := uuidParam(c, "productId")
	if !ok {
		return
	}
	var req dto.AdminOverrideRequest
	if !bindAndValidate(c, &req) {
		return
	}

	ctx := c.Request.Context()
	actor := middleware.ActorID(c)
	rec, err := h.svc.FindOrCreate(ctx, productID, actor)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.svc.AdminOverridePrice(ctx, rec, req.Tier, *req.Value, actor, req.Notes); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, apierror.OK("Price overridden", service.MapDirectPricing(rec)))
}

func (h *PricingHandler) Approve(c *gin.Context) {
	productID, ok := uuidParam(c, "productId")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	actor := middleware.ActorID(c)
	rec, err := h.svc.FindActive(ctx, productID)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.svc.Approve(ctx, rec, actor); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, apierror.OK("Pricing approved", service.MapDirectPricing(rec)))
}

// Deactivate retires the active record. History is kept; the next read
// starts a fresh zero-price record. Products without an active record get
// a 404.
func (h *PricingHandler) Deactivate(c *gin.Context) {
	productID, ok := uuidParam(c, "productId")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	rec, err := h.svc.FindActive(ctx, productID)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.svc.SetActive(ctx, rec, false); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, apierror.OK("Pricing deactivated", service.MapDirectPricing(rec)))
}

func (h *PricingHandler) History(c *gin.Context) {
	productID, ok := uuidParam(c, "productId")
	if !ok {
		return
	}
	page, limit := pageParams(c, repository.HistoryPaging)
	resp, err := h.svc.History(c.Request.Context(), productID, page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, apierror.OK("Price history", resp))
}
