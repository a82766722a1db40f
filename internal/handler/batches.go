package handler

import (
	"net/http"

	"github.com/yehgs/icvng-server-sub003/internal/apierror"
	"github.com/yehgs/icvng-server-sub003/internal/dto"
	"github.com/yehgs/icvng-server-sub003/internal/repository"
	"github.com/yehgs/icvng-server-sub003/internal/service"

	"github.com/gin-gonic/gin"
)

type BatchesHandler struct{ svc service.StockBatchService }

func NewBatchesHandler(svc service.StockBatchService) *BatchesHandler {
	return &BatchesHandler{svc: svc}
}

func (h *BatchesHandler) Create(c *gin.Context) {
	var req dto.CreateStockBatchRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, apierror.OK("Batch created", resp))
}

func (h *BatchesHandler) Update(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateStockBatchRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Update(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, apierror.OK("Batch updated", resp))
}

func (h *BatchesHandler) Delete(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, apierror.OK("Batch deleted", nil))
}

// BulkStatus changes many batches at once. It does not reconcile stock; the
// response lists the products that need a resync.
func (h *BatchesHandler) BulkStatus(c *gin.Context) {
	var req dto.BulkBatchStatusRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.BulkUpdateStatus(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, apierror.OK("Batch statuses updated", resp))
}

func (h *BatchesHandler) ListByProduct(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	page, limit := pageParams(c, repository.BatchPaging)
	resp, err := h.svc.List(c.Request.Context(), repository.StockBatchFilter{
		ProductID:  id,
		ActiveOnly: c.Query("active") == "true",
		Page:       page,
		Limit:      limit,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, apierror.OK("Batches", resp))
}
