package dto

import (
	"time"

	"github.com/google/uuid"
)

// ── Request DTOs ──────────────────────────────────────────────────────────────

type CreateStockBatchRequest struct {
	ProductID           string     `json:"productId"           validate:"required,uuid"`
	BatchNumber         string     `json:"batchNumber"         validate:"required,max=64"`
	Status              string     `json:"status"              validate:"omitempty,oneof=AVAILABLE PARTIALLY_ALLOCATED RECEIVED ALLOCATED DEPLETED EXPIRED RETURNED CANCELLED"`
	OriginalQuantity    int        `json:"originalQuantity"    validate:"min=0"`
	GoodQuantity        int        `json:"goodQuantity"        validate:"min=0"`
	RefurbishedQuantity int        `json:"refurbishedQuantity" validate:"min=0"`
	DamagedQuantity     int        `json:"damagedQuantity"     validate:"min=0"`
	OnlineStock         int        `json:"onlineStock"         validate:"min=0"`
	OfflineStock        int        `json:"offlineStock"        validate:"min=0"`
	Notes               *string    `json:"notes"`
	ReceivedAt          *time.Time `json:"receivedAt"`
}

type UpdateStockBatchRequest struct {
	ProductID           *string `json:"productId"           validate:"omitempty,uuid"`
	Status              *string `json:"status"              validate:"omitempty,oneof=AVAILABLE PARTIALLY_ALLOCATED RECEIVED ALLOCATED DEPLETED EXPIRED RETURNED CANCELLED"`
	OriginalQuantity    *int    `json:"originalQuantity"    validate:"omitempty,min=0"`
	GoodQuantity        *int    `json:"goodQuantity"        validate:"omitempty,min=0"`
	RefurbishedQuantity *int    `json:"refurbishedQuantity" validate:"omitempty,min=0"`
	DamagedQuantity     *int    `json:"damagedQuantity"     validate:"omitempty,min=0"`
	OnlineStock         *int    `json:"onlineStock"         validate:"omitempty,min=0"`
	OfflineStock        *int    `json:"offlineStock"        validate:"omitempty,min=0"`
	Notes               *string `json:"notes"`
}

// BulkBatchStatusRequest changes the status of many batches at once. Bulk
// writes never trigger a recompute; set Resync to queue one for every
// affected product.
type BulkBatchStatusRequest struct {
	BatchIDs []string `json:"batchIds" validate:"required,min=1,dive,uuid"`
	Status   string   `json:"status"   validate:"required,oneof=AVAILABLE PARTIALLY_ALLOCATED RECEIVED ALLOCATED DEPLETED EXPIRED RETURNED CANCELLED"`
	Resync   bool     `json:"resync"`
}

// WarehouseOverrideRequest enables the manual override. Omitted quantities
// default to zero.
type WarehouseOverrideRequest struct {
	StockOnArrival *int       `json:"stockOnArrival" validate:"omitempty,min=0"`
	DamagedQty     *int       `json:"damagedQty"     validate:"omitempty,min=0"`
	ExpiredQty     *int       `json:"expiredQty"     validate:"omitempty,min=0"`
	RefurbishedQty *int       `json:"refurbishedQty" validate:"omitempty,min=0"`
	FinalStock     *int       `json:"finalStock"     validate:"omitempty,min=0"`
	OnlineStock    *int       `json:"onlineStock"    validate:"omitempty,min=0"`
	OfflineStock   *int       `json:"offlineStock"   validate:"omitempty,min=0"`
	Notes          *string    `json:"notes"`
	LastUpdated    *time.Time `json:"lastUpdated"`
}

type ProductIDsRequest struct {
	ProductIDs []string `json:"productIds" validate:"required,min=1,max=1000,dive,uuid"`
}

// ── Response DTOs ─────────────────────────────────────────────────────────────

type StockBatchResponse struct {
	ID                  string  `json:"id"`
	ProductID           string  `json:"productId"`
	BatchNumber         string  `json:"batchNumber"`
	Status              string  `json:"status"`
	OriginalQuantity    int     `json:"originalQuantity"`
	GoodQuantity        int     `json:"goodQuantity"`
	RefurbishedQuantity int     `json:"refurbishedQuantity"`
	DamagedQuantity     int     `json:"damagedQuantity"`
	OnlineStock         int     `json:"onlineStock"`
	OfflineStock        int     `json:"offlineStock"`
	Notes               *string `json:"notes,omitempty"`
	ReceivedAt          string  `json:"receivedAt"`
}

type StockBatchListResponse struct {
	Data  []StockBatchResponse `json:"data"`
	Total int64                `json:"total"`
	Page  int                  `json:"page"`
	Limit int                  `json:"limit"`
}

type BulkBatchStatusResponse struct {
	Updated            int      `json:"updated"`
	AffectedProductIDs []string `json:"affectedProductIds"`
	ResyncQueued       bool     `json:"resyncQueued"`
}

type WarehouseStockResponse struct {
	Enabled        bool    `json:"enabled"`
	StockOnArrival int     `json:"stockOnArrival"`
	DamagedQty     int     `json:"damagedQty"`
	ExpiredQty     int     `json:"expiredQty"`
	RefurbishedQty int     `json:"refurbishedQty"`
	FinalStock     int     `json:"finalStock"`
	OnlineStock    int     `json:"onlineStock"`
	OfflineStock   int     `json:"offlineStock"`
	Notes          *string `json:"notes,omitempty"`
	LastUpdated    *string `json:"lastUpdated,omitempty"`
	Source         string  `json:"source"`
}

type ProductStockResponse struct {
	ID             string                 `json:"id"`
	SKU            string                 `json:"sku"`
	Name           string                 `json:"name"`
	Stock          int                    `json:"stock"`
	StockSource    string                 `json:"stockSource"`
	WarehouseStock WarehouseStockResponse `json:"warehouseStock"`
}

type ForceSyncResponse struct {
	Synced       bool   `json:"synced"`
	Reason       string `json:"reason"`
	CurrentStock int    `json:"currentStock"`
}

type DisableOverrideResponse struct {
	Success  bool   `json:"success"`
	NewStock int    `json:"newStock"`
	Source   string `json:"source"`
}

type StockConsistencyResponse struct {
	ProductID        uuid.UUID `json:"productId"`
	IsConsistent     bool      `json:"isConsistent"`
	Issues           []string  `json:"issues"`
	CurrentStock     int       `json:"currentStock"`
	StockSource      string    `json:"stockSource"`
	WarehouseManaged bool      `json:"warehouseManaged"`
}

// MultiStockConsistencyResponse lists only the inconsistent products.
type MultiStockConsistencyResponse struct {
	TotalChecked int                        `json:"totalChecked"`
	Consistent   int                        `json:"consistent"`
	Inconsistent int                        `json:"inconsistent"`
	Results      []StockConsistencyResponse `json:"results"`
}

type ResyncResponse struct {
	Requested int               `json:"requested"`
	Applied   int               `json:"applied"`
	Skipped   int               `json:"skipped"`
	Failed    int               `json:"failed"`
	Failures  map[string]string `json:"failures,omitempty"`
}
