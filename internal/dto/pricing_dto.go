package dto

import "github.com/shopspring/decimal"

// ── Request DTOs ──────────────────────────────────────────────────────────────

// UpdatePriceRequest sets one tier. Value is a pointer so an omitted key is
// rejected while an explicit 0 is accepted.
type UpdatePriceRequest struct {
	Value *decimal.Decimal `json:"value" validate:"required,min=0"`
	Notes string           `json:"notes" validate:"max=500"`
}

// BulkUpdatePricesRequest applies every recognised tier present in Prices.
// Unknown keys and null values are ignored.
type BulkUpdatePricesRequest struct {
	Prices map[string]*decimal.Decimal `json:"prices" validate:"required"`
	Notes  string                      `json:"notes"  validate:"max=500"`
}

// AdminOverrideRequest sets one tier outside the normal entry flow.
type AdminOverrideRequest struct {
	Tier  string           `json:"tier"  validate:"required,oneof=salePrice btbPrice btcPrice price3weeksDelivery price5weeksDelivery"`
	Value *decimal.Decimal `json:"value" validate:"required,min=0"`
	Notes string           `json:"notes" validate:"required,max=500"`
}

// ── Response DTOs ─────────────────────────────────────────────────────────────

type PriceAttributionResponse struct {
	UpdatedBy string `json:"updatedBy"`
	UpdatedAt string `json:"updatedAt"`
}

type PriceHistoryItem struct {
	ID            string                     `json:"id"`
	Prices        map[string]decimal.Decimal `json:"prices"`
	PriceType     string                     `json:"priceType"`
	PreviousValue *decimal.Decimal           `json:"previousValue"`
	NewValue      *decimal.Decimal           `json:"newValue"`
	UpdatedBy     string                     `json:"updatedBy"`
	UpdatedAt     string                     `json:"updatedAt"`
	Notes         string                     `json:"notes"`
	UpdateSource  string                     `json:"updateSource"`
}

type DirectPricingResponse struct {
	ID             string                              `json:"id"`
	ProductID      string                              `json:"productId"`
	DirectPrices   map[string]decimal.Decimal          `json:"directPrices"`
	PriceUpdatedBy map[string]PriceAttributionResponse `json:"priceUpdatedBy"`
	LastUpdatedBy  string                              `json:"lastUpdatedBy"`
	LastUpdatedAt  string                              `json:"lastUpdatedAt"`
	IsActive       bool                                `json:"isActive"`
	IsApproved     bool                                `json:"isApproved"`
	ApprovedBy     *string                             `json:"approvedBy,omitempty"`
	ApprovedAt     *string                             `json:"approvedAt,omitempty"`
	LastChange     *PriceHistoryItem                   `json:"lastChange,omitempty"`
}

type PriceHistoryListResponse struct {
	Data  []PriceHistoryItem `json:"data"`
	Total int64              `json:"total"`
	Page  int                `json:"page"`
	Limit int                `json:"limit"`
}
