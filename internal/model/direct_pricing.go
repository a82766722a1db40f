package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// PriceTier names one of the price categories tracked per product.
type PriceTier string

const (
	TierSalePrice           PriceTier = "salePrice"
	TierBTBPrice            PriceTier = "btbPrice"
	TierBTCPrice            PriceTier = "btcPrice"
	TierPrice3WeeksDelivery PriceTier = "price3weeksDelivery"
	TierPrice5WeeksDelivery PriceTier = "price5weeksDelivery"
)

// PriceTypeBulk marks a history entry produced by a bulk update.
const PriceTypeBulk = "bulk"

// PriceTiers lists the recognised tiers in display order.
var PriceTiers = []PriceTier{
	TierSalePrice,
	TierBTBPrice,
	TierBTCPrice,
	TierPrice3WeeksDelivery,
	TierPrice5WeeksDelivery,
}

// ParsePriceTier returns the tier named s and whether it is recognised.
func ParsePriceTier(s string) (PriceTier, bool) {
	for _, t := range PriceTiers {
		if string(t) == s {
			return t, true
		}
	}
	return "", false
}

// UpdateSource records which path produced a price change.
type UpdateSource string

const (
	SourceDirectEntry   UpdateSource = "DIRECT_ENTRY"
	SourceBulkUpdate    UpdateSource = "BULK_UPDATE"
	SourceAdminOverride UpdateSource = "ADMIN_OVERRIDE"
)

// PriceSet holds the current value of every tier.
type PriceSet struct {
	SalePrice           decimal.Decimal `json:"salePrice" gorm:"type:decimal(12,2);not null;default:0"`
	BTBPrice            decimal.Decimal `json:"btbPrice" gorm:"column:btb_price;type:decimal(12,2);not null;default:0"`
	BTCPrice            decimal.Decimal `json:"btcPrice" gorm:"column:btc_price;type:decimal(12,2);not null;default:0"`
	Price3WeeksDelivery decimal.Decimal `json:"price3weeksDelivery" gorm:"column:price3weeks_delivery;type:decimal(12,2);not null;default:0"`
	Price5WeeksDelivery decimal.Decimal `json:"price5weeksDelivery" gorm:"column:price5weeks_delivery;type:decimal(12,2);not null;default:0"`
}

// Get returns the value stored for tier.
func (ps *PriceSet) Get(tier PriceTier) decimal.Decimal {
	switch tier {
	case TierSalePrice:
		return ps.SalePrice
	case TierBTBPrice:
		return ps.BTBPrice
	case TierBTCPrice:
		return ps.BTCPrice
	case TierPrice3WeeksDelivery:
		return ps.Price3WeeksDelivery
	case TierPrice5WeeksDelivery:
		return ps.Price5WeeksDelivery
	}
	return decimal.Zero
}

// Set stores v for tier. Unknown tiers are ignored.
func (ps *PriceSet) Set(tier PriceTier, v decimal.Decimal) {
	switch tier {
	case TierSalePrice:
		ps.SalePrice = v
	case TierBTBPrice:
		ps.BTBPrice = v
	case TierBTCPrice:
		ps.BTCPrice = v
	case TierPrice3WeeksDelivery:
		ps.Price3WeeksDelivery = v
	case TierPrice5WeeksDelivery:
		ps.Price5WeeksDelivery = v
	}
}

// PriceAttribution records who last changed one tier.
type PriceAttribution struct {
	UpdatedBy uuid.UUID `json:"updatedBy"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PriceAttributions maps each tier to its last change.
type PriceAttributions map[PriceTier]PriceAttribution

// DirectPricing is the per-product price record. Only one active record may
// exist per product (partial unique index, see infra.NewDatabase).
type DirectPricing struct {
	ID             uuid.UUID                             `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ProductID      uuid.UUID                             `gorm:"type:uuid;not null;index"`
	Prices         PriceSet                              `gorm:"embedded"`
	PriceUpdatedBy datatypes.JSONType[PriceAttributions] `gorm:"type:jsonb;not null;default:'{}'"`
	LastUpdatedBy  uuid.UUID                             `gorm:"type:uuid;not null"`
	LastUpdatedAt  time.Time                             `gorm:"not null"`
	IsActive       bool                                  `gorm:"not null;default:true"`
	IsApproved     bool                                  `gorm:"not null;default:true"`
	ApprovedBy     *uuid.UUID                            `gorm:"type:uuid"`
	ApprovedAt     *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time

	// History is loaded on demand and appended to by the ledger; rows are
	// persisted by the repository, never updated or deleted.
	History []DirectPriceHistory `gorm:"foreignKey:PricingID"`
}

// Attributions returns a copy of the per-tier attribution map.
func (d *DirectPricing) Attributions() PriceAttributions {
	out := PriceAttributions{}
	for k, v := range d.PriceUpdatedBy.Data() {
		out[k] = v
	}
	return out
}

// Attribute records actor as the last writer of tier.
func (d *DirectPricing) Attribute(tier PriceTier, actor uuid.UUID, at time.Time) {
	attrs := d.Attributions()
	attrs[tier] = PriceAttribution{UpdatedBy: actor, UpdatedAt: at}
	d.PriceUpdatedBy = datatypes.NewJSONType(attrs)
}

// DirectPriceHistory is one append-only entry of the pricing ledger.
type DirectPriceHistory struct {
	ID            uuid.UUID                    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	PricingID     uuid.UUID                    `gorm:"type:uuid;not null;index"`
	ProductID     uuid.UUID                    `gorm:"type:uuid;not null;index"`
	Prices        datatypes.JSONType[PriceSet] `gorm:"type:jsonb;not null"`
	PriceType     string                       `gorm:"type:varchar(32);not null"`
	PreviousValue decimal.NullDecimal          `gorm:"type:decimal(12,2)"`
	NewValue      decimal.NullDecimal          `gorm:"type:decimal(12,2)"`
	UpdatedBy     uuid.UUID                    `gorm:"type:uuid;not null"`
	UpdatedAt     time.Time                    `gorm:"not null"`
	Notes         string
	UpdateSource  UpdateSource `gorm:"type:varchar(32);not null"`
}

// TableName keeps the ledger table singular like the other audit tables.
func (DirectPriceHistory) TableName() string { return "direct_price_history" }
