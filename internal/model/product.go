package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StockSource names the subsystem that last set Product.Stock.
type StockSource string

const (
	StockSourceBatches         StockSource = "STOCK_BATCHES"
	StockSourceWarehouseManual StockSource = "WAREHOUSE_MANUAL"
)

// WarehouseStock is the persisted shape shared by both warehouse variants.
// Read it through Product.Warehouse and write it through ApplyManualOverride or
// ApplyBatchDerived; the Enabled flag selects the variant.
type WarehouseStock struct {
	Enabled        bool `gorm:"not null;default:false"`
	StockOnArrival int  `gorm:"not null;default:0"`
	DamagedQty     int  `gorm:"not null;default:0"`
	ExpiredQty     int  `gorm:"not null;default:0"`
	RefurbishedQty int  `gorm:"not null;default:0"`
	FinalStock     int  `gorm:"not null;default:0"`
	OnlineStock    int  `gorm:"not null;default:0"`
	OfflineStock   int  `gorm:"not null;default:0"`
	Notes          *string
	LastUpdated    *time.Time
	Source         StockSource `gorm:"type:varchar(32);not null;default:'STOCK_BATCHES'"`
}

// Product is the host entity for stock reconciliation. Catalog fields beyond
// what the stock and pricing subsystems need are owned elsewhere.
type Product struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SKU            string         `gorm:"uniqueIndex;not null"`
	Name           string         `gorm:"index;not null"`
	Stock          int            `gorm:"not null;default:0"`
	StockSource    StockSource    `gorm:"type:varchar(32);not null;default:'STOCK_BATCHES'"`
	WarehouseStock WarehouseStock `gorm:"embedded;embeddedPrefix:warehouse_"`
	Active         bool           `gorm:"not null;default:true"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// BeforeSave enforces the override invariant on every full-row save.
func (p *Product) BeforeSave(_ *gorm.DB) error {
	p.GuardOverride(time.Now())
	return nil
}

// GuardOverride forces stock = finalStock and the manual source whenever the
// override is enabled. It runs unconditionally on enabled products, even when
// the caller did not touch stock. Disabled products are left untouched.
func (p *Product) GuardOverride(now time.Time) {
	ws := &p.WarehouseStock
	if !ws.Enabled {
		return
	}
	if ws.LastUpdated == nil {
		t := now
		ws.LastUpdated = &t
	}
	ws.Source = StockSourceWarehouseManual
	p.Stock = ws.FinalStock
	p.StockSource = StockSourceWarehouseManual
}

// WarehouseRecord is implemented by ManualOverride and BatchDerived.
type WarehouseRecord interface {
	Source() StockSource
	Final() int
}

// ManualOverride is a warehouse figure entered by hand. While active it owns
// Product.Stock and batch reconciliation must not write.
type ManualOverride struct {
	StockOnArrival int
	DamagedQty     int
	ExpiredQty     int
	RefurbishedQty int
	FinalStock     int
	OnlineStock    int
	OfflineStock   int
	Notes          *string
	LastUpdated    time.Time
}

func (ManualOverride) Source() StockSource { return StockSourceWarehouseManual }
func (m ManualOverride) Final() int        { return m.FinalStock }

// QualityTotal is damaged + expired + refurbished + final, which must equal
// StockOnArrival for a reconciled override.
func (m ManualOverride) QualityTotal() int {
	return m.DamagedQty + m.ExpiredQty + m.RefurbishedQty + m.FinalStock
}

// BatchDerived holds totals folded from active stock batches.
type BatchDerived struct {
	StockOnArrival      int
	GoodQuantity        int
	RefurbishedQuantity int
	DamagedQuantity     int
	OnlineStock         int
	OfflineStock        int
	ComputedAt          time.Time
}

func (BatchDerived) Source() StockSource { return StockSourceBatches }
func (b BatchDerived) Final() int        { return b.GoodQuantity + b.RefurbishedQuantity }

// Warehouse returns the active variant of the embedded warehouse record.
func (p *Product) Warehouse() WarehouseRecord {
	ws := p.WarehouseStock
	if ws.Enabled {
		mo := ManualOverride{
			StockOnArrival: ws.StockOnArrival,
			DamagedQty:     ws.DamagedQty,
			ExpiredQty:     ws.ExpiredQty,
			RefurbishedQty: ws.RefurbishedQty,
			FinalStock:     ws.FinalStock,
			OnlineStock:    ws.OnlineStock,
			OfflineStock:   ws.OfflineStock,
			Notes:          ws.Notes,
		}
		if ws.LastUpdated != nil {
			mo.LastUpdated = *ws.LastUpdated
		}
		return mo
	}
	bd := BatchDerived{
		StockOnArrival:      ws.StockOnArrival,
		GoodQuantity:        ws.FinalStock - ws.RefurbishedQty,
		RefurbishedQuantity: ws.RefurbishedQty,
		DamagedQuantity:     ws.DamagedQty,
		OnlineStock:         ws.OnlineStock,
		OfflineStock:        ws.OfflineStock,
	}
	if ws.LastUpdated != nil {
		bd.ComputedAt = *ws.LastUpdated
	}
	return bd
}

// OverrideEnabled reports whether a manual override currently owns stock.
func (p *Product) OverrideEnabled() bool { return p.WarehouseStock.Enabled }

// ApplyManualOverride switches the product to the manual variant.
func (p *Product) ApplyManualOverride(mo ManualOverride) {
	last := mo.LastUpdated
	p.WarehouseStock = WarehouseStock{
		Enabled:        true,
		StockOnArrival: mo.StockOnArrival,
		DamagedQty:     mo.DamagedQty,
		ExpiredQty:     mo.ExpiredQty,
		RefurbishedQty: mo.RefurbishedQty,
		FinalStock:     mo.FinalStock,
		OnlineStock:    mo.OnlineStock,
		OfflineStock:   mo.OfflineStock,
		Notes:          mo.Notes,
		Source:         StockSourceWarehouseManual,
	}
	if !last.IsZero() {
		p.WarehouseStock.LastUpdated = &last
	}
	p.GuardOverride(time.Now())
}

// ApplyBatchDerived writes batch totals into the product with the override
// left disabled, so the figures stay visible without taking effect.
func (p *Product) ApplyBatchDerived(bd BatchDerived) {
	computed := bd.ComputedAt
	p.WarehouseStock = WarehouseStock{
		Enabled:        false,
		StockOnArrival: bd.StockOnArrival,
		DamagedQty:     bd.DamagedQuantity,
		RefurbishedQty: bd.RefurbishedQuantity,
		FinalStock:     bd.Final(),
		OnlineStock:    bd.OnlineStock,
		OfflineStock:   bd.OfflineStock,
		Notes:          p.WarehouseStock.Notes,
		LastUpdated:    &computed,
		Source:         StockSourceBatches,
	}
	p.Stock = bd.Final()
	p.StockSource = StockSourceBatches
}

// BatchDerivedColumns returns the column set written by a batch-derived sync,
// taken from what ApplyBatchDerived leaves on a product. Notes are not part
// of it. Repositories use it for conditional single-statement updates.
func BatchDerivedColumns(bd BatchDerived) map[string]interface{} {
	var p Product
	p.ApplyBatchDerived(bd)
	ws := p.WarehouseStock
	return map[string]interface{}{
		"stock":                      p.Stock,
		"stock_source":               p.StockSource,
		"warehouse_enabled":          ws.Enabled,
		"warehouse_stock_on_arrival": ws.StockOnArrival,
		"warehouse_damaged_qty":      ws.DamagedQty,
		"warehouse_expired_qty":      ws.ExpiredQty,
		"warehouse_refurbished_qty":  ws.RefurbishedQty,
		"warehouse_final_stock":      ws.FinalStock,
		"warehouse_online_stock":     ws.OnlineStock,
		"warehouse_offline_stock":    ws.OfflineStock,
		"warehouse_last_updated":     ws.LastUpdated,
		"warehouse_source":           ws.Source,
	}
}
