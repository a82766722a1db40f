package model

import (
	"time"

	"github.com/google/uuid"
)

// BatchStatus is the lifecycle state of a stock batch.
type BatchStatus string

const (
	BatchAvailable          BatchStatus = "AVAILABLE"
	BatchPartiallyAllocated BatchStatus = "PARTIALLY_ALLOCATED"
	BatchReceived           BatchStatus = "RECEIVED"
	BatchAllocated          BatchStatus = "ALLOCATED"
	BatchDepleted           BatchStatus = "DEPLETED"
	BatchExpired            BatchStatus = "EXPIRED"
	BatchReturned           BatchStatus = "RETURNED"
	BatchCancelled          BatchStatus = "CANCELLED"
)

// ActiveBatchStatuses are the only statuses that contribute to product stock.
var ActiveBatchStatuses = []BatchStatus{BatchAvailable, BatchPartiallyAllocated, BatchReceived}

// IsActive reports whether batches in this status count towards stock.
func (s BatchStatus) IsActive() bool {
	for _, a := range ActiveBatchStatuses {
		if s == a {
			return true
		}
	}
	return false
}

// Valid reports whether s is a known status.
func (s BatchStatus) Valid() bool {
	switch s {
	case BatchAvailable, BatchPartiallyAllocated, BatchReceived,
		BatchAllocated, BatchDepleted, BatchExpired, BatchReturned, BatchCancelled:
		return true
	}
	return false
}

// StockBatch is one discrete inventory receipt. Batches are retired by status
// transition; physical deletion is allowed and triggers a resync like any
// other write.
type StockBatch struct {
	ID                  uuid.UUID   `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ProductID           uuid.UUID   `gorm:"type:uuid;not null;index"`
	BatchNumber         string      `gorm:"not null"`
	Status              BatchStatus `gorm:"type:varchar(32);not null;index"`
	OriginalQuantity    int         `gorm:"not null;default:0"`
	GoodQuantity        int         `gorm:"not null;default:0"`
	RefurbishedQuantity int         `gorm:"not null;default:0"`
	DamagedQuantity     int         `gorm:"not null;default:0"`
	OnlineStock         int         `gorm:"not null;default:0"`
	OfflineStock        int         `gorm:"not null;default:0"`
	Notes               *string
	ReceivedAt          time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time

	Product *Product `gorm:"foreignKey:ProductID"`
}

// Sellable is the quantity the batch contributes to Product.Stock.
func (b *StockBatch) Sellable() int { return b.GoodQuantity + b.RefurbishedQuantity }

// FoldBatches sums active batches into batch-derived totals. Inactive batches
// are skipped so callers may pass an unfiltered slice.
func FoldBatches(batches []StockBatch, at time.Time) BatchDerived {
	bd := BatchDerived{ComputedAt: at}
	for i := range batches {
		b := &batches[i]
		if !b.Status.IsActive() {
			continue
		}
		bd.StockOnArrival += b.OriginalQuantity
		bd.GoodQuantity += b.GoodQuantity
		bd.RefurbishedQuantity += b.RefurbishedQuantity
		bd.DamagedQuantity += b.DamagedQuantity
		bd.OnlineStock += b.OnlineStock
		bd.OfflineStock += b.OfflineStock
	}
	return bd
}
