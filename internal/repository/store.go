package repository

import (
	"context"
	"errors"

	"github.com/yehgs/icvng-server-sub003/internal/apierror"

	"gorm.io/gorm"
)

// Store groups the repositories that share one database handle. Services
// depend on this interface, not on the concrete GORM implementation, so unit
// tests can swap in an in-memory store.
type Store interface {
	Products() ProductRepository
	Batches() StockBatchRepository
	Pricing() DirectPricingRepository

	// Transaction runs fn against a Store bound to a single database
	// transaction. Returning an error from fn rolls everything back.
	Transaction(ctx context.Context, fn func(tx Store) error) error
}

type gormStore struct{ db *gorm.DB }

func NewStore(db *gorm.DB) Store { return &gormStore{db: db} }

func (s *gormStore) Products() ProductRepository      { return NewProductRepository(s.db) }
func (s *gormStore) Batches() StockBatchRepository    { return NewStockBatchRepository(s.db) }
func (s *gormStore) Pricing() DirectPricingRepository { return NewDirectPricingRepository(s.db) }

func (s *gormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx})
	})
}

// translate maps GORM errors onto the apierror taxonomy at the repository
// boundary. Record-not-found becomes ErrNotFound; everything else is a
// storage failure tagged with op.
func translate(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apierror.ErrNotFound
	}
	return apierror.Storage(op, err)
}
