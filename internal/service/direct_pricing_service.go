package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/yehgs/icvng-server-sub003/internal/apierror"
	"github.com/yehgs/icvng-server-sub003/internal/dto"
	"github.com/yehgs/icvng-server-sub003/internal/infra"
	"github.com/yehgs/icvng-server-sub003/internal/metrics"
	"github.com/yehgs/icvng-server-sub003/internal/model"
	"github.com/yehgs/icvng-server-sub003/internal/repository"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
	"gorm.io/datatypes"
)

const (
	priceCachePrefix   = "pricing:current:"
	priceVersionPrefix = "pricing:version:"
)

// fillScript stores a cache entry only while the product's version still
// matches the one read before the store lookup. Writes bump the version, so
// a fill that raced a write is dropped.
var fillScript = redis.NewScript(`
local v = redis.call("GET", KEYS[2]) or "0"
if v ~= ARGV[2] then
	return 0
end
redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[3])
return 1
`)

// DirectPricingService maintains current prices per product together with an
// append-only ledger of every change.
type DirectPricingService interface {
	// FindOrCreate returns the active record for the product, creating an
	// auto-approved zero-price record when none exists.
	FindOrCreate(ctx context.Context, productID, actorID uuid.UUID) (*model.DirectPricing, error)
	// FindActive returns the active record without creating one.
	FindActive(ctx context.Context, productID uuid.UUID) (*model.DirectPricing, error)
	UpdateSpecificPrice(ctx context.Context, rec *model.DirectPricing, tier string, value decimal.Decimal, actorID uuid.UUID, notes string) error
	// BulkUpdatePrices applies every recognised, non-nil entry and appends a
	// single "bulk" ledger entry.
	BulkUpdatePrices(ctx context.Context, rec *model.DirectPricing, updates map[string]*decimal.Decimal, actorID uuid.UUID, notes string) error
	AdminOverridePrice(ctx context.Context, rec *model.DirectPricing, tier string, value decimal.Decimal, actorID uuid.UUID, notes string) error
	Approve(ctx context.Context, rec *model.DirectPricing, actorID uuid.UUID) error
	SetActive(ctx context.Context, rec *model.DirectPricing, active bool) error
	History(ctx context.Context, productID uuid.UUID, page, limit int) (*dto.PriceHistoryListResponse, error)
	// CurrentPrices is FindOrCreate behind the Redis read-through cache.
	CurrentPrices(ctx context.Context, productID, actorID uuid.UUID) (*dto.DirectPricingResponse, error)
}

type directPricingService struct {
	store    repository.Store
	rdb      *redis.Client
	breaker  *infra.CircuitBreaker
	fills    singleflight.Group
	cacheTTL time.Duration
	now      func() time.Time
}

// NewDirectPricingService builds the ledger. rdb may be nil to disable the
// current-price cache.
func NewDirectPricingService(store repository.Store, rdb *redis.Client, cacheTTL time.Duration) DirectPricingService {
	if cacheTTL <= 0 {
		cacheTTL = time.Hour
	}
	return &directPricingService{
		store:    store,
		rdb:      rdb,
		breaker:  infra.NewCircuitBreaker(infra.CacheBreakerConfig()),
		cacheTTL: cacheTTL,
		now:      time.Now,
	}
}

func (s *directPricingService) FindOrCreate(ctx context.Context, productID, actorID uuid.UUID) (*model.DirectPricing, error) {
	rec, err := s.store.Pricing().FindActiveByProduct(ctx, productID)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, apierror.ErrNotFound) {
		return nil, err
	}

	if _, err := s.store.Products().FindByID(ctx, productID); err != nil {
		return nil, productErr(productID, err)
	}

	now := s.now()
	fresh := &model.DirectPricing{
		ProductID:      productID,
		PriceUpdatedBy: datatypes.NewJSONType(model.PriceAttributions{}),
		LastUpdatedBy:  actorID,
		LastUpdatedAt:  now,
		IsActive:       true,
		IsApproved:     true,
		ApprovedBy:     &actorID,
		ApprovedAt:     &now,
	}
	if err := s.store.Pricing().CreateIfAbsent(ctx, fresh); err != nil {
		return nil, err
	}

	// A concurrent caller may have won the insert; both converge on the
	// stored row.
	rec, err = s.store.Pricing().FindActiveByProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("pricing for product %s after create: %w", productID, err)
	}
	log.Info().Str("product_id", productID.String()).Msg("pricing: record created")
	return rec, nil
}

func (s *directPricingService) FindActive(ctx context.Context, productID uuid.UUID) (*model.DirectPricing, error) {
	rec, err := s.store.Pricing().FindActiveByProduct(ctx, productID)
	if errors.Is(err, apierror.ErrNotFound) {
		return nil, apierror.NotFound("active pricing for product", productID.String())
	}
	return rec, err
}

func (s *directPricingService) UpdateSpecificPrice(ctx context.Context, rec *model.DirectPricing, tier string, value decimal.Decimal, actorID uuid.UUID, notes string) error {
	return s.updateOne(ctx, rec, tier, value, actorID, notes, model.SourceDirectEntry)
}

func (s *directPricingService) AdminOverridePrice(ctx context.Context, rec *model.DirectPricing, tier string, value decimal.Decimal, actorID uuid.UUID, notes string) error {
	return s.updateOne(ctx, rec, tier, value, actorID, notes, model.SourceAdminOverride)
}

func (s *directPricingService) updateOne(ctx context.Context, rec *model.DirectPricing, tier string, value decimal.Decimal, actorID uuid.UUID, notes string, source model.UpdateSource) error {
	t, ok := model.ParsePriceTier(tier)
	if !ok {
		return apierror.InvalidArgument("unknown price tier %q", tier)
	}
	if value.IsNegative() {
		return apierror.InvalidArgument("price for %s must not be negative", tier)
	}

	snap := snapshot(rec)
	now := s.now()

	previous := rec.Prices.Get(t)
	rec.Prices.Set(t, value)
	rec.Attribute(t, actorID, now)
	rec.LastUpdatedBy = actorID
	rec.LastUpdatedAt = now

	entry := &model.DirectPriceHistory{
		PricingID:     rec.ID,
		ProductID:     rec.ProductID,
		Prices:        datatypes.NewJSONType(rec.Prices),
		PriceType:     string(t),
		PreviousValue: decimal.NewNullDecimal(previous),
		NewValue:      decimal.NewNullDecimal(value),
		UpdatedBy:     actorID,
		UpdatedAt:     now,
		Notes:         notes,
		UpdateSource:  source,
	}
	if err := s.persist(ctx, rec, entry, snap); err != nil {
		return err
	}

	log.Info().
		Str("product_id", rec.ProductID.String()).
		Str("tier", string(t)).
		Str("previous", previous.String()).
		Str("new", value.String()).
		Str("source", string(source)).
		Msg("pricing: price updated")
	return nil
}

func (s *directPricingService) BulkUpdatePrices(ctx context.Context, rec *model.DirectPricing, updates map[string]*decimal.Decimal, actorID uuid.UUID, notes string) error {
	for key, v := range updates {
		if _, ok := model.ParsePriceTier(key); ok && v != nil && v.IsNegative() {
			return apierror.InvalidArgument("price for %s must not be negative", key)
		}
	}

	snap := snapshot(rec)
	now := s.now()

	applied := 0
	for _, t := range model.PriceTiers {
		v, ok := updates[string(t)]
		if !ok || v == nil {
			continue
		}
		rec.Prices.Set(t, *v)
		rec.Attribute(t, actorID, now)
		applied++
	}
	rec.LastUpdatedBy = actorID
	rec.LastUpdatedAt = now

	entry := &model.DirectPriceHistory{
		PricingID:    rec.ID,
		ProductID:    rec.ProductID,
		Prices:       datatypes.NewJSONType(rec.Prices),
		PriceType:    model.PriceTypeBulk,
		UpdatedBy:    actorID,
		UpdatedAt:    now,
		Notes:        notes,
		UpdateSource: model.SourceBulkUpdate,
	}
	if err := s.persist(ctx, rec, entry, snap); err != nil {
		return err
	}

	log.Info().
		Str("product_id", rec.ProductID.String()).
		Int("tiers", applied).
		Msg("pricing: bulk update")
	return nil
}

// persist writes rec and entry together. On failure rec is rolled back to
// snap so the caller's copy still matches storage.
func (s *directPricingService) persist(ctx context.Context, rec *model.DirectPricing, entry *model.DirectPriceHistory, snap pricingSnapshot) error {
	if err := s.store.Pricing().SaveWithHistory(ctx, rec, entry); err != nil {
		snap.restore(rec)
		return err
	}
	rec.History = append(rec.History, *entry)
	metrics.PriceUpdates.WithLabelValues(entry.PriceType, string(entry.UpdateSource)).Inc()
	s.invalidate(ctx, rec.ProductID)
	return nil
}

func (s *directPricingService) Approve(ctx context.Context, rec *model.DirectPricing, actorID uuid.UUID) error {
	now := s.now()
	prevApproved, prevBy, prevAt := rec.IsApproved, rec.ApprovedBy, rec.ApprovedAt

	rec.IsApproved = true
	rec.ApprovedBy = &actorID
	rec.ApprovedAt = &now
	if err := s.store.Pricing().Save(ctx, rec); err != nil {
		rec.IsApproved, rec.ApprovedBy, rec.ApprovedAt = prevApproved, prevBy, prevAt
		return err
	}
	s.invalidate(ctx, rec.ProductID)
	return nil
}

func (s *directPricingService) SetActive(ctx context.Context, rec *model.DirectPricing, active bool) error {
	if rec.IsActive == active {
		return nil
	}
	if active {
		other, err := s.store.Pricing().FindActiveByProduct(ctx, rec.ProductID)
		if err == nil && other.ID != rec.ID {
			return fmt.Errorf("product %s already has an active pricing record: %w", rec.ProductID, apierror.ErrConflict)
		}
		if err != nil && !errors.Is(err, apierror.ErrNotFound) {
			return err
		}
	}

	rec.IsActive = active
	if err := s.store.Pricing().Save(ctx, rec); err != nil {
		rec.IsActive = !active
		return err
	}
	s.invalidate(ctx, rec.ProductID)
	return nil
}

func (s *directPricingService) History(ctx context.Context, productID uuid.UUID, page, limit int) (*dto.PriceHistoryListResponse, error) {
	page, limit = repository.HistoryPaging.Normalize(page, limit)
	rows, total, err := s.store.Pricing().ListHistory(ctx, productID, page, limit)
	if err != nil {
		return nil, err
	}
	out := &dto.PriceHistoryListResponse{
		Data:  make([]dto.PriceHistoryItem, 0, len(rows)),
		Total: total,
		Page:  page,
		Limit: limit,
	}
	for i := range rows {
		out.Data = append(out.Data, MapPriceHistory(&rows[i]))
	}
	return out, nil
}

func (s *directPricingService) CurrentPrices(ctx context.Context, productID, actorID uuid.UUID) (*dto.DirectPricingResponse, error) {
	hit, version, usable := s.cached(ctx, productID)
	if hit != nil {
		return hit, nil
	}
	// Concurrent misses for one product and version share a single load and
	// cache fill.
	v, err, _ := s.fills.Do(productID.String()+"@"+version, func() (interface{}, error) {
		rec, err := s.FindOrCreate(ctx, productID, actorID)
		if err != nil {
			return nil, err
		}
		resp := MapDirectPricing(rec)
		if usable {
			s.remember(ctx, productID, version, &resp)
		}
		return &resp, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*dto.DirectPricingResponse), nil
}

// ── Cache ─────────────────────────────────────────────────────────────────────

func cacheKey(productID uuid.UUID) string   { return priceCachePrefix + productID.String() }
func versionKey(productID uuid.UUID) string { return priceVersionPrefix + productID.String() }

// cached reads the entry and the product's cache version in one round trip.
// usable is false when Redis is disabled, failing or behind an open breaker.
func (s *directPricingService) cached(ctx context.Context, productID uuid.UUID) (resp *dto.DirectPricingResponse, version string, usable bool) {
	if s.rdb == nil {
		return nil, "", false
	}
	var vals []interface{}
	err := s.breaker.Execute(func() error {
		var err error
		vals, err = s.rdb.MGet(ctx, cacheKey(productID), versionKey(productID)).Result()
		return err
	})
	if err != nil {
		if !errors.Is(err, infra.ErrCircuitOpen) {
			log.Warn().Err(err).Str("product_id", productID.String()).Msg("pricing: cache read failed")
		}
		return nil, "", false
	}

	version = "0"
	if v, ok := vals[1].(string); ok {
		version = v
	}
	raw, ok := vals[0].(string)
	if !ok {
		return nil, version, true
	}
	var out dto.DirectPricingResponse
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, version, true
	}
	return &out, version, true
}

func (s *directPricingService) remember(ctx context.Context, productID uuid.UUID, version string, resp *dto.DirectPricingResponse) {
	raw, err := json.Marshal(resp)
	if err != nil {
		return
	}
	var stored bool
	err = s.breaker.Execute(func() error {
		n, err := fillScript.Run(ctx, s.rdb,
			[]string{cacheKey(productID), versionKey(productID)},
			raw, version, s.cacheTTL.Milliseconds()).Int()
		stored = n == 1
		return err
	})
	if err != nil && !errors.Is(err, infra.ErrCircuitOpen) {
		log.Warn().Err(err).Str("product_id", productID.String()).Msg("pricing: cache write failed")
		return
	}
	if err == nil && !stored {
		log.Debug().Str("product_id", productID.String()).Msg("pricing: stale cache fill dropped")
	}
}

// invalidate bumps the version and drops the entry. It is always attempted,
// even with the breaker open.
func (s *directPricingService) invalidate(ctx context.Context, productID uuid.UUID) {
	if s.rdb == nil {
		return
	}
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, versionKey(productID))
		pipe.Expire(ctx, versionKey(productID), s.cacheTTL)
		pipe.Del(ctx, cacheKey(productID))
		return nil
	})
	if err != nil {
		log.Warn().Err(err).Str("product_id", productID.String()).Msg("pricing: cache invalidation failed")
	}
}

// ── Snapshot ──────────────────────────────────────────────────────────────────

type pricingSnapshot struct {
	prices        model.PriceSet
	attributions  model.PriceAttributions
	lastUpdatedBy uuid.UUID
	lastUpdatedAt time.Time
}

func snapshot(rec *model.DirectPricing) pricingSnapshot {
	return pricingSnapshot{
		prices:        rec.Prices,
		attributions:  rec.Attributions(),
		lastUpdatedBy: rec.LastUpdatedBy,
		lastUpdatedAt: rec.LastUpdatedAt,
	}
}

func (p pricingSnapshot) restore(rec *model.DirectPricing) {
	rec.Prices = p.prices
	rec.PriceUpdatedBy = datatypes.NewJSONType(p.attributions)
	rec.LastUpdatedBy = p.lastUpdatedBy
	rec.LastUpdatedAt = p.lastUpdatedAt
}

// ── Mapping ───────────────────────────────────────────────────────────────────

func priceMap(ps model.PriceSet) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(model.PriceTiers))
	for _, t := range model.PriceTiers {
		out[string(t)] = ps.Get(t)
	}
	return out
}

// MapDirectPricing converts a pricing record to its API shape. The last
// ledger entry is included when History is loaded.
func MapDirectPricing(rec *model.DirectPricing) dto.DirectPricingResponse {
	resp := dto.DirectPricingResponse{
		ID:             rec.ID.String(),
		ProductID:      rec.ProductID.String(),
		DirectPrices:   priceMap(rec.Prices),
		PriceUpdatedBy: map[string]dto.PriceAttributionResponse{},
		LastUpdatedBy:  rec.LastUpdatedBy.String(),
		LastUpdatedAt:  rec.LastUpdatedAt.UTC().Format(time.RFC3339),
		IsActive:       rec.IsActive,
		IsApproved:     rec.IsApproved,
	}
	for tier, a := range rec.Attributions() {
		resp.PriceUpdatedBy[string(tier)] = dto.PriceAttributionResponse{
			UpdatedBy: a.UpdatedBy.String(),
			UpdatedAt: a.UpdatedAt.UTC().Format(time.RFC3339),
		}
	}
	if rec.ApprovedBy != nil {
		v := rec.ApprovedBy.String()
		resp.ApprovedBy = &v
	}
	if rec.ApprovedAt != nil {
		v := rec.ApprovedAt.UTC().Format(time.RFC3339)
		resp.ApprovedAt = &v
	}
	if n := len(rec.History); n > 0 {
		last := MapPriceHistory(&rec.History[n-1])
		resp.LastChange = &last
	}
	return resp
}

func MapPriceHistory(h *model.DirectPriceHistory) dto.PriceHistoryItem {
	item := dto.PriceHistoryItem{
		ID:           h.ID.String(),
		Prices:       priceMap(h.Prices.Data()),
		PriceType:    h.PriceType,
		UpdatedBy:    h.UpdatedBy.String(),
		UpdatedAt:    h.UpdatedAt.UTC().Format(time.RFC3339),
		Notes:        h.Notes,
		UpdateSource: string(h.UpdateSource),
	}
	if h.PreviousValue.Valid {
		v := h.PreviousValue.Decimal
		item.PreviousValue = &v
	}
	if h.NewValue.Valid {
		v := h.NewValue.Decimal
		item.NewValue = &v
	}
	return item
}
