package service_test

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/yehgs/icvng-server-sub003/internal/apierror"
	"github.com/yehgs/icvng-server-sub003/internal/model"
	"github.com/yehgs/icvng-server-sub003/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm/schema"
)

// ── In-memory Store stub ─────────────────────────────────────────────────────

// memData is the state shared by a memStore and its transactions.
type memData struct {
	products map[uuid.UUID]model.Product
	batches  map[uuid.UUID]model.StockBatch
	pricing  map[uuid.UUID]model.DirectPricing
	history  []model.DirectPriceHistory
}

func (d *memData) clone() *memData {
	c := &memData{
		products: make(map[uuid.UUID]model.Product, len(d.products)),
		batches:  make(map[uuid.UUID]model.StockBatch, len(d.batches)),
		pricing:  make(map[uuid.UUID]model.DirectPricing, len(d.pricing)),
		history:  append([]model.DirectPriceHistory(nil), d.history...),
	}
	for k, v := range d.products {
		c.products[k] = v
	}
	for k, v := range d.batches {
		c.batches[k] = v
	}
	for k, v := range d.pricing {
		c.pricing[k] = v
	}
	return c
}

type memStore struct {
	mu   *sync.Mutex
	data *memData
	inTx bool

	// failure injection
	errFindProduct     error
	errListActive      error
	errApply           error
	errSaveWithHistory error
	// beforeApply runs just before the conditional batch-derived write.
	beforeApply func(s *memStore)
	// afterFindPricing runs once an active pricing read has been served.
	afterFindPricing func()

	applyCalls int
	txCalls    int
}

func newMemStore() *memStore {
	return &memStore{
		mu: &sync.Mutex{},
		data: &memData{
			products: map[uuid.UUID]model.Product{},
			batches:  map[uuid.UUID]model.StockBatch{},
			pricing:  map[uuid.UUID]model.DirectPricing{},
		},
	}
}

var _ repository.Store = (*memStore)(nil)

func (s *memStore) Products() repository.ProductRepository     { return &memProducts{s} }
func (s *memStore) Batches() repository.StockBatchRepository   { return &memBatches{s} }
func (s *memStore) Pricing() repository.DirectPricingRepository { return &memPricing{s} }

func (s *memStore) Transaction(ctx context.Context, fn func(tx repository.Store) error) error {
	s.mu.Lock()
	s.txCalls++
	tx := *s
	tx.data = s.data.clone()
	tx.inTx = true
	tx.mu = &sync.Mutex{}
	s.mu.Unlock()

	if err := fn(&tx); err != nil {
		return err
	}

	s.mu.Lock()
	s.data = tx.data
	s.applyCalls += tx.applyCalls
	s.mu.Unlock()
	return nil
}

// seedProduct stores p as-is, bypassing the save guard.
func (s *memStore) seedProduct(p model.Product) model.Product {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.StockSource == "" {
		p.StockSource = model.StockSourceBatches
	}
	if p.WarehouseStock.Source == "" {
		p.WarehouseStock.Source = model.StockSourceBatches
	}
	p.Active = true
	s.mu.Lock()
	s.data.products[p.ID] = p
	s.mu.Unlock()
	return p
}

func (s *memStore) seedBatch(b model.StockBatch) model.StockBatch {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	s.mu.Lock()
	s.data.batches[b.ID] = b
	s.mu.Unlock()
	return b
}

func (s *memStore) product(id uuid.UUID) model.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.products[id]
}

func (s *memStore) pricingLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data.pricing)
}

func (s *memStore) historyLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data.history)
}

// ── Products ──────────────────────────────────────────────────────────────────

type memProducts struct{ s *memStore }

func (r *memProducts) Create(_ context.Context, p *model.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	_ = p.BeforeSave(nil)
	r.s.data.products[p.ID] = *p
	return nil
}

func (r *memProducts) FindByID(_ context.Context, id uuid.UUID) (*model.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.errFindProduct != nil {
		return nil, r.s.errFindProduct
	}
	p, ok := r.s.data.products[id]
	if !ok {
		return nil, apierror.ErrNotFound
	}
	return &p, nil
}

func (r *memProducts) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	return r.FindByID(ctx, id)
}

func (r *memProducts) Save(_ context.Context, p *model.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	_ = p.BeforeSave(nil)
	r.s.data.products[p.ID] = *p
	return nil
}

func (r *memProducts) ApplyBatchDerived(_ context.Context, id uuid.UUID, bd model.BatchDerived) (bool, error) {
	if r.s.beforeApply != nil {
		r.s.beforeApply(r.s)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.applyCalls++
	if r.s.errApply != nil {
		return false, r.s.errApply
	}
	p, ok := r.s.data.products[id]
	if !ok || p.WarehouseStock.Enabled {
		return false, nil
	}
	if err := applyColumns(&p, model.BatchDerivedColumns(bd)); err != nil {
		return false, err
	}
	r.s.data.products[id] = p
	return true, nil
}

var productSchema = func() *schema.Schema {
	sch, err := schema.Parse(&model.Product{}, &sync.Map{}, schema.NamingStrategy{})
	if err != nil {
		panic(err)
	}
	return sch
}()

// applyColumns writes a column map onto p the way gorm's Updates would.
func applyColumns(p *model.Product, cols map[string]interface{}) error {
	rv := reflect.ValueOf(p).Elem()
	for col, v := range cols {
		f := productSchema.LookUpField(col)
		if f == nil {
			return fmt.Errorf("unknown column %q", col)
		}
		if err := f.Set(context.Background(), rv, v); err != nil {
			return fmt.Errorf("set %s: %w", col, err)
		}
	}
	return nil
}

func (r *memProducts) ListIDs(_ context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var ids []uuid.UUID
	for id, p := range r.s.data.products {
		if p.Active && id.String() > after.String() {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

// ── Batches ───────────────────────────────────────────────────────────────────

type memBatches struct{ s *memStore }

func (r *memBatches) Create(_ context.Context, b *model.StockBatch) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	r.s.data.batches[b.ID] = *b
	return nil
}

func (r *memBatches) FindByID(_ context.Context, id uuid.UUID) (*model.StockBatch, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.data.batches[id]
	if !ok {
		return nil, apierror.ErrNotFound
	}
	return &b, nil
}

func (r *memBatches) Save(_ context.Context, b *model.StockBatch) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.data.batches[b.ID] = *b
	return nil
}

func (r *memBatches) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.data.batches[id]; !ok {
		return apierror.ErrNotFound
	}
	delete(r.s.data.batches, id)
	return nil
}

func (r *memBatches) ListActiveByProduct(_ context.Context, productID uuid.UUID) ([]model.StockBatch, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.errListActive != nil {
		return nil, r.s.errListActive
	}
	var out []model.StockBatch
	for _, b := range r.s.data.batches {
		if b.ProductID == productID && b.Status.IsActive() {
			out = append(out, b)
		}
	}
	return out, nil
}

func (r *memBatches) List(_ context.Context, filter repository.StockBatchFilter) ([]model.StockBatch, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.StockBatch
	for _, b := range r.s.data.batches {
		if b.ProductID != filter.ProductID {
			continue
		}
		if filter.ActiveOnly && !b.Status.IsActive() {
			continue
		}
		out = append(out, b)
	}
	return out, int64(len(out)), nil
}

func (r *memBatches) UpdateStatusMany(_ context.Context, ids []uuid.UUID, status model.BatchStatus) ([]uuid.UUID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	seen := map[uuid.UUID]bool{}
	var products []uuid.UUID
	for _, id := range ids {
		b, ok := r.s.data.batches[id]
		if !ok {
			continue
		}
		b.Status = status
		r.s.data.batches[id] = b
		if !seen[b.ProductID] {
			seen[b.ProductID] = true
			products = append(products, b.ProductID)
		}
	}
	return products, nil
}

// ── Pricing ───────────────────────────────────────────────────────────────────

type memPricing struct{ s *memStore }

func (r *memPricing) FindActiveByProduct(_ context.Context, productID uuid.UUID) (*model.DirectPricing, error) {
	rec, err := r.findActive(productID)
	if r.s.afterFindPricing != nil {
		r.s.afterFindPricing()
	}
	return rec, err
}

func (r *memPricing) findActive(productID uuid.UUID) (*model.DirectPricing, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, rec := range r.s.data.pricing {
		if rec.ProductID == productID && rec.IsActive {
			rec.History = nil
			return &rec, nil
		}
	}
	return nil, apierror.ErrNotFound
}

func (r *memPricing) CreateIfAbsent(_ context.Context, rec *model.DirectPricing) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.data.pricing {
		if existing.ProductID == rec.ProductID && existing.IsActive {
			return nil
		}
	}
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	r.s.data.pricing[rec.ID] = *rec
	return nil
}

func (r *memPricing) SaveWithHistory(_ context.Context, rec *model.DirectPricing, entry *model.DirectPriceHistory) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.errSaveWithHistory != nil {
		return r.s.errSaveWithHistory
	}
	stored := *rec
	stored.History = nil
	r.s.data.pricing[rec.ID] = stored
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	r.s.data.history = append(r.s.data.history, *entry)
	return nil
}

func (r *memPricing) Save(_ context.Context, rec *model.DirectPricing) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored := *rec
	stored.History = nil
	r.s.data.pricing[rec.ID] = stored
	return nil
}

func (r *memPricing) ListHistory(_ context.Context, productID uuid.UUID, page, limit int) ([]model.DirectPriceHistory, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.DirectPriceHistory
	for i := len(r.s.data.history) - 1; i >= 0; i-- {
		if r.s.data.history[i].ProductID == productID {
			out = append(out, r.s.data.history[i])
		}
	}
	return out, int64(len(out)), nil
}

var errStorage = apierror.Storage("stub", errors.New("connection reset"))
