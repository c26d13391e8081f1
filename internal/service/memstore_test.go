package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"stock-service/internal/models"

	"github.com/shopspring/decimal"
)

// memStore is an in-memory LedgerStore/CatalogStore with real per-item
// mutexes standing in for row locks. Writes made through an item lock are
// staged and applied only when the callback returns nil, mirroring the
// commit/rollback contract of the SQL store.
type memStore struct {
	mu        sync.Mutex
	nextID    int64
	items     map[int64]*models.Item
	specs     map[int64]*models.Spec
	suppliers map[int64]*models.Supplier
	inwards   []models.Inward
	issues    []models.Issue
	audits    []models.AuditEntry
	locks     map[int64]*sync.Mutex
	invoices  map[string]bool
}

func newMemStore() *memStore {
	return &memStore{
		items:     make(map[int64]*models.Item),
		specs:     make(map[int64]*models.Spec),
		suppliers: make(map[int64]*models.Supplier),
		locks:     make(map[int64]*sync.Mutex),
		invoices:  make(map[string]bool),
	}
}

var (
	_ LedgerStore  = (*memStore)(nil)
	_ CatalogStore = (*memStore)(nil)
)

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

func invoiceKey(itemID int64, invoice string) string {
	return fmt.Sprintf("%d|%s", itemID, invoice)
}

// addSupplier seeds a supplier directly, bypassing validation
func (m *memStore) addSupplier(name string) *models.Supplier {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := &models.Supplier{ID: m.id(), Name: name, LeadTime: 7}
	m.suppliers[s.ID] = s
	return s
}

// addSpec seeds a spec directly, bypassing validation
func (m *memStore) addSpec(name string) *models.Spec {
	m.mu.Lock()
	defer m.mu.Unlock()
	sp := &models.Spec{ID: m.id(), Spec: name}
	m.specs[sp.ID] = sp
	return sp
}

// addRawItem seeds a RAW item with its own spec and supplier
func (m *memStore) addRawItem(name string, securityStock *int64) *models.Item {
	sp := m.addSpec(name + " spec")
	su := m.addSupplier(name + " supplier")

	m.mu.Lock()
	defer m.mu.Unlock()
	it := &models.Item{
		ID:            m.id(),
		ItemName:      name,
		ItemType:      models.ItemTypeRaw,
		SpecID:        &sp.ID,
		SupplierID:    &su.ID,
		SecurityStock: securityStock,
		CreatedAt:     time.Now().UTC(),
	}
	m.items[it.ID] = it
	m.locks[it.ID] = &sync.Mutex{}
	return it
}

// addFinalItem seeds a FINAL item
func (m *memStore) addFinalItem(name string) *models.Item {
	m.mu.Lock()
	defer m.mu.Unlock()
	it := &models.Item{
		ID:        m.id(),
		ItemName:  name,
		ItemType:  models.ItemTypeFinal,
		CreatedAt: time.Now().UTC(),
	}
	m.items[it.ID] = it
	m.locks[it.ID] = &sync.Mutex{}
	return it
}

func (m *memStore) stockLocked(itemID int64) int64 {
	var stock int64
	for _, inw := range m.inwards {
		if inw.ItemID == itemID {
			stock += inw.Quantity
		}
	}
	for _, iss := range m.issues {
		if iss.ItemID == itemID {
			stock -= iss.Quantity
		}
	}
	return stock
}

func (m *memStore) auditEntries(action string, success bool) []models.AuditEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.AuditEntry
	for _, e := range m.audits {
		if e.Action == action && e.Success == success {
			out = append(out, e)
		}
	}
	return out
}

// --- LedgerStore ---

func (m *memStore) GetItem(ctx context.Context, id int64) (*models.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok {
		return nil, fmt.Errorf("item %d: %w", id, models.ErrNotFound)
	}
	cp := *it
	return &cp, nil
}

func (m *memStore) WithItemLock(ctx context.Context, itemID int64, fn func(tx ItemTx) error) error {
	m.mu.Lock()
	lock, ok := m.locks[itemID]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("item %d: %w", itemID, models.ErrNotFound)
	}
	m.mu.Unlock()

	lock.Lock()
	defer lock.Unlock()

	tx := &memTx{store: m, itemID: itemID}
	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

func (m *memStore) CurrentStock(ctx context.Context, itemID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[itemID]; !ok {
		return 0, fmt.Errorf("item %d: %w", itemID, models.ErrNotFound)
	}
	return m.stockLocked(itemID), nil
}

func (m *memStore) StockReport(ctx context.Context) ([]models.StockStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.StockStatus
	for _, it := range m.items {
		row := models.StockStatus{
			ItemID:   it.ID,
			ItemName: it.ItemName,
			ItemType: it.ItemType,
		}
		if it.SecurityStock != nil {
			row.SecurityStock = *it.SecurityStock
		}
		for _, inw := range m.inwards {
			if inw.ItemID == it.ID {
				row.TotalInward += inw.Quantity
			}
		}
		for _, iss := range m.issues {
			if iss.ItemID == it.ID {
				row.TotalIssue += iss.Quantity
			}
		}
		row.CurrentStock = row.TotalInward - row.TotalIssue
		out = append(out, row)
	}
	return out, nil
}

func (m *memStore) ListInwards(ctx context.Context, itemID int64) ([]models.Inward, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Inward
	for _, inw := range m.inwards {
		if itemID == 0 || inw.ItemID == itemID {
			out = append(out, inw)
		}
	}
	return out, nil
}

func (m *memStore) ListIssues(ctx context.Context, itemID int64) ([]models.Issue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Issue
	for _, iss := range m.issues {
		if itemID == 0 || iss.ItemID == itemID {
			out = append(out, iss)
		}
	}
	return out, nil
}

func (m *memStore) QueryAudit(ctx context.Context, f models.AuditFilter) ([]models.AuditEntry, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matched []models.AuditEntry
	for _, e := range m.audits {
		if f.Username != "" && e.Username != f.Username {
			continue
		}
		if f.Action != "" && e.Action != f.Action {
			continue
		}
		if f.TableName != "" && e.TableName != f.TableName {
			continue
		}
		matched = append(matched, e)
	}
	total := int64(len(matched))
	if f.Offset >= len(matched) {
		return nil, total, nil
	}
	matched = matched[f.Offset:]
	if f.Limit > 0 && len(matched) > f.Limit {
		matched = matched[:f.Limit]
	}
	return matched, total, nil
}

// --- FailureSink ---

func (m *memStore) RecordAuditFailure(ctx context.Context, entry *models.AuditEntry) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	entry.ID = m.id()
	m.audits = append(m.audits, *entry)
	return nil
}

// --- CatalogStore ---

func (m *memStore) GetSpec(ctx context.Context, id int64) (*models.Spec, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sp, ok := m.specs[id]
	if !ok {
		return nil, fmt.Errorf("spec %d: %w", id, models.ErrNotFound)
	}
	cp := *sp
	return &cp, nil
}

func (m *memStore) GetSupplier(ctx context.Context, id int64) (*models.Supplier, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.suppliers[id]
	if !ok {
		return nil, fmt.Errorf("supplier %d: %w", id, models.ErrNotFound)
	}
	cp := *s
	return &cp, nil
}

func (m *memStore) ListItems(ctx context.Context) ([]models.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Item
	for _, it := range m.items {
		out = append(out, *it)
	}
	return out, nil
}

func (m *memStore) ListSpecs(ctx context.Context) ([]models.Spec, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Spec
	for _, sp := range m.specs {
		out = append(out, *sp)
	}
	return out, nil
}

func (m *memStore) ListSuppliers(ctx context.Context) ([]models.Supplier, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Supplier
	for _, s := range m.suppliers {
		out = append(out, *s)
	}
	return out, nil
}

func (m *memStore) CreateItem(ctx context.Context, item *models.Item, entry *models.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	item.ID = m.id()
	item.CreatedAt = time.Now().UTC()
	cp := *item
	m.items[item.ID] = &cp
	m.locks[item.ID] = &sync.Mutex{}
	entry.ID = m.id()
	entry.RecordID = &item.ID
	m.audits = append(m.audits, *entry)
	return nil
}

func (m *memStore) DeleteItem(ctx context.Context, id int64, entry *models.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return fmt.Errorf("item %d: %w", id, models.ErrNotFound)
	}
	for _, inw := range m.inwards {
		if inw.ItemID == id {
			return fmt.Errorf("item %d has ledger history: %w", id, models.ErrReferentialConflict)
		}
	}
	for _, iss := range m.issues {
		if iss.ItemID == id {
			return fmt.Errorf("item %d has ledger history: %w", id, models.ErrReferentialConflict)
		}
	}
	delete(m.items, id)
	delete(m.locks, id)
	entry.ID = m.id()
	m.audits = append(m.audits, *entry)
	return nil
}

func (m *memStore) CreateSpec(ctx context.Context, spec *models.Spec, entry *models.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	spec.ID = m.id()
	cp := *spec
	m.specs[spec.ID] = &cp
	entry.ID = m.id()
	entry.RecordID = &spec.ID
	m.audits = append(m.audits, *entry)
	return nil
}

func (m *memStore) DeleteSpec(ctx context.Context, id int64, entry *models.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.specs[id]; !ok {
		return fmt.Errorf("spec %d: %w", id, models.ErrNotFound)
	}
	for _, it := range m.items {
		if it.SpecID != nil && *it.SpecID == id {
			return fmt.Errorf("spec %d is referenced by items: %w", id, models.ErrReferentialConflict)
		}
	}
	delete(m.specs, id)
	entry.ID = m.id()
	m.audits = append(m.audits, *entry)
	return nil
}

func (m *memStore) CreateSupplier(ctx context.Context, supp *models.Supplier, entry *models.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	supp.ID = m.id()
	cp := *supp
	m.suppliers[supp.ID] = &cp
	entry.ID = m.id()
	entry.RecordID = &supp.ID
	m.audits = append(m.audits, *entry)
	return nil
}

func (m *memStore) DeleteSupplier(ctx context.Context, id int64, entry *models.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.suppliers[id]; !ok {
		return fmt.Errorf("supplier %d: %w", id, models.ErrNotFound)
	}
	for _, it := range m.items {
		if it.SupplierID != nil && *it.SupplierID == id {
			return fmt.Errorf("supplier %d is referenced by items: %w", id, models.ErrReferentialConflict)
		}
	}
	delete(m.suppliers, id)
	entry.ID = m.id()
	m.audits = append(m.audits, *entry)
	return nil
}

// --- item-locked transaction ---

type supplierUpdate struct {
	supplierID int64
	received   time.Time
	rate       decimal.Decimal
}

type memTx struct {
	store       *memStore
	itemID      int64
	issues      []models.Issue
	inwards     []models.Inward
	audits      []models.AuditEntry
	suppUpdates []supplierUpdate
}

func (t *memTx) CurrentStock(ctx context.Context) (int64, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	return t.store.stockLocked(t.itemID), nil
}

func (t *memTx) InsertIssue(ctx context.Context, iss *models.Issue) error {
	t.store.mu.Lock()
	iss.TransactionID = t.store.id()
	t.store.mu.Unlock()
	t.issues = append(t.issues, *iss)
	return nil
}

func (t *memTx) InsertInward(ctx context.Context, inw *models.Inward) error {
	// Safe to check committed invoices here: the item lock serializes all
	// inward writers for this item.
	t.store.mu.Lock()
	if t.store.invoices[invoiceKey(inw.ItemID, inw.InvoiceNumber)] {
		t.store.mu.Unlock()
		return fmt.Errorf("invoice %s for item %d: %w",
			inw.InvoiceNumber, inw.ItemID, models.ErrDuplicateInvoice)
	}
	inw.TransactionID = t.store.id()
	t.store.mu.Unlock()
	t.inwards = append(t.inwards, *inw)
	return nil
}

func (t *memTx) UpdateSupplierPurchase(ctx context.Context, supplierID int64, received time.Time, rate decimal.Decimal) error {
	t.suppUpdates = append(t.suppUpdates, supplierUpdate{supplierID, received, rate})
	return nil
}

func (t *memTx) RecordAudit(ctx context.Context, entry *models.AuditEntry) error {
	t.audits = append(t.audits, *entry)
	return nil
}

func (t *memTx) commit() {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	t.store.issues = append(t.store.issues, t.issues...)
	for _, inw := range t.inwards {
		t.store.inwards = append(t.store.inwards, inw)
		t.store.invoices[invoiceKey(inw.ItemID, inw.InvoiceNumber)] = true
	}
	for _, e := range t.audits {
		e.ID = t.store.id()
		t.store.audits = append(t.store.audits, e)
	}
	for _, u := range t.suppUpdates {
		s, ok := t.store.suppliers[u.supplierID]
		if !ok {
			continue
		}
		if s.LastPurchaseDate == nil || !s.LastPurchaseDate.After(u.received) {
			r := u.received
			s.LastPurchaseDate = &r
			s.LastPurchaseRate = decimal.NewNullDecimal(u.rate)
		}
	}
}

// --- cache and publisher fakes ---

// memCache is a StockCache that records hits, sets and invalidations
type memCache struct {
	mu          sync.Mutex
	rows        []models.StockStatus
	sets        int
	invalidates int
}

func (c *memCache) GetStockReport(ctx context.Context) ([]models.StockStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rows, nil
}

func (c *memCache) SetStockReport(ctx context.Context, rows []models.StockStatus) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rows = rows
	c.sets++
	return nil
}

func (c *memCache) InvalidateStockReport(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rows = nil
	c.invalidates++
	return nil
}

// capturePublisher records published reorder events
type capturePublisher struct {
	mu     sync.Mutex
	events []*models.ReorderEvent
	err    error
}

func (p *capturePublisher) PublishReorderAlert(ctx context.Context, event *models.ReorderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

// waitForEvents polls until n events arrive or the timeout expires
func (p *capturePublisher) waitForEvents(n int, timeout time.Duration) []*models.ReorderEvent {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		p.mu.Lock()
		if len(p.events) >= n {
			out := append([]*models.ReorderEvent(nil), p.events...)
			p.mu.Unlock()
			return out
		}
		p.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*models.ReorderEvent(nil), p.events...)
}
