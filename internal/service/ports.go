package service

import (
	"context"
	"time"

	"stock-service/internal/models"

	"github.com/shopspring/decimal"
)

// ItemTx is the storage view inside an open, item-locked transaction. Every
// write made through it commits or rolls back as one unit with the lock's
// release. Implemented by the store against a row-exclusive lock on the item.
type ItemTx interface {
	// CurrentStock recomputes the locked item's stock from the ledger,
	// seeing every previously committed transaction for that item.
	CurrentStock(ctx context.Context) (int64, error)

	InsertIssue(ctx context.Context, iss *models.Issue) error
	InsertInward(ctx context.Context, inw *models.Inward) error

	// UpdateSupplierPurchase advances the supplier's last-purchase ledger
	// fields, but never moves last_purchase_date backwards.
	UpdateSupplierPurchase(ctx context.Context, supplierID int64, received time.Time, rate decimal.Decimal) error

	// RecordAudit appends a success audit entry inside the transaction.
	RecordAudit(ctx context.Context, entry *models.AuditEntry) error
}

// LedgerStore is the transactional storage consumed by the ledger coordinator.
type LedgerStore interface {
	GetItem(ctx context.Context, id int64) (*models.Item, error)

	// WithItemLock acquires a row-exclusive lock on the item, runs fn with a
	// transaction bound to that lock and commits on nil / rolls back on error.
	// The lock is released on every exit path. Locking a missing item fails
	// with models.ErrNotFound before any lock is taken.
	WithItemLock(ctx context.Context, itemID int64, fn func(tx ItemTx) error) error

	CurrentStock(ctx context.Context, itemID int64) (int64, error)

	// StockReport is the bulk dashboard projection. It is deliberately not
	// lock-protected and may observe a transiently stale snapshot.
	StockReport(ctx context.Context) ([]models.StockStatus, error)

	ListInwards(ctx context.Context, itemID int64) ([]models.Inward, error)
	ListIssues(ctx context.Context, itemID int64) ([]models.Issue, error)

	QueryAudit(ctx context.Context, f models.AuditFilter) ([]models.AuditEntry, int64, error)
}

// CatalogStore persists items, specs and suppliers. Mutations take the success
// audit entry so the store can commit it atomically with the change.
type CatalogStore interface {
	GetItem(ctx context.Context, id int64) (*models.Item, error)
	GetSpec(ctx context.Context, id int64) (*models.Spec, error)
	GetSupplier(ctx context.Context, id int64) (*models.Supplier, error)

	ListItems(ctx context.Context) ([]models.Item, error)
	ListSpecs(ctx context.Context) ([]models.Spec, error)
	ListSuppliers(ctx context.Context) ([]models.Supplier, error)

	CreateItem(ctx context.Context, item *models.Item, entry *models.AuditEntry) error
	DeleteItem(ctx context.Context, id int64, entry *models.AuditEntry) error
	CreateSpec(ctx context.Context, spec *models.Spec, entry *models.AuditEntry) error
	DeleteSpec(ctx context.Context, id int64, entry *models.AuditEntry) error
	CreateSupplier(ctx context.Context, supp *models.Supplier, entry *models.AuditEntry) error
	DeleteSupplier(ctx context.Context, id int64, entry *models.AuditEntry) error
}

// StockCache caches the dashboard stock report. A miss returns (nil, nil).
type StockCache interface {
	GetStockReport(ctx context.Context) ([]models.StockStatus, error)
	SetStockReport(ctx context.Context, rows []models.StockStatus) error
	InvalidateStockReport(ctx context.Context) error
}

// ReorderPublisher delivers reorder-threshold alerts to the notification sink.
type ReorderPublisher interface {
	PublishReorderAlert(ctx context.Context, event *models.ReorderEvent) error
}
