package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"stock-service/internal/audit"
	"stock-service/internal/models"
	"stock-service/internal/service"
	"stock-service/internal/util"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// Store implements the service storage ports over PostgreSQL.
var (
	_ service.LedgerStore  = (*Store)(nil)
	_ service.CatalogStore = (*Store)(nil)
	_ audit.FailureSink    = (*Store)(nil)
)

const pqUniqueViolation = "23505"

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// WithItemLock takes a row-exclusive lock on the item (SELECT FOR UPDATE) and
// runs fn inside the transaction holding it. The lock lives exactly as long
// as the transaction: commit on nil, rollback on error, released either way.
// A missing item row fails with models.ErrNotFound before any lock is taken.
func (s *Store) WithItemLock(ctx context.Context, itemID int64, fn func(tx service.ItemTx) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin item transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	start := time.Now()
	var id int64
	err = tx.GetContext(ctx, &id, "SELECT id FROM items WHERE id = $1 FOR UPDATE", itemID)
	if errors.Is(err, sql.ErrNoRows) {
		err = fmt.Errorf("item %d: %w", itemID, models.ErrNotFound)
		return err
	}
	if err != nil {
		err = fmt.Errorf("lock item %d: %w", itemID, err)
		return err
	}
	util.ItemLockWaitSeconds.Observe(time.Since(start).Seconds())

	if err = fn(&itemTx{tx: tx, itemID: itemID}); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		err = fmt.Errorf("commit item transaction: %w", err)
	}
	return err
}

// itemTx is the transaction-scoped view handed to the coordinator while the
// item lock is held.
type itemTx struct {
	tx     *sqlx.Tx
	itemID int64
}

// CurrentStock recomputes the locked item's stock from the append-only ledger
func (t *itemTx) CurrentStock(ctx context.Context) (int64, error) {
	var stock int64
	err := t.tx.GetContext(ctx, &stock, `
		SELECT COALESCE((SELECT SUM(quantity) FROM inwards WHERE item_id = $1), 0)
		     - COALESCE((SELECT SUM(quantity) FROM issues  WHERE item_id = $1), 0)`,
		t.itemID)
	if err != nil {
		return 0, fmt.Errorf("aggregate stock for item %d: %w", t.itemID, err)
	}
	return stock, nil
}

// InsertIssue appends an issue row
func (t *itemTx) InsertIssue(ctx context.Context, iss *models.Issue) error {
	query := `
		INSERT INTO issues (item_id, quantity, issue_date, issued_to)
		VALUES ($1, $2, $3, $4)
		RETURNING transaction_id`

	if err := t.tx.GetContext(ctx, &iss.TransactionID, query,
		iss.ItemID, iss.Quantity, iss.IssueDate, iss.IssuedTo); err != nil {
		return fmt.Errorf("insert issue: %w", err)
	}
	return nil
}

// InsertInward appends an inward row. A (item, invoice) collision surfaces
// the uniqueness constraint as models.ErrDuplicateInvoice.
func (t *itemTx) InsertInward(ctx context.Context, inw *models.Inward) error {
	query := `
		INSERT INTO inwards (item_id, invoice_number, quantity, rate, order_date, received_date)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING transaction_id`

	err := t.tx.GetContext(ctx, &inw.TransactionID, query,
		inw.ItemID, inw.InvoiceNumber, inw.Quantity, inw.Rate, inw.OrderDate, inw.ReceivedDate)
	if isUniqueViolation(err) {
		return fmt.Errorf("invoice %q for item %d: %w", inw.InvoiceNumber, inw.ItemID, models.ErrDuplicateInvoice)
	}
	if err != nil {
		return fmt.Errorf("insert inward: %w", err)
	}
	return nil
}

// UpdateSupplierPurchase advances the supplier's last-purchase fields. The
// date guard keeps the ledger monotonic: an older receipt never wins.
func (t *itemTx) UpdateSupplierPurchase(ctx context.Context, supplierID int64, received time.Time, rate decimal.Decimal) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE suppliers
		SET last_purchase_date = $2, last_purchase_rate = $3
		WHERE id = $1
		  AND (last_purchase_date IS NULL OR last_purchase_date <= $2)`,
		supplierID, received, rate)
	if err != nil {
		return fmt.Errorf("update supplier %d: %w", supplierID, err)
	}
	return nil
}

// RecordAudit appends a success audit entry inside the item transaction
func (t *itemTx) RecordAudit(ctx context.Context, entry *models.AuditEntry) error {
	return insertAudit(ctx, t.tx, entry)
}

// insertAudit appends an audit row via any executor (pool or transaction)
func insertAudit(ctx context.Context, q sqlx.ExtContext, e *models.AuditEntry) error {
	query := `
		INSERT INTO audit_logs (timestamp, username, action, table_name, record_id, detail, success)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	if err := sqlx.GetContext(ctx, q, &e.ID, query,
		e.Timestamp, e.Username, e.Action, e.TableName, e.RecordID, e.Detail, e.Success); err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// RecordAuditFailure writes a failure entry through the plain connection
// pool, outside any business transaction, so it persists across rollbacks.
func (s *Store) RecordAuditFailure(ctx context.Context, entry *models.AuditEntry) error {
	return insertAudit(ctx, s.db, entry)
}

// withTx runs fn inside a transaction, committing on nil and rolling back on
// error.
func (s *Store) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == pqUniqueViolation
}
