package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stock-service/internal/audit"
	"stock-service/internal/models"
	"stock-service/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// LedgerService coordinates stock-affecting transactions. Every mutation of
// one item's ledger runs inside that item's row lock: lock, re-read stock,
// validate, append, commit as one atomic unit. Operations on different items
// never block each other.
type LedgerService struct {
	store     LedgerStore
	cache     StockCache
	recorder  *audit.Recorder
	publisher ReorderPublisher
	logger    *zap.Logger
}

// NewLedgerService creates a new ledger coordinator
func NewLedgerService(
	store LedgerStore,
	cache StockCache,
	recorder *audit.Recorder,
	publisher ReorderPublisher,
) *LedgerService {
	return &LedgerService{
		store:     store,
		cache:     cache,
		recorder:  recorder,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// IssueRequest represents a request to issue stock
type IssueRequest struct {
	ItemID    int64
	Quantity  int64
	IssueDate time.Time
	IssuedTo  string
}

// IssueResult represents the outcome of an accepted issue
type IssueResult struct {
	TransactionID  int64 `json:"transaction_id"`
	ItemID         int64 `json:"item_id"`
	Quantity       int64 `json:"quantity"`
	RemainingStock int64 `json:"remaining_stock"`
}

// InwardRequest represents a request to record a receipt
type InwardRequest struct {
	ItemID        int64
	InvoiceNumber string
	Quantity      int64
	Rate          decimal.Decimal
	OrderDate     time.Time
	ReceivedDate  time.Time
}

// InwardResult represents the outcome of an accepted inward
type InwardResult struct {
	TransactionID int64 `json:"transaction_id"`
	ItemID        int64 `json:"item_id"`
	Quantity      int64 `json:"quantity"`
	NewStock      int64 `json:"new_stock"`
}

// Issue consumes stock from an item's ledger. The oversell guard runs strictly
// inside the item lock: stock is recomputed after acquisition, so concurrent
// issues on the same item are totally ordered by lock acquisition and can
// never drive the computed stock negative.
func (s *LedgerService) Issue(ctx context.Context, actor string, req *IssueRequest) (*IssueResult, error) {
	ctx, span := util.StartSpan(ctx, "LedgerService.Issue")
	defer span.End()

	if req.Quantity <= 0 {
		s.recorder.Failure(ctx, actor, models.ActionIssue, models.TableIssues, nil,
			fmt.Sprintf("issue rejected: quantity %d is not positive", req.Quantity))
		util.IssuesRejectedTotal.WithLabelValues("invalid_quantity").Inc()
		return nil, fmt.Errorf("issue quantity %d: %w", req.Quantity, models.ErrInvalidQuantity)
	}

	item, err := s.store.GetItem(ctx, req.ItemID)
	if err != nil {
		s.recorder.Failure(ctx, actor, models.ActionIssue, models.TableIssues, nil,
			fmt.Sprintf("issue rejected: item %d not found", req.ItemID))
		util.IssuesRejectedTotal.WithLabelValues("not_found").Inc()
		return nil, fmt.Errorf("issue item %d: %w", req.ItemID, err)
	}

	iss := &models.Issue{
		ItemID:    item.ID,
		Quantity:  req.Quantity,
		IssueDate: req.IssueDate,
		IssuedTo:  req.IssuedTo,
	}

	var remaining int64
	err = s.store.WithItemLock(ctx, item.ID, func(tx ItemTx) error {
		stock, err := tx.CurrentStock(ctx)
		if err != nil {
			return fmt.Errorf("recompute stock: %w", err)
		}
		if stock < req.Quantity {
			return fmt.Errorf("current stock %d, requested %d: %w",
				stock, req.Quantity, models.ErrInsufficientStock)
		}
		if err := tx.InsertIssue(ctx, iss); err != nil {
			return err
		}
		remaining = stock - req.Quantity
		return s.recorder.Success(ctx, tx, actor, models.ActionIssue, models.TableIssues,
			&iss.TransactionID,
			fmt.Sprintf("issued %d of item %d to %s", req.Quantity, item.ID, req.IssuedTo))
	})
	if err != nil {
		s.recorder.Failure(ctx, actor, models.ActionIssue, models.TableIssues, &item.ID,
			fmt.Sprintf("issue of %d for item %d rejected: %v", req.Quantity, item.ID, err))
		util.IssuesRejectedTotal.WithLabelValues(rejectReason(err)).Inc()
		return nil, err
	}

	util.IssuesAcceptedTotal.Inc()
	s.logger.Info("Issue recorded",
		zap.Int64("item_id", item.ID),
		zap.Int64("transaction_id", iss.TransactionID),
		zap.Int64("quantity", req.Quantity),
		zap.Int64("remaining_stock", remaining))

	s.invalidateStockReport()
	s.maybePublishReorder(item, remaining)

	return &IssueResult{
		TransactionID:  iss.TransactionID,
		ItemID:         item.ID,
		Quantity:       req.Quantity,
		RemainingStock: remaining,
	}, nil
}

// Inward records a receipt into an item's ledger. It never rejects on stock
// sufficiency; the only in-lock failure is an invoice-number collision for the
// item, surfaced by the store's uniqueness constraint. While the lock is held
// the referenced supplier's last-purchase ledger is advanced opportunistically.
func (s *LedgerService) Inward(ctx context.Context, actor string, req *InwardRequest) (*InwardResult, error) {
	ctx, span := util.StartSpan(ctx, "LedgerService.Inward")
	defer span.End()

	if req.Quantity <= 0 {
		s.recorder.Failure(ctx, actor, models.ActionInward, models.TableInwards, nil,
			fmt.Sprintf("inward rejected: quantity %d is not positive", req.Quantity))
		util.InwardsRejectedTotal.WithLabelValues("invalid_quantity").Inc()
		return nil, fmt.Errorf("inward quantity %d: %w", req.Quantity, models.ErrInvalidQuantity)
	}

	item, err := s.store.GetItem(ctx, req.ItemID)
	if err != nil {
		s.recorder.Failure(ctx, actor, models.ActionInward, models.TableInwards, nil,
			fmt.Sprintf("inward rejected: item %d not found", req.ItemID))
		util.InwardsRejectedTotal.WithLabelValues("not_found").Inc()
		return nil, fmt.Errorf("inward item %d: %w", req.ItemID, err)
	}

	inw := &models.Inward{
		ItemID:        item.ID,
		InvoiceNumber: req.InvoiceNumber,
		Quantity:      req.Quantity,
		Rate:          req.Rate,
		OrderDate:     req.OrderDate,
		ReceivedDate:  req.ReceivedDate,
	}

	var newStock int64
	err = s.store.WithItemLock(ctx, item.ID, func(tx ItemTx) error {
		stock, err := tx.CurrentStock(ctx)
		if err != nil {
			return fmt.Errorf("recompute stock: %w", err)
		}
		if err := tx.InsertInward(ctx, inw); err != nil {
			return err
		}
		if item.SupplierID != nil {
			if err := tx.UpdateSupplierPurchase(ctx, *item.SupplierID, req.ReceivedDate, req.Rate); err != nil {
				return fmt.Errorf("update supplier ledger: %w", err)
			}
		}
		newStock = stock + req.Quantity
		return s.recorder.Success(ctx, tx, actor, models.ActionInward, models.TableInwards,
			&inw.TransactionID,
			fmt.Sprintf("received %d of item %d against invoice %s", req.Quantity, item.ID, req.InvoiceNumber))
	})
	if err != nil {
		s.recorder.Failure(ctx, actor, models.ActionInward, models.TableInwards, &item.ID,
			fmt.Sprintf("inward of %d for item %d rejected: %v", req.Quantity, item.ID, err))
		util.InwardsRejectedTotal.WithLabelValues(rejectReason(err)).Inc()
		return nil, err
	}

	util.InwardsAcceptedTotal.Inc()
	s.logger.Info("Inward recorded",
		zap.Int64("item_id", item.ID),
		zap.Int64("transaction_id", inw.TransactionID),
		zap.Int64("quantity", req.Quantity),
		zap.Int64("new_stock", newStock))

	s.invalidateStockReport()

	return &InwardResult{
		TransactionID: inw.TransactionID,
		ItemID:        item.ID,
		Quantity:      req.Quantity,
		NewStock:      newStock,
	}, nil
}

// CurrentStock returns one item's derived stock outside of any lock
func (s *LedgerService) CurrentStock(ctx context.Context, itemID int64) (int64, error) {
	if _, err := s.store.GetItem(ctx, itemID); err != nil {
		return 0, fmt.Errorf("item %d: %w", itemID, err)
	}
	return s.store.CurrentStock(ctx, itemID)
}

// StockReport returns the bulk dashboard projection. The read is not
// lock-protected and is served from cache when possible; a transiently stale
// snapshot during concurrent writes is an accepted trade-off.
func (s *LedgerService) StockReport(ctx context.Context) ([]models.StockStatus, error) {
	ctx, span := util.StartSpan(ctx, "LedgerService.StockReport")
	defer span.End()

	if rows, err := s.cache.GetStockReport(ctx); err != nil {
		s.logger.Warn("Stock report cache read failed", zap.Error(err))
	} else if rows != nil {
		util.StockReportCacheHits.Inc()
		return rows, nil
	}

	util.StockReportCacheMisses.Inc()
	rows, err := s.store.StockReport(ctx)
	if err != nil {
		return nil, fmt.Errorf("stock report: %w", err)
	}

	if err := s.cache.SetStockReport(ctx, rows); err != nil {
		s.logger.Warn("Stock report cache write failed", zap.Error(err))
	}
	return rows, nil
}

// ListInwards lists inward transactions, optionally filtered by item
func (s *LedgerService) ListInwards(ctx context.Context, itemID int64) ([]models.Inward, error) {
	return s.store.ListInwards(ctx, itemID)
}

// ListIssues lists issue transactions, optionally filtered by item
func (s *LedgerService) ListIssues(ctx context.Context, itemID int64) ([]models.Issue, error) {
	return s.store.ListIssues(ctx, itemID)
}

// QueryAudit returns audit entries matching the filter plus the total count
func (s *LedgerService) QueryAudit(ctx context.Context, f models.AuditFilter) ([]models.AuditEntry, int64, error) {
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 100
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return s.store.QueryAudit(ctx, f)
}

// maybePublishReorder fires a reorder alert when stock reached the item's
// security-stock threshold. Fire-and-forget: runs async, failures are logged
// and never reach the issue response.
func (s *LedgerService) maybePublishReorder(item *models.Item, remaining int64) {
	if item.SecurityStock == nil || remaining > *item.SecurityStock {
		return
	}

	event := &models.ReorderEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeReorderAlert,
			Timestamp: time.Now().UTC(),
		},
		ItemID:        item.ID,
		ItemName:      item.ItemName,
		CurrentStock:  remaining,
		SecurityStock: *item.SecurityStock,
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := s.publisher.PublishReorderAlert(ctx, event); err != nil {
			s.logger.Warn("Failed to publish reorder alert",
				zap.Int64("item_id", event.ItemID),
				zap.Error(err))
			return
		}
		util.ReorderAlertsPublished.Inc()
	}()
}

// invalidateStockReport drops the cached dashboard snapshot best-effort
func (s *LedgerService) invalidateStockReport() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := s.cache.InvalidateStockReport(ctx); err != nil {
		s.logger.Warn("Stock report cache invalidation failed", zap.Error(err))
	}
}

// rejectReason maps a rejection to a metric label
func rejectReason(err error) string {
	switch {
	case errors.Is(err, models.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, models.ErrDuplicateInvoice):
		return "duplicate_invoice"
	case errors.Is(err, models.ErrNotFound):
		return "not_found"
	case errors.Is(err, models.ErrInvalidQuantity):
		return "invalid_quantity"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return "storage_error"
	}
}
