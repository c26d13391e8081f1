package service

import (
	"context"
	"fmt"
	"time"

	"stock-service/internal/audit"
	"stock-service/internal/models"
	"stock-service/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CatalogService manages items, specs and suppliers around the ledger. Its
// mutations are audited the same way ledger mutations are: success entries
// commit with the change, failure entries survive independently.
type CatalogService struct {
	store    CatalogStore
	recorder *audit.Recorder
	logger   *zap.Logger
}

// NewCatalogService creates a new catalog service
func NewCatalogService(store CatalogStore, recorder *audit.Recorder) *CatalogService {
	return &CatalogService{
		store:    store,
		recorder: recorder,
		logger:   util.GetLogger(),
	}
}

// CreateItemRequest represents a request to create an item
type CreateItemRequest struct {
	ItemName      string
	ItemType      string
	SpecID        *int64
	SupplierID    *int64
	LeadTime      *int64
	SecurityStock *int64
	Rate          *decimal.Decimal
	Rack          *string
	Bin           *string
}

// CreateItem validates the item-type invariant and referenced rows, then
// persists the item and its audit entry atomically.
func (c *CatalogService) CreateItem(ctx context.Context, actor string, req *CreateItemRequest) (*models.Item, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.CreateItem")
	defer span.End()

	if err := c.validateItem(ctx, req); err != nil {
		c.recorder.Failure(ctx, actor, models.ActionCreate, models.TableItems, nil,
			fmt.Sprintf("item %q rejected: %v", req.ItemName, err))
		return nil, err
	}

	item := &models.Item{
		ItemName:      req.ItemName,
		ItemType:      req.ItemType,
		SpecID:        req.SpecID,
		SupplierID:    req.SupplierID,
		LeadTime:      req.LeadTime,
		SecurityStock: req.SecurityStock,
		Rate:          req.Rate,
		Rack:          req.Rack,
		Bin:           req.Bin,
	}

	entry := c.successEntry(actor, models.ActionCreate, models.TableItems,
		fmt.Sprintf("created %s item %q", req.ItemType, req.ItemName))
	if err := c.store.CreateItem(ctx, item, entry); err != nil {
		c.recorder.Failure(ctx, actor, models.ActionCreate, models.TableItems, nil,
			fmt.Sprintf("item %q rejected: %v", req.ItemName, err))
		return nil, fmt.Errorf("create item: %w", err)
	}

	c.logger.Info("Item created",
		zap.Int64("item_id", item.ID),
		zap.String("item_type", item.ItemType))
	return item, nil
}

// DeleteItem removes an item. Deletion is blocked while any inward or issue
// transaction still references the item; history is never cascaded away.
func (c *CatalogService) DeleteItem(ctx context.Context, actor string, id int64) error {
	ctx, span := util.StartSpan(ctx, "CatalogService.DeleteItem")
	defer span.End()

	entry := c.successEntry(actor, models.ActionDelete, models.TableItems,
		fmt.Sprintf("deleted item %d", id))
	if err := c.store.DeleteItem(ctx, id, entry); err != nil {
		c.recorder.Failure(ctx, actor, models.ActionDelete, models.TableItems, &id,
			fmt.Sprintf("delete of item %d rejected: %v", id, err))
		return fmt.Errorf("delete item %d: %w", id, err)
	}

	c.logger.Info("Item deleted", zap.Int64("item_id", id))
	return nil
}

// ListItems lists all items
func (c *CatalogService) ListItems(ctx context.Context) ([]models.Item, error) {
	return c.store.ListItems(ctx)
}

// CreateSpec creates a material specification
func (c *CatalogService) CreateSpec(ctx context.Context, actor string, spec *models.Spec) error {
	if spec.Spec == "" {
		c.recorder.Failure(ctx, actor, models.ActionCreate, models.TableSpecs, nil,
			"spec rejected: empty name")
		return fmt.Errorf("spec name: %w", models.ErrInvalidInput)
	}

	entry := c.successEntry(actor, models.ActionCreate, models.TableSpecs,
		fmt.Sprintf("created spec %q", spec.Spec))
	if err := c.store.CreateSpec(ctx, spec, entry); err != nil {
		c.recorder.Failure(ctx, actor, models.ActionCreate, models.TableSpecs, nil,
			fmt.Sprintf("spec %q rejected: %v", spec.Spec, err))
		return fmt.Errorf("create spec: %w", err)
	}
	return nil
}

// DeleteSpec removes a spec unless items still reference it
func (c *CatalogService) DeleteSpec(ctx context.Context, actor string, id int64) error {
	entry := c.successEntry(actor, models.ActionDelete, models.TableSpecs,
		fmt.Sprintf("deleted spec %d", id))
	if err := c.store.DeleteSpec(ctx, id, entry); err != nil {
		c.recorder.Failure(ctx, actor, models.ActionDelete, models.TableSpecs, &id,
			fmt.Sprintf("delete of spec %d rejected: %v", id, err))
		return fmt.Errorf("delete spec %d: %w", id, err)
	}
	return nil
}

// ListSpecs lists all specs
func (c *CatalogService) ListSpecs(ctx context.Context) ([]models.Spec, error) {
	return c.store.ListSpecs(ctx)
}

// CreateSupplier creates a supplier
func (c *CatalogService) CreateSupplier(ctx context.Context, actor string, supp *models.Supplier) error {
	if supp.Name == "" {
		c.recorder.Failure(ctx, actor, models.ActionCreate, models.TableSuppliers, nil,
			"supplier rejected: empty name")
		return fmt.Errorf("supplier name: %w", models.ErrInvalidInput)
	}

	entry := c.successEntry(actor, models.ActionCreate, models.TableSuppliers,
		fmt.Sprintf("created supplier %q", supp.Name))
	if err := c.store.CreateSupplier(ctx, supp, entry); err != nil {
		c.recorder.Failure(ctx, actor, models.ActionCreate, models.TableSuppliers, nil,
			fmt.Sprintf("supplier %q rejected: %v", supp.Name, err))
		return fmt.Errorf("create supplier: %w", err)
	}
	return nil
}

// DeleteSupplier removes a supplier unless items still reference it
func (c *CatalogService) DeleteSupplier(ctx context.Context, actor string, id int64) error {
	entry := c.successEntry(actor, models.ActionDelete, models.TableSuppliers,
		fmt.Sprintf("deleted supplier %d", id))
	if err := c.store.DeleteSupplier(ctx, id, entry); err != nil {
		c.recorder.Failure(ctx, actor, models.ActionDelete, models.TableSuppliers, &id,
			fmt.Sprintf("delete of supplier %d rejected: %v", id, err))
		return fmt.Errorf("delete supplier %d: %w", id, err)
	}
	return nil
}

// ListSuppliers lists all suppliers
func (c *CatalogService) ListSuppliers(ctx context.Context) ([]models.Supplier, error) {
	return c.store.ListSuppliers(ctx)
}

// validateItem enforces the item-type invariant: RAW items must reference an
// existing spec and supplier, FINAL items must not carry procurement fields.
func (c *CatalogService) validateItem(ctx context.Context, req *CreateItemRequest) error {
	if req.ItemName == "" {
		return fmt.Errorf("item name: %w", models.ErrInvalidInput)
	}

	switch req.ItemType {
	case models.ItemTypeRaw:
		if req.SpecID == nil || req.SupplierID == nil {
			return fmt.Errorf("raw item requires spec and supplier: %w", models.ErrInvalidInput)
		}
		if _, err := c.store.GetSpec(ctx, *req.SpecID); err != nil {
			return fmt.Errorf("spec %d: %w", *req.SpecID, err)
		}
		if _, err := c.store.GetSupplier(ctx, *req.SupplierID); err != nil {
			return fmt.Errorf("supplier %d: %w", *req.SupplierID, err)
		}
	case models.ItemTypeFinal:
		if req.SpecID != nil || req.SupplierID != nil || req.LeadTime != nil || req.Rate != nil {
			return fmt.Errorf("final item cannot carry spec, supplier, lead time or rate: %w", models.ErrInvalidInput)
		}
	default:
		return fmt.Errorf("item type %q: %w", req.ItemType, models.ErrInvalidInput)
	}
	return nil
}

func (c *CatalogService) successEntry(actor, action, table, detail string) *models.AuditEntry {
	return &models.AuditEntry{
		Timestamp: time.Now().UTC(),
		Username:  actor,
		Action:    action,
		TableName: table,
		Detail:    detail,
		Success:   true,
	}
}
