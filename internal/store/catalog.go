package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"stock-service/internal/models"

	"github.com/jmoiron/sqlx"
)

// GetItem retrieves an item by ID
func (s *Store) GetItem(ctx context.Context, id int64) (*models.Item, error) {
	var item models.Item
	err := s.db.GetContext(ctx, &item, "SELECT * FROM items WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("item %d: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get item %d: %w", id, err)
	}
	return &item, nil
}

// GetSpec retrieves a spec by ID
func (s *Store) GetSpec(ctx context.Context, id int64) (*models.Spec, error) {
	var spec models.Spec
	err := s.db.GetContext(ctx, &spec, "SELECT * FROM spec_list WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("spec %d: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get spec %d: %w", id, err)
	}
	return &spec, nil
}

// GetSupplier retrieves a supplier by ID
func (s *Store) GetSupplier(ctx context.Context, id int64) (*models.Supplier, error) {
	var supp models.Supplier
	err := s.db.GetContext(ctx, &supp, "SELECT * FROM suppliers WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("supplier %d: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get supplier %d: %w", id, err)
	}
	return &supp, nil
}

// ListItems retrieves all items
func (s *Store) ListItems(ctx context.Context) ([]models.Item, error) {
	var items []models.Item
	err := s.db.SelectContext(ctx, &items, "SELECT * FROM items ORDER BY id")
	return items, err
}

// ListSpecs retrieves all specs
func (s *Store) ListSpecs(ctx context.Context) ([]models.Spec, error) {
	var specs []models.Spec
	err := s.db.SelectContext(ctx, &specs, "SELECT * FROM spec_list ORDER BY id")
	return specs, err
}

// ListSuppliers retrieves all suppliers
func (s *Store) ListSuppliers(ctx context.Context) ([]models.Supplier, error) {
	var supps []models.Supplier
	err := s.db.SelectContext(ctx, &supps, "SELECT * FROM suppliers ORDER BY id")
	return supps, err
}

// CreateItem inserts the item and its audit entry in one transaction
func (s *Store) CreateItem(ctx context.Context, item *models.Item, entry *models.AuditEntry) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO items (item_name, item_type, spec_id, supplier_id, lead_time, security_stock, rate, rack, bin)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING id, created_at`

		if err := tx.GetContext(ctx, item, query,
			item.ItemName, item.ItemType, item.SpecID, item.SupplierID,
			item.LeadTime, item.SecurityStock, item.Rate, item.Rack, item.Bin); err != nil {
			return fmt.Errorf("insert item: %w", err)
		}

		entry.RecordID = &item.ID
		return insertAudit(ctx, tx, entry)
	})
}

// DeleteItem removes an item unless the ledger still references it. The guard
// and the delete run in one transaction; history rows are never cascaded.
func (s *Store) DeleteItem(ctx context.Context, id int64, entry *models.AuditEntry) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		var referenced bool
		err := tx.GetContext(ctx, &referenced, `
			SELECT EXISTS(SELECT 1 FROM inwards WHERE item_id = $1)
			    OR EXISTS(SELECT 1 FROM issues  WHERE item_id = $1)`, id)
		if err != nil {
			return fmt.Errorf("check item references: %w", err)
		}
		if referenced {
			return fmt.Errorf("item %d has ledger history: %w", id, models.ErrReferentialConflict)
		}

		if err := deleteRow(ctx, tx, "DELETE FROM items WHERE id = $1", id); err != nil {
			return err
		}

		entry.RecordID = &id
		return insertAudit(ctx, tx, entry)
	})
}

// CreateSpec inserts the spec and its audit entry in one transaction
func (s *Store) CreateSpec(ctx context.Context, spec *models.Spec, entry *models.AuditEntry) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO spec_list (spec, description)
			VALUES ($1, $2)
			RETURNING id`

		err := tx.GetContext(ctx, &spec.ID, query, spec.Spec, spec.Description)
		if isUniqueViolation(err) {
			return fmt.Errorf("spec %q already exists: %w", spec.Spec, models.ErrInvalidInput)
		}
		if err != nil {
			return fmt.Errorf("insert spec: %w", err)
		}

		entry.RecordID = &spec.ID
		return insertAudit(ctx, tx, entry)
	})
}

// DeleteSpec removes a spec unless items still reference it
func (s *Store) DeleteSpec(ctx context.Context, id int64, entry *models.AuditEntry) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		var referenced bool
		err := tx.GetContext(ctx, &referenced,
			"SELECT EXISTS(SELECT 1 FROM items WHERE spec_id = $1)", id)
		if err != nil {
			return fmt.Errorf("check spec references: %w", err)
		}
		if referenced {
			return fmt.Errorf("spec %d is referenced by items: %w", id, models.ErrReferentialConflict)
		}

		if err := deleteRow(ctx, tx, "DELETE FROM spec_list WHERE id = $1", id); err != nil {
			return err
		}

		entry.RecordID = &id
		return insertAudit(ctx, tx, entry)
	})
}

// CreateSupplier inserts the supplier and its audit entry in one transaction
func (s *Store) CreateSupplier(ctx context.Context, supp *models.Supplier, entry *models.AuditEntry) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO suppliers (name, gst_no, contact, lead_time, last_purchase_date, last_purchase_rate)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id`

		err := tx.GetContext(ctx, &supp.ID, query,
			supp.Name, supp.GstNo, supp.Contact, supp.LeadTime,
			supp.LastPurchaseDate, supp.LastPurchaseRate)
		if isUniqueViolation(err) {
			return fmt.Errorf("supplier %q already exists: %w", supp.Name, models.ErrInvalidInput)
		}
		if err != nil {
			return fmt.Errorf("insert supplier: %w", err)
		}

		entry.RecordID = &supp.ID
		return insertAudit(ctx, tx, entry)
	})
}

// DeleteSupplier removes a supplier unless items still reference it
func (s *Store) DeleteSupplier(ctx context.Context, id int64, entry *models.AuditEntry) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		var referenced bool
		err := tx.GetContext(ctx, &referenced,
			"SELECT EXISTS(SELECT 1 FROM items WHERE supplier_id = $1)", id)
		if err != nil {
			return fmt.Errorf("check supplier references: %w", err)
		}
		if referenced {
			return fmt.Errorf("supplier %d is referenced by items: %w", id, models.ErrReferentialConflict)
		}

		if err := deleteRow(ctx, tx, "DELETE FROM suppliers WHERE id = $1", id); err != nil {
			return err
		}

		entry.RecordID = &id
		return insertAudit(ctx, tx, entry)
	})
}

// deleteRow executes a single-row delete, mapping zero rows to ErrNotFound
func deleteRow(ctx context.Context, tx *sqlx.Tx, query string, id int64) error {
	res, err := tx.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("record %d: %w", id, models.ErrNotFound)
	}
	return nil
}
