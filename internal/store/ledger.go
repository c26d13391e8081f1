package store

import (
	"context"
	"fmt"
	"strings"

	"stock-service/internal/models"
)

// CurrentStock computes one item's derived stock from the ledger, outside any
// lock. Mutation-gating reads go through WithItemLock instead.
func (s *Store) CurrentStock(ctx context.Context, itemID int64) (int64, error) {
	var stock int64
	err := s.db.GetContext(ctx, &stock, `
		SELECT COALESCE((SELECT SUM(quantity) FROM inwards WHERE item_id = $1), 0)
		     - COALESCE((SELECT SUM(quantity) FROM issues  WHERE item_id = $1), 0)`,
		itemID)
	if err != nil {
		return 0, fmt.Errorf("aggregate stock for item %d: %w", itemID, err)
	}
	return stock, nil
}

// StockReport computes the per-item stock projection for every item. Plain
// read, no row locks: a snapshot taken during concurrent writes may be
// transiently stale, which the dashboard accepts.
func (s *Store) StockReport(ctx context.Context) ([]models.StockStatus, error) {
	var rows []models.StockStatus
	err := s.db.SelectContext(ctx, &rows, `
		SELECT i.id AS item_id,
		       i.item_name,
		       i.item_type,
		       COALESCE(i.security_stock, 0) AS security_stock,
		       COALESCE(inw.total, 0) AS total_inward,
		       COALESCE(iss.total, 0) AS total_issue,
		       COALESCE(inw.total, 0) - COALESCE(iss.total, 0) AS current_stock
		FROM items i
		LEFT JOIN (SELECT item_id, SUM(quantity) AS total FROM inwards GROUP BY item_id) inw ON inw.item_id = i.id
		LEFT JOIN (SELECT item_id, SUM(quantity) AS total FROM issues  GROUP BY item_id) iss ON iss.item_id = i.id
		ORDER BY i.id`)
	if err != nil {
		return nil, fmt.Errorf("stock report: %w", err)
	}
	return rows, nil
}

// ListInwards retrieves inward transactions, newest first. itemID 0 means all.
func (s *Store) ListInwards(ctx context.Context, itemID int64) ([]models.Inward, error) {
	var inwards []models.Inward
	if itemID > 0 {
		err := s.db.SelectContext(ctx, &inwards,
			"SELECT * FROM inwards WHERE item_id = $1 ORDER BY transaction_id DESC", itemID)
		return inwards, err
	}
	err := s.db.SelectContext(ctx, &inwards,
		"SELECT * FROM inwards ORDER BY transaction_id DESC")
	return inwards, err
}

// ListIssues retrieves issue transactions, newest first. itemID 0 means all.
func (s *Store) ListIssues(ctx context.Context, itemID int64) ([]models.Issue, error) {
	var issues []models.Issue
	if itemID > 0 {
		err := s.db.SelectContext(ctx, &issues,
			"SELECT * FROM issues WHERE item_id = $1 ORDER BY transaction_id DESC", itemID)
		return issues, err
	}
	err := s.db.SelectContext(ctx, &issues,
		"SELECT * FROM issues ORDER BY transaction_id DESC")
	return issues, err
}

// QueryAudit returns a page of audit entries matching the filter plus the
// total number of matches.
func (s *Store) QueryAudit(ctx context.Context, f models.AuditFilter) ([]models.AuditEntry, int64, error) {
	where, args := buildAuditWhere(f)

	var total int64
	if err := s.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM audit_logs"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count audit entries: %w", err)
	}

	query := fmt.Sprintf(
		"SELECT * FROM audit_logs%s ORDER BY timestamp DESC, id DESC LIMIT $%d OFFSET $%d",
		where, len(args)+1, len(args)+2)
	args = append(args, f.Limit, f.Offset)

	var entries []models.AuditEntry
	if err := s.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, 0, fmt.Errorf("select audit entries: %w", err)
	}
	return entries, total, nil
}

// buildAuditWhere assembles the WHERE clause for audit queries with
// positional placeholders.
func buildAuditWhere(f models.AuditFilter) (string, []interface{}) {
	var conds []string
	var args []interface{}

	add := func(cond string, v interface{}) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.From != nil {
		add("timestamp >= $%d", *f.From)
	}
	if f.To != nil {
		add("timestamp <= $%d", *f.To)
	}
	if f.Username != "" {
		add("username = $%d", f.Username)
	}
	if f.Action != "" {
		add("action = $%d", f.Action)
	}
	if f.TableName != "" {
		add("table_name = $%d", f.TableName)
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
