package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Item types
const (
	ItemTypeRaw   = "RAW"
	ItemTypeFinal = "FINAL"
)

// Item represents a stock-tracked entity. RAW items must reference a spec and
// a supplier; FINAL items carry none of spec, supplier, lead time or rate.
type Item struct {
	ID            int64            `db:"id" json:"id"`
	ItemName      string           `db:"item_name" json:"item_name"`
	ItemType      string           `db:"item_type" json:"item_type"`
	SpecID        *int64           `db:"spec_id" json:"spec_id,omitempty"`
	SupplierID    *int64           `db:"supplier_id" json:"supplier_id,omitempty"`
	LeadTime      *int64           `db:"lead_time" json:"lead_time,omitempty"`
	SecurityStock *int64           `db:"security_stock" json:"security_stock,omitempty"`
	Rate          *decimal.Decimal `db:"rate" json:"rate,omitempty"`
	Rack          *string          `db:"rack" json:"rack,omitempty"`
	Bin           *string          `db:"bin" json:"bin,omitempty"`
	CreatedAt     time.Time        `db:"created_at" json:"created_at"`
}

// Spec represents a material specification referenced by RAW items
type Spec struct {
	ID          int64   `db:"id" json:"id"`
	Spec        string  `db:"spec" json:"spec"`
	Description *string `db:"description" json:"description,omitempty"`
}

// Supplier represents a vendor for RAW items. The last-purchase fields are a
// ledger updated opportunistically from inward transactions.
type Supplier struct {
	ID               int64               `db:"id" json:"id"`
	Name             string              `db:"name" json:"name"`
	GstNo            *string             `db:"gst_no" json:"gst_no,omitempty"`
	Contact          *string             `db:"contact" json:"contact,omitempty"`
	LeadTime         int64               `db:"lead_time" json:"lead_time"`
	LastPurchaseDate *time.Time          `db:"last_purchase_date" json:"last_purchase_date,omitempty"`
	LastPurchaseRate decimal.NullDecimal `db:"last_purchase_rate" json:"last_purchase_rate"`
}

// Inward is an immutable receipt record. Rows are only ever appended.
type Inward struct {
	TransactionID int64           `db:"transaction_id" json:"transaction_id"`
	ItemID        int64           `db:"item_id" json:"item_id"`
	InvoiceNumber string          `db:"invoice_number" json:"invoice_number"`
	Quantity      int64           `db:"quantity" json:"quantity"`
	Rate          decimal.Decimal `db:"rate" json:"rate"`
	OrderDate     time.Time       `db:"order_date" json:"order_date"`
	ReceivedDate  time.Time       `db:"received_date" json:"received_date"`
}

// Issue is an immutable consumption record. Rows are only ever appended.
type Issue struct {
	TransactionID int64     `db:"transaction_id" json:"transaction_id"`
	ItemID        int64     `db:"item_id" json:"item_id"`
	Quantity      int64     `db:"quantity" json:"quantity"`
	IssueDate     time.Time `db:"issue_date" json:"issue_date"`
	IssuedTo      string    `db:"issued_to" json:"issued_to"`
}

// StockStatus is the derived per-item stock projection:
// current_stock = total_inward - total_issue. It is never stored, always
// recomputed from the inward/issue ledger.
type StockStatus struct {
	ItemID        int64  `db:"item_id" json:"item_id"`
	ItemName      string `db:"item_name" json:"item_name"`
	ItemType      string `db:"item_type" json:"item_type"`
	SecurityStock int64  `db:"security_stock" json:"security_stock"`
	TotalInward   int64  `db:"total_inward" json:"total_inward"`
	TotalIssue    int64  `db:"total_issue" json:"total_issue"`
	CurrentStock  int64  `db:"current_stock" json:"current_stock"`
}

// Audit action kinds
const (
	ActionCreate = "CREATE"
	ActionDelete = "DELETE"
	ActionIssue  = "ISSUE"
	ActionInward = "INWARD"
	ActionLogin  = "LOGIN"
)

// Audited table names
const (
	TableItems     = "items"
	TableSpecs     = "spec_list"
	TableSuppliers = "suppliers"
	TableInwards   = "inwards"
	TableIssues    = "issues"
)

// AuditEntry records one attempted mutation. Successful entries commit with
// the business transaction they describe; failed entries are written outside
// of it so they survive a rollback.
type AuditEntry struct {
	ID        int64     `db:"id" json:"id"`
	Timestamp time.Time `db:"timestamp" json:"timestamp"`
	Username  string    `db:"username" json:"username"`
	Action    string    `db:"action" json:"action"`
	TableName string    `db:"table_name" json:"table_name"`
	RecordID  *int64    `db:"record_id" json:"record_id,omitempty"`
	Detail    string    `db:"detail" json:"detail"`
	Success   bool      `db:"success" json:"success"`
}

// AuditFilter narrows an audit query. Zero values mean "no constraint".
type AuditFilter struct {
	From      *time.Time
	To        *time.Time
	Username  string
	Action    string
	TableName string
	Offset    int
	Limit     int
}
