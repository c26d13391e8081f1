package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"stock-service/internal/models"
	"stock-service/internal/service"
	"stock-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// Handler contains HTTP handlers
type Handler struct {
	ledger  *service.LedgerService
	catalog *service.CatalogService
}

// NewHandler creates a new HTTP handler
func NewHandler(ledger *service.LedgerService, catalog *service.CatalogService) *Handler {
	return &Handler{
		ledger:  ledger,
		catalog: catalog,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/issues", h.createIssue)
		v1.GET("/issues", h.listIssues)
		v1.POST("/inwards", h.createInward)
		v1.GET("/inwards", h.listInwards)

		v1.GET("/stock-report", h.stockReport)
		v1.GET("/items/:id/stock", h.itemStock)

		v1.POST("/items", h.createItem)
		v1.GET("/items", h.listItems)
		v1.DELETE("/items/:id", h.deleteItem)

		v1.POST("/suppliers", h.createSupplier)
		v1.GET("/suppliers", h.listSuppliers)
		v1.DELETE("/suppliers/:id", h.deleteSupplier)

		v1.POST("/specs", h.createSpec)
		v1.GET("/specs", h.listSpecs)
		v1.DELETE("/specs/:id", h.deleteSpec)

		v1.GET("/audit", h.queryAudit)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

type issueRequest struct {
	ItemID    int64  `json:"item_id" binding:"required"`
	Quantity  int64  `json:"quantity" binding:"required"`
	IssueDate string `json:"issue_date" binding:"required"`
	IssuedTo  string `json:"issued_to" binding:"required"`
}

// createIssue handles an issue transaction
func (h *Handler) createIssue(c *gin.Context) {
	var req issueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	issueDate, err := time.Parse(dateLayout, req.IssueDate)
	if err != nil {
		badRequest(c, "Invalid issue_date, expected YYYY-MM-DD", err)
		return
	}

	result, err := h.ledger.Issue(c.Request.Context(), actor(c), &service.IssueRequest{
		ItemID:    req.ItemID,
		Quantity:  req.Quantity,
		IssueDate: issueDate,
		IssuedTo:  req.IssuedTo,
	})
	if err != nil {
		writeError(c, "Failed to record issue", err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

type inwardRequest struct {
	ItemID        int64           `json:"item_id" binding:"required"`
	InvoiceNumber string          `json:"invoice_number" binding:"required"`
	Quantity      int64           `json:"quantity" binding:"required"`
	Rate          decimal.Decimal `json:"rate"`
	OrderDate     string          `json:"order_date" binding:"required"`
	ReceivedDate  string          `json:"received_date" binding:"required"`
}

// createInward handles an inward transaction
func (h *Handler) createInward(c *gin.Context) {
	var req inwardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	orderDate, err := time.Parse(dateLayout, req.OrderDate)
	if err != nil {
		badRequest(c, "Invalid order_date, expected YYYY-MM-DD", err)
		return
	}
	receivedDate, err := time.Parse(dateLayout, req.ReceivedDate)
	if err != nil {
		badRequest(c, "Invalid received_date, expected YYYY-MM-DD", err)
		return
	}

	result, err := h.ledger.Inward(c.Request.Context(), actor(c), &service.InwardRequest{
		ItemID:        req.ItemID,
		InvoiceNumber: req.InvoiceNumber,
		Quantity:      req.Quantity,
		Rate:          req.Rate,
		OrderDate:     orderDate,
		ReceivedDate:  receivedDate,
	})
	if err != nil {
		writeError(c, "Failed to record inward", err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

// listIssues lists issue transactions, optionally scoped to one item
func (h *Handler) listIssues(c *gin.Context) {
	itemID, ok := optionalIDQuery(c, "item_id")
	if !ok {
		return
	}

	issues, err := h.ledger.ListIssues(c.Request.Context(), itemID)
	if err != nil {
		writeError(c, "Failed to list issues", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"issues": issues})
}

// listInwards lists inward transactions, optionally scoped to one item
func (h *Handler) listInwards(c *gin.Context) {
	itemID, ok := optionalIDQuery(c, "item_id")
	if !ok {
		return
	}

	inwards, err := h.ledger.ListInwards(c.Request.Context(), itemID)
	if err != nil {
		writeError(c, "Failed to list inwards", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"inwards": inwards})
}

// stockReport serves the bulk dashboard projection
func (h *Handler) stockReport(c *gin.Context) {
	report, err := h.ledger.StockReport(c.Request.Context())
	if err != nil {
		writeError(c, "Failed to compute stock report", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stock": report})
}

// itemStock serves one item's derived stock
func (h *Handler) itemStock(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	stock, err := h.ledger.CurrentStock(c.Request.Context(), id)
	if err != nil {
		writeError(c, "Failed to compute stock", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"item_id": id, "current_stock": stock})
}

type createItemRequest struct {
	ItemName      string           `json:"item_name" binding:"required"`
	ItemType      string           `json:"item_type" binding:"required"`
	SpecID        *int64           `json:"spec_id"`
	SupplierID    *int64           `json:"supplier_id"`
	LeadTime      *int64           `json:"lead_time"`
	SecurityStock *int64           `json:"security_stock"`
	Rate          *decimal.Decimal `json:"rate"`
	Rack          *string          `json:"rack"`
	Bin           *string          `json:"bin"`
}

// createItem handles item creation
func (h *Handler) createItem(c *gin.Context) {
	var req createItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	item, err := h.catalog.CreateItem(c.Request.Context(), actor(c), &service.CreateItemRequest{
		ItemName:      req.ItemName,
		ItemType:      req.ItemType,
		SpecID:        req.SpecID,
		SupplierID:    req.SupplierID,
		LeadTime:      req.LeadTime,
		SecurityStock: req.SecurityStock,
		Rate:          req.Rate,
		Rack:          req.Rack,
		Bin:           req.Bin,
	})
	if err != nil {
		writeError(c, "Failed to create item", err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

// listItems lists all items
func (h *Handler) listItems(c *gin.Context) {
	items, err := h.catalog.ListItems(c.Request.Context())
	if err != nil {
		writeError(c, "Failed to list items", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// deleteItem deletes an item without ledger history
func (h *Handler) deleteItem(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.catalog.DeleteItem(c.Request.Context(), actor(c), id); err != nil {
		writeError(c, "Failed to delete item", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

type createSupplierRequest struct {
	Name             string          `json:"name" binding:"required"`
	GstNo            *string         `json:"gst_no"`
	Contact          *string         `json:"contact"`
	LeadTime         int64           `json:"lead_time"`
	LastPurchaseDate *string         `json:"last_purchase_date"`
	LastPurchaseRate decimal.Decimal `json:"last_purchase_rate"`
}

// createSupplier handles supplier creation
func (h *Handler) createSupplier(c *gin.Context) {
	var req createSupplierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	supp := &models.Supplier{
		Name:     req.Name,
		GstNo:    req.GstNo,
		Contact:  req.Contact,
		LeadTime: req.LeadTime,
	}
	if req.LastPurchaseDate != nil {
		d, err := time.Parse(dateLayout, *req.LastPurchaseDate)
		if err != nil {
			badRequest(c, "Invalid last_purchase_date, expected YYYY-MM-DD", err)
			return
		}
		supp.LastPurchaseDate = &d
		supp.LastPurchaseRate = decimal.NullDecimal{Decimal: req.LastPurchaseRate, Valid: true}
	}

	if err := h.catalog.CreateSupplier(c.Request.Context(), actor(c), supp); err != nil {
		writeError(c, "Failed to create supplier", err)
		return
	}
	c.JSON(http.StatusCreated, supp)
}

// listSuppliers lists all suppliers
func (h *Handler) listSuppliers(c *gin.Context) {
	supps, err := h.catalog.ListSuppliers(c.Request.Context())
	if err != nil {
		writeError(c, "Failed to list suppliers", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"suppliers": supps})
}

// deleteSupplier deletes an unreferenced supplier
func (h *Handler) deleteSupplier(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.catalog.DeleteSupplier(c.Request.Context(), actor(c), id); err != nil {
		writeError(c, "Failed to delete supplier", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

type createSpecRequest struct {
	Spec        string  `json:"spec" binding:"required"`
	Description *string `json:"description"`
}

// createSpec handles spec creation
func (h *Handler) createSpec(c *gin.Context) {
	var req createSpecRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	spec := &models.Spec{Spec: req.Spec, Description: req.Description}
	if err := h.catalog.CreateSpec(c.Request.Context(), actor(c), spec); err != nil {
		writeError(c, "Failed to create spec", err)
		return
	}
	c.JSON(http.StatusCreated, spec)
}

// listSpecs lists all specs
func (h *Handler) listSpecs(c *gin.Context) {
	specs, err := h.catalog.ListSpecs(c.Request.Context())
	if err != nil {
		writeError(c, "Failed to list specs", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"specs": specs})
}

// deleteSpec deletes an unreferenced spec
func (h *Handler) deleteSpec(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.catalog.DeleteSpec(c.Request.Context(), actor(c), id); err != nil {
		writeError(c, "Failed to delete spec", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// queryAudit serves paginated audit entries with a total count
func (h *Handler) queryAudit(c *gin.Context) {
	var f models.AuditFilter

	if v := c.Query("from"); v != "" {
		t, err := parseTimestamp(v)
		if err != nil {
			badRequest(c, "Invalid from timestamp", err)
			return
		}
		f.From = &t
	}
	if v := c.Query("to"); v != "" {
		t, err := parseTimestamp(v)
		if err != nil {
			badRequest(c, "Invalid to timestamp", err)
			return
		}
		f.To = &t
	}
	f.Username = c.Query("actor")
	f.Action = c.Query("action")
	f.TableName = c.Query("table")
	f.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	f.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "100"))

	entries, total, err := h.ledger.QueryAudit(c.Request.Context(), f)
	if err != nil {
		writeError(c, "Failed to query audit log", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"entries": entries,
		"total":   total,
		"offset":  f.Offset,
		"limit":   f.Limit,
	})
}

// actor identifies the requester. Authentication happens upstream; the
// request layer forwards the authenticated principal in X-Actor.
func actor(c *gin.Context) string {
	if a := c.GetHeader("X-Actor"); a != "" {
		return a
	}
	return "anonymous"
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, "Invalid ID", err)
		return 0, false
	}
	return id, true
}

func optionalIDQuery(c *gin.Context, name string) (int64, bool) {
	v := c.Query(name)
	if v == "" {
		return 0, true
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		badRequest(c, "Invalid "+name, err)
		return 0, false
	}
	return id, true
}

func parseTimestamp(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse(dateLayout, v)
}

func badRequest(c *gin.Context, msg string, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   msg,
		"details": err.Error(),
	})
}

// writeError maps a typed domain error to a transport response
func writeError(c *gin.Context, msg string, err error) {
	c.JSON(statusForError(err), gin.H{
		"error":   msg,
		"details": err.Error(),
	})
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrInvalidQuantity), errors.Is(err, models.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrInsufficientStock),
		errors.Is(err, models.ErrDuplicateInvoice),
		errors.Is(err, models.ErrReferentialConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
