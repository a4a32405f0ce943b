package handler

import (
	"context"
	"strconv"

	appcatalog "github.com/dropship/backend/internal/application/catalog"
	"github.com/dropship/backend/internal/domain/shared"
	"github.com/dropship/backend/internal/domain/supplier"
	"github.com/dropship/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CatalogQuerier reads the storefront catalog
type CatalogQuerier interface {
	List(ctx context.Context, filter shared.Filter) (shared.Paginated[appcatalog.ProductView], error)
	Get(ctx context.Context, ref string, refresh bool) (*appcatalog.ProductView, error)
}

// StockReconciler refreshes local stock from the supplier
type StockReconciler interface {
	Reconcile(ctx context.Context, variantIDs []uuid.UUID) (*appcatalog.StockResult, error)
	ReconcileProduct(ctx context.Context, productID uuid.UUID) (*appcatalog.StockResult, error)
}

// CatalogSyncer imports supplier products
type CatalogSyncer interface {
	SyncKeywords(ctx context.Context, req appcatalog.SyncRequest) (*supplier.SyncResult, error)
}

// CatalogHandler serves the product catalog endpoints
type CatalogHandler struct {
	BaseHandler
	query CatalogQuerier
	stock StockReconciler
	sync  CatalogSyncer
}

// NewCatalogHandler creates a catalog handler
func NewCatalogHandler(query CatalogQuerier, stock StockReconciler, sync CatalogSyncer) *CatalogHandler {
	return &CatalogHandler{query: query, stock: stock, sync: sync}
}

// List returns a page of products
// GET /api/v1/products?page=1&page_size=20&q=camiseta
func (h *CatalogHandler) List(c *gin.Context) {
	var req dto.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.HandleValidation(c, err)
		return
	}

	filter := shared.DefaultFilter()
	if req.Page > 0 {
		filter.Page = req.Page
	}
	if req.PageSize > 0 {
		filter.PageSize = req.PageSize
	}
	filter.Search = req.Search
	filter.OrderBy = req.SortBy
	filter.OrderDir = req.SortDir

	page, err := h.query.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// Get returns one product by id or slug. refresh=true reconciles its stock
// before answering.
// GET /api/v1/products/:id
func (h *CatalogHandler) Get(c *gin.Context) {
	refresh, _ := strconv.ParseBool(c.Query("refresh"))

	view, err := h.query.Get(c.Request.Context(), c.Param("id"), refresh)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, view)
}

// RefreshStock reconciles the stock of a set of variants or of one product
// POST /api/v1/products/stock/refresh
func (h *CatalogHandler) RefreshStock(c *gin.Context) {
	var req dto.StockRefreshRequest
	if !h.BindJSON(c, &req) {
		return
	}

	var (
		result *appcatalog.StockResult
		err    error
	)
	switch {
	case req.ProductID != "":
		result, err = h.stock.ReconcileProduct(c.Request.Context(), uuid.MustParse(req.ProductID))
	case len(req.VariantIDs) > 0:
		ids := make([]uuid.UUID, len(req.VariantIDs))
		for i, raw := range req.VariantIDs {
			ids[i] = uuid.MustParse(raw)
		}
		result, err = h.stock.Reconcile(c.Request.Context(), ids)
	default:
		h.Error(c, dto.ErrCodeInvalidInput, "variant_ids or product_id is required")
		return
	}
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Sync imports supplier products matching the given keywords
// POST /api/v1/admin/catalog/sync
func (h *CatalogHandler) Sync(c *gin.Context) {
	var req dto.CatalogSyncRequest
	if !h.BindJSON(c, &req) {
		return
	}

	result, err := h.sync.SyncKeywords(c.Request.Context(), appcatalog.SyncRequest{
		Keywords: req.Keywords,
		Pages:    req.Pages,
		PageSize: req.PageSize,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}
