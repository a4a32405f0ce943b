package catalog

import (
	"context"
	"errors"

	"github.com/dropship/backend/internal/domain/catalog"
	"github.com/dropship/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// StockRefresher refreshes the stock of a single product
type StockRefresher interface {
	ReconcileProduct(ctx context.Context, productID uuid.UUID) (*StockResult, error)
}

// CatalogQueryService serves storefront product reads
type CatalogQueryService struct {
	products     catalog.ProductRepository
	stock        StockRefresher
	placeholders *PlaceholderCatalog
	refreshes    singleflight.Group
	logger       *zap.Logger
}

// NewCatalogQueryService creates a new CatalogQueryService. A nil
// placeholders catalog disables degraded-mode products.
func NewCatalogQueryService(
	products catalog.ProductRepository,
	stock StockRefresher,
	placeholders *PlaceholderCatalog,
	logger *zap.Logger,
) *CatalogQueryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogQueryService{
		products:     products,
		stock:        stock,
		placeholders: placeholders,
		logger:       logger.Named("catalog_query"),
	}
}

// List returns a page of products
func (s *CatalogQueryService) List(ctx context.Context, filter shared.Filter) (shared.Paginated[ProductView], error) {
	filter = filter.Normalize()
	products, total, err := s.products.List(ctx, filter)
	if err != nil {
		return shared.Paginated[ProductView]{}, err
	}
	views := make([]ProductView, len(products))
	for i := range products {
		views[i] = ToProductView(&products[i])
	}
	return shared.NewPaginated(views, total, filter.Page, filter.PageSize), nil
}

// Get returns a product by id, or a placeholder by slug or placeholder id
// when degraded mode is on. With refresh the product's stock is reconciled first; a failed refresh
// is logged and the stored stock served.
func (s *CatalogQueryService) Get(ctx context.Context, ref string, refresh bool) (*ProductView, error) {
	id, parseErr := uuid.Parse(ref)
	if parseErr == nil {
		if refresh && s.stock != nil {
			s.refresh(ctx, id)
		}
		product, err := s.products.FindByID(ctx, id)
		if err == nil {
			view := ToProductView(product)
			return &view, nil
		}
		if !errors.Is(err, catalog.ErrProductNotFound) {
			return nil, err
		}
	}

	if s.placeholders != nil {
		if view, ok := s.placeholders.Lookup(ref); ok {
			s.logger.Info("Serving placeholder product", zap.String("ref", ref))
			return view, nil
		}
	}
	return nil, catalog.ErrProductNotFound
}

// refresh coalesces concurrent refreshes of the same product
func (s *CatalogQueryService) refresh(ctx context.Context, id uuid.UUID) {
	_, err, coalesced := s.refreshes.Do(id.String(), func() (any, error) {
		return s.stock.ReconcileProduct(ctx, id)
	})
	if err != nil && !errors.Is(err, catalog.ErrProductNotFound) {
		s.logger.Warn("On-demand stock refresh failed, serving stored stock",
			zap.String("product_id", id.String()),
			zap.Bool("coalesced", coalesced),
			zap.Error(err))
	}
}
