package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dropship/backend/internal/domain/catalog"
	"github.com/dropship/backend/internal/domain/shared"
	"github.com/dropship/backend/internal/domain/supplier"
	"github.com/dropship/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Pacer spaces out supplier list requests. *rate.Limiter satisfies it.
type Pacer interface {
	Wait(ctx context.Context) error
}

// NewPacer returns a limiter that lets one request through per interval
func NewPacer(interval time.Duration) *rate.Limiter {
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}

// SyncRequest selects the keyword pages to import
type SyncRequest struct {
	Keywords []string
	Pages    int
	PageSize int
}

// CatalogSyncService imports supplier products into the local catalog
type CatalogSyncService struct {
	products        catalog.ProductRepository
	supplier        supplier.Client
	pacer           Pacer
	defaultPageSize int
	metrics         *telemetry.PipelineMetrics
	logger          *zap.Logger
}

// NewCatalogSyncService creates a new CatalogSyncService. metrics may be nil.
func NewCatalogSyncService(
	products catalog.ProductRepository,
	client supplier.Client,
	pacer Pacer,
	defaultPageSize int,
	metrics *telemetry.PipelineMetrics,
	logger *zap.Logger,
) *CatalogSyncService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pacer == nil {
		pacer = NewPacer(0)
	}
	if defaultPageSize <= 0 {
		defaultPageSize = 20
	}
	return &CatalogSyncService{
		products:        products,
		supplier:        client,
		pacer:           pacer,
		defaultPageSize: defaultPageSize,
		metrics:         metrics,
		logger:          logger.Named("catalog_sync"),
	}
}

// SyncKeywords walks every keyword × page. A page that cannot be fetched is
// recorded in PageErrors and the run carries on with the next one; the
// returned error is only set when the run itself was cut short.
func (s *CatalogSyncService) SyncKeywords(ctx context.Context, req SyncRequest) (result *supplier.SyncResult, err error) {
	keywords := cleanKeywords(req.Keywords)
	if len(keywords) == 0 {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "At least one keyword is required")
	}
	pages := max(req.Pages, 1)
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = s.defaultPageSize
	}

	ctx, span := telemetry.StartSpan(ctx, "catalog.sync",
		attribute.StringSlice("keywords", keywords),
		attribute.Int("pages", pages))
	defer telemetry.End(span, &err)

	result = &supplier.SyncResult{}
	defer func() {
		result.Finalize()
		s.metrics.ProductsSynced(ctx, result.SuccessCount, result.FailedCount)
		s.logger.Info("Catalog sync finished",
			zap.String("status", string(result.Status)),
			zap.Int("total", result.TotalCount),
			zap.Int("succeeded", result.SuccessCount),
			zap.Int("page_errors", len(result.PageErrors)))
	}()

	for _, keyword := range keywords {
		for page := 1; page <= pages; page++ {
			if err := s.pacer.Wait(ctx); err != nil {
				return result, fmt.Errorf("catalog sync interrupted: %w", err)
			}
			listed, err := s.supplier.ListProducts(ctx, supplier.ListQuery{Keyword: keyword, Page: page, PageSize: pageSize})
			if err != nil {
				s.logger.Warn("Supplier list page failed",
					zap.String("keyword", keyword), zap.Int("page", page), zap.Error(err))
				s.metrics.SyncPageFailed(ctx, keyword)
				result.PageErrors = append(result.PageErrors, supplier.PageError{Keyword: keyword, Page: page, Error: err.Error()})
				continue
			}
			if len(listed.Items) == 0 {
				break
			}
			if err := s.syncPage(ctx, listed.Items, result); err != nil {
				return result, err
			}
		}
	}
	return result, nil
}

// syncPage normalizes one page of records, resolves name collisions across
// the page and upserts each product
func (s *CatalogSyncService) syncPage(ctx context.Context, records []supplier.Record, result *supplier.SyncResult) error {
	var batch []supplier.ProductData
	var candidates []catalog.NameCandidate

	for _, rec := range records {
		result.TotalCount++
		data, err := s.extract(ctx, rec, result)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			result.FailedItems = append(result.FailedItems, failure(supplier.FirstString(rec, "pid", "productId", "id"), err))
			continue
		}
		batch = append(batch, data)
		candidates = append(candidates, catalog.NewNameCandidate(data.ID, data.Name))
	}

	named, err := catalog.Deduplicate(candidates)
	if err != nil {
		// colliding names are kept; the run still imports them
		s.logger.Warn("Product names left colliding", zap.Error(err))
		result.Warnings = append(result.Warnings, err.Error())
	}

	for i, data := range batch {
		if _, err := s.upsert(ctx, data, named[i].Name); err != nil {
			result.FailedItems = append(result.FailedItems, failure(data.ID, err))
			continue
		}
		result.SuccessCount++
	}
	return nil
}

// extract normalizes a list record, fetching the product detail when the
// list entry carries no variants
func (s *CatalogSyncService) extract(ctx context.Context, rec supplier.Record, result *supplier.SyncResult) (supplier.ProductData, error) {
	if !supplier.HasVariantList(rec) {
		id := supplier.FirstString(rec, "pid", "productId", "id")
		if id != "" {
			if err := s.pacer.Wait(ctx); err != nil {
				return supplier.ProductData{}, err
			}
			detail, err := s.supplier.GetProduct(ctx, id)
			if err != nil {
				return supplier.ProductData{}, fmt.Errorf("fetch product detail: %w", err)
			}
			rec = detail
		}
	}
	data, skipped, err := supplier.NormalizeProduct(rec)
	if err != nil {
		return data, err
	}
	if skipped > 0 {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("product %s: %d variants without id skipped", data.ID, skipped))
	}
	return data, nil
}

// UpsertProduct imports a single raw supplier record
func (s *CatalogSyncService) UpsertProduct(ctx context.Context, raw supplier.Record) (*catalog.Product, error) {
	data, _, err := supplier.NormalizeProduct(raw)
	if err != nil {
		return nil, shared.Wrap(err, shared.CodeInvalidInput, err.Error())
	}
	return s.upsert(ctx, data, catalog.NormalizeName(data.Name))
}

func (s *CatalogSyncService) upsert(ctx context.Context, data supplier.ProductData, name string) (*catalog.Product, error) {
	product, err := BuildProduct(data, name, time.Now())
	if err != nil {
		return nil, err
	}
	if err := s.products.Upsert(ctx, product); err != nil {
		s.logger.Error("Product upsert failed", zap.String("supplier_product_id", data.ID), zap.Error(err))
		return nil, err
	}
	return product, nil
}

// BuildProduct maps extracted supplier data onto a product aggregate with
// inferred variant attributes and display names
func BuildProduct(data supplier.ProductData, name string, syncedAt time.Time) (*catalog.Product, error) {
	product, err := catalog.NewProduct(data.ID, name)
	if err != nil {
		return nil, err
	}
	product.RawName = data.Name
	product.Description = data.Description
	product.Images = data.Images

	for _, vd := range data.Variants {
		v, err := catalog.NewVariant(product.ID, vd.ID, vd.SKU, vd.Price, vd.Stock)
		if err != nil {
			return nil, fmt.Errorf("variant %s: %w", vd.ID, err)
		}
		texts := append([]string{vd.Name}, vd.AltTexts...)
		if color, ok := catalog.InferColor(append(texts, vd.SKU)...); ok {
			v.Color = color
		}
		v.Size = catalog.InferSize(strings.Join(texts, " "), vd.SKU)
		v.Name = catalog.ComposeVariantName(name, v.Color)
		v.Image = vd.Image
		if v.Image == "" && len(data.Images) > 0 {
			v.Image = data.Images[0]
		}
		synced := syncedAt
		v.StockSyncedAt = &synced
		product.AddVariant(*v)
	}
	product.RecalculatePriceRange(data.SellPrice)
	return product, nil
}

func cleanKeywords(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, k := range in {
		k = strings.TrimSpace(k)
		if k == "" || seen[strings.ToLower(k)] {
			continue
		}
		seen[strings.ToLower(k)] = true
		out = append(out, k)
	}
	return out
}

func failure(id string, err error) supplier.SyncFailure {
	code := "UPSERT_FAILED"
	var de *shared.DomainError
	switch {
	case errors.Is(err, supplier.ErrInvalidProductRecord):
		code = "INVALID_RECORD"
	case errors.Is(err, supplier.ErrSupplierUnavailable), errors.Is(err, supplier.ErrSupplierRateLimited):
		code = "SUPPLIER_UNAVAILABLE"
	case errors.Is(err, catalog.ErrDuplicateSKU):
		code = "DUPLICATE_SKU"
	case errors.As(err, &de):
		code = de.Code
	}
	return supplier.SyncFailure{ItemID: id, ErrorCode: code, ErrorMessage: err.Error()}
}
