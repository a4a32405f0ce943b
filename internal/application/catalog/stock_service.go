package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/dropship/backend/internal/domain/catalog"
	"github.com/dropship/backend/internal/domain/supplier"
	"github.com/dropship/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultStockBatchSize is the number of variant ids per supplier stock call
	DefaultStockBatchSize = 50
	// stockBatchConcurrency bounds in-flight supplier stock calls
	stockBatchConcurrency = 4
	// stockScanPage is the page size used when walking every variant
	stockScanPage = 500
)

// StockItemStatus is the outcome for one variant
type StockItemStatus string

const (
	StockUpdated   StockItemStatus = "updated"
	StockUnchanged StockItemStatus = "unchanged"
	StockMissing   StockItemStatus = "missing"
	StockFailed    StockItemStatus = "failed"
)

// StockItemResult reports one variant's reconciliation
type StockItemResult struct {
	VariantID         uuid.UUID       `json:"variant_id"`
	SupplierVariantID string          `json:"supplier_variant_id"`
	Previous          int             `json:"previous"`
	Current           int             `json:"current"`
	Status            StockItemStatus `json:"status"`
	Error             string          `json:"error,omitempty"`
}

// StockResult summarizes a reconciliation run
type StockResult struct {
	Requested     int               `json:"requested"`
	UpdatedCount  int               `json:"updated_count"`
	MissingCount  int               `json:"missing_count"`
	FailedCount   int               `json:"failed_count"`
	FailedBatches int               `json:"failed_batches"`
	Items         []StockItemResult `json:"items"`
	ReconciledAt  time.Time         `json:"reconciled_at"`
}

func (r *StockResult) merge(o *StockResult) {
	r.Requested += o.Requested
	r.UpdatedCount += o.UpdatedCount
	r.MissingCount += o.MissingCount
	r.FailedCount += o.FailedCount
	r.FailedBatches += o.FailedBatches
	r.Items = append(r.Items, o.Items...)
	r.ReconciledAt = o.ReconciledAt
}

// StockReconciliationService refreshes local stock from the supplier
type StockReconciliationService struct {
	products  catalog.ProductRepository
	supplier  supplier.Client
	batchSize int
	metrics   *telemetry.PipelineMetrics
	logger    *zap.Logger
}

// NewStockReconciliationService creates a new StockReconciliationService
func NewStockReconciliationService(
	products catalog.ProductRepository,
	client supplier.Client,
	batchSize int,
	metrics *telemetry.PipelineMetrics,
	logger *zap.Logger,
) *StockReconciliationService {
	if batchSize <= 0 {
		batchSize = DefaultStockBatchSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StockReconciliationService{
		products:  products,
		supplier:  client,
		batchSize: batchSize,
		metrics:   metrics,
		logger:    logger.Named("stock_reconcile"),
	}
}

// Reconcile refreshes the given variants. Unknown ids are ignored and an
// empty set is a no-op.
func (s *StockReconciliationService) Reconcile(ctx context.Context, variantIDs []uuid.UUID) (*StockResult, error) {
	if len(variantIDs) == 0 {
		return &StockResult{ReconciledAt: time.Now()}, nil
	}
	variants, err := s.products.FindVariantsByIDs(ctx, variantIDs)
	if err != nil {
		return nil, fmt.Errorf("load variants: %w", err)
	}
	return s.reconcile(ctx, variants)
}

// ReconcileProduct refreshes every variant of one product
func (s *StockReconciliationService) ReconcileProduct(ctx context.Context, productID uuid.UUID) (*StockResult, error) {
	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	return s.reconcile(ctx, product.Variants)
}

// ReconcileAll walks every variant with a supplier id, page by page
func (s *StockReconciliationService) ReconcileAll(ctx context.Context) (*StockResult, error) {
	total := &StockResult{}
	for offset := 0; ; offset += stockScanPage {
		variants, err := s.products.ListStockTargets(ctx, offset, stockScanPage)
		if err != nil {
			return total, fmt.Errorf("list stock targets at %d: %w", offset, err)
		}
		if len(variants) == 0 {
			break
		}
		res, err := s.reconcile(ctx, variants)
		if res != nil {
			total.merge(res)
		}
		if err != nil {
			return total, err
		}
		if len(variants) < stockScanPage {
			break
		}
	}
	if total.ReconciledAt.IsZero() {
		total.ReconciledAt = time.Now()
	}
	return total, nil
}

func (s *StockReconciliationService) reconcile(ctx context.Context, variants []catalog.Variant) (result *StockResult, err error) {
	ctx, span := telemetry.StartSpan(ctx, "catalog.reconcile_stock", attribute.Int("variants", len(variants)))
	defer telemetry.End(span, &err)

	// variants without a supplier id have nothing to query
	linked := make([]catalog.Variant, 0, len(variants))
	var unlinked []StockItemResult
	for _, v := range variants {
		if v.SupplierVariantID == "" {
			unlinked = append(unlinked, StockItemResult{
				VariantID: v.ID, Previous: v.Stock, Current: v.Stock,
				Status: StockMissing, Error: "no supplier variant id",
			})
			continue
		}
		linked = append(linked, v)
	}

	batches := chunk(linked, s.batchSize)
	outcomes := make([][]StockItemResult, len(batches), len(batches)+1)
	failedBatch := make([]bool, len(batches))

	var g errgroup.Group
	g.SetLimit(stockBatchConcurrency)
	for i, batch := range batches {
		g.Go(func() error {
			outcomes[i], failedBatch[i] = s.reconcileBatch(ctx, batch)
			return nil
		})
	}
	_ = g.Wait()
	outcomes = append(outcomes, unlinked)

	result = &StockResult{Requested: len(variants), ReconciledAt: time.Now()}
	levels := make(map[uuid.UUID]int)
	for i, items := range outcomes {
		if i < len(failedBatch) && failedBatch[i] {
			result.FailedBatches++
		}
		for _, it := range items {
			switch it.Status {
			case StockUpdated:
				result.UpdatedCount++
				levels[it.VariantID] = it.Current
			case StockUnchanged:
				levels[it.VariantID] = it.Current
			case StockMissing:
				result.MissingCount++
			case StockFailed:
				result.FailedCount++
			}
			result.Items = append(result.Items, it)
		}
	}

	if err := s.products.UpdateVariantStock(ctx, levels); err != nil {
		return result, fmt.Errorf("save stock levels: %w", err)
	}
	s.metrics.StockReconciled(ctx, result.UpdatedCount, result.FailedBatches)
	s.logger.Info("Stock reconciled",
		zap.Int("requested", result.Requested),
		zap.Int("updated", result.UpdatedCount),
		zap.Int("missing", result.MissingCount),
		zap.Int("failed_batches", result.FailedBatches))
	return result, nil
}

// reconcileBatch queries one batch. Variants the supplier doesn't report keep
// their previous stock.
func (s *StockReconciliationService) reconcileBatch(ctx context.Context, batch []catalog.Variant) ([]StockItemResult, bool) {
	ids := make([]string, len(batch))
	for i, v := range batch {
		ids[i] = v.SupplierVariantID
	}

	out := make([]StockItemResult, len(batch))
	levels, err := s.supplier.QueryStock(ctx, ids)
	if err != nil {
		s.logger.Warn("Stock batch failed", zap.Int("size", len(batch)), zap.Error(err))
		for i, v := range batch {
			out[i] = StockItemResult{
				VariantID: v.ID, SupplierVariantID: v.SupplierVariantID,
				Previous: v.Stock, Current: v.Stock,
				Status: StockFailed, Error: err.Error(),
			}
		}
		return out, true
	}

	byID := make(map[string]int, len(levels))
	for _, l := range levels {
		byID[l.VariantID] = max(l.Stock, 0)
	}
	for i, v := range batch {
		item := StockItemResult{VariantID: v.ID, SupplierVariantID: v.SupplierVariantID, Previous: v.Stock, Current: v.Stock}
		current, found := byID[v.SupplierVariantID]
		switch {
		case !found:
			item.Status = StockMissing
		case current == v.Stock:
			item.Status = StockUnchanged
		default:
			item.Current = current
			item.Status = StockUpdated
		}
		out[i] = item
	}
	return out, false
}

func chunk(variants []catalog.Variant, size int) [][]catalog.Variant {
	var out [][]catalog.Variant
	for start := 0; start < len(variants); start += size {
		end := min(start+size, len(variants))
		out = append(out, variants[start:end])
	}
	return out
}
