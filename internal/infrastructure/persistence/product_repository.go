package persistence

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dropship/backend/internal/domain/catalog"
	"github.com/dropship/backend/internal/domain/shared"
	"github.com/dropship/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var productUpsertColumns = []string{
	"name", "raw_name", "description", "images", "min_price", "max_price", "updated_at",
}

var variantUpsertColumns = []string{
	"product_id", "sku", "name", "price", "stock", "color", "size", "image", "stock_synced_at", "updated_at",
}

// GormProductRepository implements catalog.ProductRepository using GORM
type GormProductRepository struct {
	db *gorm.DB
}

// NewGormProductRepository creates a new GormProductRepository
func NewGormProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

// Upsert writes the product keyed on supplier_product_id and its variants
// keyed on supplier_variant_id. Ids already stored win over the ids the
// caller generated, so repeated syncs keep rows stable.
func (r *GormProductRepository) Upsert(ctx context.Context, p *catalog.Product) error {
	if p.SupplierProductID == nil || strings.TrimSpace(*p.SupplierProductID) == "" {
		return shared.NewDomainError(shared.CodeInvalidInput, "Product has no supplier product id")
	}
	supplierID := *p.SupplierProductID

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.ProductModel
		err := tx.Select("id", "created_at").Where("supplier_product_id = ?", supplierID).Take(&existing).Error
		switch {
		case err == nil:
			p.ID, p.CreatedAt = existing.ID, existing.CreatedAt
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}
		p.Touch()

		if err := tx.Omit(clause.Associations).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "supplier_product_id"}},
			DoUpdates: clause.AssignmentColumns(productUpsertColumns),
		}).Create(models.ProductModelFromDomain(p)).Error; err != nil {
			return err
		}
		// a concurrent sync may have inserted the row first
		if err := tx.Select("id").Where("supplier_product_id = ?", supplierID).Take(&existing).Error; err != nil {
			return err
		}
		p.ID = existing.ID

		return upsertVariants(tx, p)
	})
}

func upsertVariants(tx *gorm.DB, p *catalog.Product) error {
	if len(p.Variants) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(p.Variants))
	kept := p.Variants[:0]
	for _, v := range p.Variants {
		if seen[v.SupplierVariantID] {
			continue
		}
		seen[v.SupplierVariantID] = true
		kept = append(kept, v)
	}
	p.Variants = kept

	if err := checkSKUs(tx, p.Variants); err != nil {
		return err
	}

	supplierIDs := make([]string, len(p.Variants))
	for i, v := range p.Variants {
		supplierIDs[i] = v.SupplierVariantID
	}
	known, err := variantIDsBySupplierID(tx, supplierIDs)
	if err != nil {
		return err
	}

	rows := make([]models.VariantModel, len(p.Variants))
	for i := range p.Variants {
		v := &p.Variants[i]
		v.ProductID = p.ID
		if row, ok := known[v.SupplierVariantID]; ok {
			v.ID, v.CreatedAt = row.ID, row.CreatedAt
		}
		v.Touch()
		rows[i] = *models.VariantModelFromDomain(v)
	}

	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "supplier_variant_id"}},
		DoUpdates: clause.AssignmentColumns(variantUpsertColumns),
	}).Create(&rows).Error; err != nil {
		return err
	}

	stored, err := variantIDsBySupplierID(tx, supplierIDs)
	if err != nil {
		return err
	}
	for i := range p.Variants {
		if row, ok := stored[p.Variants[i].SupplierVariantID]; ok {
			p.Variants[i].ID = row.ID
		}
	}
	return nil
}

// checkSKUs rejects a variant set whose SKUs repeat or belong to variants
// with another supplier variant id. The unique index still catches races.
func checkSKUs(tx *gorm.DB, variants []catalog.Variant) error {
	owner := make(map[string]string, len(variants))
	skus := make([]string, 0, len(variants))
	for _, v := range variants {
		if prev, ok := owner[v.SKU]; ok {
			if prev != v.SupplierVariantID {
				return fmt.Errorf("%w: %s", catalog.ErrDuplicateSKU, v.SKU)
			}
			continue
		}
		owner[v.SKU] = v.SupplierVariantID
		skus = append(skus, v.SKU)
	}

	var taken []models.VariantModel
	if err := tx.Select("sku", "supplier_variant_id").Where("sku IN ?", skus).Find(&taken).Error; err != nil {
		return err
	}
	for _, row := range taken {
		if owner[row.SKU] != row.SupplierVariantID {
			return fmt.Errorf("%w: %s", catalog.ErrDuplicateSKU, row.SKU)
		}
	}
	return nil
}

func variantIDsBySupplierID(tx *gorm.DB, supplierIDs []string) (map[string]models.VariantModel, error) {
	var rows []models.VariantModel
	if err := tx.Select("id", "supplier_variant_id", "created_at").
		Where("supplier_variant_id IN ?", supplierIDs).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]models.VariantModel, len(rows))
	for _, row := range rows {
		out[row.SupplierVariantID] = row
	}
	return out, nil
}

func orderedVariants(db *gorm.DB) *gorm.DB {
	return db.Order("sku ASC").Order("id ASC")
}

// FindByID loads a product with its variants
func (r *GormProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*catalog.Product, error) {
	return r.findOne(ctx, "id = ?", id)
}

// FindBySupplierProductID loads a product with its variants
func (r *GormProductRepository) FindBySupplierProductID(ctx context.Context, supplierProductID string) (*catalog.Product, error) {
	return r.findOne(ctx, "supplier_product_id = ?", supplierProductID)
}

func (r *GormProductRepository) findOne(ctx context.Context, query string, arg any) (*catalog.Product, error) {
	var m models.ProductModel
	if err := r.db.WithContext(ctx).
		Preload("Variants", orderedVariants).
		Where(query, arg).
		Take(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, catalog.ErrProductNotFound
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

// List returns a page of products, by name unless the filter picks a
// whitelisted column
func (r *GormProductRepository) List(ctx context.Context, filter shared.Filter) ([]catalog.Product, int64, error) {
	filter = filter.Normalize()
	q := r.db.WithContext(ctx).Model(&models.ProductModel{})
	if s := strings.TrimSpace(filter.Search); s != "" {
		q = q.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(s)+"%")
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	orderBy := ValidateSortField(filter.OrderBy, ProductSortFields, "name")
	orderDir := ValidateSortOrder(filter.OrderDir, "ASC")

	var rows []models.ProductModel
	if err := q.Preload("Variants", orderedVariants).
		Order(orderBy + " " + orderDir).Order("id ASC").
		Offset(filter.Offset()).
		Limit(filter.PageSize).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	products := make([]catalog.Product, len(rows))
	for i := range rows {
		products[i] = *rows[i].ToDomain()
	}
	return products, total, nil
}

// FindVariantsByIDs loads variants; unknown ids are skipped
func (r *GormProductRepository) FindVariantsByIDs(ctx context.Context, ids []uuid.UUID) ([]catalog.Variant, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.VariantModel
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	return toVariants(rows), nil
}

// ListStockTargets pages over variants that carry a supplier variant id
func (r *GormProductRepository) ListStockTargets(ctx context.Context, offset, limit int) ([]catalog.Variant, error) {
	var rows []models.VariantModel
	if err := r.db.WithContext(ctx).
		Where("supplier_variant_id <> ''").
		Order("id ASC").
		Offset(offset).
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toVariants(rows), nil
}

// UpdateVariantStock writes stock levels by variant id, clamping negatives
func (r *GormProductRepository) UpdateVariantStock(ctx context.Context, stock map[uuid.UUID]int) error {
	if len(stock) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, 0, len(stock))
	for id := range stock {
		ids = append(ids, id)
	}
	// fixed order keeps row locks consistent between concurrent batches
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	now := time.Now()
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, id := range ids {
			level := max(stock[id], 0)
			if err := tx.Model(&models.VariantModel{}).
				Where("id = ?", id).
				Updates(map[string]any{
					"stock":           level,
					"stock_synced_at": now,
					"updated_at":      now,
				}).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func toVariants(rows []models.VariantModel) []catalog.Variant {
	out := make([]catalog.Variant, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out
}

var _ catalog.ProductRepository = (*GormProductRepository)(nil)
