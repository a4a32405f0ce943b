package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dropship/backend/internal/domain/catalog"
	"github.com/dropship/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type stubRefresher struct {
	calls atomic.Int32
	delay time.Duration
	err   error
}

func (r *stubRefresher) ReconcileProduct(context.Context, uuid.UUID) (*StockResult, error) {
	r.calls.Add(1)
	time.Sleep(r.delay)
	return &StockResult{}, r.err
}

func productWithVariants(t *testing.T) *catalog.Product {
	t.Helper()
	p, err := catalog.NewProduct("P1", "Suéter de Tricô")
	require.NoError(t, err)
	black := stockVariant("V-BK", 2)
	black.Color = catalog.ColorBlack
	white := stockVariant("V-WH", 0)
	white.Color = catalog.ColorWhite
	p.AddVariant(black)
	p.AddVariant(white)
	return p
}

func TestCatalogQueryService_Get(t *testing.T) {
	repo := new(MockProductRepository)
	refresher := &stubRefresher{err: errors.New("supplier down")}
	svc := NewCatalogQueryService(repo, refresher, nil, nil)

	p := productWithVariants(t)
	repo.On("FindByID", mock.Anything, p.ID).Return(p, nil)

	view, err := svc.Get(context.Background(), p.ID.String(), true)
	require.NoError(t, err, "a failed refresh still serves stored stock")
	assert.Equal(t, int32(1), refresher.calls.Load())
	assert.Equal(t, "P1", view.SupplierProductID)
	assert.Equal(t, 2, view.Stock)
	assert.True(t, view.Available)
	assert.False(t, view.Placeholder)
	assert.Len(t, view.Matrix, 2)
	assert.Equal(t, "Preto", view.Variants[0].ColorLabel)
}

func TestCatalogQueryService_RefreshesAreCoalesced(t *testing.T) {
	repo := new(MockProductRepository)
	refresher := &stubRefresher{delay: 50 * time.Millisecond}
	svc := NewCatalogQueryService(repo, refresher, nil, nil)

	p := productWithVariants(t)
	repo.On("FindByID", mock.Anything, p.ID).Return(p, nil)

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Get(context.Background(), p.ID.String(), true)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Less(t, refresher.calls.Load(), int32(5))
}

func TestCatalogQueryService_NotFound(t *testing.T) {
	repo := new(MockProductRepository)
	svc := NewCatalogQueryService(repo, nil, nil, nil)

	id := uuid.New()
	repo.On("FindByID", mock.Anything, id).Return(nil, catalog.ErrProductNotFound)

	_, err := svc.Get(context.Background(), id.String(), false)
	assert.ErrorIs(t, err, catalog.ErrProductNotFound)

	_, err = svc.Get(context.Background(), "suéter-tricô", false)
	assert.ErrorIs(t, err, catalog.ErrProductNotFound)
}

func TestCatalogQueryService_Placeholder(t *testing.T) {
	repo := new(MockProductRepository)
	placeholders := NewPlaceholderCatalog(map[string][]string{"Linen-Pants": {"/img/linen.jpg"}})
	svc := NewCatalogQueryService(repo, nil, placeholders, nil)

	view, err := svc.Get(context.Background(), "linen-pants", false)
	require.NoError(t, err)
	assert.True(t, view.Placeholder)
	assert.False(t, view.Available)
	assert.Equal(t, catalog.NormalizeName("linen pants"), view.Name)
	assert.Equal(t, []string{"/img/linen.jpg"}, view.Images)

	again, _ := svc.Get(context.Background(), "linen-pants", false)
	assert.Equal(t, view.ID, again.ID, "placeholder ids are stable")

	repo.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
}

func TestCatalogQueryService_PlaceholderByID(t *testing.T) {
	repo := new(MockProductRepository)
	placeholders := NewPlaceholderCatalog(map[string][]string{"linen-pants": {"/img/linen.jpg"}})
	svc := NewCatalogQueryService(repo, nil, placeholders, nil)

	bySlug, ok := placeholders.Lookup("linen-pants")
	require.True(t, ok)
	repo.On("FindByID", mock.Anything, mock.Anything).Return(nil, catalog.ErrProductNotFound)

	view, err := svc.Get(context.Background(), bySlug.ID.String(), false)
	require.NoError(t, err)
	assert.True(t, view.Placeholder)
	assert.Equal(t, bySlug.ID, view.ID)
	assert.Equal(t, []string{"/img/linen.jpg"}, view.Images)

	_, err = svc.Get(context.Background(), uuid.NewString(), false)
	assert.ErrorIs(t, err, catalog.ErrProductNotFound)
}

func TestCatalogQueryService_RepositoryErrorIsNotMasked(t *testing.T) {
	repo := new(MockProductRepository)
	svc := NewCatalogQueryService(repo, nil, NewPlaceholderCatalog(nil), nil)

	id := uuid.New()
	repo.On("FindByID", mock.Anything, id).Return(nil, errors.New("connection reset"))
	_, err := svc.Get(context.Background(), id.String(), false)
	assert.EqualError(t, err, "connection reset")
}

func TestCatalogQueryService_List(t *testing.T) {
	repo := new(MockProductRepository)
	svc := NewCatalogQueryService(repo, nil, nil, nil)

	p := productWithVariants(t)
	repo.On("List", mock.Anything, shared.Filter{Page: 1, PageSize: 20, Search: "tricô"}).
		Return([]catalog.Product{*p}, int64(21), nil)

	page, err := svc.List(context.Background(), shared.Filter{Search: "tricô"})
	require.NoError(t, err)
	assert.Equal(t, int64(21), page.Total)
	assert.Equal(t, 2, page.TotalPages)
	require.Len(t, page.Items, 1)
	assert.Equal(t, p.ID, page.Items[0].ID)
}

func TestLoadPlaceholderManifest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"suéter-tricô": ["a.jpg", "b.jpg"], "blusa": []}`), 0o644))

	c, err := LoadPlaceholderManifest(path)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())

	_, err = LoadPlaceholderManifest(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte(`[1,2]`), 0o644))
	_, err = LoadPlaceholderManifest(path)
	assert.Error(t, err)
}
