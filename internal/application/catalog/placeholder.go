package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/dropship/backend/internal/domain/catalog"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// placeholderNamespace seeds the stable ids of placeholder products
var placeholderNamespace = uuid.MustParse("6f1c3b8e-3f7a-4d1e-9a57-2c1d8e0b4a11")

// PlaceholderCatalog builds stand-in products from an image manifest of the
// form {"<slug>": ["img", ...]}. Placeholders are never purchasable.
type PlaceholderCatalog struct {
	images map[string][]string
	slugs  map[uuid.UUID]string
}

// NewPlaceholderCatalog wraps an already loaded manifest
func NewPlaceholderCatalog(manifest map[string][]string) *PlaceholderCatalog {
	c := &PlaceholderCatalog{
		images: make(map[string][]string, len(manifest)),
		slugs:  make(map[uuid.UUID]string, len(manifest)),
	}
	for slug, imgs := range manifest {
		key := strings.ToLower(strings.TrimSpace(slug))
		c.images[key] = imgs
		c.slugs[placeholderID(key)] = key
	}
	return c
}

func placeholderID(key string) uuid.UUID {
	return uuid.NewSHA1(placeholderNamespace, []byte(key))
}

// LoadPlaceholderManifest reads the manifest file
func LoadPlaceholderManifest(path string) (*PlaceholderCatalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read placeholder manifest: %w", err)
	}
	var manifest map[string][]string
	if err := json.Unmarshal(raw, &manifest); err != nil {
		return nil, fmt.Errorf("parse placeholder manifest %s: %w", path, err)
	}
	return NewPlaceholderCatalog(manifest), nil
}

// Lookup builds the placeholder for a slug or for the id a placeholder was
// served with
func (c *PlaceholderCatalog) Lookup(ref string) (*ProductView, bool) {
	key := strings.ToLower(strings.TrimSpace(ref))
	if id, err := uuid.Parse(key); err == nil {
		if slug, ok := c.slugs[id]; ok {
			key = slug
		}
	}
	images, ok := c.images[key]
	if !ok {
		return nil, false
	}
	if images == nil {
		images = []string{}
	}
	return &ProductView{
		ID:          placeholderID(key),
		Name:        catalog.NormalizeName(strings.NewReplacer("-", " ", "_", " ").Replace(key)),
		Images:      images,
		MinPrice:    decimal.Zero,
		MaxPrice:    decimal.Zero,
		Available:   false,
		Placeholder: true,
		Variants:    []VariantView{},
		Matrix:      []catalog.MatrixEntry{},
	}, true
}

// Len returns the number of slugs in the manifest
func (c *PlaceholderCatalog) Len() int {
	return len(c.images)
}
