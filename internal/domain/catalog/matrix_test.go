package catalog

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func variant(svid string, color Color, size Size, stock int) Variant {
	v, _ := NewVariant(uuid.New(), svid, "SKU-"+svid, decimal.NewFromInt(100), stock)
	v.Color = color
	v.Size = size
	return *v
}

func TestBuildMatrix_FillsMissingCellsFromSameSize(t *testing.T) {
	v1 := variant("v1", ColorBlack, SizeS, 5)
	v2 := variant("v2", ColorBlack, SizeM, 0)
	v3 := variant("v3", ColorWhite, SizeS, 2)

	entries := BuildMatrix([]Variant{v2, v3, v1})
	require.Len(t, entries, 4)

	cell := func(c Color, s Size) MatrixEntry {
		for _, e := range entries {
			if e.Color == c && e.Size == s {
				return e
			}
		}
		t.Fatalf("missing cell %s/%s", c, s)
		return MatrixEntry{}
	}

	assert.Equal(t, v1.ID, cell(ColorBlack, SizeS).VariantID)
	assert.True(t, cell(ColorBlack, SizeS).Direct)
	assert.Equal(t, v2.ID, cell(ColorBlack, SizeM).VariantID)
	assert.Equal(t, v3.ID, cell(ColorWhite, SizeS).VariantID)

	borrowed := cell(ColorWhite, SizeM)
	assert.False(t, borrowed.Direct)
	assert.Equal(t, v2.ID, borrowed.VariantID)
	assert.Equal(t, "v2", borrowed.SupplierVariantID)

	// sizes ordered small to large inside each color
	assert.Equal(t, SizeS, entries[0].Size)
	assert.Equal(t, SizeM, entries[1].Size)
}

func TestBuildMatrix_NeverInventsVariants(t *testing.T) {
	vs := []Variant{
		variant("a", ColorRed, SizeL, 0),
		variant("b", ColorBlue, SizeXS, 3),
		variant("c", ColorGreen, SizeSingle, 1),
	}
	known := map[uuid.UUID]bool{}
	for _, v := range vs {
		known[v.ID] = true
	}

	entries := BuildMatrix(vs)
	assert.Len(t, entries, 9)
	for _, e := range entries {
		assert.True(t, known[e.VariantID])
	}
}

func TestBuildMatrix_NoColorSignal(t *testing.T) {
	v1 := variant("v1", "", SizeS, 0)
	v2 := variant("v2", "", SizeM, 1)
	v3 := variant("v3", "", SizeS, 4)

	entries := BuildMatrix([]Variant{v1, v2, v3})
	require.Len(t, entries, 2)
	assert.Equal(t, Color(""), entries[0].Color)
	assert.Equal(t, SizeS, entries[0].Size)
	assert.Equal(t, v3.ID, entries[0].VariantID, "in-stock variant preferred")
	assert.Equal(t, v2.ID, entries[1].VariantID)
}

func TestBuildMatrix_Empty(t *testing.T) {
	assert.Nil(t, BuildMatrix(nil))
}
