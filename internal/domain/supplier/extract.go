package supplier

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Field name candidates, most specific first. Different supplier endpoints
// name the same field differently; the first present one wins.
var (
	productIDKeys       = []string{"pid", "productId", "id"}
	productNameKeys     = []string{"productNameEn", "productName", "nameEn", "name", "title"}
	productDescKeys     = []string{"description", "productDescription", "desc"}
	productImageKeys    = []string{"productImageSet", "productImages", "images", "productImage", "image", "bigImage"}
	productPriceKeys    = []string{"sellPrice", "productSellPrice", "price"}
	variantListKeys     = []string{"variants", "variantList", "skuList", "skus"}
	variantIDKeys       = []string{"vid", "variantId", "id"}
	variantSKUKeys      = []string{"variantSku", "sku"}
	variantNameKeys     = []string{"variantNameEn", "variantName", "name"}
	variantPriceKeys    = []string{"variantSellPrice", "sellPrice", "price"}
	variantStockKeys    = []string{"inventory", "stock", "variantStock", "inventoryNum", "storageNum"}
	variantImageKeys    = []string{"variantImage", "image"}
	variantAltTextKeys  = []string{"variantKey", "variantProperty", "variantStandard", "color", "colour", "size"}
	stockListKeys       = []string{"list", "inventories", "variants", "data"}
	stockVariantIDKeys  = []string{"vid", "variantId", "id"}
	stockQuantityKeys   = []string{"storageNum", "inventory", "stock", "totalInventory", "quantity"}
	orderIDResponseKeys = []string{"orderId", "orderNumber", "id"}
)

var leadingNumberRe = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

// FirstValue returns the value of the first key present with a non-empty value
func FirstValue(r Record, keys ...string) (any, bool) {
	for _, k := range keys {
		v, ok := r[k]
		if !ok || v == nil {
			continue
		}
		if s, isString := v.(string); isString && strings.TrimSpace(s) == "" {
			continue
		}
		return v, true
	}
	return nil, false
}

// FirstString returns the first present key rendered as a string
func FirstString(r Record, keys ...string) string {
	v, ok := FirstValue(r, keys...)
	if !ok {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

// FirstDecimal returns the first present key as a decimal. Strings may carry
// a range ("12.50 -- 19.90"); the first number is used.
func FirstDecimal(r Record, keys ...string) (decimal.Decimal, bool) {
	s := FirstString(r, keys...)
	if s == "" {
		return decimal.Zero, false
	}
	token := leadingNumberRe.FindString(s)
	if token == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(token)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// FirstInt returns the first present key as an integer, truncating decimals
func FirstInt(r Record, keys ...string) (int, bool) {
	d, ok := FirstDecimal(r, keys...)
	if !ok {
		return 0, false
	}
	return int(d.IntPart()), true
}

// FirstList returns the first present key holding a list of objects. A JSON
// encoded string is decoded; anything else yields nil.
func FirstList(r Record, keys ...string) []Record {
	v, ok := FirstValue(r, keys...)
	if !ok {
		return nil
	}
	return toRecords(v)
}

func toRecords(v any) []Record {
	switch t := v.(type) {
	case []any:
		out := make([]Record, 0, len(t))
		for _, item := range t {
			switch m := item.(type) {
			case map[string]any:
				out = append(out, Record(m))
			case Record:
				out = append(out, m)
			}
		}
		return out
	case []Record:
		return t
	case []map[string]any:
		out := make([]Record, 0, len(t))
		for _, m := range t {
			out = append(out, Record(m))
		}
		return out
	case string:
		var decoded []map[string]any
		dec := json.NewDecoder(strings.NewReader(t))
		dec.UseNumber()
		if err := dec.Decode(&decoded); err != nil {
			return nil
		}
		return toRecords(decoded)
	}
	return nil
}

// FirstStrings returns the first present key as a list of strings. Accepts a
// JSON array, a JSON-encoded array string or a comma separated string.
// Blank and repeated entries are dropped.
func FirstStrings(r Record, keys ...string) []string {
	v, ok := FirstValue(r, keys...)
	if !ok {
		return nil
	}
	var raw []string
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok {
				raw = append(raw, s)
			}
		}
	case []string:
		raw = t
	case string:
		s := strings.TrimSpace(t)
		if strings.HasPrefix(s, "[") {
			if err := json.Unmarshal([]byte(s), &raw); err != nil {
				return nil
			}
		} else {
			raw = strings.Split(s, ",")
		}
	}

	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// NormalizeProduct extracts a product and its variants from a raw record.
// Variants without an id are dropped and counted in skipped.
func NormalizeProduct(r Record) (data ProductData, skipped int, err error) {
	data.ID = FirstString(r, productIDKeys...)
	if data.ID == "" {
		return data, 0, fmt.Errorf("%w: missing product id", ErrInvalidProductRecord)
	}
	data.Name = FirstString(r, productNameKeys...)
	if data.Name == "" {
		return data, 0, fmt.Errorf("%w: product %s has no name", ErrInvalidProductRecord, data.ID)
	}
	data.Description = FirstString(r, productDescKeys...)
	data.Images = FirstStrings(r, productImageKeys...)
	data.SellPrice, _ = FirstDecimal(r, productPriceKeys...)

	for _, vr := range FirstList(r, variantListKeys...) {
		v := VariantData{
			ID:    FirstString(vr, variantIDKeys...),
			SKU:   FirstString(vr, variantSKUKeys...),
			Name:  FirstString(vr, variantNameKeys...),
			Image: FirstString(vr, variantImageKeys...),
		}
		if v.ID == "" {
			skipped++
			continue
		}
		v.Price, _ = FirstDecimal(vr, variantPriceKeys...)
		v.Stock, _ = FirstInt(vr, variantStockKeys...)
		if v.Stock < 0 {
			v.Stock = 0
		}
		for _, k := range variantAltTextKeys {
			if s := FirstString(vr, k); s != "" {
				v.AltTexts = append(v.AltTexts, s)
			}
		}
		data.Variants = append(data.Variants, v)
	}
	return data, skipped, nil
}

// HasVariantList reports whether the record carries any variant list field
func HasVariantList(r Record) bool {
	_, ok := FirstValue(r, variantListKeys...)
	return ok
}

// ParseStockLevels reads stock entries from a response payload. A missing or
// malformed list is treated as empty; entries without an id are ignored.
func ParseStockLevels(payload Record) []StockLevel {
	items := FirstList(payload, stockListKeys...)
	out := make([]StockLevel, 0, len(items))
	for _, item := range items {
		id := FirstString(item, stockVariantIDKeys...)
		if id == "" {
			continue
		}
		qty, ok := FirstInt(item, stockQuantityKeys...)
		if !ok {
			continue
		}
		if qty < 0 {
			qty = 0
		}
		out = append(out, StockLevel{VariantID: id, Stock: qty})
	}
	return out
}

// ParseOrderID reads the supplier order id from an order creation payload
func ParseOrderID(payload Record) string {
	return FirstString(payload, orderIDResponseKeys...)
}
