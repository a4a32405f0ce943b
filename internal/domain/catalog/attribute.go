package catalog

import (
	"regexp"
	"strings"
)

// Color is a canonical color from the storefront vocabulary
type Color string

const (
	ColorBlack Color = "black"
	ColorWhite Color = "white"
	ColorGrey  Color = "grey"
	ColorBeige Color = "beige"
	ColorKhaki Color = "khaki"
	ColorIvory Color = "ivory"
	ColorBrown Color = "brown"
	ColorBlue  Color = "blue"
	ColorGreen Color = "green"
	ColorRed   Color = "red"
	ColorPink  Color = "pink"
)

var colorLabels = map[Color]string{
	ColorBlack: "Preto",
	ColorWhite: "Branco",
	ColorGrey:  "Cinza",
	ColorBeige: "Bege",
	ColorKhaki: "Cáqui",
	ColorIvory: "Marfim",
	ColorBrown: "Marrom",
	ColorBlue:  "Azul",
	ColorGreen: "Verde",
	ColorRed:   "Vermelho",
	ColorPink:  "Rosa",
}

// IsValid checks if the color belongs to the vocabulary
func (c Color) IsValid() bool {
	_, ok := colorLabels[c]
	return ok
}

// String returns the string representation of Color
func (c Color) String() string {
	return string(c)
}

// Label returns the storefront (pt-BR) label, or "" for an unknown color
func (c Color) Label() string {
	return colorLabels[c]
}

// ColorRule maps a synonym pattern to a canonical color
type ColorRule struct {
	Color   Color
	Pattern *regexp.Regexp
}

// SizeField selects which variant field a size rule scans
type SizeField string

const (
	SizeFieldTitle SizeField = "title"
	SizeFieldSKU   SizeField = "sku"
)

// SizeRule extracts a size token from a variant title or SKU; the token is
// captured by the first submatch
type SizeRule struct {
	Name    string
	Field   SizeField
	Pattern *regexp.Regexp
}

// Size is a canonical garment size
type Size string

const (
	SizeXS     Size = "XS"
	SizeS      Size = "S"
	SizeM      Size = "M"
	SizeL      Size = "L"
	SizeXL     Size = "XL"
	SizeXXL    Size = "XXL"
	SizeSingle Size = "Tamanho único"
)

var sizeRank = map[Size]int{
	SizeXS:     0,
	SizeS:      1,
	SizeM:      2,
	SizeL:      3,
	SizeXL:     4,
	SizeXXL:    5,
	SizeSingle: 6,
}

// String returns the string representation of Size
func (s Size) String() string {
	return string(s)
}

// Rank orders sizes from smallest to largest; unknown sizes sort last
func (s Size) Rank() int {
	if r, ok := sizeRank[s]; ok {
		return r
	}
	return len(sizeRank)
}

// IsValid checks if the size is one of the canonical sizes
func (s Size) IsValid() bool {
	_, ok := sizeRank[s]
	return ok
}

// boundedAlternation builds a case-insensitive pattern that matches any of the
// latin alternatives as whole words and any of the CJK alternatives anywhere.
// Go's \b is ASCII-only, so accented words need explicit letter boundaries.
func boundedAlternation(latin string, cjk ...string) *regexp.Regexp {
	expr := `(?i)(?:^|[^\p{L}\p{N}])(?:` + latin + `)(?:$|[^\p{L}\p{N}])`
	if len(cjk) > 0 {
		expr += `|` + strings.Join(cjk, `|`)
	}
	return regexp.MustCompile(expr)
}

// colorRules is evaluated top to bottom, first match wins. Overlapping
// synonyms decide the order: off-white before white, ivory (米白) before
// beige (米) and white (白), brown before red.
var colorRules = []ColorRule{
	{ColorBlack, boundedAlternation(`black|preto|preta|negro|negra|noir`, `黑`)},
	{ColorIvory, boundedAlternation(`ivory|marfim|off[- ]?white|cream|creme|crema|ecru`, `米白`, `象牙`)},
	{ColorWhite, boundedAlternation(`white|branco|branca|blanco|blanca|blanc`, `白`)},
	{ColorBeige, boundedAlternation(`beige|bege|nude|camel|apricot|damasco`, `米色`, `杏`)},
	{ColorGrey, boundedAlternation(`gr[ae]y|cinza|gris|grafite|charcoal|mescla`, `灰`)},
	{ColorKhaki, boundedAlternation(`khaki|kaki|c[aá]qui`, `卡其`)},
	{ColorBrown, boundedAlternation(`brown|marrom|marr[oó]n|caf[eé]|coffee|chocolate|caramel[o]?|tabaco`, `棕`, `咖啡`, `褐`)},
	{ColorRed, boundedAlternation(`red|vermelh[oa]|roj[oa]|rouge|wine|vinho|burgundy|bord[oô]|cereja`, `红`)},
	{ColorPink, boundedAlternation(`pink|rosa|rosad[oa]|rose|fuchsia|f[uú]csia`, `粉`)},
	{ColorBlue, boundedAlternation(`blue|azul|navy|marinho|denim|bleu|celeste`, `蓝`)},
	{ColorGreen, boundedAlternation(`green|verde|olive|oliva|militar|vert|menta|mint`, `绿`)},
}

// sizeRules is evaluated top to bottom. A keyword-prefixed token is trusted in
// any case; a bare token must be upper case so words like "it's" don't yield S.
var sizeRules = []SizeRule{
	{
		Name:    "keyword",
		Field:   SizeFieldTitle,
		Pattern: regexp.MustCompile(`(?i)(?:^|[^\p{L}])(?:size|tamanho|tam|talla)\s*[:.\-]?\s*(xxl|2xl|xl|xs|s|m|l)(?:$|[^\p{L}\p{N}])`),
	},
	{
		Name:    "bare-token",
		Field:   SizeFieldTitle,
		Pattern: regexp.MustCompile(`(?:^|[\s/(\-,;])(XXL|2XL|XL|XS|S|M|L)(?:$|[\s/)\-,;])`),
	},
	{
		Name:    "sku-suffix",
		Field:   SizeFieldSKU,
		Pattern: regexp.MustCompile(`(?i)[-_ ](xxl|2xl|xl|xs|s|m|l)$`),
	},
}

// ColorRules returns the ordered color inference table
func ColorRules() []ColorRule {
	out := make([]ColorRule, len(colorRules))
	copy(out, colorRules)
	return out
}

// SizeRules returns the ordered size inference table
func SizeRules() []SizeRule {
	out := make([]SizeRule, len(sizeRules))
	copy(out, sizeRules)
	return out
}

// InferColor returns the canonical color of the first text that matches a
// color rule. Texts are tried in order (e.g. variant title, SKU, alternate
// names), rules in table order.
func InferColor(texts ...string) (Color, bool) {
	for _, text := range texts {
		if strings.TrimSpace(text) == "" {
			continue
		}
		for _, rule := range colorRules {
			if rule.Pattern.MatchString(text) {
				return rule.Color, true
			}
		}
	}
	return "", false
}

// InferSize extracts a size from the variant title, then from the SKU suffix,
// falling back to SizeSingle
func InferSize(title, sku string) Size {
	for _, rule := range sizeRules {
		text := title
		if rule.Field == SizeFieldSKU {
			text = strings.TrimSpace(sku)
		}
		if text == "" {
			continue
		}
		if m := rule.Pattern.FindStringSubmatch(text); len(m) > 1 {
			return canonicalSize(m[1])
		}
	}
	return SizeSingle
}

func canonicalSize(token string) Size {
	switch t := strings.ToUpper(token); t {
	case "2XL":
		return SizeXXL
	default:
		return Size(t)
	}
}
