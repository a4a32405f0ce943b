package catalog

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ReplacementRule rewrites every match of Pattern with Replacement
type ReplacementRule struct {
	Pattern     *regexp.Regexp
	Replacement string
}

// QualifierRule flags a texture or cut keyword in a supplier title
type QualifierRule struct {
	Label   string
	Pattern *regexp.Regexp
}

func rule(expr, replacement string) ReplacementRule {
	return ReplacementRule{Pattern: regexp.MustCompile(expr), Replacement: replacement}
}

// phrase matches a whole (possibly accented) phrase and keeps the surrounding
// separators in groups 1 and 2
func phrase(expr, replacement string) ReplacementRule {
	return ReplacementRule{
		Pattern:     regexp.MustCompile(`(?i)(^|[^\p{L}\p{N}])(?:` + expr + `)($|[^\p{L}\p{N}])`),
		Replacement: "${1}" + replacement + "${2}",
	}
}

// nameRules translate supplier vocabulary into the storefront lexicon. Noise
// words go first, then multi-word phrases before the single words they contain.
var nameRules = []ReplacementRule{
	rule(`(?i)\b(women'?s?|womens|ladies|female|girls?)\b`, ""),
	rule(`(?i)\b(new|hot\s+sale|fashion|trendy|casual|style|elegant|european\s+and\s+american|cross[- ]border|amazon|solid\s+colou?r|20\d\d|autumn|winter|spring|summer)\b`, ""),
	rule(`女装|女士|新款|时尚|欧美|跨境`, ""),
	rule(`(?i)\blong[- ]sleeve[sd]?\b`, "Manga Longa"),
	rule(`(?i)\bshort[- ]sleeve[sd]?\b`, "Manga Curta"),
	rule(`(?i)\bsleeveless\b`, "Sem Manga"),
	rule(`(?i)\bhigh[- ]waist(ed)?\b`, "Cintura Alta"),
	rule(`(?i)\bwide[- ]leg\b`, "Pantalona"),
	rule(`(?i)\bturtle\s*neck\b`, "Gola Alta"),
	rule(`(?i)\bv[- ]neck\b`, "Decote V"),
	rule(`(?i)\bcrop(ped)?\s+tops?\b`, "Cropped"),
	rule(`(?i)\btank\s+tops?\b`, "Regata"),
	rule(`(?i)\bt-?shirts?\b|\btees?\b`, "Camiseta"),
	rule(`(?i)\b(sweatshirts?|hoodies?|hooded)\b`, "Moletom"),
	rule(`(?i)\b(sweaters?|pullovers?|jumpers?)\b`, "Suéter"),
	rule(`(?i)\bcardigans?\b`, "Cardigã"),
	rule(`(?i)\bblazers?\b`, "Blazer"),
	rule(`(?i)\bdress(es)?\b`, "Vestido"),
	rule(`(?i)\bskirts?\b`, "Saia"),
	rule(`(?i)\bblouses?\b`, "Blusa"),
	rule(`(?i)\bshirts?\b`, "Camisa"),
	rule(`(?i)\b(pants|trousers)\b`, "Calça"),
	rule(`(?i)\bshorts\b`, "Short"),
	rule(`(?i)\bjackets?\b`, "Jaqueta"),
	rule(`(?i)\bcoats?\b`, "Casaco"),
	rule(`(?i)\bknit(ted|ting)?\b`, "Tricô"),
	rule(`(?i)\bribbed\b`, "Canelado"),
	rule(`(?i)\b(loose|baggy)\b`, "Ampla"),
	rule(`(?i)\bslim(\s+fit)?\b`, "Slim"),
	rule(`(?i)\boversized?\b`, "Oversized"),
	rule(`(?i)\blinen\b`, "Linho"),
	rule(`(?i)\bleather\b`, "Couro"),
	rule(`(?i)\bvelvet\b`, "Veludo"),
	rule(`(?i)\bsatin\b`, "Cetim"),
	rule(`(?i)\bdenim\b`, "Jeans"),
	rule(`(?i)\b(tailored|suit)\b`, "Alfaiataria"),
	rule(`(?i)\bstriped?\b`, "Listrado"),
	rule(`(?i)\bprint(ed)?\b`, "Estampado"),
	rule(`(?i)\b(and|with|for)\b`, ""),
	rule(`毛衣`, " Suéter "),
	rule(`连衣裙`, " Vestido "),
	rule(`针织`, " Tricô "),
	rule(`外套`, " Casaco "),
	rule(`裤`, " Calça "),
}

// nameOverrides fix word order and prepositions for common combinations
var nameOverrides = []ReplacementRule{
	phrase(`tricô suéter|suéter tricô`, "Suéter de Tricô"),
	phrase(`tricô cardigã|cardigã tricô`, "Cardigã de Tricô"),
	phrase(`tricô vestido|vestido tricô`, "Vestido de Tricô"),
	phrase(`linho calça|calça linho`, "Calça de Linho"),
	phrase(`pantalona calça|calça pantalona`, "Calça Pantalona"),
	phrase(`cintura alta calça|calça cintura alta`, "Calça Cintura Alta"),
	phrase(`cropped camiseta|camiseta cropped`, "Cropped"),
	phrase(`couro jaqueta|jaqueta couro`, "Jaqueta de Couro"),
	phrase(`alfaiataria calça`, "Calça Alfaiataria"),
	phrase(`alfaiataria blazer`, "Blazer Alfaiataria"),
}

// qualifierRules are the texture/cut keywords used to tell colliding names apart
var qualifierRules = []QualifierRule{
	{"Canelado", boundedAlternation(`ribbed|canelad[oa]`, `罗纹`)},
	{"Tricô", boundedAlternation(`knit(ted|ting)?|tric[oô]`, `针织`)},
	{"Oversized", boundedAlternation(`oversized?`, `宽松`)},
	{"Cropped", boundedAlternation(`crop(ped)?`, `短款`)},
	{"Alfaiataria", boundedAlternation(`tailored|suit|alfaiataria`, `西装`)},
	{"Linho", boundedAlternation(`linen|linho`, `亚麻`)},
	{"Jeans", boundedAlternation(`denim|jeans?`, `牛仔`)},
	{"Couro", boundedAlternation(`leather|couro`, `皮革`)},
	{"Veludo", boundedAlternation(`velvet|veludo`, `丝绒`)},
	{"Cetim", boundedAlternation(`satin|cetim`, `缎`)},
	{"Listrado", boundedAlternation(`striped?|listrad[oa]`, `条纹`)},
	{"Estampado", boundedAlternation(`print(ed)?|estampad[oa]|floral`, `印花`)},
	{"Gola Alta", boundedAlternation(`turtle\s*neck|gola alta`, `高领`)},
	{"Manga Longa", boundedAlternation(`long[- ]sleeve[sd]?|manga longa`, `长袖`)},
}

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	edgePunctRe  = regexp.MustCompile(`^[\s\-_,.|/]+|[\s\-_,.|/]+$`)
	danglingRe   = regexp.MustCompile(`\s+[\-_,|/]+\s+`)
)

// lowercase connectors inside a title
var connectors = map[string]bool{"de": true, "da": true, "do": true, "e": true, "com": true, "sem": true}

// NameRules returns the ordered lexicon table
func NameRules() []ReplacementRule {
	out := make([]ReplacementRule, len(nameRules))
	copy(out, nameRules)
	return out
}

// QualifierRules returns the ordered qualifier table
func QualifierRules() []QualifierRule {
	out := make([]QualifierRule, len(qualifierRules))
	copy(out, qualifierRules)
	return out
}

// NormalizeName rewrites a raw supplier title into a storefront display name
func NormalizeName(raw string) string {
	name := raw
	for _, r := range nameRules {
		name = r.Pattern.ReplaceAllString(name, r.Replacement)
	}
	name = tidy(name)
	for _, r := range nameOverrides {
		name = r.Pattern.ReplaceAllString(name, r.Replacement)
	}
	name = dedupeAdjacentWords(tidy(name))
	return capitalize(name)
}

// ExtractQualifiers lists the qualifier labels present in a raw title, in table order
func ExtractQualifiers(raw string) []string {
	var out []string
	for _, q := range qualifierRules {
		if q.Pattern.MatchString(raw) {
			out = append(out, q.Label)
		}
	}
	return out
}

// ComposeVariantName appends the color label to the base name unless the base
// already names that color
func ComposeVariantName(base string, color Color) string {
	if !color.IsValid() {
		return base
	}
	if implied, ok := InferColor(base); ok && implied == color {
		return base
	}
	if strings.Contains(FoldKey(base), FoldKey(color.Label())) {
		return base
	}
	if base == "" {
		return color.Label()
	}
	return base + " " + color.Label()
}

// FoldKey lowercases and strips accents so "Suéter" and "sueter" compare equal
func FoldKey(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(strings.TrimSpace(whitespaceRe.ReplaceAllString(folded, " ")))
}

func tidy(s string) string {
	s = whitespaceRe.ReplaceAllString(s, " ")
	s = danglingRe.ReplaceAllString(s, " ")
	s = edgePunctRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

func dedupeAdjacentWords(s string) string {
	words := strings.Fields(s)
	out := words[:0]
	for _, w := range words {
		if len(out) > 0 && FoldKey(out[len(out)-1]) == FoldKey(w) {
			continue
		}
		out = append(out, w)
	}
	return strings.Join(out, " ")
}

func capitalize(s string) string {
	// Casers are stateful, one per call.
	caser := cases.Title(language.BrazilianPortuguese)
	words := strings.Fields(s)
	for i, w := range words {
		lw := strings.ToLower(w)
		if i > 0 && connectors[lw] {
			words[i] = lw
			continue
		}
		words[i] = caser.String(w)
	}
	return strings.Join(words, " ")
}
