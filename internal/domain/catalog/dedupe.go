package catalog

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEditionMarkersExhausted is returned when a collision group is larger than
// the edition marker sequence
var ErrEditionMarkersExhausted = errors.New("catalog: edition markers exhausted")

var editionMarkers = []string{
	"I", "II", "III", "IV", "V", "VI", "VII", "VIII", "IX", "X",
	"XI", "XII", "XIII", "XIV", "XV", "XVI", "XVII", "XVIII", "XIX", "XX",
}

// NameCandidate is one product in a naming batch
type NameCandidate struct {
	Key        string
	Name       string
	Qualifiers []string
}

// NewNameCandidate normalizes a raw title and extracts its qualifiers
func NewNameCandidate(key, raw string) NameCandidate {
	return NameCandidate{
		Key:        key,
		Name:       NormalizeName(raw),
		Qualifiers: ExtractQualifiers(raw),
	}
}

// Deduplicate resolves display name collisions within a batch. The first item
// of a collision group keeps its name; later items get an unused qualifier
// that the base name doesn't already carry, else the next edition marker
// (starting at II, the unmarked name being the first edition). When the
// markers run out the remaining items keep a colliding name and the returned
// error lists them.
func Deduplicate(items []NameCandidate) ([]NameCandidate, error) {
	out := make([]NameCandidate, len(items))
	copy(out, items)

	used := make(map[string]bool, len(out))
	for _, it := range out {
		used[FoldKey(it.Name)] = true
	}

	groupSize := make(map[string]int, len(out))
	var exhausted []string
	for i := range out {
		base := out[i].Name
		key := FoldKey(base)
		groupSize[key]++
		if groupSize[key] == 1 {
			continue
		}

		if name, ok := resolveWithQualifier(base, out[i].Qualifiers, used); ok {
			out[i].Name = name
			used[FoldKey(name)] = true
			continue
		}
		if name, ok := resolveWithEdition(base, used); ok {
			out[i].Name = name
			used[FoldKey(name)] = true
			continue
		}
		exhausted = append(exhausted, base)
	}

	if len(exhausted) > 0 {
		return out, fmt.Errorf("%w: %s", ErrEditionMarkersExhausted, strings.Join(exhausted, ", "))
	}
	return out, nil
}

func resolveWithQualifier(base string, qualifiers []string, used map[string]bool) (string, bool) {
	baseKey := FoldKey(base)
	for _, q := range qualifiers {
		if strings.Contains(baseKey, FoldKey(q)) {
			continue
		}
		name := base + " " + q
		if !used[FoldKey(name)] {
			return name, true
		}
	}
	return "", false
}

func resolveWithEdition(base string, used map[string]bool) (string, bool) {
	for _, marker := range editionMarkers[1:] {
		name := base + " " + marker
		if !used[FoldKey(name)] {
			return name, true
		}
	}
	return "", false
}
