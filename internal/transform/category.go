package transform

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/mdale/monzo-lunchmoney-sync/internal/lunchmoney"
)

// NormalizeCategoryName canonicalizes a Lunch Money category name for
// matching: trim, Unicode-decompose, keep only letters, digits and
// whitespace (dropping emoji and symbols), collapse runs of whitespace,
// lowercase.
//
//	"🥬 Groceries" -> "groceries"
//	"Pubs and Restaurants" -> "pubs and restaurants"
func NormalizeCategoryName(name string) string {
	s := norm.NFKD.String(strings.TrimSpace(name))
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(strings.ToLower(b.String())), " ")
}

// ResolveCategoryMap turns a raw Monzo-category -> value map into a map of
// Monzo categories to Lunch Money category ids. Values that parse as
// integers are taken as ids directly; anything else is treated as a Lunch
// Money category name and resolved by normalized-name lookup against the
// fetched category list. Entries that end up pointing at a category group
// (or at no known category) are dropped, since groups cannot be assigned to
// transactions. Dropped entries come back as warnings.
func ResolveCategoryMap(raw map[string]string, categories []lunchmoney.Category) (map[string]int64, []string) {
	if len(raw) == 0 {
		return nil, nil
	}

	normToID := make(map[string]int64)
	assignable := make(map[int64]bool)
	for _, c := range categories {
		if !c.Assignable() {
			continue
		}
		assignable[c.ID] = true
		if key := NormalizeCategoryName(c.Name); key != "" {
			normToID[key] = c.ID
		}
	}

	out := make(map[string]int64, len(raw))
	var warnings []string
	for monzoKey, val := range raw {
		var id int64
		if n, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64); err == nil {
			id = n
		} else if resolved, ok := normToID[NormalizeCategoryName(val)]; ok {
			id = resolved
		} else {
			warnings = append(warnings, fmt.Sprintf("mapping for %q: no category named %q", monzoKey, val))
			continue
		}
		if !assignable[id] {
			warnings = append(warnings, fmt.Sprintf("mapping for %q points to a category group or unknown id %d; ignoring", monzoKey, id))
			continue
		}
		out[monzoKey] = id
	}
	if len(out) == 0 {
		return nil, warnings
	}
	return out, warnings
}

// ResolveCategory looks up the destination category for a source category
// label. Absent or unmapped labels resolve to nothing.
func ResolveCategory(sourceCategory string, categoryMap map[string]int64) (int64, bool) {
	if sourceCategory == "" || len(categoryMap) == 0 {
		return 0, false
	}
	id, ok := categoryMap[sourceCategory]
	return id, ok
}
