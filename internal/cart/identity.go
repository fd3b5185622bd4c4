package cart

import (
	"encoding/json"
	"slices"
	"sort"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

// NormalizeSelection returns a copy of sel with choice ids sorted and
// de-duplicated and empty groups removed. It returns nil when nothing is chosen.
func NormalizeSelection(sel domain.Selection) domain.Selection {
	var out domain.Selection
	for group, choices := range sel {
		if group == "" {
			continue
		}
		ids := make([]string, 0, len(choices))
		for _, c := range choices {
			if c != "" {
				ids = append(ids, c)
			}
		}
		if len(ids) == 0 {
			continue
		}
		sort.Strings(ids)
		ids = slices.Compact(ids)
		if out == nil {
			out = make(domain.Selection)
		}
		out[group] = ids
	}
	return out
}

// LineKey is the canonical identity of a cart line: the product id plus the
// normalized selection, with group ids in sorted order. It is JSON encoded so
// ids containing separator characters cannot produce colliding keys.
func LineKey(productID string, sel domain.Selection) string {
	norm := NormalizeSelection(sel)

	groups := make([]string, 0, len(norm))
	for g := range norm {
		groups = append(groups, g)
	}
	sort.Strings(groups)

	pairs := make([][2]any, 0, len(groups))
	for _, g := range groups {
		pairs = append(pairs, [2]any{g, norm[g]})
	}

	b, err := json.Marshal([]any{productID, pairs})
	if err != nil {
		// strings and string slices always marshal
		panic(err)
	}
	return string(b)
}

func lineKey(l domain.CartLine) string {
	return LineKey(l.ProductID, l.SelectedOptions)
}
