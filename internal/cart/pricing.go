package cart

import (
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/shopspring/decimal"
)

// DefaultTaxRate is the business's published sales tax rate.
var DefaultTaxRate = decimal.RequireFromString("0.0875")

type Totals struct {
	Subtotal  decimal.Decimal `json:"subtotal"`
	Tax       decimal.Decimal `json:"tax"`
	Total     decimal.Decimal `json:"total"`
	ItemCount int             `json:"item_count"`
}

// UnitPrice is the base price plus the modifier of every selected choice.
// Choices that are not in the line's catalog options add nothing.
func UnitPrice(line domain.CartLine) decimal.Decimal {
	price := line.UnitBasePrice
	for groupID, choiceIDs := range NormalizeSelection(line.SelectedOptions) {
		group, ok := findGroup(line.CatalogOptions, groupID)
		if !ok {
			continue
		}
		for _, id := range choiceIDs {
			if c, ok := group.Choice(id); ok {
				price = price.Add(c.PriceModifier)
			}
		}
	}
	return price
}

// ComputeLineTotal returns UnitPrice times quantity. A non-positive quantity
// contributes zero.
func ComputeLineTotal(line domain.CartLine) decimal.Decimal {
	if line.Quantity <= 0 {
		return decimal.Zero
	}
	return UnitPrice(line).Mul(decimal.NewFromInt(int64(line.Quantity)))
}

func ComputeTotals(lines []domain.CartLine, taxRate decimal.Decimal) Totals {
	subtotal := decimal.Zero
	count := 0
	for _, l := range lines {
		subtotal = subtotal.Add(ComputeLineTotal(l))
		if l.Quantity > 0 {
			count += l.Quantity
		}
	}
	tax := subtotal.Mul(taxRate)
	return Totals{
		Subtotal:  subtotal,
		Tax:       tax,
		Total:     subtotal.Add(tax),
		ItemCount: count,
	}
}

func findGroup(groups []domain.OptionGroup, id string) (domain.OptionGroup, bool) {
	for _, g := range groups {
		if g.ID == id {
			return g, true
		}
	}
	return domain.OptionGroup{}, false
}
