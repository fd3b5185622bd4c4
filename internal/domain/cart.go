package domain

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Selection maps an option group id to the chosen choice ids. Single-select
// groups carry one id. A nil or empty Selection means no options were chosen.
type Selection map[string][]string

// UnmarshalJSON accepts either a string or an array of strings per group.
// Groups with any other shape are ignored.
func (s *Selection) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Selection, len(raw))
	for group, v := range raw {
		var single string
		if err := json.Unmarshal(v, &single); err == nil {
			if single != "" {
				out[group] = []string{single}
			}
			continue
		}
		var many []string
		if err := json.Unmarshal(v, &many); err == nil && len(many) > 0 {
			out[group] = many
		}
	}
	*s = out
	return nil
}

func (s Selection) Clone() Selection {
	if s == nil {
		return nil
	}
	out := make(Selection, len(s))
	for k, v := range s {
		out[k] = append([]string(nil), v...)
	}
	return out
}

type CartLine struct {
	ProductID       string          `json:"product_id"`
	UnitBasePrice   decimal.Decimal `json:"unit_base_price"`
	Quantity        int             `json:"quantity"`
	SelectedOptions Selection       `json:"selected_options,omitempty"`
	CatalogOptions  []OptionGroup   `json:"catalog_options,omitempty"`
	Presentation    Presentation    `json:"presentation"`
}

// UnmarshalJSON reads a missing or non-numeric unit_base_price or quantity as zero.
func (l *CartLine) UnmarshalJSON(data []byte) error {
	type alias CartLine
	var raw struct {
		alias
		UnitBasePrice json.RawMessage `json:"unit_base_price"`
		Quantity      json.RawMessage `json:"quantity"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*l = CartLine(raw.alias)
	l.UnitBasePrice = LenientDecimal(raw.UnitBasePrice)
	l.Quantity = LenientInt(raw.Quantity)
	return nil
}
