package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type Choice struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	PriceModifier decimal.Decimal `json:"price_modifier"`
}

// UnmarshalJSON tolerates a missing or non-numeric price_modifier and reads it as zero.
func (c *Choice) UnmarshalJSON(data []byte) error {
	type alias Choice
	var raw struct {
		alias
		PriceModifier json.RawMessage `json:"price_modifier"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*c = Choice(raw.alias)
	c.PriceModifier = LenientDecimal(raw.PriceModifier)
	return nil
}

type OptionGroup struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Required    bool     `json:"required"`
	MultiSelect bool     `json:"multi_select"`
	Choices     []Choice `json:"choices"`
}

// Choice looks up a choice by id within the group.
func (g OptionGroup) Choice(id string) (Choice, bool) {
	for _, c := range g.Choices {
		if c.ID == id {
			return c, true
		}
	}
	return Choice{}, false
}

// Presentation holds display-only fields. They are never used for pricing.
type Presentation struct {
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
	Emoji       string `json:"emoji,omitempty"`
}

func (p Presentation) IsZero() bool {
	return p == Presentation{}
}

type Product struct {
	ID           string          `json:"id"`
	Category     string          `json:"category,omitempty"`
	Price        decimal.Decimal `json:"price"`
	Options      []OptionGroup   `json:"options,omitempty"`
	Presentation Presentation    `json:"presentation"`
	Available    bool            `json:"available"`
	CreatedAt    time.Time       `json:"created_at"`
}
