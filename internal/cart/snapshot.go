package cart

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

const snapshotVersion = 1

// snapshot is the stored form of a cart. Minimal snapshots only carry line
// identity and quantity; prices and options come back from the catalog.
type snapshot struct {
	Version int               `json:"version"`
	Minimal bool              `json:"minimal,omitempty"`
	Lines   []domain.CartLine `json:"lines"`
}

type minimalLine struct {
	ProductID       string           `json:"product_id"`
	Quantity        int              `json:"quantity"`
	SelectedOptions domain.Selection `json:"selected_options,omitempty"`
}

type minimalSnapshot struct {
	Version int           `json:"version"`
	Minimal bool          `json:"minimal"`
	Lines   []minimalLine `json:"lines"`
}

func encodeFull(lines []domain.CartLine) (string, error) {
	out := snapshot{Version: snapshotVersion, Lines: make([]domain.CartLine, 0, len(lines))}
	for _, l := range lines {
		l.Presentation = stripInlinePayloads(l.Presentation)
		out.Lines = append(out.Lines, l)
	}
	b, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("marshal cart snapshot failed: %w", err)
	}
	return string(b), nil
}

func encodeMinimal(lines []domain.CartLine) (string, error) {
	out := minimalSnapshot{Version: snapshotVersion, Minimal: true, Lines: make([]minimalLine, 0, len(lines))}
	for _, l := range lines {
		out.Lines = append(out.Lines, minimalLine{
			ProductID:       l.ProductID,
			Quantity:        l.Quantity,
			SelectedOptions: l.SelectedOptions,
		})
	}
	b, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("marshal minimal cart snapshot failed: %w", err)
	}
	return string(b), nil
}

func decodeSnapshot(raw string) (snapshot, error) {
	var s snapshot
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return snapshot{}, fmt.Errorf("unmarshal cart snapshot failed: %w", err)
	}
	return s, nil
}

// stripInlinePayloads drops image data embedded in the record. Only
// references that can be fetched again are kept.
func stripInlinePayloads(p domain.Presentation) domain.Presentation {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(p.ImageURL)), "data:") {
		p.ImageURL = ""
	}
	return p
}
