package pricing

import (
	"math"
	"strings"

	"github.com/yamanotatsu/task-master-api/config"
)

const defaultCurrency = "USD"

// Entry holds the per-million-token pricing for a provider+model pair
type Entry struct {
	InputCostPer1M  float64
	OutputCostPer1M float64
	Currency        string
}

// Table provides cost lookups over the static model catalog.
// Unknown provider/model pairs resolve to a zero-cost entry, never an error.
type Table struct {
	entries map[string]Entry // key: provider + "/" + modelID
}

// NewTable builds a lookup table from the model catalog
func NewTable(catalog config.ModelCatalog) *Table {
	entries := make(map[string]Entry)
	for provider, models := range catalog {
		for _, m := range models {
			currency := m.Currency
			if currency == "" {
				currency = defaultCurrency
			}
			entries[key(provider, m.ID)] = Entry{
				InputCostPer1M:  m.InputCostPer1M,
				OutputCostPer1M: m.OutputCostPer1M,
				Currency:        currency,
			}
		}
	}
	return &Table{entries: entries}
}

// Lookup returns the pricing entry for a provider+model. Unknown models get
// a zero-cost USD entry.
func (t *Table) Lookup(provider, modelID string) Entry {
	if entry, ok := t.entries[key(provider, modelID)]; ok {
		return entry
	}
	return Entry{Currency: defaultCurrency}
}

// Cost computes the total cost for the given token counts, rounded to six
// decimal places.
func (t *Table) Cost(provider, modelID string, inputTokens, outputTokens int) (float64, string) {
	entry := t.Lookup(provider, modelID)

	cost := (float64(inputTokens)/1e6)*entry.InputCostPer1M +
		(float64(outputTokens)/1e6)*entry.OutputCostPer1M

	return math.Round(cost*1e6) / 1e6, entry.Currency
}

func key(provider, modelID string) string {
	return strings.ToLower(provider) + "/" + modelID
}
