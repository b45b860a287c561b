package config

// ModelPricing holds per-million-token pricing for a single model
type ModelPricing struct {
	ID              string
	InputCostPer1M  float64
	OutputCostPer1M float64
	Currency        string
}

// ModelCatalog maps a lowercase provider name to its known models and pricing.
// Models absent from the catalog are billed at zero cost.
type ModelCatalog map[string][]ModelPricing

// DefaultModelCatalog returns the static pricing table shipped with the service.
// Prices are USD per one million tokens.
func DefaultModelCatalog() ModelCatalog {
	return ModelCatalog{
		"anthropic": {
			{ID: "claude-3-7-sonnet-20250219", InputCostPer1M: 3, OutputCostPer1M: 15, Currency: "USD"},
			{ID: "claude-3-5-sonnet-20241022", InputCostPer1M: 3, OutputCostPer1M: 15, Currency: "USD"},
			{ID: "claude-3-5-haiku-20241022", InputCostPer1M: 0.8, OutputCostPer1M: 4, Currency: "USD"},
			{ID: "claude-3-opus-20240229", InputCostPer1M: 15, OutputCostPer1M: 75, Currency: "USD"},
		},
		"openai": {
			{ID: "gpt-4o", InputCostPer1M: 2.5, OutputCostPer1M: 10, Currency: "USD"},
			{ID: "gpt-4o-mini", InputCostPer1M: 0.15, OutputCostPer1M: 0.6, Currency: "USD"},
			{ID: "gpt-4-turbo", InputCostPer1M: 10, OutputCostPer1M: 30, Currency: "USD"},
			{ID: "o1", InputCostPer1M: 15, OutputCostPer1M: 60, Currency: "USD"},
			{ID: "o1-mini", InputCostPer1M: 1.1, OutputCostPer1M: 4.4, Currency: "USD"},
		},
		"perplexity": {
			{ID: "sonar-pro", InputCostPer1M: 3, OutputCostPer1M: 15, Currency: "USD"},
			{ID: "sonar", InputCostPer1M: 1, OutputCostPer1M: 1, Currency: "USD"},
		},
		// Local models are free
		"ollama": {
			{ID: "llama3.3", InputCostPer1M: 0, OutputCostPer1M: 0, Currency: "USD"},
			{ID: "qwen2.5-coder", InputCostPer1M: 0, OutputCostPer1M: 0, Currency: "USD"},
		},
	}
}
