// Package cost computes USD costs for metered external calls.
package cost

// ModelRate holds per-model token pricing (USD per million tokens).
type ModelRate struct {
	Input  float64 `yaml:"input" mapstructure:"input"`
	Output float64 `yaml:"output" mapstructure:"output"`
}

// SearchRate holds flat per-query search pricing.
type SearchRate struct {
	PerQuery float64 `yaml:"per_query" mapstructure:"per_query"`
}

// Rates holds per-provider pricing configuration.
type Rates struct {
	Assistant map[string]ModelRate `yaml:"assistant" mapstructure:"assistant"`
	Search    SearchRate           `yaml:"search" mapstructure:"search"`
}

// Calculator computes costs for API usage.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// Assistant computes the cost of an assistant call from token counts.
// Unknown models cost zero.
func (c *Calculator) Assistant(model string, inputTokens, outputTokens int64) float64 {
	rate, ok := c.rates.Assistant[model]
	if !ok {
		return 0
	}
	return (float64(inputTokens)/1e6)*rate.Input + (float64(outputTokens)/1e6)*rate.Output
}

// SearchQuery returns the flat cost per search query.
func (c *Calculator) SearchQuery() float64 {
	return c.rates.Search.PerQuery
}

// DefaultRates returns the default pricing rates.
func DefaultRates() Rates {
	return Rates{
		Assistant: map[string]ModelRate{
			"claude-haiku-4-5-20251001":  {Input: 0.80, Output: 4.00},
			"claude-sonnet-4-5-20250929": {Input: 3.00, Output: 15.00},
		},
		Search: SearchRate{PerQuery: 0.005},
	}
}
