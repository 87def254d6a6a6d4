package cost

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// LoadRates reads pricing rates from a YAML file. Sections missing from the
// file fall back to the defaults, so a rates file can override just one
// provider.
func LoadRates(path string) (Rates, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Rates{}, eris.Wrapf(err, "cost: read rates %s", path)
	}

	// The YAML has a top-level "pricing" key
	var wrapper struct {
		Pricing Rates `yaml:"pricing"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return Rates{}, eris.Wrap(err, "cost: parse rates")
	}

	rates := wrapper.Pricing
	defaults := DefaultRates()
	if len(rates.Assistant) == 0 {
		rates.Assistant = defaults.Assistant
	}
	if rates.Search.PerQuery == 0 {
		rates.Search = defaults.Search
	}
	return rates, nil
}
