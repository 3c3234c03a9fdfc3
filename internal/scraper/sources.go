package scraper

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// LoadConfigs reads and validates the sources file, a JSON array of
// Config entries. Reputation defaults to 0.5 when omitted.
func LoadConfigs(path string) ([]Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sources file %s: %w", path, err)
	}

	var configs []Config
	if err := json.Unmarshal(data, &configs); err != nil {
		return nil, fmt.Errorf("failed to parse sources file %s: %w", path, err)
	}
	if len(configs) == 0 {
		return nil, fmt.Errorf("sources file %s lists no sources", path)
	}

	seen := make(map[string]bool)
	for i := range configs {
		if configs[i].Reputation == 0 {
			configs[i].Reputation = 0.5
		}
		if err := validate.Struct(&configs[i]); err != nil {
			return nil, fmt.Errorf("invalid source entry %d (%s): %w", i, configs[i].Name, err)
		}
		if seen[configs[i].Name] {
			return nil, fmt.Errorf("duplicate source name %q in %s", configs[i].Name, path)
		}
		seen[configs[i].Name] = true
	}
	return configs, nil
}
