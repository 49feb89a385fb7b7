package cli

import (
	"encoding/json"
	"fmt"

	"github.com/PaesslerAG/jsonpath"
)

// Query evaluates a JSONPath expression such as "$.Camera.bit_depth" or
// "$..bit_depth" against a store dump. Values are matched in their JSON form.
func Query(data map[string]map[string]any, path string) (any, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	out, err := jsonpath.Get(path, doc)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", path, err)
	}
	return out, nil
}
