package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

// LoadCategoryMap reads the Monzo -> Lunch Money category map JSON.
// Values may be numeric category ids or Lunch Money category names; both are
// returned as strings for the resolver to interpret. A missing file is not an
// error; category mapping is optional.
func LoadCategoryMap(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if k == "" {
			continue
		}
		switch val := v.(type) {
		case string:
			out[k] = val
		case float64:
			out[k] = strconv.FormatInt(int64(val), 10)
		}
	}
	return out, nil
}
