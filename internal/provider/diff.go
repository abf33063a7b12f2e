package provider

import (
	"encoding/json"
	"fmt"
	"sort"
)

// DiffAttributes compares a desired config payload against a prior
// state payload and returns the names of top-level attributes whose
// values differ. Attributes absent from the prior state are treated as
// computed and ignored, so providers that echo their applied config
// into state get accurate diffs for free.
func DiffAttributes(desiredJSON, priorJSON []byte) ([]string, error) {
	var desired, prior map[string]any
	if err := json.Unmarshal(desiredJSON, &desired); err != nil {
		return nil, fmt.Errorf("failed to unmarshal desired config: %w", err)
	}
	if err := json.Unmarshal(priorJSON, &prior); err != nil {
		return nil, fmt.Errorf("failed to unmarshal prior state: %w", err)
	}

	var changed []string
	for name, desiredVal := range desired {
		priorVal, ok := prior[name]
		if !ok {
			continue
		}
		if fmt.Sprintf("%v", desiredVal) != fmt.Sprintf("%v", priorVal) {
			changed = append(changed, name)
		}
	}
	sort.Strings(changed)
	return changed, nil
}
