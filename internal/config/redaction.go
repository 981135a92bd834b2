package config

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

type RedactionRuleV1 struct {
	ID          string `yaml:"id" json:"id"`
	Regex       string `yaml:"regex" json:"regex"`
	Replacement string `yaml:"replacement,omitempty" json:"replacement,omitempty"`
}

type RedactionConfigV1 struct {
	ExtraRules []RedactionRuleV1 `yaml:"extraRules,omitempty"`
}

// NormalizeRedactionRules validates rule regexes, fills default replacements
// and dedupes by ID (last wins). Output is sorted by ID.
func NormalizeRedactionRules(in []RedactionRuleV1) ([]RedactionRuleV1, error) {
	if len(in) == 0 {
		return nil, nil
	}
	byID := map[string]RedactionRuleV1{}
	for _, r := range in {
		r.ID = strings.TrimSpace(r.ID)
		if r.ID == "" {
			return nil, fmt.Errorf("redaction rule missing id")
		}
		if _, err := regexp.Compile(r.Regex); err != nil {
			return nil, fmt.Errorf("redaction rule %q: invalid regex: %w", r.ID, err)
		}
		if r.Replacement == "" {
			r.Replacement = "[REDACTED:" + strings.ToUpper(r.ID) + "]"
		}
		byID[r.ID] = r
	}
	out := make([]RedactionRuleV1, 0, len(byID))
	for _, r := range byID {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
