package catalog

import "strings"

// Rule replaces every occurrence of From with To.
type Rule struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Rewriter turns compressed model URLs into their uncompressed variant.
// Rules apply in order; a URL matching no rule is returned unchanged.
type Rewriter []Rule

// Apply rewrites u.
func (r Rewriter) Apply(u string) string {
	for _, rule := range r {
		if rule.From == "" {
			continue
		}
		u = strings.ReplaceAll(u, rule.From, rule.To)
	}
	return u
}
