package catalog

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/kailas-cloud/catalog/internal/domain/product"
)

// Settings are the per-operation endpoint parameters. Region and locale can
// change at runtime; the cache stays keyed by identifier alone, so data cached
// under one region is served for every region.
type Settings struct {
	Region         string   `json:"region"`
	Locale         string   `json:"locale"`
	SearchHost     string   `json:"search_host"`
	CatalogHost    string   `json:"catalog_host"`
	APIHost        string   `json:"api_host"`
	SearchPageSize int      `json:"search_page_size"`
	Rewrites       Rewriter `json:"model_rewrites"`
}

var codeRegex = regexp.MustCompile(`^[a-z]{2}$`)

func validateCode(kind, code string) error {
	if !codeRegex.MatchString(code) {
		return fmt.Errorf("%s must be a two-letter lowercase code, got %q", kind, code)
	}
	return nil
}

func (s Settings) base(host string) string {
	return strings.TrimRight(host, "/") + "/" + s.Region + "/" + s.Locale
}

func (s Settings) searchURL() string {
	return s.base(s.SearchHost) + "/search-result-page"
}

func (s Settings) metadataURL(id product.Identifier) string {
	return fmt.Sprintf("%s/products/%s/%s.json", s.base(s.CatalogHost), id.Partition(), id)
}

func (s Settings) existsURL(id product.Identifier) string {
	return fmt.Sprintf("%s/rotera/data/exists/%s/", s.base(s.APIHost), id)
}

func (s Settings) modelURL(id product.Identifier) string {
	return fmt.Sprintf("%s/rotera/data/model/%s/", s.base(s.APIHost), id)
}
