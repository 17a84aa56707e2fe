package catalog

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/kailas-cloud/catalog/internal/codec"
	"github.com/kailas-cloud/catalog/internal/domain"
	"github.com/kailas-cloud/catalog/internal/domain/event"
	"github.com/kailas-cloud/catalog/internal/domain/product"
	"github.com/kailas-cloud/catalog/internal/logger"
	"github.com/kailas-cloud/catalog/internal/transport/pool"
)

// itemsPath is where the search service puts product records.
var itemsPath = []string{"searchResultPage", "products", "main", "items"}

// Search queries the catalog. An empty result is a success.
func (s *Service) Search(ctx context.Context, query string) (items []product.SearchItem, err error) {
	start := time.Now()
	defer func() { s.finish(opSearch, start, err) }()

	items, err = s.search(ctx, query)
	if err != nil {
		s.emit(event.SearchFailed{Query: query, Message: message(err), Err: err})
		return nil, err
	}
	s.emit(event.SearchCompleted{Query: query, Items: items})
	return items, nil
}

func (s *Service) search(ctx context.Context, query string) ([]product.SearchItem, error) {
	q := norm.NFC.String(strings.TrimSpace(query))
	if q == "" {
		return nil, domain.Errorf(domain.KindInvalidInput, opSearch, "empty query")
	}

	st := s.Settings()
	size := st.SearchPageSize
	if product.IsValid(q) {
		size = 1
	}

	body, err := s.transport.Do(ctx, pool.Request{
		Endpoint: opSearch,
		URL:      st.searchURL(),
		Query: url.Values{
			"q":     {q},
			"types": {"PRODUCT"},
			"size":  {strconv.Itoa(size)},
			"c":     {"sr"},
			"v":     {"20210322"},
		},
	})
	if err != nil {
		return nil, err
	}

	doc, err := codec.Decode(body)
	if err != nil {
		return nil, domain.NewError(domain.KindDecode, opSearch, "invalid response", err)
	}

	raw, ok := codec.Lookup(doc, itemsPath...)
	if !ok {
		return nil, domain.Errorf(domain.KindStructure, opSearch, "invalid response structure")
	}
	records, ok := raw.([]any)
	if !ok {
		return nil, domain.Errorf(domain.KindStructure, opSearch, "invalid response structure")
	}

	items, dropped := mapSearchItems(records)
	if dropped > 0 {
		logger.FromContext(ctx, s.logger).Debug("Dropped incomplete search items",
			zap.String("query", q),
			zap.Int("dropped", dropped),
			zap.Int("kept", len(items)),
		)
	}
	return items, nil
}

// mapSearchItems keeps records that carry every required field. A record's
// fields live under "product" when present, otherwise on the record itself.
func mapSearchItems(records []any) ([]product.SearchItem, int) {
	items := make([]product.SearchItem, 0, len(records))
	dropped := 0
	for _, rec := range records {
		obj, ok := rec.(map[string]any)
		if !ok {
			dropped++
			continue
		}
		if p, ok := obj["product"].(map[string]any); ok {
			obj = p
		}
		item, ok := searchItemFrom(obj)
		if !ok {
			dropped++
			continue
		}
		items = append(items, item)
	}
	return items, dropped
}

func searchItemFrom(obj map[string]any) (product.SearchItem, bool) {
	var (
		item product.SearchItem
		ok   bool
	)
	if item.ID, ok = codec.String(obj, "id"); !ok {
		return item, false
	}
	if item.Name, ok = codec.String(obj, "name"); !ok {
		return item, false
	}
	if item.ImageURL, ok = codec.String(obj, "mainImageUrl"); !ok {
		return item, false
	}
	if item.ImageAlt, ok = codec.String(obj, "mainImageAlt"); !ok {
		return item, false
	}
	if item.DetailURL, ok = codec.String(obj, "pipUrl"); !ok {
		return item, false
	}
	return item, true
}
