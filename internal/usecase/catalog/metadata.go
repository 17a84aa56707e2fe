package catalog

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/catalog/internal/cache"
	"github.com/kailas-cloud/catalog/internal/codec"
	"github.com/kailas-cloud/catalog/internal/domain"
	"github.com/kailas-cloud/catalog/internal/domain/event"
	"github.com/kailas-cloud/catalog/internal/domain/product"
	"github.com/kailas-cloud/catalog/internal/logger"
	"github.com/kailas-cloud/catalog/internal/transport/pool"
)

// Metadata returns the product document, from cache when it decodes cleanly.
func (s *Service) Metadata(ctx context.Context, rawID string) (md product.Metadata, err error) {
	start := time.Now()
	defer func() { s.finish(opMetadata, start, err) }()

	md, err = s.metadata(ctx, rawID)
	if err != nil {
		s.emit(event.MetadataFailed{ID: eventID(rawID), Message: message(err), Err: err})
		return product.Metadata{}, err
	}
	s.emit(event.MetadataLoaded{ID: md.ID.String(), Document: md.Document})
	return md, nil
}

func (s *Service) metadata(ctx context.Context, rawID string) (product.Metadata, error) {
	id, err := product.Parse(rawID)
	if err != nil {
		return product.Metadata{}, domain.NewError(domain.KindInvalidInput, opMetadata, "invalid identifier", err)
	}

	store := s.store()
	if doc, ok := s.cachedDocument(store, id.String(), cache.ArtifactMetadata); ok {
		return product.Metadata{ID: id, Document: doc, Cached: true}, nil
	}

	body, err := s.transport.Do(ctx, pool.Request{
		Endpoint: opMetadata,
		URL:      s.Settings().metadataURL(id),
	})
	if err != nil {
		return product.Metadata{}, domain.WithID(err, id.String())
	}

	doc, err := codec.Decode(body)
	if err != nil {
		e := domain.NewError(domain.KindDecode, opMetadata, "invalid response", err)
		e.ID = id.String()
		return product.Metadata{}, e
	}

	// The document is already in memory; a failed write only costs a refetch later.
	if _, err := store.Write(id.String(), cache.ArtifactMetadata, body); err != nil {
		logger.FromContext(ctx, s.logger).Warn("Failed to cache metadata",
			zap.String("id", id.String()), zap.Error(err))
	}

	return product.Metadata{ID: id, Document: doc}, nil
}

// eventID reports the compact form when it looks like an identifier, the raw
// input otherwise.
func eventID(raw string) string {
	if product.IsValid(raw) {
		return product.Compact(raw)
	}
	return raw
}
