package catalog

import (
	"context"
	"strings"
	"time"

	"github.com/kailas-cloud/catalog/internal/cache"
	"github.com/kailas-cloud/catalog/internal/domain"
	"github.com/kailas-cloud/catalog/internal/domain/event"
	"github.com/kailas-cloud/catalog/internal/domain/product"
	"github.com/kailas-cloud/catalog/internal/transport/pool"
)

// MinThumbnailBytes is the smallest image accepted as a real thumbnail.
const MinThumbnailBytes = 100

// Thumbnail returns the local path of the product's thumbnail, downloading it
// from sourceURL on a cache miss.
func (s *Service) Thumbnail(ctx context.Context, rawID, sourceURL string) (path string, err error) {
	start := time.Now()
	defer func() { s.finish(opThumbnail, start, err) }()

	path, err = s.thumbnail(ctx, rawID, sourceURL)
	if err != nil {
		s.emit(event.ThumbnailFailed{ID: eventID(rawID), Message: message(err), Err: err})
		return "", err
	}
	s.emit(event.ThumbnailReady{ID: product.Compact(rawID), Path: path})
	return path, nil
}

func (s *Service) thumbnail(ctx context.Context, rawID, sourceURL string) (string, error) {
	id, err := product.Parse(rawID)
	if err != nil {
		return "", domain.NewError(domain.KindInvalidInput, opThumbnail, "invalid identifier", err)
	}
	if strings.TrimSpace(sourceURL) == "" {
		return "", &domain.Error{Kind: domain.KindInvalidInput, Op: opThumbnail, ID: id.String(), Msg: "empty source url"}
	}

	store := s.store()
	if store.Exists(id.String(), cache.ArtifactThumbnail) {
		lookup(cache.ArtifactThumbnail, "hit")
		return store.Path(id.String(), cache.ArtifactThumbnail), nil
	}
	lookup(cache.ArtifactThumbnail, "miss")

	body, err := s.transport.Do(ctx, pool.Request{Endpoint: opThumbnail, URL: sourceURL})
	if err != nil {
		return "", domain.WithID(err, id.String())
	}

	if len(body) < MinThumbnailBytes {
		return "", &domain.Error{
			Kind: domain.KindIntegrity, Op: opThumbnail, ID: id.String(),
			Msg: "image too small, likely invalid",
		}
	}

	path, err := store.Write(id.String(), cache.ArtifactThumbnail, body)
	if err != nil {
		return "", &domain.Error{Kind: domain.KindStorage, Op: opThumbnail, ID: id.String(), Msg: "cache write failed", Err: err}
	}
	return path, nil
}
