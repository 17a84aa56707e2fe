package catalog

import (
	"bytes"
	"context"
	"errors"
	"net/url"
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

// Binary model validation.
const (
	MinModelBytes = 1024
	ModelMagic    = "glTF"
)

const endpointModelFile = "model_file"

// CheckAvailability reports whether the product has a 3D model. The result is
// cached. AvailabilityChecked fires on every call, with false on failure.
func (s *Service) CheckAvailability(ctx context.Context, rawID string) (exists bool, err error) {
	start := time.Now()
	defer func() { s.finish(opAvailability, start, err) }()

	exists, err = s.availability(ctx, rawID)
	s.emit(event.AvailabilityChecked{ID: eventID(rawID), Exists: exists && err == nil})
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (s *Service) availability(ctx context.Context, rawID string) (bool, error) {
	id, err := product.Parse(rawID)
	if err != nil {
		return false, domain.NewError(domain.KindInvalidInput, opAvailability, "invalid identifier", err)
	}
	return s.exists(ctx, s.store(), id)
}

func (s *Service) exists(ctx context.Context, store Cache, id product.Identifier) (bool, error) {
	if doc, ok := s.cachedDocument(store, id.String(), cache.ArtifactExists); ok {
		if v, ok := codec.Bool(doc, "exists"); ok {
			return v, nil
		}
		logger.FromContext(ctx, s.logger).Warn("Cached availability has no exists flag, fetching again",
			zap.String("id", id.String()))
	}

	body, err := s.transport.Do(ctx, pool.Request{
		Endpoint: opAvailability,
		URL:      s.Settings().existsURL(id),
	})
	if err != nil {
		return false, domain.WithID(err, id.String())
	}

	doc, err := codec.Decode(body)
	if err != nil {
		e := domain.NewError(domain.KindDecode, opAvailability, "invalid response", err)
		e.ID = id.String()
		return false, e
	}
	v, ok := codec.Bool(doc, "exists")
	if !ok {
		return false, &domain.Error{
			Kind: domain.KindStructure, Op: opAvailability, ID: id.String(),
			Msg: "response has no boolean exists field",
		}
	}

	if _, err := store.Write(id.String(), cache.ArtifactExists, body); err != nil {
		logger.FromContext(ctx, s.logger).Warn("Failed to cache availability",
			zap.String("id", id.String()), zap.Error(err))
	}
	return v, nil
}

// Model returns the local path of the product's binary model. The chain is
// availability, model metadata, URL rewrite, download, validation, cache.
// Unless the model is already cached, AvailabilityChecked fires once before
// the terminal model event.
func (s *Service) Model(ctx context.Context, rawID string) (path string, err error) {
	start := time.Now()
	defer func() { s.finish(opModel, start, err) }()

	path, err = s.model(ctx, rawID)
	if err != nil {
		s.emit(event.ModelFailed{ID: eventID(rawID), Message: message(err), Err: err})
		return "", err
	}
	s.emit(event.ModelReady{ID: product.Compact(rawID), Path: path})
	return path, nil
}

func (s *Service) model(ctx context.Context, rawID string) (string, error) {
	id, err := product.Parse(rawID)
	if err != nil {
		return "", domain.NewError(domain.KindInvalidInput, opModel, "invalid identifier", err)
	}
	key := id.String()

	store := s.store()
	if store.Exists(key, cache.ArtifactModel) {
		lookup(cache.ArtifactModel, "hit")
		return store.Path(key, cache.ArtifactModel), nil
	}
	lookup(cache.ArtifactModel, "miss")

	available, err := s.exists(ctx, store, id)
	s.emit(event.AvailabilityChecked{ID: key, Exists: available && err == nil})
	if err != nil {
		return "", err
	}
	if !available {
		return "", &domain.Error{Kind: domain.KindNoModel, Op: opModel, ID: key}
	}

	st := s.Settings()
	body, err := s.transport.Do(ctx, pool.Request{Endpoint: opModel, URL: st.modelURL(id)})
	if err != nil {
		return "", domain.WithID(err, key)
	}
	doc, err := codec.Decode(body)
	if err != nil {
		e := domain.NewError(domain.KindDecode, opModel, "invalid response", err)
		e.ID = key
		return "", e
	}
	obj, _ := doc.(map[string]any)
	modelURL, ok := codec.String(obj, "modelUrl")
	if !ok {
		return "", &domain.Error{Kind: domain.KindStructure, Op: opModel, ID: key, Msg: "response has no modelUrl"}
	}

	target := st.Rewrites.Apply(modelURL)
	if err := checkModelURL(target); err != nil {
		return "", &domain.Error{Kind: domain.KindStructure, Op: opModel, ID: key, Msg: "invalid model url", Err: err}
	}
	logger.FromContext(ctx, s.logger).Debug("Downloading model",
		zap.String("id", key), zap.String("url", target))

	data, err := s.transport.Do(ctx, pool.Request{Endpoint: endpointModelFile, URL: target})
	if err != nil {
		return "", domain.WithID(err, key)
	}
	if err := validateModel(data); err != nil {
		return "", &domain.Error{Kind: domain.KindIntegrity, Op: opModel, ID: key, Msg: err.Error()}
	}

	path, err := store.Write(key, cache.ArtifactModel, data)
	if err != nil {
		return "", &domain.Error{Kind: domain.KindStorage, Op: opModel, ID: key, Msg: "cache write failed", Err: err}
	}
	return path, nil
}

func checkModelURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return domain.Errorf(domain.KindStructure, opModel, "unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return domain.Errorf(domain.KindStructure, opModel, "missing host")
	}
	return nil
}

var (
	errModelTooSmall = errors.New("model file too small, likely invalid")
	errModelMagic    = errors.New("model file is not binary glTF")
)

func validateModel(data []byte) error {
	if len(data) < MinModelBytes {
		return errModelTooSmall
	}
	if !bytes.HasPrefix(data, []byte(ModelMagic)) {
		return errModelMagic
	}
	return nil
}
