// Package catalog orchestrates the catalog flows: search, metadata, thumbnail,
// availability and model. Every flow validates input before any I/O, prefers
// the cache, fetches through the transport pool on a miss, writes back, and
// emits exactly one terminal event. Nothing here retries.
package catalog

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/catalog/internal/cache"
	"github.com/kailas-cloud/catalog/internal/codec"
	"github.com/kailas-cloud/catalog/internal/domain"
	"github.com/kailas-cloud/catalog/internal/domain/event"
	"github.com/kailas-cloud/catalog/internal/metrics"
)

// Flow names, used as error ops and metric labels.
const (
	opSearch       = "search"
	opMetadata     = "metadata"
	opThumbnail    = "thumbnail"
	opAvailability = "availability"
	opModel        = "model"
)

// Service runs catalog flows.
type Service struct {
	transport Transport
	emitter   Emitter
	logger    *zap.Logger

	mu       sync.RWMutex
	settings Settings
	cache    Cache
}

// New creates a catalog service. A nil emitter discards events.
func New(transport Transport, store Cache, settings Settings, emitter Emitter, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if settings.SearchPageSize <= 0 {
		settings.SearchPageSize = 24
	}
	return &Service{
		transport: transport,
		emitter:   emitter,
		logger:    logger,
		settings:  settings,
		cache:     store,
	}
}

// Settings returns the current settings.
func (s *Service) Settings() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// SetRegion changes the region used by the next operation.
func (s *Service) SetRegion(region string) error {
	if err := validateCode("region", region); err != nil {
		return domain.NewError(domain.KindInvalidInput, "settings", err.Error(), nil)
	}
	s.mu.Lock()
	s.settings.Region = region
	s.mu.Unlock()
	return nil
}

// SetLocale changes the locale used by the next operation.
func (s *Service) SetLocale(locale string) error {
	if err := validateCode("locale", locale); err != nil {
		return domain.NewError(domain.KindInvalidInput, "settings", err.Error(), nil)
	}
	s.mu.Lock()
	s.settings.Locale = locale
	s.mu.Unlock()
	return nil
}

// SetCache swaps the artifact cache used by the next operation.
func (s *Service) SetCache(c Cache) {
	s.mu.Lock()
	s.cache = c
	s.mu.Unlock()
}

// Ping checks that the current cache accepts writes.
func (s *Service) Ping() error {
	if err := s.store().Probe(); err != nil {
		return domain.NewError(domain.KindStorage, "ping", "cache not writable", err)
	}
	return nil
}

func (s *Service) store() Cache {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cache
}

func (s *Service) emit(e event.Event) {
	if s.emitter != nil {
		s.emitter.Emit(e)
	}
}

// finish records a completed flow.
func (s *Service) finish(flow string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
		if k, ok := domain.KindOf(err); ok {
			status = string(k)
		}
	}
	metrics.FlowsTotal.WithLabelValues(flow, status).Inc()

	if err != nil {
		s.logger.Debug("flow failed",
			zap.String("flow", flow),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return
	}
	s.logger.Debug("flow completed",
		zap.String("flow", flow),
		zap.Duration("duration", time.Since(start)),
	)
}

// cachedDocument returns a decoded cached artifact. Corrupt or unreadable
// entries count as misses so the caller re-fetches.
func (s *Service) cachedDocument(store Cache, id string, a cache.Artifact) (any, bool) {
	data, err := store.Read(id, a)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			s.logger.Warn("Failed to read cached artifact",
				zap.String("id", id), zap.String("artifact", string(a)), zap.Error(err))
		}
		lookup(a, "miss")
		return nil, false
	}

	doc, err := codec.Decode(data)
	if err != nil {
		s.logger.Warn("Cached artifact is corrupt, fetching again",
			zap.String("id", id), zap.String("artifact", string(a)), zap.Error(err))
		lookup(a, "corrupt")
		return nil, false
	}

	lookup(a, "hit")
	return doc, true
}

func lookup(a cache.Artifact, result string) {
	metrics.CacheLookupsTotal.WithLabelValues(a.Label(), result).Inc()
}

func message(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
