package catalog

import (
	"github.com/kailas-cloud/catalog/internal/config"
	"github.com/kailas-cloud/catalog/internal/domain/event"
	"github.com/kailas-cloud/catalog/internal/domain/product"
	"github.com/kailas-cloud/catalog/internal/events"
	catalogsvc "github.com/kailas-cloud/catalog/internal/usecase/catalog"
)

// Results.
type (
	// SearchItem is one complete search result.
	SearchItem = product.SearchItem
	// Metadata is a product document and whether it came from the cache.
	Metadata = product.Metadata
	// Identifier is a compact 8-digit product identifier.
	Identifier = product.Identifier
)

// Settings are the endpoint parameters the next operation will use.
type Settings = catalogsvc.Settings

// RewriteRule replaces every occurrence of From with To in model URLs.
type RewriteRule = catalogsvc.Rule

// Config is the file-based configuration accepted by WithConfig.
type Config = config.Config

// LoadConfig reads config/<env>.yaml, applying defaults when it is missing.
func LoadConfig(env string) (Config, error) {
	return config.Load(env)
}

// Events.
type (
	Event               = event.Event
	EventType           = event.Type
	Listener            = events.Listener
	SearchCompleted     = event.SearchCompleted
	SearchFailed        = event.SearchFailed
	MetadataLoaded      = event.MetadataLoaded
	MetadataFailed      = event.MetadataFailed
	ThumbnailReady      = event.ThumbnailReady
	ThumbnailFailed     = event.ThumbnailFailed
	ModelReady          = event.ModelReady
	ModelFailed         = event.ModelFailed
	AvailabilityChecked = event.AvailabilityChecked
)

// Event types.
const (
	EventSearchCompleted     = event.TypeSearchCompleted
	EventSearchFailed        = event.TypeSearchFailed
	EventMetadataLoaded      = event.TypeMetadataLoaded
	EventMetadataFailed      = event.TypeMetadataFailed
	EventThumbnailReady      = event.TypeThumbnailReady
	EventThumbnailFailed     = event.TypeThumbnailFailed
	EventModelReady          = event.TypeModelReady
	EventModelFailed         = event.TypeModelFailed
	EventAvailabilityChecked = event.TypeAvailabilityChecked
)
