package catalog

import (
	"context"

	"github.com/kailas-cloud/catalog/internal/cache"
	"github.com/kailas-cloud/catalog/internal/domain/event"
	"github.com/kailas-cloud/catalog/internal/transport/pool"
)

// Transport performs one outbound request on a pooled slot.
type Transport interface {
	Do(ctx context.Context, req pool.Request) ([]byte, error)
}

// Cache stores artifacts by compact identifier.
type Cache interface {
	Exists(id string, a cache.Artifact) bool
	Read(id string, a cache.Artifact) ([]byte, error)
	Write(id string, a cache.Artifact, data []byte) (string, error)
	Path(id string, a cache.Artifact) string
	Probe() error
}

// Emitter receives terminal flow events.
type Emitter interface {
	Emit(e event.Event)
}
