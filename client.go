// Package catalog is a cache-first client for a remote furniture catalog. It
// searches products, loads product documents, and downloads thumbnails and
// binary 3D models into a local cache, reporting every outcome both as a
// return value and as an event to subscribers.
package catalog

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/kailas-cloud/catalog/internal/cache"
	"github.com/kailas-cloud/catalog/internal/config"
	"github.com/kailas-cloud/catalog/internal/domain/product"
	"github.com/kailas-cloud/catalog/internal/events"
	"github.com/kailas-cloud/catalog/internal/metrics"
	"github.com/kailas-cloud/catalog/internal/transport/pool"
	catalogsvc "github.com/kailas-cloud/catalog/internal/usecase/catalog"
)

// Client is the catalog SDK entry point. It is safe for concurrent use.
type Client struct {
	pool   *pool.Pool
	bus    *events.Bus
	svc    *catalogsvc.Service
	logger *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// New creates a Client. Without options it talks to the public catalog with
// region "ie", locale "en" and a cache under ./cache/products.
func New(opts ...Option) (*Client, error) {
	cfg := defaultClientConfig()
	for _, o := range opts {
		o.apply(cfg)
	}

	if !config.ValidCode(cfg.region) {
		return nil, fmt.Errorf("catalog: invalid region %q", cfg.region)
	}
	if !config.ValidCode(cfg.locale) {
		return nil, fmt.Errorf("catalog: invalid locale %q", cfg.locale)
	}

	if cfg.metricsReg != nil {
		if err := metrics.Register(cfg.metricsReg); err != nil {
			return nil, fmt.Errorf("catalog: %w", err)
		}
	}

	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	p := pool.New(pool.Config{
		Size:              cfg.poolSize,
		Timeout:           cfg.timeout,
		UserAgent:         cfg.userAgent,
		PrivilegedHost:    cfg.apiHost,
		PrivilegedHeaders: map[string]string{"X-Client-Id": cfg.clientID},
		HTTPClient:        cfg.httpClient,
		Logger:            cfg.logger.Named("transport"),
	})
	bus := events.New()

	svc := catalogsvc.New(p, store, catalogsvc.Settings{
		Region:         cfg.region,
		Locale:         cfg.locale,
		SearchHost:     cfg.searchHost,
		CatalogHost:    cfg.catalogHost,
		APIHost:        cfg.apiHost,
		SearchPageSize: cfg.pageSize,
		Rewrites:       cfg.rewrites,
	}, bus, cfg.logger)

	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		pool:   p,
		bus:    bus,
		svc:    svc,
		logger: cfg.logger,
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

func openStore(cfg *clientConfig) (*cache.Store, error) {
	if cfg.fs != nil {
		return cache.New(cfg.fs), nil
	}
	store, err := cache.NewLocal(cfg.cacheRoot)
	if err != nil {
		return nil, fmt.Errorf("catalog: open cache %s: %w", cfg.cacheRoot, err)
	}
	return store, nil
}

// Close cancels in-flight requests started with Request* and waits for them.
// Request* calls after Close are ignored. Close may be called more than once.
func (c *Client) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.cancel()
	c.wg.Wait()
}

// Wait blocks until every flow started with Request* has emitted its event.
func (c *Client) Wait() {
	c.wg.Wait()
}

// Subscribe registers l for every flow event and returns its unsubscribe
// function. Listeners run on the goroutine that finished the flow.
func (c *Client) Subscribe(l Listener) func() {
	return c.bus.Subscribe(l)
}

// Events returns a buffered event channel. Events are dropped while the
// buffer is full. Call the returned function to stop delivery.
func (c *Client) Events(size int) (<-chan Event, func()) {
	return c.bus.Channel(size)
}

// Settings returns the endpoint settings the next operation will use.
func (c *Client) Settings() Settings {
	return c.svc.Settings()
}

// SetRegion changes the region for subsequent operations.
// Cached artifacts are keyed by identifier only and are shared across regions.
func (c *Client) SetRegion(region string) error {
	return c.svc.SetRegion(region)
}

// SetLocale changes the locale for subsequent operations.
func (c *Client) SetLocale(locale string) error {
	return c.svc.SetLocale(locale)
}

// SetCacheRoot moves the cache to dir for subsequent operations.
// Existing artifacts are not copied, and a lock held on the previous root
// does not follow.
func (c *Client) SetCacheRoot(dir string) error {
	store, err := cache.NewLocal(dir)
	if err != nil {
		return fmt.Errorf("catalog: open cache %s: %w", dir, err)
	}
	c.svc.SetCache(store)
	return nil
}

// Ping checks that the cache accepts writes.
func (c *Client) Ping(_ context.Context) error {
	return c.svc.Ping()
}

// PoolSize returns the number of transport slots.
func (c *Client) PoolSize() int { return c.pool.Size() }

// BusySlots returns the number of transport slots currently in use.
func (c *Client) BusySlots() int { return c.pool.Busy() }

// Search queries the catalog. Incomplete items are dropped from the result.
func (c *Client) Search(ctx context.Context, query string) ([]SearchItem, error) {
	return c.svc.Search(ctx, query)
}

// Metadata returns the product document for id, from cache when possible.
func (c *Client) Metadata(ctx context.Context, id string) (Metadata, error) {
	return c.svc.Metadata(ctx, id)
}

// Thumbnail returns the local path of the product's thumbnail, downloading it
// from sourceURL on a cache miss.
func (c *Client) Thumbnail(ctx context.Context, id, sourceURL string) (string, error) {
	return c.svc.Thumbnail(ctx, id, sourceURL)
}

// Model returns the local path of the product's binary 3D model.
// A product without a model fails with ErrNoModel.
func (c *Client) Model(ctx context.Context, id string) (string, error) {
	return c.svc.Model(ctx, id)
}

// CheckAvailability reports whether a 3D model exists for id.
func (c *Client) CheckAvailability(ctx context.Context, id string) (bool, error) {
	return c.svc.CheckAvailability(ctx, id)
}

// RequestSearch starts Search in the background. The outcome arrives as a
// SearchCompleted or SearchFailed event.
func (c *Client) RequestSearch(query string) {
	c.run(func(ctx context.Context) { _, _ = c.svc.Search(ctx, query) })
}

// RequestMetadata starts Metadata in the background.
func (c *Client) RequestMetadata(id string) {
	c.run(func(ctx context.Context) { _, _ = c.svc.Metadata(ctx, id) })
}

// RequestThumbnail starts Thumbnail in the background.
func (c *Client) RequestThumbnail(id, sourceURL string) {
	c.run(func(ctx context.Context) { _, _ = c.svc.Thumbnail(ctx, id, sourceURL) })
}

// RequestModel starts Model in the background.
func (c *Client) RequestModel(id string) {
	c.run(func(ctx context.Context) { _, _ = c.svc.Model(ctx, id) })
}

// RequestAvailability starts CheckAvailability in the background.
func (c *Client) RequestAvailability(id string) {
	c.run(func(ctx context.Context) { _, _ = c.svc.CheckAvailability(ctx, id) })
}

func (c *Client) run(flow func(ctx context.Context)) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.logger.Debug("Client closed, request ignored")
		return
	}
	c.wg.Add(1)
	c.mu.Unlock()
	go func() {
		defer c.wg.Done()
		flow(c.ctx)
	}()
}

// IsValidIdentifier reports whether text is an 8-digit product identifier,
// compact or grouped 3-3-2 with ".", "-" or " ".
func IsValidIdentifier(text string) bool { return product.IsValid(text) }

// CompactIdentifier strips separators from text.
func CompactIdentifier(text string) string { return product.Compact(text) }

// FormatIdentifier renders text as "xxx.xxx.xx". Input that does not compact to
// 8 characters is returned unchanged together with ErrFormat.
func FormatIdentifier(text string) (string, error) { return product.Format(text) }
