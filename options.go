package catalog

import (
	"net/http"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/catalog/internal/config"
	"github.com/kailas-cloud/catalog/internal/transport/pool"
	catalogsvc "github.com/kailas-cloud/catalog/internal/usecase/catalog"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	region string
	locale string

	searchHost  string
	catalogHost string
	apiHost     string
	clientID    string
	userAgent   string
	pageSize    int
	rewrites    catalogsvc.Rewriter

	cacheRoot string
	fs        billy.Filesystem

	poolSize   int
	timeout    time.Duration
	httpClient *http.Client

	logger     *zap.Logger
	metricsReg prometheus.Registerer
}

func defaultClientConfig() *clientConfig {
	rewrites := make(catalogsvc.Rewriter, 0, 2)
	for _, r := range config.DefaultModelRewrites() {
		rewrites = append(rewrites, catalogsvc.Rule{From: r.From, To: r.To})
	}
	return &clientConfig{
		region:      config.DefaultRegion,
		locale:      config.DefaultLocale,
		searchHost:  config.DefaultSearchHost,
		catalogHost: config.DefaultCatalogHost,
		apiHost:     config.DefaultAPIHost,
		clientID:    config.DefaultClientID,
		userAgent:   config.DefaultUserAgent,
		pageSize:    config.DefaultSearchPageSize,
		rewrites:    rewrites,
		cacheRoot:   config.DefaultCacheRoot,
		poolSize:    pool.DefaultSize,
		timeout:     pool.DefaultTimeout,
		logger:      zap.NewNop(),
	}
}

// WithConfig applies a loaded configuration file. Later options override it.
func WithConfig(cfg Config) Option {
	return optionFunc(func(c *clientConfig) {
		cat := cfg.Catalog
		c.region = cat.Region
		c.locale = cat.Locale
		c.searchHost = cat.SearchHost
		c.catalogHost = cat.CatalogHost
		c.apiHost = cat.APIHost
		c.clientID = cat.ClientID
		c.userAgent = cat.UserAgent
		c.pageSize = cat.SearchPageSize
		c.rewrites = nil
		for _, r := range cat.ModelRewrites {
			c.rewrites = append(c.rewrites, catalogsvc.Rule{From: r.From, To: r.To})
		}
		c.cacheRoot = cfg.Cache.Root
		c.poolSize = cfg.Transport.PoolSize
		c.timeout = time.Duration(cfg.Transport.TimeoutSec) * time.Second
	})
}

// WithRegion sets the two-letter region code. Default: "ie".
func WithRegion(region string) Option {
	return optionFunc(func(c *clientConfig) {
		c.region = region
	})
}

// WithLocale sets the two-letter locale code. Default: "en".
func WithLocale(locale string) Option {
	return optionFunc(func(c *clientConfig) {
		c.locale = locale
	})
}

// WithCacheRoot sets the local cache directory.
func WithCacheRoot(dir string) Option {
	return optionFunc(func(c *clientConfig) {
		c.cacheRoot = dir
		c.fs = nil
	})
}

// WithFilesystem stores artifacts on fs instead of the local disk.
// Useful with memfs in tests.
func WithFilesystem(fs billy.Filesystem) Option {
	return optionFunc(func(c *clientConfig) {
		c.fs = fs
	})
}

// WithPoolSize sets the number of concurrent outbound requests. Default: 4.
func WithPoolSize(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.poolSize = n
	})
}

// WithTimeout sets the per-request timeout. Default: 30s.
func WithTimeout(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.timeout = d
	})
}

// WithHTTPClient replaces the HTTP client used for outbound requests.
func WithHTTPClient(hc *http.Client) Option {
	return optionFunc(func(c *clientConfig) {
		c.httpClient = hc
	})
}

// WithEndpoints overrides the search, product document and model API hosts.
// Empty values keep the current host.
func WithEndpoints(searchHost, catalogHost, apiHost string) Option {
	return optionFunc(func(c *clientConfig) {
		if searchHost != "" {
			c.searchHost = searchHost
		}
		if catalogHost != "" {
			c.catalogHost = catalogHost
		}
		if apiHost != "" {
			c.apiHost = apiHost
		}
	})
}

// WithClientID sets the X-Client-Id value sent to the model API host only.
func WithClientID(id string) Option {
	return optionFunc(func(c *clientConfig) {
		c.clientID = id
	})
}

// WithUserAgent sets the User-Agent sent on every request.
func WithUserAgent(ua string) Option {
	return optionFunc(func(c *clientConfig) {
		c.userAgent = ua
	})
}

// WithModelRewrites replaces the model URL rewrite rules.
func WithModelRewrites(rules ...RewriteRule) Option {
	return optionFunc(func(c *clientConfig) {
		c.rewrites = append(catalogsvc.Rewriter(nil), rules...)
	})
}

// WithLogger enables structured logging. Pass nil to disable (default).
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		if l == nil {
			l = zap.NewNop()
		}
		c.logger = l
	})
}

// WithPrometheus registers client metrics (transport, pool, cache, flows)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
