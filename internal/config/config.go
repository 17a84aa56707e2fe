package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the catalog client configuration.
type Config struct {
	Catalog   CatalogConfig   `yaml:"catalog"`
	Transport TransportConfig `yaml:"transport"`
	Cache     CacheConfig     `yaml:"cache"`
	HTTP      HTTPConfig      `yaml:"http"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// CatalogConfig describes the remote catalog service.
type CatalogConfig struct {
	Region         string        `yaml:"region"`
	Locale         string        `yaml:"locale"`
	SearchHost     string        `yaml:"search_host"`
	CatalogHost    string        `yaml:"catalog_host"`
	APIHost        string        `yaml:"api_host"`
	ClientID       string        `yaml:"client_id"`
	UserAgent      string        `yaml:"user_agent"`
	SearchPageSize int           `yaml:"search_page_size"`
	ModelRewrites  []RewriteRule `yaml:"model_rewrites"`
}

// RewriteRule replaces a path fragment in model URLs.
type RewriteRule struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// TransportConfig holds outbound HTTP settings.
type TransportConfig struct {
	PoolSize   int `yaml:"pool_size"`
	TimeoutSec int `yaml:"timeout_sec"`
}

// CacheConfig holds the artifact cache settings.
type CacheConfig struct {
	Root string `yaml:"root"`
}

// HTTPConfig holds the local API server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
	// APIKeys enables bearer authentication on the local API when non-empty.
	APIKeys []string `yaml:"api_keys"`
}

// Default catalog endpoints and identity.
const (
	DefaultRegion         = "ie"
	DefaultLocale         = "en"
	DefaultSearchHost     = "https://sik.search.blue.cdtapps.com"
	DefaultCatalogHost    = "https://www.ikea.com"
	DefaultAPIHost        = "https://web-api.ikea.com"
	DefaultClientID       = "4863e7d2-1428-4324-890b-ae5dede24fc6"
	DefaultUserAgent      = "catalog-client/1.0"
	DefaultSearchPageSize = 24
	DefaultCacheRoot      = "cache/products"
)

// DefaultModelRewrites maps compressed model URLs to their uncompressed variant.
func DefaultModelRewrites() []RewriteRule {
	return []RewriteRule{
		{From: "/glb_draco/", To: "/glb/"},
		{From: "_draco.glb", To: ".glb"},
	}
}

// Default returns a configuration with every default applied.
func Default() Config {
	var cfg Config
	cfg.ApplyDefaults()
	return cfg
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
// A missing file is not an error: defaults apply.
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from path.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.Catalog.Region == "" {
		c.Catalog.Region = DefaultRegion
	}
	if c.Catalog.Locale == "" {
		c.Catalog.Locale = DefaultLocale
	}
	if c.Catalog.SearchHost == "" {
		c.Catalog.SearchHost = DefaultSearchHost
	}
	if c.Catalog.CatalogHost == "" {
		c.Catalog.CatalogHost = DefaultCatalogHost
	}
	if c.Catalog.APIHost == "" {
		c.Catalog.APIHost = DefaultAPIHost
	}
	if c.Catalog.ClientID == "" {
		c.Catalog.ClientID = DefaultClientID
	}
	if c.Catalog.UserAgent == "" {
		c.Catalog.UserAgent = DefaultUserAgent
	}
	if c.Catalog.SearchPageSize <= 0 {
		c.Catalog.SearchPageSize = DefaultSearchPageSize
	}
	if c.Catalog.ModelRewrites == nil {
		c.Catalog.ModelRewrites = DefaultModelRewrites()
	}
	if c.Transport.PoolSize <= 0 {
		c.Transport.PoolSize = 4
	}
	if c.Transport.TimeoutSec <= 0 {
		c.Transport.TimeoutSec = 30
	}
	if c.Cache.Root == "" {
		c.Cache.Root = DefaultCacheRoot
	}
	if c.HTTP.Port <= 0 {
		c.HTTP.Port = 8089
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 120
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
}

var codeRegex = regexp.MustCompile(`^[a-z]{2}$`)

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if !codeRegex.MatchString(c.Catalog.Region) {
		return fmt.Errorf("catalog.region must be a two-letter lowercase code, got %q", c.Catalog.Region)
	}
	if !codeRegex.MatchString(c.Catalog.Locale) {
		return fmt.Errorf("catalog.locale must be a two-letter lowercase code, got %q", c.Catalog.Locale)
	}
	for name, host := range map[string]string{
		"catalog.search_host":  c.Catalog.SearchHost,
		"catalog.catalog_host": c.Catalog.CatalogHost,
		"catalog.api_host":     c.Catalog.APIHost,
	} {
		u, err := url.Parse(host)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%s must be an absolute http(s) URL, got %q", name, host)
		}
	}
	for i, r := range c.Catalog.ModelRewrites {
		if r.From == "" {
			return fmt.Errorf("catalog.model_rewrites[%d].from is required", i)
		}
	}
	if c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	return nil
}

// ValidCode reports whether s is a usable region or locale code.
func ValidCode(s string) bool {
	return codeRegex.MatchString(s)
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
