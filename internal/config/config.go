package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"time"
)

type Config struct {
	//===============
	//  Crawl scope
	//===============
	// Initial pages to traverse outward from, one per domain.
	seedURLs []url.URL

	//===============
	// Limits
	//===============
	// Maximum number of hyperlink hops from a seed (root) URL. Zero crawls
	// only the seeds themselves; there is no "unbounded" sentinel value —
	// operators wanting an effectively unbounded crawl set this explicitly
	// high (see Open Question 5 in DESIGN.md).
	maxDepth int
	// Concurrency bound: the HTTP-tier semaphore is sized at 2x this, the
	// render-tier semaphore at 1x. It does not cap the number of goroutines.
	maxWorkers int
	// Number of accumulated product URLs for a domain that triggers a
	// ProductStore flush to the chunked writer.
	productURLThreshold int
	// Maximum size in bytes of a single chunk file before rollover.
	maxChunkBytes int64

	//===============
	// Fetch
	//===============
	// HTTP-tier request timeout.
	timeout time.Duration
	// Render-tier navigation timeout.
	renderNavTimeout time.Duration
	// Render-tier wait for <body> to be present.
	renderBodyWaitTimeout time.Duration
	// Render-tier per-iteration scroll-settle sleep.
	renderSettleSleep time.Duration
	// User agent sent on every outbound HTTP and render request.
	userAgent string

	//===============
	// Output
	//===============
	// Root directory under which per-domain output directories are created.
	outputDir string
	// Whether the crawl simulates its work without writing any output files.
	dryRun bool
}

type configDTO struct {
	SeedURLs              []url.URL     `json:"seedUrls"`
	MaxDepth              int           `json:"maxDepth,omitempty"`
	MaxWorkers            int           `json:"maxWorkers,omitempty"`
	ProductURLThreshold   int           `json:"productUrlThreshold,omitempty"`
	MaxChunkBytes         int64         `json:"maxChunkBytes,omitempty"`
	Timeout               time.Duration `json:"timeout,omitempty"`
	RenderNavTimeout      time.Duration `json:"renderNavTimeout,omitempty"`
	RenderBodyWaitTimeout time.Duration `json:"renderBodyWaitTimeout,omitempty"`
	RenderSettleSleep     time.Duration `json:"renderSettleSleep,omitempty"`
	UserAgent             string        `json:"userAgent,omitempty"`
	OutputDir             string        `json:"outputDir,omitempty"`
	DryRun                bool          `json:"dryRun,omitempty"`
}

func newConfigFromDTO(dto configDTO) (Config, error) {
	cfg, err := WithDefault(dto.SeedURLs).Build()
	if err != nil {
		return Config{}, err
	}

	if dto.MaxDepth != 0 {
		cfg.maxDepth = dto.MaxDepth
	}
	if dto.MaxWorkers != 0 {
		cfg.maxWorkers = dto.MaxWorkers
	}
	if dto.ProductURLThreshold != 0 {
		cfg.productURLThreshold = dto.ProductURLThreshold
	}
	if dto.MaxChunkBytes != 0 {
		cfg.maxChunkBytes = dto.MaxChunkBytes
	}
	if dto.Timeout != 0 {
		cfg.timeout = dto.Timeout
	}
	if dto.RenderNavTimeout != 0 {
		cfg.renderNavTimeout = dto.RenderNavTimeout
	}
	if dto.RenderBodyWaitTimeout != 0 {
		cfg.renderBodyWaitTimeout = dto.RenderBodyWaitTimeout
	}
	if dto.RenderSettleSleep != 0 {
		cfg.renderSettleSleep = dto.RenderSettleSleep
	}
	if dto.UserAgent != "" {
		cfg.userAgent = dto.UserAgent
	}
	if dto.OutputDir != "" {
		cfg.outputDir = dto.OutputDir
	}
	cfg.dryRun = dto.DryRun

	return cfg, nil
}

func WithConfigFile(path string) (Config, error) {
	_, err := os.Stat(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrFileDoesNotExist, err.Error())
	}
	configContent, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrReadConfigFail, err.Error())
	}
	cfgDTO := configDTO{}

	if err := json.Unmarshal(configContent, &cfgDTO); err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrConfigParsingFail, err.Error())
	}

	return newConfigFromDTO(cfgDTO)
}

// WithDefault creates a new Config with the provided seed URLs and default
// values for all other fields. seedURLs is mandatory and must not be empty —
// Build returns an error if it is.
func WithDefault(seedURLs []url.URL) *Config {
	return &Config{
		seedURLs:              seedURLs,
		maxDepth:               0,
		maxWorkers:             10,
		productURLThreshold:    10000,
		maxChunkBytes:          5 * 1024 * 1024,
		timeout:                30 * time.Second,
		renderNavTimeout:       30 * time.Second,
		renderBodyWaitTimeout:  10 * time.Second,
		renderSettleSleep:      2 * time.Second,
		userAgent:              "CustomWebCrawler/1.0",
		outputDir:              "final",
		dryRun:                 false,
	}
}

func (c *Config) WithSeedUrls(urls []url.URL) *Config {
	c.seedURLs = urls
	return c
}

func (c *Config) WithMaxDepth(depth int) *Config {
	c.maxDepth = depth
	return c
}

func (c *Config) WithMaxWorkers(workers int) *Config {
	c.maxWorkers = workers
	return c
}

func (c *Config) WithProductURLThreshold(threshold int) *Config {
	c.productURLThreshold = threshold
	return c
}

func (c *Config) WithMaxChunkBytes(maxBytes int64) *Config {
	c.maxChunkBytes = maxBytes
	return c
}

func (c *Config) WithTimeout(timeout time.Duration) *Config {
	c.timeout = timeout
	return c
}

func (c *Config) WithRenderNavTimeout(timeout time.Duration) *Config {
	c.renderNavTimeout = timeout
	return c
}

func (c *Config) WithRenderBodyWaitTimeout(timeout time.Duration) *Config {
	c.renderBodyWaitTimeout = timeout
	return c
}

func (c *Config) WithRenderSettleSleep(sleep time.Duration) *Config {
	c.renderSettleSleep = sleep
	return c
}

func (c *Config) WithUserAgent(agent string) *Config {
	c.userAgent = agent
	return c
}

func (c *Config) WithOutputDir(outputDir string) *Config {
	c.outputDir = outputDir
	return c
}

func (c *Config) WithDryRun(dryRun bool) *Config {
	c.dryRun = dryRun
	return c
}

func (c *Config) Build() (Config, error) {
	if len(c.seedURLs) == 0 {
		return Config{}, fmt.Errorf("%w: seedUrls cannot be empty", ErrInvalidConfig)
	}
	if c.maxWorkers <= 0 {
		return Config{}, fmt.Errorf("%w: maxWorkers must be positive", ErrInvalidConfig)
	}
	if c.maxChunkBytes <= 0 {
		return Config{}, fmt.Errorf("%w: maxChunkBytes must be positive", ErrInvalidConfig)
	}

	return *c, nil
}

func (c Config) SeedURLs() []url.URL {
	urls := make([]url.URL, len(c.seedURLs))
	copy(urls, c.seedURLs)
	return urls
}

func (c Config) MaxDepth() int {
	return c.maxDepth
}

func (c Config) MaxWorkers() int {
	return c.maxWorkers
}

func (c Config) ProductURLThreshold() int {
	return c.productURLThreshold
}

func (c Config) MaxChunkBytes() int64 {
	return c.maxChunkBytes
}

func (c Config) Timeout() time.Duration {
	return c.timeout
}

func (c Config) RenderNavTimeout() time.Duration {
	return c.renderNavTimeout
}

func (c Config) RenderBodyWaitTimeout() time.Duration {
	return c.renderBodyWaitTimeout
}

func (c Config) RenderSettleSleep() time.Duration {
	return c.renderSettleSleep
}

func (c Config) UserAgent() string {
	return c.userAgent
}

func (c Config) OutputDir() string {
	return c.outputDir
}

func (c Config) DryRun() bool {
	return c.dryRun
}
