package cmd

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rohmanhakim/product-crawler/internal/build"
	"github.com/rohmanhakim/product-crawler/internal/config"
	"github.com/rohmanhakim/product-crawler/internal/engine"
	"github.com/rohmanhakim/product-crawler/internal/metadata"
)

var (
	cfgFile             string
	seedURLs            []string
	maxDepth            int
	maxWorkers          int
	productThreshold    int
	maxChunkBytes       int64
	outputDir           string
	userAgent           string
	timeout             time.Duration
	dryRun              bool
)

func parseSeedURLs(urlStrings []string) ([]url.URL, error) {
	if len(urlStrings) == 0 {
		return nil, fmt.Errorf("seed URLs cannot be empty")
	}

	var urls []url.URL
	for _, urlStr := range urlStrings {
		parsedURL, err := url.Parse(urlStr)
		if err != nil {
			return nil, fmt.Errorf("error parsing seed URL %s: %w", urlStr, err)
		}
		urls = append(urls, *parsedURL)
	}
	return urls, nil
}

var rootCmd = &cobra.Command{
	Use:     "product-crawler",
	Short:   "A multi-domain e-commerce product-URL crawler.",
	Version: build.FullVersion(),
	Long: `product-crawler performs a bounded, same-origin traversal of one or more
e-commerce seed sites, classifies discovered links against a set of product
URL patterns, and emits the classified product URLs into per-domain,
size-chunked output files alongside operational summaries.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(seedURLs) == 0 {
			return fmt.Errorf("--seed-url is required: provide at least one seed URL to start crawling")
		}

		parsedURLs, err := parseSeedURLs(seedURLs)
		if err != nil {
			return err
		}

		cfg, err := InitConfigWithError(parsedURLs)
		if err != nil {
			return err
		}

		fmt.Printf("Seed URLs: %s\n", strings.Join(seedURLs, ", "))
		fmt.Printf("Max Depth: %d\n", cfg.MaxDepth())
		fmt.Printf("Max Workers: %d\n", cfg.MaxWorkers())
		fmt.Printf("Product URL Threshold: %d\n", cfg.ProductURLThreshold())
		fmt.Printf("Max Chunk Bytes: %d\n", cfg.MaxChunkBytes())
		fmt.Printf("User Agent: %s\n", cfg.UserAgent())
		fmt.Printf("Output Directory: %s\n", cfg.OutputDir())
		fmt.Printf("Dry Run: %t\n", cfg.DryRun())

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		sink := metadata.NewRecorder()
		e := engine.New(cfg, sink)
		return e.Run(ctx)
	},
}

// Execute adds all child commands to the root command and sets flags
// appropriately. Called once from main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config-file", "", "config file path (e.g., /home/myuser/config.json)")
	rootCmd.PersistentFlags().StringArrayVar(&seedURLs, "seed-url", []string{}, "one or more starting URLs (can be repeated)")
	rootCmd.PersistentFlags().IntVar(&maxDepth, "max-depth", 0, "maximum link depth from seed URL (0 crawls only the seed URLs)")
	rootCmd.PersistentFlags().IntVar(&maxWorkers, "max-workers", 0, "number of concurrent crawl workers")
	rootCmd.PersistentFlags().IntVar(&productThreshold, "product-threshold", 0, "product URLs accumulated before a domain's store flushes")
	rootCmd.PersistentFlags().Int64Var(&maxChunkBytes, "max-chunk-bytes", 0, "maximum size in bytes of a single output chunk file")
	rootCmd.PersistentFlags().StringVar(&outputDir, "output-dir", "", "root output directory for crawl results")
	rootCmd.PersistentFlags().StringVar(&userAgent, "user-agent", "", "user agent string for HTTP and render requests")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "HTTP-tier fetch timeout")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "crawl without writing output")
}

// InitConfig reads the config file or CLI flags, exiting the process on error.
func InitConfig(seedUrls []url.URL) config.Config {
	cfg, err := InitConfigWithError(seedUrls)
	if err != nil {
		fmt.Printf("Error: %s\n", err)
		os.Exit(1)
	}
	return cfg
}

// InitConfigWithError builds a Config from --config-file if set, otherwise
// from individual CLI flags layered over the package defaults.
func InitConfigWithError(seedUrls []url.URL) (config.Config, error) {
	if len(seedUrls) == 0 {
		return config.Config{}, fmt.Errorf("%w: seedUrls cannot be empty", config.ErrInvalidConfig)
	}

	if cfgFile != "" {
		cfg, err := config.WithConfigFile(cfgFile)
		if err != nil {
			return cfg, fmt.Errorf("error initializing config from file: %w", err)
		}
		return cfg, nil
	}

	configBuilder := config.WithDefault(seedUrls)

	if maxDepth > 0 {
		configBuilder = configBuilder.WithMaxDepth(maxDepth)
	}
	if maxWorkers > 0 {
		configBuilder = configBuilder.WithMaxWorkers(maxWorkers)
	}
	if productThreshold > 0 {
		configBuilder = configBuilder.WithProductURLThreshold(productThreshold)
	}
	if maxChunkBytes > 0 {
		configBuilder = configBuilder.WithMaxChunkBytes(maxChunkBytes)
	}
	if outputDir != "" {
		configBuilder = configBuilder.WithOutputDir(outputDir)
	}
	if userAgent != "" {
		configBuilder = configBuilder.WithUserAgent(userAgent)
	}
	if timeout > 0 {
		configBuilder = configBuilder.WithTimeout(timeout)
	}
	if dryRun {
		configBuilder = configBuilder.WithDryRun(dryRun)
	}

	return configBuilder.Build()
}

func ResetFlags() {
	cfgFile = ""
	seedURLs = []string{}
	maxDepth = 0
	maxWorkers = 0
	productThreshold = 0
	maxChunkBytes = 0
	outputDir = ""
	userAgent = ""
	timeout = 0
	dryRun = false
}

// Test helper functions to set flag values from tests.

func SetConfigFileForTest(path string) {
	cfgFile = path
}

func SetSeedURLsForTest(urls []string) {
	seedURLs = urls
}

func SetMaxDepthForTest(depth int) {
	maxDepth = depth
}

func SetMaxWorkersForTest(workers int) {
	maxWorkers = workers
}

func SetProductThresholdForTest(threshold int) {
	productThreshold = threshold
}

func SetMaxChunkBytesForTest(maxBytes int64) {
	maxChunkBytes = maxBytes
}

func SetOutputDirForTest(dir string) {
	outputDir = dir
}

func SetUserAgentForTest(agent string) {
	userAgent = agent
}

func SetTimeoutForTest(t time.Duration) {
	timeout = t
}

func SetDryRunForTest(dry bool) {
	dryRun = dry
}
