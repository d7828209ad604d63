package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/chmdznr/framer-bandwidth-check/internal/bandwidth"
	"github.com/chmdznr/framer-bandwidth-check/internal/estimate"
	"github.com/chmdznr/framer-bandwidth-check/internal/recommend"
	"github.com/chmdznr/framer-bandwidth-check/internal/scanner"
	"github.com/chmdznr/framer-bandwidth-check/internal/walker"
	"github.com/chmdznr/framer-bandwidth-check/pkg/models"
)

// Config holds all fbcheck configuration
type Config struct {
	Scan        ScanConfig       `mapstructure:"scan"`
	Estimate    EstimateConfig   `mapstructure:"estimate"`
	Policy      recommend.Policy `mapstructure:"policy"`
	Traffic     TrafficConfig    `mapstructure:"traffic"`
	Plans       []bandwidth.Plan `mapstructure:"plans"`
	Storage     StorageConfig    `mapstructure:"storage"`
	Export      ExportConfig     `mapstructure:"export"`
	MetricsAddr string           `mapstructure:"metrics_addr"`
	Debug       bool             `mapstructure:"debug"`
}

// ScanConfig controls traversal
type ScanConfig struct {
	MaxDepth    int      `mapstructure:"max_depth"`
	BatchSize   int      `mapstructure:"batch_size"`
	Workers     int      `mapstructure:"workers"`
	Breakpoints []string `mapstructure:"breakpoints"`
}

// EstimateConfig controls size probes
type EstimateConfig struct {
	ProbeTimeout              time.Duration    `mapstructure:"probe_timeout"`
	ProbeRate                 float64          `mapstructure:"probe_rate"`
	ProbeBurst                int              `mapstructure:"probe_burst"`
	UserAgent                 string           `mapstructure:"user_agent"`
	CacheTTL                  time.Duration    `mapstructure:"cache_ttl"`
	IncludeFramerOptimization bool             `mapstructure:"include_framer_optimization"`
	Fallbacks                 map[string]int64 `mapstructure:"fallbacks"`
}

// TrafficConfig holds the default traffic assumptions
type TrafficConfig struct {
	MonthlyPageviews int64   `mapstructure:"monthly_pageviews"`
	PagesPerVisit    float64 `mapstructure:"pages_per_visit"`
	Breakpoint       string  `mapstructure:"breakpoint"`
}

// StorageConfig locates the local database
type StorageConfig struct {
	DBPath string `mapstructure:"db_path"`
}

// ExportConfig selects where optimized assets are saved
type ExportConfig struct {
	Provider    string `mapstructure:"provider"` // local or s3
	LocalDir    string `mapstructure:"local_dir"`
	S3Endpoint  string `mapstructure:"s3_endpoint"`
	S3AccessKey string `mapstructure:"s3_access_key"`
	S3SecretKey string `mapstructure:"s3_secret_key"`
	S3Bucket    string `mapstructure:"s3_bucket"`
	S3Region    string `mapstructure:"s3_region"`
	S3Folder    string `mapstructure:"s3_folder"`
	S3UseSSL    bool   `mapstructure:"s3_use_ssl"`
}

// Load reads configuration from file, environment and defaults. An empty
// path searches the default locations; a missing default file is not an
// error, a missing explicit file is.
func Load(path string) (*Config, error) {
	if err := loadEnvFile(); err != nil {
		log.Debug().Err(err).Msg("No .env file loaded")
	}

	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("fbcheck")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "fbcheck"))
		}
	}

	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvPrefix("FBCHECK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		log.Debug().Msg("No config file found, using environment variables and defaults")
	} else {
		log.Debug().Str("file", v.ConfigFileUsed()).Msg("Config file loaded")
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// loadEnvFile loads environment variables from the first .env file found
func loadEnvFile() error {
	for _, location := range []string{".env", ".env.local"} {
		if _, err := os.Stat(location); err == nil {
			if err := godotenv.Load(location); err != nil {
				return fmt.Errorf("error loading .env file from %s: %w", location, err)
			}
			log.Debug().Str("file", location).Msg(".env file loaded")
			return nil
		}
	}
	return fmt.Errorf("no .env file found")
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Scan defaults
	wc := walker.DefaultConfig()
	v.SetDefault("scan.max_depth", wc.MaxDepth)
	v.SetDefault("scan.batch_size", wc.BatchSize)
	v.SetDefault("scan.workers", scanner.DefaultConfig().NumWorkers)
	v.SetDefault("scan.breakpoints", []string{"desktop", "tablet", "mobile"})

	// Estimate defaults
	ec := estimate.DefaultConfig()
	v.SetDefault("estimate.probe_timeout", ec.Timeout.String())
	v.SetDefault("estimate.probe_rate", ec.Rate)
	v.SetDefault("estimate.probe_burst", ec.Burst)
	v.SetDefault("estimate.user_agent", ec.UserAgent)
	v.SetDefault("estimate.cache_ttl", ec.CacheTTL.String())
	v.SetDefault("estimate.include_framer_optimization", true)
	fallbacks := make(map[string]int64)
	for kind, n := range ec.Fallbacks {
		fallbacks[string(kind)] = n
	}
	v.SetDefault("estimate.fallbacks", fallbacks)

	// Policy defaults
	p := recommend.DefaultPolicy()
	v.SetDefault("policy.pixel_density", p.PixelDensity)
	v.SetDefault("policy.max_width", p.MaxWidth)
	v.SetDefault("policy.oversize_ratio", p.OversizeRatio)
	v.SetDefault("policy.format_min_bytes", p.FormatMinBytes)
	v.SetDefault("policy.format_savings", p.FormatSavings)
	v.SetDefault("policy.compression_ceiling", p.CompressionCeiling)
	v.SetDefault("policy.compression_savings_ratio", p.CompressionSavingsRatio)
	v.SetDefault("policy.high_savings", p.HighSavings)
	v.SetDefault("policy.high_ratio", p.HighRatio)
	v.SetDefault("policy.medium_savings", p.MediumSavings)
	v.SetDefault("policy.medium_ratio", p.MediumRatio)
	v.SetDefault("policy.min_savings", p.MinSavings)

	// Traffic defaults
	v.SetDefault("traffic.monthly_pageviews", 10000)
	v.SetDefault("traffic.pages_per_visit", 2.0)
	v.SetDefault("traffic.breakpoint", "desktop")

	plans := make([]map[string]any, 0, 4)
	for _, plan := range bandwidth.DefaultPlans() {
		plans = append(plans, map[string]any{"name": plan.Name, "limit_gb": plan.LimitGB})
	}
	v.SetDefault("plans", plans)

	// Storage defaults
	v.SetDefault("storage.db_path", "fbcheck.db")

	// Export defaults
	v.SetDefault("export.provider", "local")
	v.SetDefault("export.local_dir", "./optimized")
	v.SetDefault("export.s3_endpoint", "")
	v.SetDefault("export.s3_access_key", "")
	v.SetDefault("export.s3_secret_key", "")
	v.SetDefault("export.s3_bucket", "")
	v.SetDefault("export.s3_region", "us-east-1")
	v.SetDefault("export.s3_folder", "")
	v.SetDefault("export.s3_use_ssl", true)

	v.SetDefault("metrics_addr", "")
	v.SetDefault("debug", false)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Scan.MaxDepth <= 0 {
		return fmt.Errorf("scan.max_depth must be positive")
	}
	if c.Scan.BatchSize <= 0 {
		return fmt.Errorf("scan.batch_size must be positive")
	}
	if c.Scan.Workers <= 0 {
		return fmt.Errorf("scan.workers must be positive")
	}
	if _, err := c.Breakpoints(); err != nil {
		return err
	}
	if _, err := models.ParseBreakpoint(c.Traffic.Breakpoint); err != nil {
		return fmt.Errorf("traffic.breakpoint: %w", err)
	}
	if err := c.Assumptions().Validate(); err != nil {
		return err
	}
	if c.Estimate.ProbeTimeout <= 0 {
		return fmt.Errorf("estimate.probe_timeout must be positive")
	}
	if c.Estimate.ProbeRate < 0 {
		return fmt.Errorf("estimate.probe_rate cannot be negative")
	}

	if c.Export.Provider != "local" && c.Export.Provider != "s3" {
		return fmt.Errorf("export provider must be 'local' or 's3'")
	}
	if c.Export.Provider == "s3" {
		if c.Export.S3Endpoint == "" || c.Export.S3AccessKey == "" ||
			c.Export.S3SecretKey == "" || c.Export.S3Bucket == "" {
			return fmt.Errorf("S3 export configuration is incomplete")
		}
	}
	return nil
}

// Breakpoints returns the configured scan breakpoints
func (c *Config) Breakpoints() ([]models.Breakpoint, error) {
	if len(c.Scan.Breakpoints) == 0 {
		return nil, fmt.Errorf("scan.breakpoints cannot be empty")
	}
	out := make([]models.Breakpoint, 0, len(c.Scan.Breakpoints))
	seen := make(map[models.Breakpoint]bool)
	for _, s := range c.Scan.Breakpoints {
		bp, err := models.ParseBreakpoint(s)
		if err != nil {
			return nil, fmt.Errorf("scan.breakpoints: %w", err)
		}
		if !seen[bp] {
			seen[bp] = true
			out = append(out, bp)
		}
	}
	return out, nil
}

// TrafficBreakpoint returns the breakpoint used for bandwidth projection
func (c *Config) TrafficBreakpoint() models.Breakpoint {
	bp, err := models.ParseBreakpoint(c.Traffic.Breakpoint)
	if err != nil {
		return models.BreakpointDesktop
	}
	return bp
}

// Assumptions returns the default traffic assumptions
func (c *Config) Assumptions() bandwidth.Assumptions {
	return bandwidth.Assumptions{
		MonthlyPageviews:     c.Traffic.MonthlyPageviews,
		AveragePagesPerVisit: c.Traffic.PagesPerVisit,
	}
}

// EstimatorConfig builds the estimator configuration
func (c *Config) EstimatorConfig() estimate.Config {
	ec := estimate.DefaultConfig()
	ec.Timeout = c.Estimate.ProbeTimeout
	ec.Rate = c.Estimate.ProbeRate
	ec.Burst = c.Estimate.ProbeBurst
	ec.UserAgent = c.Estimate.UserAgent
	ec.CacheTTL = c.Estimate.CacheTTL
	for kind, n := range c.Estimate.Fallbacks {
		ec.Fallbacks[models.AssetKind(kind)] = n
	}
	return ec
}

// ScannerConfig builds the scanner configuration. includeOptimization comes
// from the settings store and overrides the file value when set.
func (c *Config) ScannerConfig(includeOptimization *bool) scanner.Config {
	sc := scanner.DefaultConfig()
	sc.Breakpoints, _ = c.Breakpoints()
	sc.Walker.MaxDepth = c.Scan.MaxDepth
	sc.Walker.BatchSize = c.Scan.BatchSize
	sc.NumWorkers = c.Scan.Workers
	sc.Policy = c.Policy
	sc.Settings = estimate.Settings{IncludeFramerOptimization: c.Estimate.IncludeFramerOptimization}
	if includeOptimization != nil {
		sc.Settings.IncludeFramerOptimization = *includeOptimization
	}
	return sc
}
