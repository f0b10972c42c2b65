// Package config loads runtime configuration and the static region registry.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Regions    RegionsConfig    `yaml:"regions" mapstructure:"regions"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Overpass   OverpassConfig   `yaml:"overpass" mapstructure:"overpass"`
	Price      PriceConfig      `yaml:"price" mapstructure:"price"`
	Snapshot   SnapshotConfig   `yaml:"snapshot" mapstructure:"snapshot"`
	Satellite  SatelliteConfig  `yaml:"satellite" mapstructure:"satellite"`
	Confidence ConfidenceConfig `yaml:"confidence" mapstructure:"confidence"`
	Score      ScoreConfig      `yaml:"score" mapstructure:"score"`
	Batch      BatchConfig      `yaml:"batch" mapstructure:"batch"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Report     ReportConfig     `yaml:"report" mapstructure:"report"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures run persistence.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // sqlite | postgres
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// RegionsConfig points at the static region registry file.
type RegionsConfig struct {
	File string `yaml:"file" mapstructure:"file"`
}

// CacheConfig configures the external-data cache.
type CacheConfig struct {
	Path    string        `yaml:"path" mapstructure:"path"`
	TTL     time.Duration `yaml:"ttl" mapstructure:"ttl"`
	Version int           `yaml:"version" mapstructure:"version"`
}

// OverpassConfig configures the OSM feature provider.
type OverpassConfig struct {
	Endpoint    string        `yaml:"endpoint" mapstructure:"endpoint"`
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxAttempts int           `yaml:"max_attempts" mapstructure:"max_attempts"`
}

// PriceConfig configures the market price provider.
type PriceConfig struct {
	BaseURL     string        `yaml:"base_url" mapstructure:"base_url"`
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxAttempts int           `yaml:"max_attempts" mapstructure:"max_attempts"`
	RatePerSec  float64       `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// SnapshotConfig configures the spectral snapshot provider.
type SnapshotConfig struct {
	BaseURL    string        `yaml:"base_url" mapstructure:"base_url"`
	Timeout    time.Duration `yaml:"timeout" mapstructure:"timeout"`
	WindowDays int           `yaml:"window_days" mapstructure:"window_days"`
}

// SatelliteConfig tunes the change classifier.
type SatelliteConfig struct {
	VegetationLossThreshold float64 `yaml:"vegetation_loss_threshold" mapstructure:"vegetation_loss_threshold"`
	BuiltUpGainThreshold    float64 `yaml:"built_up_gain_threshold" mapstructure:"built_up_gain_threshold"`
	BareSoilGainThreshold   float64 `yaml:"bare_soil_gain_threshold" mapstructure:"bare_soil_gain_threshold"`
	RoadBuiltUpThreshold    float64 `yaml:"road_built_up_threshold" mapstructure:"road_built_up_threshold"`
	RoadVegetationThreshold float64 `yaml:"road_vegetation_threshold" mapstructure:"road_vegetation_threshold"`
	VelocityBonusRatio      float64 `yaml:"velocity_bonus_ratio" mapstructure:"velocity_bonus_ratio"`
}

// ConfidenceConfig tunes the confidence aggregator. The curve exponent and
// breakpoint were chosen empirically; they are configuration, not law.
type ConfidenceConfig struct {
	SatelliteWeight  float64 `yaml:"satellite_weight" mapstructure:"satellite_weight"`
	InfraWeight      float64 `yaml:"infra_weight" mapstructure:"infra_weight"`
	MarketWeight     float64 `yaml:"market_weight" mapstructure:"market_weight"`
	LowThreshold     float64 `yaml:"low_threshold" mapstructure:"low_threshold"`
	LowPenalty       float64 `yaml:"low_penalty" mapstructure:"low_penalty"`
	CurveBreakpoint  float64 `yaml:"curve_breakpoint" mapstructure:"curve_breakpoint"`
	CurveExponent    float64 `yaml:"curve_exponent" mapstructure:"curve_exponent"`
	LiveFeatureBump  float64 `yaml:"live_feature_bump" mapstructure:"live_feature_bump"`
	LiveFeatureCount int     `yaml:"live_feature_count" mapstructure:"live_feature_count"`
}

// ScoreConfig holds recommendation thresholds.
type ScoreConfig struct {
	BuyThreshold   float64 `yaml:"buy_threshold" mapstructure:"buy_threshold"`
	WatchThreshold float64 `yaml:"watch_threshold" mapstructure:"watch_threshold"`
}

// BatchConfig configures concurrent region processing.
type BatchConfig struct {
	MaxConcurrentRegions int `yaml:"max_concurrent_regions" mapstructure:"max_concurrent_regions"`
}

// ServerConfig configures the introspection server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// ReportConfig configures report output.
type ReportConfig struct {
	OutputDir string `yaml:"output_dir" mapstructure:"output_dir"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("CLOUDCLEARING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "cloudclearing.db")
	v.SetDefault("regions.file", "regions.yaml")
	v.SetDefault("cache.path", "feature_cache.db")
	v.SetDefault("cache.ttl", 7*24*time.Hour)
	v.SetDefault("cache.version", 2)
	v.SetDefault("overpass.endpoint", "https://overpass-api.de/api/interpreter")
	v.SetDefault("overpass.timeout", 60*time.Second)
	v.SetDefault("overpass.max_attempts", 4)
	v.SetDefault("price.timeout", 15*time.Second)
	v.SetDefault("price.max_attempts", 4)
	v.SetDefault("price.rate_per_sec", 2.0)
	v.SetDefault("snapshot.timeout", 120*time.Second)
	v.SetDefault("snapshot.window_days", 90)
	v.SetDefault("satellite.vegetation_loss_threshold", -0.20)
	v.SetDefault("satellite.built_up_gain_threshold", 0.15)
	v.SetDefault("satellite.bare_soil_gain_threshold", 0.20)
	v.SetDefault("satellite.road_built_up_threshold", 0.10)
	v.SetDefault("satellite.road_vegetation_threshold", -0.10)
	v.SetDefault("satellite.velocity_bonus_ratio", 1.5)
	v.SetDefault("confidence.satellite_weight", 0.50)
	v.SetDefault("confidence.infra_weight", 0.30)
	v.SetDefault("confidence.market_weight", 0.20)
	v.SetDefault("confidence.low_threshold", 0.60)
	v.SetDefault("confidence.low_penalty", 0.10)
	v.SetDefault("confidence.curve_breakpoint", 0.85)
	v.SetDefault("confidence.curve_exponent", 1.2)
	v.SetDefault("confidence.live_feature_bump", 0.05)
	v.SetDefault("confidence.live_feature_count", 20)
	v.SetDefault("score.buy_threshold", 60)
	v.SetDefault("score.watch_threshold", 40)
	v.SetDefault("batch.max_concurrent_regions", 4)
	v.SetDefault("server.port", 8080)
	v.SetDefault("report.output_dir", ".")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
