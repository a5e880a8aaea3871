package config

import (
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/smallbiznis/energyscope/pkg/retry"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// CollectionConfig is the runtime policy of the collection workflow.
type CollectionConfig struct {
	Cadence     string      `mapstructure:"cadence"`
	AllowDrafts bool        `mapstructure:"allowDrafts"`
	Retry       RetryConfig `mapstructure:"retry"`
}

// RetryConfig bounds storage retries.
type RetryConfig struct {
	MaxAttempts     uint          `mapstructure:"maxAttempts"`
	InitialInterval time.Duration `mapstructure:"initialInterval"`
	MaxInterval     time.Duration `mapstructure:"maxInterval"`
	Multiplier      float64       `mapstructure:"multiplier"`
}

func DefaultCollectionConfig() CollectionConfig {
	policy := retry.DefaultPolicy()
	return CollectionConfig{
		Cadence:     "month",
		AllowDrafts: true,
		Retry: RetryConfig{
			MaxAttempts:     policy.MaxAttempts,
			InitialInterval: policy.InitialInterval,
			MaxInterval:     policy.MaxInterval,
			Multiplier:      policy.Multiplier,
		},
	}
}

// Policy converts the retry settings.
func (c RetryConfig) Policy() retry.Policy {
	return retry.Policy{
		MaxAttempts:     c.MaxAttempts,
		InitialInterval: c.InitialInterval,
		MaxInterval:     c.MaxInterval,
		Multiplier:      c.Multiplier,
	}
}

type CollectionConfigHolder struct {
	current atomic.Value // holds CollectionConfig
}

// NewStaticCollectionConfigHolder wraps a fixed config, used by tests and tools.
func NewStaticCollectionConfigHolder(cfg CollectionConfig) *CollectionConfigHolder {
	holder := &CollectionConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewCollectionConfigHolder(log *zap.Logger) (*CollectionConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("collection")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/energyscope")
	v.AddConfigPath(".")

	v.SetEnvPrefix("ENERGYSCOPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultCollectionConfig()
	v.SetDefault("collection.cadence", defaults.Cadence)
	v.SetDefault("collection.allowDrafts", defaults.AllowDrafts)
	v.SetDefault("collection.retry.maxAttempts", defaults.Retry.MaxAttempts)
	v.SetDefault("collection.retry.initialInterval", defaults.Retry.InitialInterval)
	v.SetDefault("collection.retry.maxInterval", defaults.Retry.MaxInterval)
	v.SetDefault("collection.retry.multiplier", defaults.Retry.Multiplier)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileLoaded = false
	}

	var cfg CollectionConfig
	if err := v.UnmarshalKey("collection", &cfg); err != nil {
		return nil, err
	}
	if err := validateCollectionConfig(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticCollectionConfigHolder(cfg)
	if !fileLoaded {
		return holder, nil
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		var updated CollectionConfig
		if err := v.UnmarshalKey("collection", &updated); err != nil {
			log.Warn("collection config reload failed", zap.Error(err))
			return
		}
		if err := validateCollectionConfig(updated); err != nil {
			log.Warn("invalid collection config ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("collection config reloaded", zap.String("file", e.Name))
	})
	v.WatchConfig()

	return holder, nil
}

func (h *CollectionConfigHolder) Get() CollectionConfig {
	return h.current.Load().(CollectionConfig)
}

func validateCollectionConfig(cfg CollectionConfig) error {
	switch strings.ToLower(strings.TrimSpace(cfg.Cadence)) {
	case "month", "quarter", "semester", "year":
	default:
		return errors.New("collection.cadence must be one of month, quarter, semester, year")
	}
	if cfg.Retry.MaxAttempts == 0 {
		return errors.New("collection.retry.maxAttempts must be at least 1")
	}
	if cfg.Retry.Multiplier != 0 && cfg.Retry.Multiplier < 1 {
		return errors.New("collection.retry.multiplier must be >= 1")
	}
	return nil
}
