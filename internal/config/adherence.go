package config

import (
	"errors"
	"log"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// RankingTier maps a minimum monthly adherence rate to a qualitative
// label shown to users.
type RankingTier struct {
	Label   string  `mapstructure:"label"`
	MinRate float64 `mapstructure:"minRate"`
}

// AdherenceConfig holds the product-tunable adherence policy: the
// ranking thresholds and the grace period (in minutes) before a pending
// dose is considered missed.
type AdherenceConfig struct {
	RankingTiers       []RankingTier `mapstructure:"rankingTiers"`
	GracePeriodMinutes int           `mapstructure:"gracePeriodMinutes"`
}

func DefaultAdherenceConfig() AdherenceConfig {
	return AdherenceConfig{
		RankingTiers: []RankingTier{
			{Label: "excellent", MinRate: 90},
			{Label: "good", MinRate: 70},
			{Label: "fair", MinRate: 50},
			{Label: "poor", MinRate: 0},
		},
		GracePeriodMinutes: 120,
	}
}

// RankFor returns the label of the highest tier whose MinRate the given
// rate satisfies.
func (c AdherenceConfig) RankFor(rate float64) string {
	tiers := make([]RankingTier, len(c.RankingTiers))
	copy(tiers, c.RankingTiers)
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].MinRate > tiers[j].MinRate })
	for _, tier := range tiers {
		if rate >= tier.MinRate {
			return tier.Label
		}
	}
	if len(tiers) > 0 {
		return tiers[len(tiers)-1].Label
	}
	return ""
}

type AdherenceConfigHolder struct {
	current atomic.Value // holds AdherenceConfig
}

// NewAdherenceConfigHolder loads adherence.yml and watches it for
// changes so threshold tweaks do not require a restart.
func NewAdherenceConfigHolder() (*AdherenceConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("adherence")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/doseline/config")
	v.AddConfigPath("/etc/doseline")
	v.AddConfigPath(".")

	v.SetEnvPrefix("DOSELINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	holder := &AdherenceConfigHolder{}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		// No file on disk; run on defaults and skip the watcher.
		holder.current.Store(DefaultAdherenceConfig())
		return holder, nil
	}

	var cfg AdherenceConfig
	if err := v.UnmarshalKey("adherence", &cfg); err != nil {
		return nil, err
	}
	if err := validateAdherenceConfig(cfg); err != nil {
		return nil, err
	}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated AdherenceConfig
		if err := v.UnmarshalKey("adherence", &updated); err != nil {
			log.Printf("[adherence-config] reload failed: %v", err)
			return
		}
		if err := validateAdherenceConfig(updated); err != nil {
			log.Printf("[adherence-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[adherence-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *AdherenceConfigHolder) Get() AdherenceConfig {
	return h.current.Load().(AdherenceConfig)
}

func validateAdherenceConfig(cfg AdherenceConfig) error {
	if len(cfg.RankingTiers) == 0 {
		return errors.New("adherence.rankingTiers cannot be empty")
	}
	if cfg.GracePeriodMinutes <= 0 {
		return errors.New("adherence.gracePeriodMinutes must be positive")
	}
	return nil
}
