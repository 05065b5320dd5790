package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

type ReactivationPolicy string

const (
	// ReactivationRemainingDays restores the days left when the clinic was suspended.
	ReactivationRemainingDays ReactivationPolicy = "remaining_days"
	// ReactivationFullPeriod starts a fresh plan period on reactivation.
	ReactivationFullPeriod ReactivationPolicy = "full_period"
)

type LifecycleConfig struct {
	ReactivationPolicy ReactivationPolicy `mapstructure:"reactivationPolicy"`
	RequireComment     bool               `mapstructure:"requireComment"`
}

type PlanSeed struct {
	Name            string `mapstructure:"name"`
	Price           int64  `mapstructure:"price"`
	DurationDays    int    `mapstructure:"durationDays"`
	AllowedAccounts int    `mapstructure:"allowedAccounts"`
}

type PaymentMethodSeed struct {
	Name string `mapstructure:"name"`
}

type ReferenceConfig struct {
	Plans          []PlanSeed          `mapstructure:"plans"`
	PaymentMethods []PaymentMethodSeed `mapstructure:"paymentMethods"`
}

func DefaultLifecycleConfig() LifecycleConfig {
	return LifecycleConfig{
		ReactivationPolicy: ReactivationRemainingDays,
		RequireComment:     true,
	}
}

func DefaultReferenceConfig() ReferenceConfig {
	return ReferenceConfig{
		Plans: []PlanSeed{
			{Name: "Basic Monthly", Price: 25_000, DurationDays: 30, AllowedAccounts: 5},
			{Name: "Premium Yearly", Price: 250_000, DurationDays: 365, AllowedAccounts: 15},
		},
		PaymentMethods: []PaymentMethodSeed{
			{Name: "Cash"},
			{Name: "Bank Transfer"},
		},
	}
}

// LifecycleConfigHolder serves the current lifecycle policy. The backing file is
// watched and valid edits replace the policy without a restart.
type LifecycleConfigHolder struct {
	current   atomic.Value // holds LifecycleConfig
	reference atomic.Value // holds ReferenceConfig
}

// NewStaticLifecycleHolder returns a holder that never reloads.
func NewStaticLifecycleHolder(cfg LifecycleConfig) *LifecycleConfigHolder {
	holder := &LifecycleConfigHolder{}
	holder.current.Store(cfg)
	holder.reference.Store(DefaultReferenceConfig())
	return holder
}

func NewLifecycleConfigHolder(log *zap.Logger) (*LifecycleConfigHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("config.lifecycle")

	v := viper.New()
	v.SetConfigName("lifecycle")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/vetsub")
	v.AddConfigPath(".")

	v.SetEnvPrefix("VETSUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	lifecycleDefaults := DefaultLifecycleConfig()
	v.SetDefault("lifecycle.reactivationPolicy", string(lifecycleDefaults.ReactivationPolicy))
	v.SetDefault("lifecycle.requireComment", lifecycleDefaults.RequireComment)

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		fileFound = false
	}

	cfg, err := decodeLifecycle(v)
	if err != nil {
		return nil, err
	}
	ref, err := decodeReference(v)
	if err != nil {
		return nil, err
	}

	holder := &LifecycleConfigHolder{}
	holder.current.Store(cfg)
	holder.reference.Store(ref)

	if fileFound {
		v.OnConfigChange(func(e fsnotify.Event) {
			updated, err := decodeLifecycle(v)
			if err != nil {
				log.Warn("lifecycle config reload ignored", zap.String("file", e.Name), zap.Error(err))
				return
			}
			holder.current.Store(updated)
			if ref, err := decodeReference(v); err == nil {
				holder.reference.Store(ref)
			}
			log.Info("lifecycle config reloaded",
				zap.String("file", e.Name),
				zap.String("reactivation_policy", string(updated.ReactivationPolicy)),
			)
		})
		v.WatchConfig()
	}

	return holder, nil
}

func (h *LifecycleConfigHolder) Get() LifecycleConfig {
	if h == nil {
		return DefaultLifecycleConfig()
	}
	return h.current.Load().(LifecycleConfig)
}

func (h *LifecycleConfigHolder) Reference() ReferenceConfig {
	if h == nil {
		return DefaultReferenceConfig()
	}
	return h.reference.Load().(ReferenceConfig)
}

func decodeLifecycle(v *viper.Viper) (LifecycleConfig, error) {
	cfg := LifecycleConfig{
		ReactivationPolicy: ReactivationPolicy(strings.ToLower(strings.TrimSpace(v.GetString("lifecycle.reactivationPolicy")))),
		RequireComment:     v.GetBool("lifecycle.requireComment"),
	}
	if err := validateLifecycleConfig(cfg); err != nil {
		return LifecycleConfig{}, err
	}
	return cfg, nil
}

func decodeReference(v *viper.Viper) (ReferenceConfig, error) {
	if !v.IsSet("reference") {
		return DefaultReferenceConfig(), nil
	}
	var ref ReferenceConfig
	if err := v.UnmarshalKey("reference", &ref); err != nil {
		return ReferenceConfig{}, err
	}
	for _, plan := range ref.Plans {
		if strings.TrimSpace(plan.Name) == "" || plan.DurationDays <= 0 || plan.AllowedAccounts < 0 || plan.Price < 0 {
			return ReferenceConfig{}, fmt.Errorf("invalid plan seed %q", plan.Name)
		}
	}
	return ref, nil
}

func validateLifecycleConfig(cfg LifecycleConfig) error {
	switch cfg.ReactivationPolicy {
	case ReactivationRemainingDays, ReactivationFullPeriod:
		return nil
	default:
		return fmt.Errorf("lifecycle.reactivationPolicy %q is not supported", cfg.ReactivationPolicy)
	}
}
