package config

import (
	"errors"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// WebhookPolicy decides which processing failures are handed back to the
// provider for redelivery.
type WebhookPolicy struct {
	RetryPatterns []string `mapstructure:"retryPatterns"`
}

func DefaultWebhookPolicy() WebhookPolicy {
	return WebhookPolicy{
		RetryPatterns: []string{
			"econnrefused",
			"econnreset",
			"etimedout",
			"timeout",
			"connection",
			"foreign key",
			"violates foreign key constraint",
			"referenced entity not found",
		},
	}
}

type WebhookPolicyHolder struct {
	current atomic.Value // holds WebhookPolicy
}

// NewStaticWebhookPolicy returns a holder that never reloads.
func NewStaticWebhookPolicy(policy WebhookPolicy) *WebhookPolicyHolder {
	holder := &WebhookPolicyHolder{}
	holder.current.Store(normalizePolicy(policy))
	return holder
}

func NewWebhookPolicyHolder(cfg Config, log *zap.Logger) (*WebhookPolicyHolder, error) {
	log = log.Named("config.webhook_policy")

	v := viper.New()
	if cfg.Webhook.PolicyPath != "" {
		v.SetConfigFile(cfg.Webhook.PolicyPath)
	} else {
		v.SetConfigName("webhook")
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/fieldrunner")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("FIELDRUNNER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultWebhookPolicy()
	v.SetDefault("webhook.retryPatterns", defaults.RetryPatterns)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		fileLoaded = false
	}

	var policy WebhookPolicy
	if err := v.UnmarshalKey("webhook", &policy); err != nil {
		return nil, err
	}
	if err := validateWebhookPolicy(policy); err != nil {
		return nil, err
	}

	holder := NewStaticWebhookPolicy(policy)
	if !fileLoaded {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated WebhookPolicy
		if err := v.UnmarshalKey("webhook", &updated); err != nil {
			log.Warn("reload failed", zap.Error(err))
			return
		}
		if err := validateWebhookPolicy(updated); err != nil {
			log.Warn("invalid policy ignored", zap.Error(err))
			return
		}
		holder.current.Store(normalizePolicy(updated))
		log.Info("webhook policy reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *WebhookPolicyHolder) Get() WebhookPolicy {
	if h == nil {
		return normalizePolicy(DefaultWebhookPolicy())
	}
	return h.current.Load().(WebhookPolicy)
}

func validateWebhookPolicy(policy WebhookPolicy) error {
	if len(normalizePolicy(policy).RetryPatterns) == 0 {
		return errors.New("webhook.retryPatterns cannot be empty")
	}
	return nil
}

func normalizePolicy(policy WebhookPolicy) WebhookPolicy {
	patterns := make([]string, 0, len(policy.RetryPatterns))
	for _, p := range policy.RetryPatterns {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		patterns = append(patterns, p)
	}
	return WebhookPolicy{RetryPatterns: patterns}
}
