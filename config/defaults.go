package config

import (
	"github.com/knadh/koanf/v2"

	"github.com/kanengo/jobbalance/selector"
)

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"balancer.algorithm": selector.Polling.String(),
		"balancer.seed":      0,

		"ratelimit.kind": "none",

		"logging.level":        "info",
		"logging.format":       "console",
		"logging.max_size_mb":  100,
		"logging.max_backups":  3,
		"logging.max_age_days": 7,

		"registry.namespace":    "/jobbalance",
		"registry.ttl":          "15s",
		"registry.dial_timeout": "3s",

		"metrics.namespace": "jobbalance",
	}

	for key, val := range defaults {
		if err := k.Set(key, val); err != nil {
			return err
		}
	}
	return nil
}
