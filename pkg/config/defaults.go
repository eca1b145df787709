package config

import "time"

// Defaults returns a Config populated with every default value named in
// spec.md §4, used as the base that a loaded YAML file is merged onto.
func Defaults() *Config {
	return &Config{
		Port:    8080,
		Workers: 4,
		LLM: LLMConfig{
			Provider: "anthropic",
			Model:    "default",
		},
		AlertManager: AlertManagerConfig{
			Timeout: 10 * time.Second,
		},
		PriorityQueue: PriorityQueueConfig{
			Enabled:             true,
			MaxConcurrent:       4,
			MaxQueueSize:        500,
			PreemptionEnabled:   true,
			PreemptionThreshold: 0.3,
			MaxPreemptions:      2,
			BurstModeEnabled:    true,
			BurstConcurrent:     8,
			BurstMaxDuration:    10 * time.Minute,
			PriorityWeights: PriorityWeights{
				Keywords:      0.3,
				ServiceImpact: 0.4,
				TimeContext:   0.2,
				Historical:    0.1,
			},
			BusinessHours: BusinessHours{
				Start:    "09:00",
				End:      "17:00",
				Timezone: "UTC",
			},
			DedupWindow:   60 * time.Second,
			AgingInterval: 30 * time.Second,
		},
		RateLimit: RateLimitConfig{
			Requests: 100,
			Window:   60 * time.Second,
		},
		LLMCache: LLMCacheConfig{
			SimilarityThreshold: 0.92,
			TTLSeconds:          3600,
			MaxEntries:          10000,
			Backend: LLMCacheBackend{
				Kind: "memory",
			},
		},
	}
}
