// Package config loads and validates Seraph's runtime configuration.
package config

import "time"

// Config is the root configuration object, assembled from a YAML file with
// environment-variable expansion and defaults merged in for unset fields.
type Config struct {
	Port           int                  `yaml:"port"`
	Workers        int                  `yaml:"workers"`
	APIKey         string               `yaml:"apiKey"`
	ServerAPIKey   string               `yaml:"serverApiKey"`
	LLM            LLMConfig            `yaml:"llm"`
	AlertManager   AlertManagerConfig   `yaml:"alertManager"`
	Slack          SlackConfig          `yaml:"slack"`
	PriorityQueue  PriorityQueueConfig  `yaml:"priorityQueue"`
	LLMCache       LLMCacheConfig       `yaml:"llmCache"`
	BuiltInMCP     BuiltInMCPConfig     `yaml:"builtInMcpServer"`
	StartupPrompts []string             `yaml:"startupPrompts"`
	RateLimit      RateLimitConfig      `yaml:"rateLimit"`
	Database       DatabaseConfig       `yaml:"database"`
}

// DatabaseConfig configures the report store's Postgres connection (C9's
// persisted enrichment reference).
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// RateLimitConfig configures Ingress's per-client token-bucket admission
// limiter (spec.md §4.10).
type RateLimitConfig struct {
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

// LLMConfig names the reasoning-service provider/model. Seraph only carries
// the abstract contract; concrete provider wiring is out of scope (spec.md §1).
type LLMConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
}

// AlertManagerConfig configures the outbound two-phase alert sink (C9).
type AlertManagerConfig struct {
	URL            string        `yaml:"url"`
	Timeout        time.Duration `yaml:"timeout"`
	GeneratorURL   string        `yaml:"generatorUrl"`
}

// SlackConfig configures the Alerter's optional secondary Slack notifier
// (C9). Notification is disabled when Token or Channel is empty.
type SlackConfig struct {
	Token   string `yaml:"token"`
	Channel string `yaml:"channel"`
	// DashboardURL is linked from notification messages, if set.
	DashboardURL string `yaml:"dashboardUrl"`
}

// PriorityQueueConfig configures the Scheduler, PriorityQueue and PriorityCalculator (C3/C4/C6).
type PriorityQueueConfig struct {
	Enabled               bool              `yaml:"enabled"`
	MaxConcurrent         int               `yaml:"maxConcurrent"`
	MaxQueueSize          int               `yaml:"maxQueueSize"`
	PreemptionEnabled     bool              `yaml:"preemptionEnabled"`
	PreemptionThreshold   float64           `yaml:"preemptionThreshold"`
	MaxPreemptions        int               `yaml:"maxPreemptions"`
	BurstModeEnabled      bool              `yaml:"burstModeEnabled"`
	BurstConcurrent       int               `yaml:"burstConcurrent"`
	BurstModeThreshold    string            `yaml:"burstModeThreshold"`
	BurstMaxDuration      time.Duration     `yaml:"burstMaxDuration"`
	PriorityWeights       PriorityWeights   `yaml:"priorityWeights"`
	Services              []ServiceConfig   `yaml:"services"`
	BusinessHours         BusinessHours     `yaml:"businessHours"`
	CriticalKeywords      []string          `yaml:"criticalKeywords"`
	HighPriorityKeywords  []string          `yaml:"highPriorityKeywords"`
	MediumPriorityKeywords []string         `yaml:"mediumPriorityKeywords"`
	DedupWindow           time.Duration     `yaml:"dedupWindow"`
	AgingInterval         time.Duration     `yaml:"agingInterval"`
}

// PriorityWeights are the four weights in PriorityCalculator.score (spec.md §4.4).
// They must sum to (approximately) 1.0; the loader re-normalizes if not.
type PriorityWeights struct {
	Keywords       float64 `yaml:"keywords"`
	ServiceImpact  float64 `yaml:"serviceImpact"`
	TimeContext    float64 `yaml:"timeContext"`
	Historical     float64 `yaml:"historical"`
}

// ServiceConfig is the "Service descriptor" of spec.md §3.
type ServiceConfig struct {
	Name           string  `yaml:"name"`
	Criticality    string  `yaml:"criticality"` // critical, high, medium, low
	BusinessImpact float64 `yaml:"businessImpact"`
	UserCount      int     `yaml:"userCount"`
}

// BusinessHours configures the "time" factor of PriorityCalculator.
type BusinessHours struct {
	Start    string `yaml:"start"`    // "09:00"
	End      string `yaml:"end"`      // "17:00"
	Timezone string `yaml:"timezone"` // IANA timezone name
	PeakSubWindows []PeakWindow `yaml:"peakSubWindows"`
}

// PeakWindow names a sub-window of business hours scored at 1.1 (clamped to 1.0).
type PeakWindow struct {
	Start string `yaml:"start"`
	End   string `yaml:"end"`
}

// LLMCacheConfig configures the SimilarityCache (C2).
type LLMCacheConfig struct {
	SimilarityThreshold float64           `yaml:"similarityThreshold"`
	TTLSeconds          int               `yaml:"ttlSeconds"`
	MaxEntries          int               `yaml:"maxEntries"`
	Backend             LLMCacheBackend   `yaml:"backend"`
}

// LLMCacheBackend selects and configures the SimilarityCache's backing store.
type LLMCacheBackend struct {
	Kind string `yaml:"kind"` // "memory" or "redis"
	Addr string `yaml:"addr"`
}

// BuiltInMCPConfig configures Seraph's own built-in MCP tool server, if any.
type BuiltInMCPConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}
