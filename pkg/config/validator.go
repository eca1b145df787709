package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// nestedQuantifier flags the classic catastrophic-backtracking shape: a
// quantified group that is itself quantified, e.g. "(a+)+", "(a*)*", "(.+)*".
// Go's regexp package (RE2) never actually backtracks, but spec.md requires
// rejecting these patterns at config load regardless of the engine behind
// it — operators routinely copy patterns from tools that do backtrack, and
// rejecting the shape keeps intent portable.
var nestedQuantifier = regexp.MustCompile(`\([^()]*[+*]\)[+*]`)

// probeTimeout bounds the synthetic worst-case match used as a second,
// behavioral check alongside the structural one.
const probeTimeout = 50 * time.Millisecond

// ValidateKeywordPattern compiles and sanity-checks a regex pattern intended
// for PriorityCalculator's keyword scoring (spec.md §4.4: "Regex patterns
// must be validated against catastrophic backtracking before compilation;
// unsafe patterns are rejected at config load").
func ValidateKeywordPattern(pattern string) (*regexp.Regexp, error) {
	if nestedQuantifier.MatchString(pattern) {
		return nil, fmt.Errorf("pattern %q rejected: nested quantifier shape is vulnerable to catastrophic backtracking", pattern)
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("pattern %q failed to compile: %w", pattern, err)
	}

	if probeExceedsTimeout(re) {
		return nil, fmt.Errorf("pattern %q rejected: matching a synthetic worst-case input exceeded %s", pattern, probeTimeout)
	}

	return re, nil
}

// probeExceedsTimeout runs the pattern against an adversarial probe string
// (a long run of a single repeated character, which is the shape that
// exercises exponential-backtracking patterns) with a hard wall-clock
// budget. A pattern that cannot match a bounded input within probeTimeout
// is rejected rather than risk stalling priority scoring on the hot path.
func probeExceedsTimeout(re *regexp.Regexp) bool {
	probe := strings.Repeat("a", 2048) + "!"
	done := make(chan struct{})
	go func() {
		re.MatchString(probe)
		close(done)
	}()

	select {
	case <-done:
		return false
	case <-time.After(probeTimeout):
		return true
	}
}

// ValidateConfig checks cross-field invariants that can't be expressed as
// struct tags, returning every violation found.
func ValidateConfig(cfg *Config) []error {
	var errs []error

	pq := cfg.PriorityQueue
	if pq.MaxConcurrent <= 0 {
		errs = append(errs, fmt.Errorf("priorityQueue.maxConcurrent must be > 0"))
	}
	if pq.BurstModeEnabled && pq.BurstConcurrent < pq.MaxConcurrent {
		errs = append(errs, fmt.Errorf("priorityQueue.burstConcurrent (%d) must be >= maxConcurrent (%d)", pq.BurstConcurrent, pq.MaxConcurrent))
	}
	if pq.MaxQueueSize <= 0 {
		errs = append(errs, fmt.Errorf("priorityQueue.maxQueueSize must be > 0"))
	}
	if pq.PreemptionThreshold < 0 {
		errs = append(errs, fmt.Errorf("priorityQueue.preemptionThreshold must be >= 0"))
	}

	sumWeights := pq.PriorityWeights.Keywords + pq.PriorityWeights.ServiceImpact +
		pq.PriorityWeights.TimeContext + pq.PriorityWeights.Historical
	if sumWeights > 0 && (sumWeights < 0.99 || sumWeights > 1.01) {
		errs = append(errs, fmt.Errorf("priorityQueue.priorityWeights must sum to ~1.0, got %.3f", sumWeights))
	}

	for _, kw := range pq.CriticalKeywords {
		if _, err := ValidateKeywordPattern(kw); err != nil {
			errs = append(errs, err)
		}
	}
	for _, kw := range pq.HighPriorityKeywords {
		if _, err := ValidateKeywordPattern(kw); err != nil {
			errs = append(errs, err)
		}
	}
	for _, kw := range pq.MediumPriorityKeywords {
		if _, err := ValidateKeywordPattern(kw); err != nil {
			errs = append(errs, err)
		}
	}

	if cfg.LLMCache.SimilarityThreshold <= 0 || cfg.LLMCache.SimilarityThreshold > 1 {
		errs = append(errs, fmt.Errorf("llmCache.similarityThreshold must be in (0, 1]"))
	}

	return errs
}
