package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateKeywordPattern_AcceptsSafePatterns(t *testing.T) {
	safe := []string{
		`(?i)out of memory`,
		`disk\s+full`,
		`5\d\d error`,
		`connection (refused|reset)`,
	}
	for _, p := range safe {
		_, err := ValidateKeywordPattern(p)
		assert.NoError(t, err, "pattern %q should be accepted", p)
	}
}

func TestValidateKeywordPattern_RejectsNestedQuantifiers(t *testing.T) {
	unsafe := []string{
		`(a+)+`,
		`(a*)*`,
		`(.+)*`,
		`(x+)+$`,
	}
	for _, p := range unsafe {
		_, err := ValidateKeywordPattern(p)
		require.Error(t, err, "pattern %q should be rejected", p)
		assert.Contains(t, err.Error(), "catastrophic backtracking")
	}
}

func TestValidateKeywordPattern_RejectsInvalidRegex(t *testing.T) {
	_, err := ValidateKeywordPattern(`(unterminated`)
	require.Error(t, err)
}

func TestValidateConfig_AccumulatesAllErrors(t *testing.T) {
	cfg := Defaults()
	cfg.PriorityQueue.MaxConcurrent = 0
	cfg.PriorityQueue.MaxQueueSize = -1
	cfg.LLMCache.SimilarityThreshold = 2.0

	errs := ValidateConfig(cfg)
	assert.Len(t, errs, 3)
}
