package priority

import (
	"regexp"
	"strings"
	"time"

	"github.com/seraphhq/seraph/pkg/config"
)

// HistoryLookup reports the normalized recurrence frequency of alerts with
// the given fingerprint over the past 24h, in [0,1]. The Scheduler supplies
// a concrete implementation backed by its own recent-alert bookkeeping;
// PriorityCalculator itself stays a pure function of its inputs.
type HistoryLookup func(fingerprint string) float64

// Calculator computes an Alert's priority class and numeric score from its
// content, configured services, time, and history (spec.md §4.4).
type Calculator struct {
	weights          config.PriorityWeights
	services         []config.ServiceConfig
	businessHours    config.BusinessHours
	location         *time.Location
	criticalPatterns []*regexp.Regexp
	highPatterns     []*regexp.Regexp
	mediumPatterns   []*regexp.Regexp
	history          HistoryLookup
}

// NewCalculator compiles configured keyword patterns (rejecting any that
// fail ValidateKeywordPattern — config.Load already screens these, but
// NewCalculator is defensive for callers that construct a Config by hand)
// and returns a ready Calculator.
func NewCalculator(cfg config.PriorityQueueConfig, history HistoryLookup) (*Calculator, error) {
	loc, err := time.LoadLocation(cfg.BusinessHours.Timezone)
	if err != nil {
		loc = time.UTC
	}

	compile := func(patterns []string) ([]*regexp.Regexp, error) {
		out := make([]*regexp.Regexp, 0, len(patterns))
		for _, p := range patterns {
			re, err := config.ValidateKeywordPattern(p)
			if err != nil {
				return nil, err
			}
			out = append(out, re)
		}
		return out, nil
	}

	critical, err := compile(cfg.CriticalKeywords)
	if err != nil {
		return nil, err
	}
	high, err := compile(cfg.HighPriorityKeywords)
	if err != nil {
		return nil, err
	}
	medium, err := compile(cfg.MediumPriorityKeywords)
	if err != nil {
		return nil, err
	}

	if history == nil {
		history = func(string) float64 { return 0 }
	}

	return &Calculator{
		weights:          cfg.PriorityWeights,
		services:         cfg.Services,
		businessHours:    cfg.BusinessHours,
		location:         loc,
		criticalPatterns: critical,
		highPatterns:     high,
		mediumPatterns:   medium,
		history:          history,
	}, nil
}

// Score computes (class, numeric) for the given alert content at time now,
// per spec.md §4.4's weighted-sum formula.
func (c *Calculator) Score(log, reason string, meta Metadata, now time.Time) (Class, float64) {
	keyword := c.keywordScore(log, reason)
	service := c.serviceScore(log)
	t := c.timeScore(now)
	hist := c.history(Fingerprint(log, meta.Service, meta.Severity))
	if hist > 1.0 {
		hist = 1.0
	}

	numeric := c.weights.Keywords*keyword +
		c.weights.ServiceImpact*service +
		c.weights.TimeContext*t +
		c.weights.Historical*hist

	return classify(numeric), numeric
}

func classify(numeric float64) Class {
	switch {
	case numeric >= 0.8:
		return Critical
	case numeric >= 0.6:
		return High
	case numeric >= 0.3:
		return Medium
	default:
		return Low
	}
}

func (c *Calculator) keywordScore(log, reason string) float64 {
	text := log + " " + reason
	if matchesAny(c.criticalPatterns, text) {
		return 1.0
	}
	if matchesAny(c.highPatterns, text) {
		return 0.7
	}
	if matchesAny(c.mediumPatterns, text) {
		return 0.4
	}
	return 0.1
}

func matchesAny(patterns []*regexp.Regexp, text string) bool {
	for _, re := range patterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

func (c *Calculator) serviceScore(log string) float64 {
	lower := strings.ToLower(log)
	for _, svc := range c.services {
		if svc.Name == "" || !strings.Contains(lower, strings.ToLower(svc.Name)) {
			continue
		}
		criticality := criticalityWeight(svc.Criticality)
		userFactor := svc.BusinessImpact
		if svc.UserCount > 0 {
			uf := float64(svc.UserCount) / 100000.0
			if uf > 1 {
				uf = 1
			}
			userFactor = uf
		}
		return criticality*0.6 + userFactor*0.4
	}
	return 0.3
}

func criticalityWeight(criticality string) float64 {
	switch strings.ToLower(criticality) {
	case "critical":
		return 1.0
	case "high":
		return 0.8
	case "medium":
		return 0.5
	case "low":
		return 0.2
	default:
		return 0.3
	}
}

func (c *Calculator) timeScore(now time.Time) float64 {
	local := now.In(c.location)
	if local.Weekday() == time.Saturday || local.Weekday() == time.Sunday {
		return 0.3
	}

	if !c.inWindow(local, c.businessHours.Start, c.businessHours.End) {
		return 0.5
	}

	for _, peak := range c.businessHours.PeakSubWindows {
		if c.inWindow(local, peak.Start, peak.End) {
			return 1.0 // 1.1 clamped to 1.0, per spec.md §4.4
		}
	}

	return 1.0
}

func (c *Calculator) inWindow(t time.Time, start, end string) bool {
	s, err1 := parseClock(start)
	e, err2 := parseClock(end)
	if err1 != nil || err2 != nil {
		return false
	}
	minutesNow := t.Hour()*60 + t.Minute()
	return minutesNow >= s && minutesNow < e
}

func parseClock(hhmm string) (int, error) {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}
