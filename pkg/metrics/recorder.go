package metrics

import "time"

// The methods below satisfy scheduler.Recorder without pkg/metrics
// importing pkg/scheduler — the interface is structural, matched by
// signature alone, same decoupling scheduler.go documents for Alerter.

func (m *Metrics) IncLogsDropped(reason string) {
	if m == nil {
		return
	}
	m.logsDropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncInvestigationsStarted(priorityClass string) {
	if m == nil {
		return
	}
	m.investigationsStarted.WithLabelValues(priorityClass).Inc()
}

func (m *Metrics) IncInvestigationsCompleted(outcome string) {
	if m == nil {
		return
	}
	m.investigationsDone.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncPreemptions() {
	if m == nil {
		return
	}
	m.preemptions.Inc()
}

func (m *Metrics) SetQueueSize(n int) {
	if m == nil {
		return
	}
	m.queueSize.Set(float64(n))
}

func (m *Metrics) SetRunningInvestigations(n int) {
	if m == nil {
		return
	}
	m.runningInvestigations.Set(float64(n))
}

func (m *Metrics) SetBurstModeActive(active bool) {
	if m == nil {
		return
	}
	if active {
		m.burstModeActive.Set(1)
		return
	}
	m.burstModeActive.Set(0)
}

func (m *Metrics) ObserveQueueWait(priorityClass string, d time.Duration) {
	if m == nil {
		return
	}
	m.queueWait.WithLabelValues(priorityClass).Observe(d.Seconds())
}

func (m *Metrics) ObserveInvestigationDuration(priorityClass string, d time.Duration) {
	if m == nil {
		return
	}
	m.investigationDuration.WithLabelValues(priorityClass).Observe(d.Seconds())
}
