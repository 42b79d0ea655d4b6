package guard

import "github.com/prometheus/client_golang/prometheus"

var (
	decisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "sentinelgate", Subsystem: "guard", Name: "decisions_total", Help: "Pipeline decisions by action and threat type."},
		[]string{"action", "threat_type"},
	)
	overridesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "sentinelgate", Subsystem: "guard", Name: "anomaly_overrides_total", Help: "Outlier verdicts overridden by contextual adjudication."},
	)
	adjudicationFailures = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "sentinelgate", Subsystem: "guard", Name: "adjudication_failures_total", Help: "Adjudication calls that failed or returned unparsable output."},
	)
)

func init() {
	_ = prometheus.Register(decisionsTotal)
	_ = prometheus.Register(overridesTotal)
	_ = prometheus.Register(adjudicationFailures)
}
