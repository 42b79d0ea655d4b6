package guard

import (
	"context"
	"fmt"

	"sentinelgate/pkg/anomaly"
	"sentinelgate/shared/logging"
)

// Decision actions. ActionError only appears when scoring itself failed; the
// request still produces a well-typed record.
const (
	ActionAllowed = "allowed"
	ActionBlocked = "blocked"
	ActionError   = "error"
)

// Threat type constants used by the pipeline itself; other values come from
// adjudication verdicts.
const (
	ThreatRuleViolation     = "rule_violation"
	ThreatAnomalyOverridden = "anomaly_overridden"
	ThreatAnomalyConfirmed  = "anomaly_confirmed"
	ThreatNone              = "none"
	ThreatUnspecified       = "unspecified"
	ThreatInternalError     = "internal_error"
)

// Decision is the pipeline's sole output artifact. The caller may enrich it
// (timestamp) but must not mutate the pipeline-computed fields.
type Decision struct {
	IsSafe            bool       `json:"is_safe"`
	Action            string     `json:"action"`
	ThreatType        string     `json:"threat_type"`
	Reason            string     `json:"reason"`
	AnomalyScore      float64    `json:"anomaly_score"`
	Coords            [2]float64 `json:"coords"`
	SanitizedPrompt   string     `json:"sanitized_prompt,omitempty"`
	OverrideTriggered bool       `json:"override_triggered,omitempty"`
}

// Scorer is the outlier-model dependency of the pipeline.
type Scorer interface {
	Score(text string) (anomaly.Result, error)
}

// analysisPath tags which interpretation of the adjudication verdict applies:
// on the standard path the verdict decides the action directly; on the
// override path it decides whether the outlier signal is overridden or
// confirmed. Both branches share the outlier score computed in step 2.
type analysisPath struct {
	kind    pathKind
	outlier anomaly.Result
}

type pathKind int

const (
	standardPath pathKind = iota
	overridePath
)

// Engine sequences the three defense layers: denylist, outlier detection,
// intent adjudication.
type Engine struct {
	scorer      Scorer
	adjudicator Adjudicator
	cache       *VerdictCache
}

func NewEngine(scorer Scorer, adjudicator Adjudicator, cache *VerdictCache) *Engine {
	return &Engine{scorer: scorer, adjudicator: adjudicator, cache: cache}
}

// Process runs one prompt through the pipeline and always returns exactly one
// Decision; per-request failures degrade to a safe record instead of
// propagating.
func (e *Engine) Process(ctx context.Context, prompt string) Decision {
	// Layer 1: denylist. A denylisted prompt needs no semantic scoring, so the
	// embedder is never invoked and the coordinates stay at the sentinel.
	if phrase, ok := matchBannedPhrase(prompt); ok {
		return e.record(Decision{
			IsSafe:     false,
			Action:     ActionBlocked,
			ThreatType: ThreatRuleViolation,
			Reason:     fmt.Sprintf("Request blocked by rule-based filter. Found a banned phrase: %q.", phrase),
		})
	}

	// Layer 2: outlier detection.
	outlier, err := e.scorer.Score(prompt)
	if err != nil {
		logging.Errorf("outlier scoring failed: %v", err)
		return e.record(Decision{
			IsSafe:     false,
			Action:     ActionError,
			ThreatType: ThreatInternalError,
			Reason:     "Anomaly scoring was unavailable for this request.",
		})
	}
	path := analysisPath{kind: standardPath, outlier: outlier}
	if outlier.IsOutlier {
		path.kind = overridePath
	}

	// Layer 3: adjudication. A failed or unparsable call arrives here as an
	// unsafe verdict, so anomalies stay guilty until proven safe.
	verdict := e.adjudicate(ctx, prompt)

	d := Decision{
		AnomalyScore: outlier.AnomalyScore,
		Coords:       outlier.Coords,
	}
	switch path.kind {
	case overridePath:
		if verdict.IsSafe {
			overridesTotal.Inc()
			d.IsSafe = true
			d.Action = ActionAllowed
			d.ThreatType = ThreatAnomalyOverridden
			d.Reason = fmt.Sprintf("Anomaly was detected but overridden by AI context analysis. Model reason: %s", verdict.Reason)
			d.OverrideTriggered = true
		} else {
			d.Action = ActionBlocked
			d.ThreatType = verdict.ThreatType
			if d.ThreatType == "" {
				d.ThreatType = ThreatAnomalyConfirmed
			}
			d.Reason = fmt.Sprintf("Anomaly was detected and confirmed by AI context analysis. Model reason: %s", verdict.Reason)
		}
	default:
		d.IsSafe = verdict.IsSafe
		d.ThreatType = verdict.ThreatType
		d.Reason = verdict.Reason
		if verdict.IsSafe {
			d.Action = ActionAllowed
			if d.ThreatType == "" {
				d.ThreatType = ThreatNone
			}
		} else {
			d.Action = ActionBlocked
			if d.ThreatType == "" {
				d.ThreatType = ThreatUnspecified
			}
		}
	}
	return e.record(d)
}

func (e *Engine) adjudicate(ctx context.Context, prompt string) Verdict {
	if v, ok := e.cache.Get(ctx, prompt); ok {
		return v
	}
	v := e.adjudicator.Adjudicate(ctx, prompt)
	// analysis_error verdicts are transient; caching them would pin a healthy
	// prompt to the blocking side.
	if v.ThreatType != "analysis_error" {
		e.cache.Put(ctx, prompt, v)
	}
	return v
}

func (e *Engine) record(d Decision) Decision {
	decisionsTotal.WithLabelValues(d.Action, d.ThreatType).Inc()
	return d
}
