package policy

import (
	"github.com/authright-test/iga-test-sub000/pkg/observability"
)

// Evaluator decides whether an event violates a policy.
type Evaluator struct {
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewEvaluator creates a policy evaluator. Metrics may be nil.
func NewEvaluator(logger *observability.Logger, metrics *observability.Metrics) *Evaluator {
	return &Evaluator{logger: logger, metrics: metrics}
}

// Evaluate returns true only when the policy is active and every
// condition matches the event. A panic anywhere inside condition
// resolution is recovered and the evaluation reports no violation:
// an ambiguous or broken condition must never trigger enforcement.
func (e *Evaluator) Evaluate(p *Policy, event map[string]interface{}) (violated bool) {
	if !p.IsActive {
		return false
	}

	defer func() {
		if r := recover(); r != nil {
			e.logger.WithFields(map[string]interface{}{
				"policy_id": p.ID,
				"panic":     r,
			}).Error("policy evaluation panicked, treating as no violation")
			violated = false
		}
		e.recordResult(violated)
	}()

	for _, cond := range p.Conditions {
		if !EvaluateCondition(cond, event) {
			return false
		}
	}
	return true
}

func (e *Evaluator) recordResult(violated bool) {
	if e.metrics == nil {
		return
	}
	result := "no_violation"
	if violated {
		result = "violation"
	}
	e.metrics.PolicyEvaluationsTotal.WithLabelValues(result).Inc()
}
