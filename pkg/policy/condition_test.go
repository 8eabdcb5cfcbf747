package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluateCondition_Equals(t *testing.T) {
	cond := Condition{Type: ConditionEquals, Field: "action", Value: "publicized"}

	assert.True(t, EvaluateCondition(cond, map[string]interface{}{"action": "publicized"}))
	assert.False(t, EvaluateCondition(cond, map[string]interface{}{"action": "created"}))
}

func TestEvaluateCondition_MissingPathFailsAllTypes(t *testing.T) {
	event := map[string]interface{}{"repository": map[string]interface{}{"name": "r"}}

	for _, condType := range []string{
		ConditionEquals, ConditionNotEquals, ConditionContains,
		ConditionGreaterThan, ConditionLessThan,
	} {
		cond := Condition{Type: condType, Field: "repository.owner.login", Value: "org"}
		assert.False(t, EvaluateCondition(cond, event), "type %s must fail on a missing path", condType)
	}
}

func TestEvaluateCondition_NestedPath(t *testing.T) {
	event := map[string]interface{}{
		"repository": map[string]interface{}{
			"owner":   map[string]interface{}{"login": "acme"},
			"private": false,
		},
	}

	assert.True(t, EvaluateCondition(
		Condition{Type: ConditionEquals, Field: "repository.owner.login", Value: "acme"}, event))
	assert.True(t, EvaluateCondition(
		Condition{Type: ConditionEquals, Field: "repository.private", Value: false}, event))
	assert.True(t, EvaluateCondition(
		Condition{Type: ConditionNotEquals, Field: "repository.owner.login", Value: "other"}, event))
}

func TestEvaluateCondition_NumericNormalization(t *testing.T) {
	// JSON decoding yields float64; stored condition values may be ints.
	event := map[string]interface{}{"repository": map[string]interface{}{"id": float64(9876)}}

	assert.True(t, EvaluateCondition(
		Condition{Type: ConditionEquals, Field: "repository.id", Value: 9876}, event))
	assert.True(t, EvaluateCondition(
		Condition{Type: ConditionGreaterThan, Field: "repository.id", Value: 100}, event))
	assert.True(t, EvaluateCondition(
		Condition{Type: ConditionLessThan, Field: "repository.id", Value: 10000}, event))
	assert.False(t, EvaluateCondition(
		Condition{Type: ConditionGreaterThan, Field: "repository.id", Value: 10000}, event))
}

func TestEvaluateCondition_NonComparableFailsOrdering(t *testing.T) {
	event := map[string]interface{}{"action": "publicized"}

	assert.False(t, EvaluateCondition(
		Condition{Type: ConditionGreaterThan, Field: "action", Value: 5}, event))
	assert.False(t, EvaluateCondition(
		Condition{Type: ConditionLessThan, Field: "action", Value: 5}, event))
}

func TestEvaluateCondition_Contains(t *testing.T) {
	event := map[string]interface{}{
		"repository": map[string]interface{}{"full_name": "acme/payments-api"},
		"labels":     []interface{}{"infra", "security"},
	}

	assert.True(t, EvaluateCondition(
		Condition{Type: ConditionContains, Field: "repository.full_name", Value: "payments"}, event))
	assert.False(t, EvaluateCondition(
		Condition{Type: ConditionContains, Field: "repository.full_name", Value: "billing"}, event))
	assert.True(t, EvaluateCondition(
		Condition{Type: ConditionContains, Field: "labels", Value: "security"}, event))
	assert.False(t, EvaluateCondition(
		Condition{Type: ConditionContains, Field: "labels", Value: "frontend"}, event))
}
