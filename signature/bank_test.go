package signature

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func descOf(v float32, n int) Descriptors {
	vec := make([]float32, n)
	for i := range vec {
		vec[i] = v
	}
	return Descriptors{Structural: vec, Semantic: vec, Context: vec, Motion: vec}
}

// Scenario 5: an empty bank, one registration, then a query with
// identical descriptors matches with confidence in (0.99, 1.0], and a
// query with maximally different (orthogonal-ish) descriptors reports
// matched=false, confidence=0.0.
func TestScenarioFiveSignatureConfidenceBounds(t *testing.T) {
	b := NewBank(DefaultConfig())
	d := descOf(1.0, 8)
	b.Register(d, 0, 128)

	m := b.Match(descOf(1.0, 8), 1)
	require.True(t, m.Matched)
	require.Greater(t, m.Confidence, float32(0.99))
	require.LessOrEqual(t, m.Confidence, float32(1.0))

	far := descOf(-1.0, 8)
	m2 := b.Match(far, 2)
	require.False(t, m2.Matched)
	require.Equal(t, float32(0), m2.Confidence)
}

func TestUnmatchedQueryOnEmptyBank(t *testing.T) {
	b := NewBank(DefaultConfig())
	m := b.Match(descOf(0.5, 4), 0)
	require.False(t, m.Matched)
}

func TestRepeatedQueriesDoNotLowerConfidence(t *testing.T) {
	b := NewBank(DefaultConfig())
	d := descOf(1.0, 8)
	id := b.Register(d, 0, 128)

	b.Match(descOf(1.0, 8), 1)
	c1, _ := b.Confidence(id)
	b.Match(descOf(1.0, 8), 2)
	c2, _ := b.Confidence(id)
	require.GreaterOrEqual(t, c2, c1*0.99)
}

func TestCapacityPolicyPrunesWhenFull(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Capacity = 10
	b := NewBank(cfg)
	for i := 0; i < 10; i++ {
		b.Register(descOf(float32(i), 4), float64(i), 100)
	}
	require.Equal(t, 10, b.Len())

	b.Register(descOf(99, 4), 10, 100)
	require.LessOrEqual(t, b.Len(), 10)
}

func TestFeedbackMovesFalseAlarmRateTowardReported(t *testing.T) {
	b := NewBank(DefaultConfig())
	id := b.Register(descOf(1.0, 4), 0, 100)
	b.Feedback(id, true)
	b.Feedback(id, true)
	c, _ := b.Confidence(id)
	require.GreaterOrEqual(t, c, float32(0))
}
