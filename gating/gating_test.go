package gating

import (
	"testing"

	"github.com/orionlabs/sensing-core/types"
	"github.com/stretchr/testify/require"
)

// Scenario 4: a fresh engine forces inference on its first call even
// with a high-confidence match and zero crack score, because no
// inference has ever run.
func TestFreshEngineForcesFirstCycleInference(t *testing.T) {
	e := NewEngine(0.5, 30, 500, 0.60)
	d := e.Decide(types.SignatureMatch{Matched: true, Confidence: 0.99}, 1, 1000, 0.0, false)
	require.True(t, d.ShouldInfer)
	require.Equal(t, ReasonMaxSkipTime, d.Reason)
}

func TestForcedInferBeatsCriticalCrack(t *testing.T) {
	e := NewEngine(0.5, 30, 500, 0.60)
	e.Decide(types.SignatureMatch{Matched: true, Confidence: 0.9}, 1, 0, 0, false) // warm up so MaxSkipTime doesn't also fire
	d := e.Decide(types.SignatureMatch{Matched: true, Confidence: 0.9}, 2, 10, 0.9, true)
	require.Equal(t, ReasonForcedInfer, d.Reason)
}

func TestCriticalCrackFiresWhenNotForced(t *testing.T) {
	e := NewEngine(0.5, 30, 500, 0.60)
	e.Decide(types.SignatureMatch{Matched: true, Confidence: 0.9}, 1, 0, 0, false)
	d := e.Decide(types.SignatureMatch{Matched: true, Confidence: 0.9}, 2, 10, 0.9, false)
	require.Equal(t, ReasonCriticalCrack, d.Reason)
}

func TestMaxSkipFramesFiresAfterEnoughSkips(t *testing.T) {
	e := NewEngine(0.0, 3, 100000, 0.99)
	e.Decide(types.SignatureMatch{Matched: true, Confidence: 0.9}, 1, 0, 0, false)
	var d Decision
	for i := 0; i < 4; i++ {
		d = e.Decide(types.SignatureMatch{Matched: true, Confidence: 0.9}, i+2, float64(i+1), 0, false)
	}
	require.Equal(t, ReasonMaxSkipFrames, d.Reason)
	require.True(t, d.ShouldInfer)
}

func TestNovelSceneWhenUnmatched(t *testing.T) {
	e := NewEngine(0.0, 1000, 100000, 0.99)
	e.Decide(types.SignatureMatch{Matched: true, Confidence: 0.9}, 1, 0, 0, false)
	d := e.Decide(types.SignatureMatch{Matched: false, Confidence: 0}, 2, 1, 0, false)
	require.Equal(t, ReasonNovelScene, d.Reason)
}

func TestLowConfidenceBelowThreshold(t *testing.T) {
	e := NewEngine(0.5, 1000, 100000, 0.99)
	e.Decide(types.SignatureMatch{Matched: true, Confidence: 0.9}, 1, 0, 0, false)
	d := e.Decide(types.SignatureMatch{Matched: true, Confidence: 0.2}, 2, 1, 0, false)
	require.Equal(t, ReasonLowConfidence, d.Reason)
}

func TestHighConfidenceSkip(t *testing.T) {
	e := NewEngine(0.5, 1000, 100000, 0.99)
	e.Decide(types.SignatureMatch{Matched: true, Confidence: 0.9}, 1, 0, 0, false)
	d := e.Decide(types.SignatureMatch{Matched: true, Confidence: 0.9}, 2, 1, 0, false)
	require.Equal(t, ReasonHighConfidenceSkip, d.Reason)
	require.False(t, d.ShouldInfer)
}

// Round-trip: resetting returns stats to zero and forces inference again.
func TestResetReturnsStatsToZeroAndForcesNextDecision(t *testing.T) {
	e := NewEngine(0.5, 2, 50, 0.6)
	e.Decide(types.SignatureMatch{Matched: true, Confidence: 0.9}, 1, 0, 0, false)
	e.Decide(types.SignatureMatch{Matched: true, Confidence: 0.9}, 2, 1, 0, false)
	require.NotZero(t, e.GetStats().TotalDecisions)

	e.Reset()
	st := e.GetStats()
	require.Zero(t, st.TotalDecisions)
	require.Zero(t, st.InferCount)
	require.Zero(t, st.SkipCount)

	d := e.Decide(types.SignatureMatch{Matched: true, Confidence: 0.99}, 1, 1000, 0, false)
	require.True(t, d.ShouldInfer)
	require.Equal(t, ReasonMaxSkipTime, d.Reason)
}

func TestDetectionControllerAdaptsTowardActivity(t *testing.T) {
	c := NewDetectionController()
	start := c.CrackThreshold()
	c.AddDetection(0.8, 0.8)
	c.UpdateAdaptiveThresholds()
	require.Greater(t, c.CrackThreshold(), start)
}

func TestDetectionControllerRelaxesOnLowActivity(t *testing.T) {
	c := NewDetectionController()
	start := c.CrackThreshold()
	c.AddDetection(0.1, 0.1)
	c.UpdateAdaptiveThresholds()
	require.Less(t, c.CrackThreshold(), start)
}
