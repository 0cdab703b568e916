package sensing

import (
	"testing"

	"github.com/orionlabs/sensing-core/types"
	"github.com/stretchr/testify/require"
)

func uniformFrame(cfg Config, value byte) []byte {
	buf := make([]byte, cfg.SensingHeight*cfg.SensingWidth*3)
	for i := range buf {
		buf[i] = value
	}
	return buf
}

func TestFirstFrameIsNullCycle(t *testing.T) {
	cfg := DefaultConfig()
	k := NewKernel(cfg)
	out, err := k.Process(1, uniformFrame(cfg, 128), SemanticInput{})
	require.NoError(t, err)
	require.True(t, out.IsNullCycle)
	require.Equal(t, 0, out.OnSpikeCount)
	require.Equal(t, 0, out.OffSpikeCount)
	require.Equal(t, float32(0), out.CrackScore)
}

// Scenario 1: identical frames zero out events.
func TestIdenticalFramesZeroEvents(t *testing.T) {
	cfg := DefaultConfig()
	k := NewKernel(cfg)
	_, err := k.Process(1, uniformFrame(cfg, 128), SemanticInput{})
	require.NoError(t, err)

	out, err := k.Process(2, uniformFrame(cfg, 128), SemanticInput{})
	require.NoError(t, err)
	require.Equal(t, 0, out.OnSpikeCount)
	require.Equal(t, 0, out.OffSpikeCount)
	require.Equal(t, float32(0), out.CrackScore)
	require.Equal(t, float32(1.0), out.Sparsity)
	require.Equal(t, types.ActionClear, ActionFor(out.FusedCrackScore))
}

// Scenario 2 (loose form): a large uniform upward step produces dense ON
// events and zero OFF events. The exact density depends on the lateral
// inhibition implementation's causal window; what must hold regardless is
// that at least the very first interior pixel always fires (it has no
// already-processed causal neighbors) and no OFF event is possible when
// every delta is strongly positive.
func TestLargeStepYieldsOnEventsNoOffEvents(t *testing.T) {
	cfg := DefaultConfig()
	k := NewKernel(cfg)
	_, err := k.Process(1, uniformFrame(cfg, 50), SemanticInput{})
	require.NoError(t, err)

	out, err := k.Process(2, uniformFrame(cfg, 150), SemanticInput{})
	require.NoError(t, err)
	require.Greater(t, out.OnSpikeCount, 0)
	require.Equal(t, 0, out.OffSpikeCount)
	require.LessOrEqual(t, out.OnSpikeCount+out.OffSpikeCount, (cfg.SensingHeight-2)*(cfg.SensingWidth-2))
}

// Scenario 3: a stale semantic snapshot is treated as absent, so fused
// crack equals raw crack and no amplification/dampening applies.
func TestStaleSemanticIsAbsent(t *testing.T) {
	cfg := DefaultConfig()
	k := NewKernel(cfg)

	sem := SemanticInput{Valid: true, AgeMS: 300, CrackRisk: 0.9, FrontRisk: 0.9}
	fused := k.fuseCrack(0.2, sem)
	require.Equal(t, float32(0.2), fused, "age beyond MaxAgeMS must be treated as absent")
}

func TestNegativeAgeIsAbsent(t *testing.T) {
	cfg := DefaultConfig()
	k := NewKernel(cfg)
	sem := SemanticInput{Valid: true, AgeMS: -5, CrackRisk: 0.9}
	fused := k.fuseCrack(0.2, sem)
	require.Equal(t, float32(0.2), fused)
}

func TestDecayPassesThroughBeforeStaleStart(t *testing.T) {
	cfg := DefaultConfig()
	k := NewKernel(cfg)
	require.Equal(t, float32(0.5), k.decay(0.5, 50))
}

func TestDecayLinearlyFadesToZeroAtMaxAge(t *testing.T) {
	cfg := DefaultConfig()
	k := NewKernel(cfg)
	mid := k.decay(1.0, (cfg.StaleStartMS+cfg.MaxAgeMS)/2)
	require.InDelta(t, 0.5, mid, 0.01)
	require.Equal(t, float32(0), k.decay(1.0, cfg.MaxAgeMS))
}

func TestAmplificationWhenSemanticRiskAndRawCrackBothSignificant(t *testing.T) {
	cfg := DefaultConfig()
	k := NewKernel(cfg)
	sem := SemanticInput{Valid: true, AgeMS: 0, CrackRisk: 0.5, FrontRisk: 0.1}
	fused := k.fuseCrack(0.10, sem)
	require.Greater(t, fused, float32(0.10))
}

func TestDampeningWhenBothLow(t *testing.T) {
	cfg := DefaultConfig()
	k := NewKernel(cfg)
	sem := SemanticInput{Valid: true, AgeMS: 0, CrackRisk: 0.05, FrontRisk: 0.02}
	fused := k.fuseCrack(0.08, sem)
	require.Equal(t, float32(0.04), fused)
}

// Action boundaries take the lower-severity label (strict >).
func TestActionBoundaries(t *testing.T) {
	require.Equal(t, types.ActionClear, ActionFor(0.10))
	require.Equal(t, types.ActionCaution, ActionFor(0.1001))
	require.Equal(t, types.ActionCaution, ActionFor(0.40))
	require.Equal(t, types.ActionSlow, ActionFor(0.4001))
	require.Equal(t, types.ActionSlow, ActionFor(0.70))
	require.Equal(t, types.ActionStop, ActionFor(0.7001))
}

func TestResolutionMismatchReturnsSentinel(t *testing.T) {
	cfg := DefaultConfig()
	k := NewKernel(cfg)
	out, err := k.Process(5, make([]byte, 10), SemanticInput{})
	require.Error(t, err)
	require.Equal(t, ^uint64(0), out.FrameID)
}
