package metrics

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSnapshotReflectsRecordedFrames(t *testing.T) {
	r := NewRegistry(512, 5.0)
	r.RecordFrame(1, 0.2, 0.3, 2.0)
	r.RecordFrame(2, 0.0, 0.0, 10.0)

	snap := r.Snapshot()
	require.Equal(t, uint64(2), snap.FrameID)
	require.Equal(t, uint64(1), snap.CrackFrames)
	require.Equal(t, uint64(1), snap.LatencyViolations)
}

func TestPercentilesAreOrderedP50LEp95LEp99(t *testing.T) {
	r := NewRegistry(128, 100)
	for i := 1; i <= 100; i++ {
		r.RecordFrame(uint64(i), 0, 0, float64(i))
	}
	snap := r.Snapshot()
	require.LessOrEqual(t, snap.LatencyP50MS, snap.LatencyP95MS)
	require.LessOrEqual(t, snap.LatencyP95MS, snap.LatencyP99MS)
}

func TestYoloCountAndUplinkCountAccumulate(t *testing.T) {
	r := NewRegistry(64, 100)
	r.RecordYolo(0.5)
	r.RecordYolo(0.6)
	r.RecordUplink()
	snap := r.Snapshot()
	require.Equal(t, uint64(2), snap.YoloCount)
	require.Equal(t, uint64(1), snap.UplinkCount)
}
