package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/orionlabs/sensing-core/types"
	"github.com/stretchr/testify/require"
)

func tinyConfig() Config {
	cfg := DefaultConfig()
	cfg.Sensing.SensingHeight = 4
	cfg.Sensing.SensingWidth = 4
	cfg.Signature.Capacity = 8
	cfg.CameraRingCapacity = 8
	cfg.L2RingCapacity = 8
	cfg.L3RingCapacity = 8
	cfg.L4RingCapacity = 8
	cfg.L5RingCapacity = 8
	cfg.LaneWaitTimeout = 5 * time.Millisecond
	return cfg
}

func TestPushFrameAssignsMonotonicFrameIDs(t *testing.T) {
	e, err := New(tinyConfig(), nil)
	require.NoError(t, err)

	buf := make([]byte, 4*4*3)
	require.NoError(t, e.PushFrame(buf, 4, 4))
	require.NoError(t, e.PushFrame(buf, 4, 4))
	require.Equal(t, uint64(2), e.frameIDCounter.Load())
}

func TestPushFrameReturnsQueueFullWhenCameraRingSaturated(t *testing.T) {
	cfg := tinyConfig()
	cfg.CameraRingCapacity = 1
	e, err := New(cfg, nil)
	require.NoError(t, err)

	buf := make([]byte, 4*4*3)
	require.NoError(t, e.PushFrame(buf, 4, 4))

	err = e.PushFrame(buf, 4, 4)
	require.Error(t, err)

	var engErr *Error
	require.True(t, errors.As(err, &engErr))
	require.Equal(t, KindQueueFull, engErr.Kind)
}

func TestEndToEndSecondFrameProducesControlCallback(t *testing.T) {
	cfg := tinyConfig()
	ctrlCh := make(chan types.ControlDecision, 4)
	cfg.ControlHook = func(d types.ControlDecision) { ctrlCh <- d }

	e, err := New(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, e.Start(context.Background()))
	defer e.Stop()

	buf1 := make([]byte, 4*4*3)
	require.NoError(t, e.PushFrame(buf1, 4, 4))

	buf2 := make([]byte, 4*4*3)
	for i := range buf2 {
		buf2[i] = 200
	}
	require.NoError(t, e.PushFrame(buf2, 4, 4))

	select {
	case d := <-ctrlCh:
		require.Equal(t, uint64(1), d.FrameID)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for control callback")
	}
}

func TestEmergencyStopDispatchesThrottleZeroStop(t *testing.T) {
	cfg := tinyConfig()
	ctrlCh := make(chan types.ControlDecision, 4)
	cfg.ControlHook = func(d types.ControlDecision) { ctrlCh <- d }

	e, err := New(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, e.Start(context.Background()))

	require.NoError(t, e.EmergencyStop())

	select {
	case d := <-ctrlCh:
		require.Equal(t, types.ActionStop, d.Action)
		require.Equal(t, float32(0), d.Throttle)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for emergency stop callback")
	}
}

func TestMetricsReflectProcessedFrames(t *testing.T) {
	cfg := tinyConfig()
	e, err := New(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, e.Start(context.Background()))
	defer e.Stop()

	buf := make([]byte, 4*4*3)
	require.NoError(t, e.PushFrame(buf, 4, 4))
	require.NoError(t, e.PushFrame(buf, 4, 4))

	require.Eventually(t, func() bool {
		return e.Metrics().FrameID >= 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestDoubleStartReturnsError(t *testing.T) {
	e, err := New(tinyConfig(), nil)
	require.NoError(t, err)
	require.NoError(t, e.Start(context.Background()))
	defer e.Stop()
	require.Error(t, e.Start(context.Background()))
}
