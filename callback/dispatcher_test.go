package callback

import (
	"sync"
	"testing"
	"time"

	"github.com/orionlabs/sensing-core/types"
	"github.com/stretchr/testify/require"
)

func TestControlBeforeUplinkOrderingPreservedForSameFrame(t *testing.T) {
	var mu sync.Mutex
	var order []string

	d := New(16, func(c types.ControlDecision) {
		mu.Lock()
		order = append(order, "control")
		mu.Unlock()
	}, func(u types.UplinkPayload) {
		mu.Lock()
		order = append(order, "uplink")
		mu.Unlock()
	})

	stop := make(chan struct{})
	go d.Run(stop)

	d.PushControl(types.ControlDecision{FrameID: 1})
	d.PushUplink(types.UplinkPayload{FrameID: 1})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 2
	}, time.Second, time.Millisecond)

	close(stop)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"control", "uplink"}, order)
}

func TestDispatcherCountsDroppedWhenFull(t *testing.T) {
	d := New(1, nil, nil)
	d.PushControl(types.ControlDecision{FrameID: 1})
	d.PushControl(types.ControlDecision{FrameID: 2})
	require.Equal(t, uint64(1), d.Stats().Dropped)
}

func TestDispatcherDispatchesAllPushedJobs(t *testing.T) {
	d := New(64, nil, nil)
	for i := 0; i < 10; i++ {
		d.PushControl(types.ControlDecision{FrameID: uint64(i)})
	}
	for i := 0; i < 5; i++ {
		d.PushUplink(types.UplinkPayload{FrameID: uint64(i)})
	}
	stop := make(chan struct{})
	go d.Run(stop)

	require.Eventually(t, func() bool {
		st := d.Stats()
		return st.ControlDispatched == 10 && st.UplinkDispatched == 5
	}, time.Second, time.Millisecond)
	close(stop)
}
