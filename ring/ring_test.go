package ring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTryPushPopRoundTrip(t *testing.T) {
	r := New[int](4)
	require.True(t, r.TryPush(1))
	require.True(t, r.TryPush(2))
	v, ok := r.TryPop()
	require.True(t, ok)
	require.Equal(t, 1, v)
	v, ok = r.TryPop()
	require.True(t, ok)
	require.Equal(t, 2, v)
	_, ok = r.TryPop()
	require.False(t, ok)
}

// Scenario 6: a producer-only burst of N items into a ring of capacity N
// all succeed; the (N+1)th fails and the drop counter increments by
// exactly one.
func TestBurstFillAndOverflow(t *testing.T) {
	const n = 8
	r := New[int](n)
	for i := 0; i < n; i++ {
		require.True(t, r.TryPush(i), "push %d should succeed", i)
	}
	require.True(t, r.Full())
	ok := r.TryPush(999)
	require.False(t, ok)
	require.Equal(t, uint64(1), r.Stats().DropCount)
}

func TestCapacityRoundsUpToPowerOfTwo(t *testing.T) {
	r := New[int](5)
	require.Equal(t, 8, r.Capacity())
}

func TestPushWaitTimesOutWhenFull(t *testing.T) {
	r := New[int](1)
	require.True(t, r.TryPush(1))
	ok := r.PushWait(2, 10*time.Millisecond)
	require.False(t, ok)
}

func TestPopWaitSucceedsOncePushed(t *testing.T) {
	r := New[int](2)
	done := make(chan struct{})
	go func() {
		time.Sleep(5 * time.Millisecond)
		r.TryPush(42)
		close(done)
	}()
	v, ok := r.PopWait(200 * time.Millisecond)
	require.True(t, ok)
	require.Equal(t, 42, v)
	<-done
}

func TestTryPopBatchDrainsUpToMax(t *testing.T) {
	r := New[int](8)
	for i := 0; i < 5; i++ {
		r.TryPush(i)
	}
	dst := make([]int, 3)
	n := r.TryPopBatch(dst)
	require.Equal(t, 3, n)
	require.Equal(t, []int{0, 1, 2}, dst)

	dst2 := make([]int, 4)
	n2 := r.TryPopBatch(dst2)
	require.Equal(t, 2, n2)
}

func TestStatsFillRatio(t *testing.T) {
	r := New[int](4)
	r.TryPush(1)
	r.TryPush(2)
	st := r.Stats()
	require.Equal(t, uint64(2), st.CurrentSize)
	require.Equal(t, uint64(4), st.Capacity)
	require.InDelta(t, 0.5, st.FillRatio, 1e-6)
}
