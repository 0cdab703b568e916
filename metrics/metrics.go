// Package metrics implements the process-wide rolling counters and
// percentile snapshot surface named in spec §3/§6: writers update with
// relaxed atomics on the hot path, readers take a copy-returned snapshot
// at any time. Percentiles are computed on demand from a fixed-depth
// latency ring, never from a mutex-guarded growing slice.
package metrics

import (
	"math"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/orionlabs/sensing-core/types"
	"gonum.org/v1/gonum/stat"
)

// Registry holds every counter and rolling average the Metrics surface
// reports. Counters and last values are written with relaxed atomics;
// the latency ring is guarded by latencyMu and each rate tracker by its
// own mutex. Snapshot copies them into a types.Metrics value.
type Registry struct {
	frameID           atomic.Uint64
	crackFrames       atomic.Uint64
	yoloCount         atomic.Uint64
	uplinkCount       atomic.Uint64
	latencyViolations atomic.Uint64

	lastCrack  atomic.Uint32 // float32 bits
	fusedCrack atomic.Uint32
	sigConf    atomic.Uint32
	yoloAgeMS  atomic.Uint32 // float32 bits

	latencyMu  sync.Mutex
	latencyBuf []float64 // fixed-depth ring, single-writer (L1) under latencyMu only for index bookkeeping
	latencyIdx int
	latencyLen int

	fpsTracker     *emaRate
	yoloTracker    *emaRate
	bitrateTracker *emaByteRate

	maxLatencyMS float64
}

// NewRegistry constructs a Registry with a latency ring of the given
// depth (512 is what §4.3 recommends) and the control-latency budget used
// to count violations.
func NewRegistry(latencyDepth int, maxLatencyMS float64) *Registry {
	if latencyDepth <= 0 {
		latencyDepth = 512
	}
	return &Registry{
		latencyBuf:     make([]float64, latencyDepth),
		fpsTracker:     newEMARate(0.1),
		yoloTracker:    newEMARate(0.1),
		bitrateTracker: newEMAByteRate(0.2),
		maxLatencyMS:   maxLatencyMS,
	}
}

// RecordFrame updates the per-frame counters: frame id, crack score,
// fused crack score and latency. Called once per Lane 1 cycle.
func (r *Registry) RecordFrame(frameID uint64, crackScore, fusedCrack float32, latencyMS float64) {
	r.frameID.Store(frameID)
	r.lastCrack.Store(f32bits(crackScore))
	r.fusedCrack.Store(f32bits(fusedCrack))
	if crackScore > 0 {
		r.crackFrames.Add(1)
	}
	if latencyMS > r.maxLatencyMS {
		r.latencyViolations.Add(1)
	}
	r.recordLatency(latencyMS)
	r.fpsTracker.tick()
}

func (r *Registry) recordLatency(ms float64) {
	r.latencyMu.Lock()
	r.latencyBuf[r.latencyIdx] = ms
	r.latencyIdx = (r.latencyIdx + 1) % len(r.latencyBuf)
	if r.latencyLen < len(r.latencyBuf) {
		r.latencyLen++
	}
	r.latencyMu.Unlock()
}

// RecordYolo notes one detector invocation, advancing the YOLO Hz
// tracker and the signature confidence observed at that time.
func (r *Registry) RecordYolo(sigConf float32) {
	r.yoloCount.Add(1)
	r.sigConf.Store(f32bits(sigConf))
	r.yoloTracker.tick()
}

// RecordUplink notes one uplink payload having been serialized.
func (r *Registry) RecordUplink() {
	r.uplinkCount.Add(1)
}

// RecordYoloAge notes how stale the semantic snapshot Lane 1 consumed
// was, in milliseconds. Called once per Lane 1 cycle with the same
// ageMS value fed into sensing.SemanticInput; a negative age (no
// detection published yet) is not recorded.
func (r *Registry) RecordYoloAge(ageMS float32) {
	if ageMS < 0 {
		return
	}
	r.yoloAgeMS.Store(f32bits(ageMS))
}

// RecordVizBytes advances the rolling Mb/s estimate with one Lane 5
// encoded overlay's size, per §4.7.
func (r *Registry) RecordVizBytes(n int) {
	r.bitrateTracker.tick(n)
}

// Snapshot copies the registry's current state into a types.Metrics
// value, computing latency percentiles from a point-in-time copy of the
// latency ring via gonum's quantile estimator.
func (r *Registry) Snapshot() types.Metrics {
	r.latencyMu.Lock()
	samples := make([]float64, r.latencyLen)
	copy(samples, r.latencyBuf[:r.latencyLen])
	r.latencyMu.Unlock()

	p50, p95, p99 := percentiles(samples)

	var windowRatio, globalRatio float32
	frames := r.frameID.Load()
	if frames > 0 {
		globalRatio = float32(r.crackFrames.Load()) / float32(frames)
		windowRatio = globalRatio // no separate rolling window kept beyond the latency ring's depth
	}

	return types.Metrics{
		FrameID:             frames,
		LastCrack:           f32frombits(r.lastCrack.Load()),
		FusedCrack:          f32frombits(r.fusedCrack.Load()),
		SignatureConfidence: f32frombits(r.sigConf.Load()),
		CrackFrames:         r.crackFrames.Load(),
		YoloCount:           r.yoloCount.Load(),
		UplinkCount:         r.uplinkCount.Load(),
		LatencyViolations:   r.latencyViolations.Load(),
		FPS:                 float32(r.fpsTracker.rate()),
		YoloHz:              float32(r.yoloTracker.rate()),
		LatencyP50MS:        float32(p50),
		LatencyP95MS:        float32(p95),
		LatencyP99MS:        float32(p99),
		WindowCrackRatio:    windowRatio,
		GlobalCrackRatio:    globalRatio,
		YoloAgeMS:           f32frombits(r.yoloAgeMS.Load()),
		SpikeBitrateMbps:    float32(r.bitrateTracker.rate()),
	}
}

// percentiles sorts a copy of samples (gonum's Quantile requires sorted,
// weighted input) and returns p50/p95/p99.
func percentiles(samples []float64) (p50, p95, p99 float64) {
	if len(samples) == 0 {
		return 0, 0, 0
	}
	sorted := append([]float64(nil), samples...)
	sort.Float64s(sorted)
	weights := make([]float64, len(sorted))
	for i := range weights {
		weights[i] = 1
	}
	return stat.Quantile(0.50, stat.Empirical, sorted, weights),
		stat.Quantile(0.95, stat.Empirical, sorted, weights),
		stat.Quantile(0.99, stat.Empirical, sorted, weights)
}

func f32bits(f float32) uint32     { return math.Float32bits(f) }
func f32frombits(u uint32) float32 { return math.Float32frombits(u) }
