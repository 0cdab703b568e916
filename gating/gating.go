// Package gating implements the detector scheduler: a strict,
// never-reordered priority cascade deciding whether Lane 3 should invoke
// the external detector this cycle, plus the adaptive-threshold
// controller that tunes its own thresholds from the latest detector
// confidence and crack score.
package gating

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/orionlabs/sensing-core/types"
)

// Reason names which rung of the priority cascade produced a decision.
type Reason uint8

const (
	ReasonForcedInfer Reason = iota
	ReasonCriticalCrack
	ReasonMaxSkipFrames
	ReasonMaxSkipTime
	ReasonNovelScene
	ReasonLowConfidence
	ReasonHighConfidenceSkip
)

func (r Reason) String() string {
	switch r {
	case ReasonForcedInfer:
		return "ForcedInfer"
	case ReasonCriticalCrack:
		return "CriticalCrack"
	case ReasonMaxSkipFrames:
		return "MaxSkipFrames"
	case ReasonMaxSkipTime:
		return "MaxSkipTime"
	case ReasonNovelScene:
		return "NovelScene"
	case ReasonLowConfidence:
		return "LowConfidence"
	default:
		return "HighConfidenceSkip"
	}
}

// Decision is the zero-allocation outcome of one Decide call.
type Decision struct {
	ShouldInfer          bool
	Confidence           float32
	Reason               Reason
	SignatureMatched     bool
	SignatureConfidence  float32
	FramesSinceLastInfer int
	TimeSinceLastInferMS float64
}

// Stats is a relaxed-atomic snapshot of the cascade's counters, safe to
// read from any goroutine while Decide runs concurrently on its own.
type Stats struct {
	TotalDecisions    uint64
	InferCount        uint64
	SkipCount         uint64
	SuppressionRate   float32
	CurrentSkipStreak int
	MaxSkipStreak     int
}

// Engine is the detector scheduler. Decide must be called from exactly
// one goroutine; GetStats and UpdateConfig may be called concurrently
// with it and with each other.
type Engine struct {
	confidenceThreshold    atomic.Uint32 // float32 bits
	maxSkipFrames          atomic.Int64
	maxSkipTimeMS          atomic.Uint32 // float32 bits
	criticalCrackThreshold atomic.Uint32 // float32 bits

	// single-writer runtime state
	framesSinceLastInfer int
	lastInferTimeMS      float64
	currentSkipStreak    int
	maxSkipStreak        int
	everRun              bool

	totalDecisions    atomic.Uint64
	inferCount        atomic.Uint64
	skipCount         atomic.Uint64
	currentStreakSnap atomic.Int64
	maxStreakSnap     atomic.Int64
}

// NewEngine constructs an Engine with the given thresholds. Matching
// §4.4's defaults: criticalCrackThreshold defaults to 0.60 when zero.
func NewEngine(confidenceThreshold float32, maxSkipFrames int, maxSkipTimeMS float32, criticalCrackThreshold float32) *Engine {
	if criticalCrackThreshold == 0 {
		criticalCrackThreshold = 0.60
	}
	e := &Engine{}
	e.confidenceThreshold.Store(math.Float32bits(confidenceThreshold))
	e.maxSkipFrames.Store(int64(maxSkipFrames))
	e.maxSkipTimeMS.Store(math.Float32bits(maxSkipTimeMS))
	e.criticalCrackThreshold.Store(math.Float32bits(criticalCrackThreshold))
	return e
}

func (e *Engine) cfg() (confThr, maxSkipTime, critThr float32, maxSkip int) {
	return math.Float32frombits(e.confidenceThreshold.Load()),
		math.Float32frombits(e.maxSkipTimeMS.Load()),
		math.Float32frombits(e.criticalCrackThreshold.Load()),
		int(e.maxSkipFrames.Load())
}

// Decide runs the priority cascade for one cycle. currentTimeMS must be
// monotonically non-decreasing across calls.
func (e *Engine) Decide(sig types.SignatureMatch, frameID int, currentTimeMS float64, crackScore float32, forceInfer bool) Decision {
	confThr, maxSkipTime, critThr, maxSkip := e.cfg()

	// Initial behavior: before the first inference ever runs, simulate a
	// time overflow so the very first valid frame forces inference.
	var timeSinceLast float64
	if !e.everRun {
		timeSinceLast = float64(maxSkipTime) + 1
	} else {
		timeSinceLast = currentTimeMS - e.lastInferTimeMS
	}

	var (
		should bool
		reason Reason
	)

	switch {
	case forceInfer:
		should, reason = true, ReasonForcedInfer
	case crackScore >= critThr:
		should, reason = true, ReasonCriticalCrack
	case e.framesSinceLastInfer >= maxSkip:
		should, reason = true, ReasonMaxSkipFrames
	case timeSinceLast >= float64(maxSkipTime):
		should, reason = true, ReasonMaxSkipTime
	case !sig.Matched:
		should, reason = true, ReasonNovelScene
	case sig.Confidence < confThr:
		should, reason = true, ReasonLowConfidence
	default:
		should, reason = false, ReasonHighConfidenceSkip
	}

	d := Decision{
		ShouldInfer:          should,
		Confidence:           sig.Confidence,
		Reason:               reason,
		SignatureMatched:     sig.Matched,
		SignatureConfidence:  sig.Confidence,
		FramesSinceLastInfer: e.framesSinceLastInfer,
		TimeSinceLastInferMS: timeSinceLast,
	}

	if should {
		e.framesSinceLastInfer = 0
		e.lastInferTimeMS = currentTimeMS
		e.everRun = true
		e.currentSkipStreak = 0
		e.inferCount.Add(1)
	} else {
		e.framesSinceLastInfer++
		e.currentSkipStreak++
		if e.currentSkipStreak > e.maxSkipStreak {
			e.maxSkipStreak = e.currentSkipStreak
		}
		e.skipCount.Add(1)
	}
	e.totalDecisions.Add(1)
	e.currentStreakSnap.Store(int64(e.currentSkipStreak))
	e.maxStreakSnap.Store(int64(e.maxSkipStreak))

	return d
}

// GetStats returns a relaxed-atomic snapshot of the cascade's counters.
func (e *Engine) GetStats() Stats {
	total := e.totalDecisions.Load()
	infer := e.inferCount.Load()
	skip := e.skipCount.Load()
	var rate float32
	if total > 0 {
		rate = float32(skip) / float32(total)
	}
	return Stats{
		TotalDecisions:    total,
		InferCount:        infer,
		SkipCount:         skip,
		SuppressionRate:   rate,
		CurrentSkipStreak: int(e.currentStreakSnap.Load()),
		MaxSkipStreak:     int(e.maxStreakSnap.Load()),
	}
}

// Reset returns the engine to its construction-time state: stats go back
// to zero and the next Decide call forces inference again.
func (e *Engine) Reset() {
	e.framesSinceLastInfer = 0
	e.lastInferTimeMS = 0
	e.currentSkipStreak = 0
	e.maxSkipStreak = 0
	e.everRun = false
	e.totalDecisions.Store(0)
	e.inferCount.Store(0)
	e.skipCount.Store(0)
	e.currentStreakSnap.Store(0)
	e.maxStreakSnap.Store(0)
}

// UpdateConfig atomically updates the cascade's tunables. Safe to call
// concurrently with Decide.
func (e *Engine) UpdateConfig(confidenceThreshold float32, maxSkipFrames int, maxSkipTimeMS float32, criticalCrackThreshold float32) {
	e.confidenceThreshold.Store(math.Float32bits(confidenceThreshold))
	e.maxSkipFrames.Store(int64(maxSkipFrames))
	e.maxSkipTimeMS.Store(math.Float32bits(maxSkipTimeMS))
	e.criticalCrackThreshold.Store(math.Float32bits(criticalCrackThreshold))
}

// DetectionController implements the adaptive-threshold controller: a
// bounded nudge of its detector-confidence and crack thresholds driven by
// the level of the most recent observation of each signal. It keeps no
// window of past samples; each AddDetection replaces the previous one.
// The agreement value it tracks is reported but does not move the
// thresholds.
type DetectionController struct {
	mu sync.RWMutex

	avgDetectorConf float32
	avgCrackScore   float32
	avgAgreement    float32

	detectorConfThr float32
	crackThr        float32
}

// NewDetectionController returns a controller seeded with the defaults
// the original scheduler used (0.40 detector confidence, 0.50 crack).
func NewDetectionController() *DetectionController {
	return &DetectionController{
		detectorConfThr: 0.40,
		crackThr:        0.50,
	}
}

// AddDetection folds one (detectorConfidence, crackScore) observation
// into the controller's running averages, using the latest sample as the
// current estimate and tracking how closely the two signals agree.
func (c *DetectionController) AddDetection(detectorConf, crackScore float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.avgDetectorConf = detectorConf
	c.avgCrackScore = crackScore
	agreement := detectorConf - crackScore
	if agreement < 0 {
		agreement = -agreement
	}
	c.avgAgreement = 1 - agreement
}

// UpdateAdaptiveThresholds nudges both thresholds toward the direction
// recent activity suggests: high average activity raises the threshold
// (fewer, more confident runs); low activity lowers it (more sensitive).
// Each nudge is capped at ±0.02 per call and clamped to its allowed band.
func (c *DetectionController) UpdateAdaptiveThresholds() {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.avgCrackScore > 0.6:
		c.crackThr = minf(0.70, c.crackThr+0.02)
	case c.avgCrackScore < 0.3:
		c.crackThr = maxf(0.30, c.crackThr-0.02)
	}

	switch {
	case c.avgDetectorConf > 0.6:
		c.detectorConfThr = minf(0.60, c.detectorConfThr+0.02)
	case c.avgDetectorConf < 0.3:
		c.detectorConfThr = maxf(0.25, c.detectorConfThr-0.02)
	}
}

func (c *DetectionController) AvgDetectorConf() float32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.avgDetectorConf
}

func (c *DetectionController) AvgCrackScore() float32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.avgCrackScore
}

func (c *DetectionController) AvgAgreement() float32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.avgAgreement
}

func (c *DetectionController) DetectorConfThreshold() float32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.detectorConfThr
}

func (c *DetectionController) CrackThreshold() float32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.crackThr
}

func minf(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

func maxf(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}
