// Package sensing implements the deterministic, single-threaded sensing
// kernel: BGR to luminance, temporal delta with lateral inhibition, crack
// evidence accumulation, semantic fusion, and the throttle/steer/action
// decision. No allocations occur on Process's fast path once a Kernel has
// been constructed for a given resolution.
package sensing

import (
	"fmt"
	"math"

	"github.com/orionlabs/sensing-core/types"
)

// Config holds the tunables §4.3.1 and §6 name. Zero-value fields are not
// valid; use DefaultConfig and override as needed.
type Config struct {
	SensingHeight int
	SensingWidth  int

	TOn    int32 // luminance delta threshold for an ON event
	TOff   int32 // luminance delta threshold for an OFF event
	TCrack int32 // horizontal-gradient threshold for crack evidence

	InhibitionRadius int // lateral inhibition causal radius, default 3

	MaxAgeMS         float64 // semantic snapshot older than this is absent
	StaleStartMS     float64 // decay begins at this age
	MaxAmplification float32 // crack amplification ceiling when semantic risk is high
	MaxSteerBiasDeg  float32 // clamp for steer bias magnitude
	PxToMMScale      float32 // physical scale for crack width/length
}

// DefaultConfig returns the recommended defaults named throughout §4.3.1.
func DefaultConfig() Config {
	return Config{
		SensingHeight:    234,
		SensingWidth:     416,
		TOn:              8,
		TOff:             8,
		TCrack:           77,
		InhibitionRadius: 3,
		MaxAgeMS:         200,
		StaleStartMS:     100,
		MaxAmplification: 2.5,
		MaxSteerBiasDeg:  15,
		PxToMMScale:      1.0,
	}
}

// SemanticInput is the view of the latest SemanticSnapshot that Process
// needs: the raw risk values plus their age. Callers (Lane 1) are
// responsible for loading the snapshot via package snapshot and computing
// Age before calling Process; Process itself applies the age gating and
// decay. The kernel never touches the publication machinery, keeping it
// single-threaded and allocation-free.
type SemanticInput struct {
	Valid         bool
	AgeMS         float64
	FrontRisk     float32
	LeftRisk      float32
	RightRisk     float32
	CrackRisk     float32
	PriorityCount int
}

// Kernel holds the per-run state the sensing pipeline needs between
// frames: the previous luminance plane and the lateral-inhibition event
// planes, all sized once at construction and reused every call.
type Kernel struct {
	cfg Config

	prevLuma []int32
	currLuma []int32

	onEvents  []bool
	offEvents []bool

	throttleLUT [256]float32

	haveFrame bool
}

// NewKernel allocates a Kernel fixed to cfg.SensingHeight x
// cfg.SensingWidth. Every call to Process must pass a buffer of exactly
// that resolution.
func NewKernel(cfg Config) *Kernel {
	n := cfg.SensingHeight * cfg.SensingWidth
	k := &Kernel{
		cfg:       cfg,
		prevLuma:  make([]int32, n),
		currLuma:  make([]int32, n),
		onEvents:  make([]bool, n),
		offEvents: make([]bool, n),
	}
	k.buildThrottleLUT()
	return k
}

func (k *Kernel) buildThrottleLUT() {
	for i := 0; i < 256; i++ {
		fused := float32(i) / 255.0
		switch {
		case fused > 0.5:
			k.throttleLUT[i] = 0.3
		case fused > 0.2:
			k.throttleLUT[i] = 0.7
		default:
			k.throttleLUT[i] = 1.0
		}
	}
}

func (k *Kernel) throttleFor(fused float32) float32 {
	idx := int(fused * 255.0)
	if idx < 0 {
		idx = 0
	}
	if idx > 255 {
		idx = 255
	}
	return k.throttleLUT[idx]
}

// ErrResolutionMismatch is returned when the supplied buffer does not
// match the resolution the Kernel was constructed for. Per §7 this is
// fatal to the current frame only: the caller emits no fan-out and moves
// on to the next frame.
type ErrResolutionMismatch struct {
	Got, Want int
}

func (e *ErrResolutionMismatch) Error() string {
	return fmt.Sprintf("sensing: buffer length %d does not match expected %d", e.Got, e.Want)
}

// Process runs one full sensing cycle on buf, a row-major BGR24 buffer
// already resized to the Kernel's sensing resolution. sem is the caller's
// undecayed view of the latest semantic snapshot; Process ignores it when
// invalid or out of age range and decays it otherwise.
func (k *Kernel) Process(frameID uint64, buf []byte, sem SemanticInput) (types.ControlOutput, error) {
	sh, sw := k.cfg.SensingHeight, k.cfg.SensingWidth
	want := sh * sw * 3
	if len(buf) != want {
		return types.ControlOutput{FrameID: ^uint64(0)}, &ErrResolutionMismatch{Got: len(buf), Want: want}
	}

	k.bgrToLuma(buf)

	if !k.haveFrame {
		k.haveFrame = true
		k.swap()
		return types.ControlOutput{
			FrameID:     frameID,
			Sparsity:    1.0,
			Throttle:    1.0,
			IsNullCycle: true,
		}, nil
	}

	on, off, crackSum, crackPixels := k.temporalDeltaAndCrack()

	sparsity := float32(1) - float32(on+off)/float32(sh*sw)
	var rawCrack float32
	if crackPixels > 0 {
		rawCrack = crackSum / float32(crackPixels)
	}

	fused := k.fuseCrack(rawCrack, sem)

	throttle := k.throttleFor(fused)
	steer := k.steerBias(sem)

	semanticActive := sem.Valid && sem.AgeMS >= 0 && sem.AgeMS < k.cfg.MaxAgeMS

	if sem.PriorityCount > 0 {
		if throttle > 0.30 {
			throttle = 0.30
		}
	}

	out := types.ControlOutput{
		FrameID:         frameID,
		CrackScore:      rawCrack,
		FusedCrackScore: fused,
		Sparsity:        sparsity,
		Throttle:        throttle,
		Steer:           steer,
		OnSpikeCount:    on,
		OffSpikeCount:   off,
		SemanticActive:  semanticActive,
		SemanticAgeMS:   sem.AgeMS,
	}

	k.swap()
	return out, nil
}

func (k *Kernel) bgrToLuma(buf []byte) {
	n := k.cfg.SensingHeight * k.cfg.SensingWidth
	for i := 0; i < n; i++ {
		b := int32(buf[i*3+0])
		g := int32(buf[i*3+1])
		r := int32(buf[i*3+2])
		k.currLuma[i] = (54*r + 183*g + 19*b) >> 8
	}
}

// temporalDeltaAndCrack performs the single-pass event detection, lateral
// inhibition and bottom-third crack evidence accumulation described in
// §4.3.1(b)-(c).
func (k *Kernel) temporalDeltaAndCrack() (on, off int, crackSum float32, crackPixels int) {
	sh, sw := k.cfg.SensingHeight, k.cfg.SensingWidth
	r := k.cfg.InhibitionRadius
	roiStartY := (2 * sh) / 3

	for i := range k.onEvents {
		k.onEvents[i] = false
		k.offEvents[i] = false
	}

	for y := 1; y <= sh-2; y++ {
		for x := 1; x <= sw-2; x++ {
			idx := y*sw + x
			delta := k.currLuma[idx] - k.prevLuma[idx]

			if delta > k.cfg.TOn {
				if !k.causalNeighborFired(x, y, r, true) {
					k.onEvents[idx] = true
					on++
				}
			} else if delta < -k.cfg.TOff {
				if !k.causalNeighborFired(x, y, r, false) {
					k.offEvents[idx] = true
					off++
				}
			}

			if y >= roiStartY {
				g := k.currLuma[idx+1] - k.currLuma[idx-1]
				if g < 0 {
					g = -g
				}
				if g > k.cfg.TCrack {
					crackSum += float32(g) / 255.0
					crackPixels++
				}
			}
		}
	}
	return on, off, crackSum, crackPixels
}

// causalNeighborFired checks whether any already-processed neighbor in
// the scanline-causal region around (x,y) already produced an event of
// the requested polarity this frame: the current row's x-r..x-1, and a
// full r-row window above.
func (k *Kernel) causalNeighborFired(x, y, r int, onPolarity bool) bool {
	sw := k.cfg.SensingWidth
	events := k.offEvents
	if onPolarity {
		events = k.onEvents
	}

	for dx := 1; dx <= r; dx++ {
		nx := x - dx
		if nx < 0 {
			break
		}
		if events[y*sw+nx] {
			return true
		}
	}

	for dy := 1; dy <= r; dy++ {
		ny := y - dy
		if ny < 0 {
			break
		}
		lo, hi := x-r, x+r
		if lo < 0 {
			lo = 0
		}
		if hi > sw-1 {
			hi = sw - 1
		}
		for nx := lo; nx <= hi; nx++ {
			if events[ny*sw+nx] {
				return true
			}
		}
	}
	return false
}

// decay implements the age-aware confidence decay shared by every risk
// channel: pass-through up to StaleStartMS, linear decay to zero by
// MaxAgeMS, zero beyond.
func (k *Kernel) decay(value float32, ageMS float64) float32 {
	if ageMS < 0 || ageMS >= k.cfg.MaxAgeMS {
		return 0
	}
	if ageMS <= k.cfg.StaleStartMS {
		return value
	}
	frac := (k.cfg.MaxAgeMS - ageMS) / (k.cfg.MaxAgeMS - k.cfg.StaleStartMS)
	return value * float32(frac)
}

func (k *Kernel) fuseCrack(rawCrack float32, sem SemanticInput) float32 {
	if !sem.Valid || sem.AgeMS < 0 || sem.AgeMS >= k.cfg.MaxAgeMS {
		return rawCrack
	}

	crackRisk := k.decay(sem.CrackRisk, sem.AgeMS)
	frontRisk := k.decay(sem.FrontRisk, sem.AgeMS)
	semanticRisk := crackRisk
	if frontRisk > semanticRisk {
		semanticRisk = frontRisk
	}

	switch {
	case semanticRisk > 0.30 && rawCrack > 0.05:
		amplified := rawCrack * (1 + (k.cfg.MaxAmplification-1)*semanticRisk)
		return float32(math.Min(1, float64(amplified)))
	case semanticRisk < 0.10 && rawCrack < 0.10:
		return rawCrack * 0.5
	default:
		return rawCrack
	}
}

func (k *Kernel) steerBias(sem SemanticInput) float32 {
	if !sem.Valid || sem.AgeMS < 0 || sem.AgeMS >= k.cfg.MaxAgeMS {
		return 0
	}
	left := k.decay(sem.LeftRisk, sem.AgeMS)
	right := k.decay(sem.RightRisk, sem.AgeMS)
	asymmetry := left - right
	if asymmetry < 0 {
		if -asymmetry <= 0.10 {
			return 0
		}
	} else if asymmetry <= 0.10 {
		return 0
	}
	bias := k.cfg.MaxSteerBiasDeg * asymmetry
	if bias > k.cfg.MaxSteerBiasDeg {
		bias = k.cfg.MaxSteerBiasDeg
	}
	if bias < -k.cfg.MaxSteerBiasDeg {
		bias = -k.cfg.MaxSteerBiasDeg
	}
	return bias
}

func (k *Kernel) swap() {
	k.prevLuma, k.currLuma = k.currLuma, k.prevLuma
}

// ActionFor maps a fused crack score to its byte-exact action label per
// §4.3.1(f): boundary values take the lower-severity label (strict >).
func ActionFor(fusedCrack float32) types.Action {
	switch {
	case fusedCrack > 0.70:
		return types.ActionStop
	case fusedCrack > 0.40:
		return types.ActionSlow
	case fusedCrack > 0.10:
		return types.ActionCaution
	default:
		return types.ActionClear
	}
}

// CrackSeverityFor turns a crack score into a human-readable severity
// label, following the metrics the original uplink payload carried. It
// returns only the label; Lane 1 derives the physical measurements.
func CrackSeverityFor(score float32) string {
	switch {
	case score > 0.70:
		return "Critical"
	case score > 0.40:
		return "Moderate"
	case score > 0.10:
		return "Minor"
	default:
		return "None"
	}
}
