package engine

import (
	"time"

	"github.com/orionlabs/sensing-core/detector"
	"github.com/orionlabs/sensing-core/sensing"
	"github.com/orionlabs/sensing-core/signature"
	"github.com/orionlabs/sensing-core/types"
	"github.com/orionlabs/sensing-core/uplink"
	"github.com/orionlabs/sensing-core/viz"
)

// Config wires every tunable named in spec §6. The zero Config is not
// valid; start from DefaultConfig.
type Config struct {
	Sensing   sensing.Config
	Signature signature.Config

	ConfidenceThreshold    float32
	MaxSkipFrames          int
	MaxSkipTimeMS          float32
	CriticalCrackThreshold float32

	EnableLane1 bool
	EnableLane2 bool
	EnableLane3 bool
	EnableLane4 bool
	EnableLane5 bool

	MaxControlLatencyMS float64
	PxToMMScale         float32

	CameraRingCapacity int
	L2RingCapacity     int
	L3RingCapacity     int
	L4RingCapacity     int
	L5RingCapacity     int
	CallbackCapacity   int
	LatencyRingDepth   int

	LaneWaitTimeout time.Duration

	Detector         detector.Detector
	UplinkSerializer uplink.Serializer
	UplinkSink       uplink.Sink
	VizEncoder       viz.Encoder

	ControlHook func(types.ControlDecision)
	UplinkHook  func(types.UplinkPayload)

	// DegradedModeHook observes failsafe status transitions. It is called
	// synchronously on Lane 1's goroutine, in the cycle where the status
	// changes; it is not routed through Lane 6. Supplementing spec §1's
	// external degraded-mode-policy collaborator; see SPEC_FULL.md §9.
	DegradedModeHook func(types.FailsafeStatus)

	FailsafeWarnMS float64
	FailsafeCritMS float64

	// PinHotLane requests CPU affinity + an elevated scheduling class for
	// Lane 1, per §5. Best-effort; failures are logged, never fatal.
	PinHotLane bool
	HotLaneCPU int
}

// DefaultConfig returns a Config with every lane enabled, the sensing
// resolution at 416x234 (§6), and the discard/no-op defaults for every
// external collaborator so the engine is directly constructible in
// tests.
func DefaultConfig() Config {
	return Config{
		Sensing:                sensing.DefaultConfig(),
		Signature:              signature.DefaultConfig(),
		ConfidenceThreshold:    0.5,
		MaxSkipFrames:          30,
		MaxSkipTimeMS:          500,
		CriticalCrackThreshold: 0.60,
		EnableLane1:            true,
		EnableLane2:            true,
		EnableLane3:            true,
		EnableLane4:            true,
		EnableLane5:            true,
		MaxControlLatencyMS:    5.0,
		PxToMMScale:            1.0,
		CameraRingCapacity:     64,
		L2RingCapacity:         32,
		L3RingCapacity:         16,
		L4RingCapacity:         64,
		L5RingCapacity:         32,
		CallbackCapacity:       128,
		LatencyRingDepth:       512,
		LaneWaitTimeout:        50 * time.Millisecond,
		Detector:               detector.Unavailable{},
		UplinkSerializer:       uplink.JSONSerializer{},
		UplinkSink:             uplink.DiscardSink{},
		VizEncoder:             viz.NoopEncoder{},
		FailsafeWarnMS:         5.0,
		FailsafeCritMS:         20.0,
	}
}
