// Package types holds the data shared across lanes: frames, jobs, the
// sensing kernel's outputs, the published snapshots, and the process-wide
// metrics surface. Nothing here takes a lock or spawns a goroutine — it is
// the vocabulary the other packages share.
package types

import "time"

// Frame is a raw BGR byte buffer with fixed dimensions for the run. Rows
// are packed row-major, 3 bytes per pixel (B, G, R). Ownership passes to
// whichever lane currently holds it; fan-out always copies, never aliases.
type Frame struct {
	Data   []byte
	Width  int
	Height int
}

// FrameJob is what Lane 1 hands to Lane 2 (signature): a resized buffer
// plus the crack score computed for it. Lane 5 receives a VisJob instead.
type FrameJob struct {
	FrameID    uint64
	TraceID    string
	Height     int
	Width      int
	CrackScore float32
	Buf        []byte
}

// SemanticJob is the Lane 3 variant of FrameJob: it additionally carries
// the full-resolution buffer and the fields the detector-gating decision
// needs to log against.
type SemanticJob struct {
	FrameID    uint64
	TraceID    string
	Height     int
	Width      int
	Timestamp  float64
	CrackScore float32
	Sparsity   float32
	TargetHz   float32
	Buf        []byte
}

// ControlOutput is the sensing kernel's per-frame result, before Lane 1
// turns it into a user-facing ControlDecision.
type ControlOutput struct {
	FrameID             uint64
	CrackScore          float32
	FusedCrackScore     float32
	Sparsity            float32
	Throttle            float32
	Steer               float32
	OnSpikeCount        int
	OffSpikeCount       int
	SemanticActive      bool
	SemanticAgeMS       float64
	InferenceSuppressed bool
	EventOnlyMode       bool
	ReferenceFrameAge   int
	IsNullCycle         bool
}

// SemanticSnapshot is the only data shared from Lane 3 back to Lane 1. At
// most two instances exist at any time: the active one and the staging
// one behind the double buffer in package snapshot.
type SemanticSnapshot struct {
	SequenceID         uint32
	Valid              bool
	TimestampS         float64
	FrontRisk          float32
	LeftRisk           float32
	RightRisk          float32
	CrackRisk          float32
	MinDistanceM       float32
	MaxConfidence      float32
	NumDetections      int
	PriorityDetections int
	NumFilteredOut     int
}

// SemanticState is published alongside SemanticSnapshot purely so Lane 1
// can compute age without re-reading the (larger) snapshot body.
type SemanticState struct {
	FrameID       uint64
	TimestampMS   float64
	LatencyMS     float64
	NumDetected   int
	MaxConfidence float32
}

// SignatureMatch is published by Lane 2, read by Lane 3's gating decision
// and by Lane 1's control-decision builder.
type SignatureMatch struct {
	Matched            bool
	ID                 int
	Distance           float32
	Confidence         float32
	StructuralDistance float32
	CrackScore         float32
}

// Action is one of the four byte-exact action labels the sensing kernel
// may emit.
type Action string

const (
	ActionClear   Action = "CLEAR"
	ActionCaution Action = "CAUTION"
	ActionSlow    Action = "SLOW"
	ActionStop    Action = "STOP"
)

// CrackMetrics carries the physical-unit crack measurements derived from
// PxToMMScale, alongside a human-readable severity label.
type CrackMetrics struct {
	Score             float32
	WidthMM           float32
	LengthMM          float32
	SeverityLabel     string
	ConfidencePercent float32
	IsCritical        bool
	IsWarning         bool
}

// ControlDecision is the user-facing outcome of one Lane 1 cycle.
type ControlDecision struct {
	FrameID             uint64
	TraceID             string
	Timestamp           time.Time
	Throttle            float32
	Steer               float32
	Action              Action
	Crack               CrackMetrics
	SemanticActive      bool
	SemanticAgeMS       float64
	LatencyMS           float64
	IsNullCycle         bool
	InferenceSuppressed bool
	EventOnlyMode       bool
	SignatureConfidence float32
}

// UplinkPayload is the serializable snapshot of the last decision plus
// rolling counters, produced by Lane 1 and handed to Lane 4.
type UplinkPayload struct {
	FrameID             uint64
	TraceID             string
	Timestamp           time.Time
	Throttle            float32
	Steer               float32
	CrackScore          float32
	Sparsity            float32
	Action              Action
	ControlLatencyMS    float64
	CrackSeverity       string
	CrackWidthMM        float32
	FailsafeStatus      FailsafeStatus
	SignatureConfidence float32
	YoloCount           uint64
	LatencyViolations   uint64
}

// FailsafeStatus mirrors the three-level status the failsafe monitor
// publishes; the engine only ever writes signal values and never branches
// on this.
type FailsafeStatus int

const (
	FailsafeOK FailsafeStatus = iota
	FailsafeWarning
	FailsafeCritical
)

func (s FailsafeStatus) String() string {
	switch s {
	case FailsafeWarning:
		return "WARNING"
	case FailsafeCritical:
		return "CRITICAL"
	default:
		return "OK"
	}
}

// VisJob is what Lane 1 hands to Lane 5: a downscaled frame plus the
// overlay metrics it should draw before encoding.
type VisJob struct {
	FrameID    uint64
	Height     int
	Width      int
	CrackScore float32
	Sparsity   float32
	OnCount    int
	OffCount   int
	Buf        []byte
}

// Metrics is the process-wide read-only snapshot surface: counters and
// percentiles updated by writers with relaxed atomics, copy-returned to
// any observer.
type Metrics struct {
	FrameID             uint64
	LastCrack           float32
	FusedCrack          float32
	SignatureConfidence float32
	CrackFrames         uint64
	YoloCount           uint64
	UplinkCount         uint64
	LatencyViolations   uint64
	FPS                 float32
	YoloHz              float32
	LatencyP50MS        float32
	LatencyP95MS        float32
	LatencyP99MS        float32
	WindowCrackRatio    float32
	GlobalCrackRatio    float32
	YoloAgeMS           float32
	SpikeBitrateMbps    float32
}
