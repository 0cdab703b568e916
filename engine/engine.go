// Package engine is the composition root: it owns the six lanes, the
// rings between them, the double-buffered snapshots, and every
// subsystem's lifecycle. Lanes receive non-owning capability handles from
// the Engine at start; cyclic access between lanes goes through the
// snapshot protocol, never through back-pointers (see DESIGN NOTES).
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/orionlabs/sensing-core/callback"
	"github.com/orionlabs/sensing-core/failsafe"
	"github.com/orionlabs/sensing-core/gating"
	"github.com/orionlabs/sensing-core/metrics"
	"github.com/orionlabs/sensing-core/ring"
	"github.com/orionlabs/sensing-core/sensing"
	"github.com/orionlabs/sensing-core/signature"
	"github.com/orionlabs/sensing-core/snapshot"
	"github.com/orionlabs/sensing-core/types"
	"github.com/orionlabs/sensing-core/viz"
	"golang.org/x/sync/errgroup"
)

type cameraJob struct {
	FrameID uint64
	TraceID string
	Buf     []byte
	Height  int
	Width   int
}

// Engine is the multi-lane concurrent core. Construct with New, start
// with Start, and feed frames with PushFrame.
type Engine struct {
	cfg    Config
	logger *slog.Logger
	runID  string

	cameraRing *ring.Ring[cameraJob]
	l2Ring     *ring.Ring[types.FrameJob]
	l3Ring     *ring.Ring[types.SemanticJob]
	l4Ring     *ring.Ring[types.UplinkPayload]
	l5Ring     *ring.Ring[types.VisJob]

	semanticSnapshot *snapshot.Publisher[types.SemanticSnapshot]
	semanticState    *snapshot.Publisher[types.SemanticState]
	signatureMatch   *snapshot.Publisher[types.SignatureMatch]

	kernel     *sensing.Kernel
	gate       *gating.Engine
	detectCtrl *gating.DetectionController
	bank       *signature.Bank
	dispatcher *callback.Dispatcher
	metricsReg *metrics.Registry
	latencySig *failsafe.Signal
	vizBlob    *viz.LatestBlob

	frameIDCounter    atomic.Uint64
	lastFailsafeState atomic.Int32

	ctx    context.Context
	cancel context.CancelFunc
	eg     *errgroup.Group

	running atomic.Bool
}

// New constructs an Engine from cfg. It does not start any lane.
func New(cfg Config, logger *slog.Logger) (*Engine, error) {
	if cfg.Sensing.SensingHeight == 0 || cfg.Sensing.SensingWidth == 0 {
		return nil, fmt.Errorf("engine: sensing resolution must be non-zero")
	}
	if logger == nil {
		logger = slog.Default()
	}

	e := &Engine{
		cfg:              cfg,
		logger:           logger,
		runID:            uuid.NewString(),
		cameraRing:       ring.New[cameraJob](cfg.CameraRingCapacity),
		l2Ring:           ring.New[types.FrameJob](cfg.L2RingCapacity),
		l3Ring:           ring.New[types.SemanticJob](cfg.L3RingCapacity),
		l4Ring:           ring.New[types.UplinkPayload](cfg.L4RingCapacity),
		l5Ring:           ring.New[types.VisJob](cfg.L5RingCapacity),
		semanticSnapshot: snapshot.NewPublisher(types.SemanticSnapshot{}),
		semanticState:    snapshot.NewPublisher(types.SemanticState{}),
		signatureMatch:   snapshot.NewPublisher(types.SignatureMatch{}),
		kernel:           sensing.NewKernel(cfg.Sensing),
		gate:             gating.NewEngine(cfg.ConfidenceThreshold, cfg.MaxSkipFrames, cfg.MaxSkipTimeMS, cfg.CriticalCrackThreshold),
		detectCtrl:       gating.NewDetectionController(),
		bank:             signature.NewBank(cfg.Signature),
		metricsReg:       metrics.NewRegistry(cfg.LatencyRingDepth, cfg.MaxControlLatencyMS),
		latencySig:       failsafe.NewSignal("l1_control_latency_ms"),
		vizBlob:          &viz.LatestBlob{},
	}
	e.dispatcher = callback.New(cfg.CallbackCapacity, cfg.ControlHook, cfg.UplinkHook)
	return e, nil
}

// RunID is the engine's run identifier, logged at start and stop.
// UplinkPayload does not carry it.
func (e *Engine) RunID() string { return e.runID }

// Start launches every enabled lane, plus Lane 6, under an errgroup.Group
// that Stop waits on. Every lane body returns nil and the group's derived
// context is not used, so the group joins the lanes; a lane cannot stop
// the others by failing, and a panicking lane is not recovered.
func (e *Engine) Start(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return fmt.Errorf("engine: already started")
	}
	e.ctx, e.cancel = context.WithCancel(ctx)
	e.eg, _ = errgroup.WithContext(e.ctx)

	stop := make(chan struct{})
	go func() {
		<-e.ctx.Done()
		close(stop)
	}()

	if e.cfg.EnableLane1 {
		e.eg.Go(func() error { e.runLane1(); return nil })
	}
	if e.cfg.EnableLane2 {
		e.eg.Go(func() error { e.runLane2(); return nil })
	}
	if e.cfg.EnableLane3 {
		e.eg.Go(func() error { e.runLane3(); return nil })
	}
	if e.cfg.EnableLane4 {
		e.eg.Go(func() error { e.runLane4(); return nil })
	}
	if e.cfg.EnableLane5 {
		e.eg.Go(func() error { e.runLane5(); return nil })
	}
	e.eg.Go(func() error { e.dispatcher.Run(stop); return nil })

	e.logger.Info("engine: started", "run_id", e.runID)
	return nil
}

// Stop cancels every lane and blocks until every lane goroutine has
// exited. Ring waiters are not woken: a lane blocked in PopWait notices
// the cancellation once its wait times out (at most LaneWaitTimeout).
// Draining is best-effort: items still queued at shutdown are discarded
// with the rings.
func (e *Engine) Stop() error {
	if !e.running.CompareAndSwap(true, false) {
		return nil
	}
	e.cancel()
	err := e.eg.Wait()
	e.logger.Info("engine: stopped", "run_id", e.runID)
	return err
}

// EmergencyStop is Stop plus a synthetic throttle-zero ControlDecision
// pushed directly to Lane 6, per §5.
func (e *Engine) EmergencyStop() error {
	e.dispatcher.PushControl(types.ControlDecision{
		Timestamp: time.Now(),
		Throttle:  0,
		Action:    types.ActionStop,
	})
	return e.Stop()
}

// PushFrame is the frame producer's entry point: buf must be BGR24,
// row-major, 3 bytes per pixel. The caller's buffer is copied before
// PushFrame returns, so the caller may reuse or free it immediately
// afterward. Returns a QueueFull *Error (counted, not fatal) if the
// camera ring is full.
func (e *Engine) PushFrame(buf []byte, height, width int) error {
	id := e.frameIDCounter.Add(1) - 1
	cp := make([]byte, len(buf))
	copy(cp, buf)

	job := cameraJob{
		FrameID: id,
		TraceID: uuid.NewString(),
		Buf:     cp,
		Height:  height,
		Width:   width,
	}
	if !e.cameraRing.TryPush(job) {
		return &Error{Kind: KindQueueFull, FrameID: id}
	}
	return nil
}

// Metrics returns a copy-returned snapshot of the process-wide counters.
func (e *Engine) Metrics() types.Metrics {
	return e.metricsReg.Snapshot()
}

// FailsafeStatus evaluates the latency signal against the configured
// warn/critical bounds. The engine itself never branches on this value;
// it is offered for callers that want the default bounds-only policy
// instead of wiring their own failsafe monitor.
func (e *Engine) FailsafeStatus() types.FailsafeStatus {
	return e.latencySig.Status(e.cfg.FailsafeWarnMS, e.cfg.FailsafeCritMS)
}

// VizBlob, SignatureBankSize and GatingStats expose read-only handles for an
// out-of-band HTTP surface or tests, without reaching into lane internals.
func (e *Engine) GatingStats() gating.Stats { return e.gate.GetStats() }

func (e *Engine) DispatcherStats() callback.Stats { return e.dispatcher.Stats() }

// checkFailsafeTransition calls DegradedModeHook when the latency
// signal's evaluated status changes, so the hook fires on transitions
// rather than once per cycle. Called from Lane 1 only.
func (e *Engine) checkFailsafeTransition() {
	if e.cfg.DegradedModeHook == nil {
		return
	}
	status := e.FailsafeStatus()
	if e.lastFailsafeState.Swap(int32(status)) != int32(status) {
		e.cfg.DegradedModeHook(status)
	}
}

// VizBlob returns the most recently encoded overlay frame, or nil if viz
// is disabled or nothing has been encoded yet.
func (e *Engine) VizBlob() []byte { return e.vizBlob.Load() }

// SignatureBankSize reports how many scenes the signature bank currently
// holds, for tests and introspection.
func (e *Engine) SignatureBankSize() int { return e.bank.Len() }
