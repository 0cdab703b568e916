package engine

import (
	"runtime"
	"time"

	"github.com/orionlabs/sensing-core/sensing"
	"github.com/orionlabs/sensing-core/types"
)

func nowMS() float64 { return float64(time.Now().UnixNano()) / 1e6 }

// runLane1 is the sensing reflex loop: the only lane §5 requires CPU
// pinning and RT-critical scheduling for. It owns the Kernel exclusively
// and reads the semantic and signature snapshots through the publishers'
// lock-free Load. It does not touch the signature bank; the only locks it
// takes are the metrics registry's short-held mutexes and the callback
// dispatcher's push mutex.
func (e *Engine) runLane1() {
	if e.cfg.PinHotLane {
		pinHotLane(e.logger, e.cfg.HotLaneCPU)
	} else {
		runtime.LockOSThread()
	}

	for {
		select {
		case <-e.ctx.Done():
			return
		default:
		}
		job, ok := e.cameraRing.PopWait(e.cfg.LaneWaitTimeout)
		if !ok {
			continue
		}
		e.processLane1(job)
	}
}

func (e *Engine) processLane1(job cameraJob) {
	start := time.Now()

	resized := resizeAreaAverage(job.Buf, job.Height, job.Width, e.cfg.Sensing.SensingHeight, e.cfg.Sensing.SensingWidth)

	snap, _ := e.semanticSnapshot.Load()
	state, _ := e.semanticState.Load()
	ageMS := -1.0
	if state.TimestampMS > 0 {
		ageMS = nowMS() - state.TimestampMS
	}

	sem := sensing.SemanticInput{
		Valid:         snap.Valid,
		AgeMS:         ageMS,
		FrontRisk:     snap.FrontRisk,
		LeftRisk:      snap.LeftRisk,
		RightRisk:     snap.RightRisk,
		CrackRisk:     snap.CrackRisk,
		PriorityCount: snap.PriorityDetections,
	}

	out, err := e.kernel.Process(job.FrameID, resized, sem)
	if err != nil {
		e.logger.Error("engine: lane1 resolution mismatch, dropping frame",
			"frame_id", job.FrameID, "err", err)
		return
	}

	latencyMS := float64(time.Since(start)) / float64(time.Millisecond)
	e.metricsReg.RecordFrame(job.FrameID, out.CrackScore, out.FusedCrackScore, latencyMS)
	e.metricsReg.RecordYoloAge(float32(ageMS))
	e.latencySig.Update(latencyMS, time.Now().UnixNano())
	e.checkFailsafeTransition()

	if out.IsNullCycle {
		return
	}

	sigMatch, _ := e.signatureMatch.Load()

	action := sensing.ActionFor(out.FusedCrackScore)
	crack := types.CrackMetrics{
		Score:             out.FusedCrackScore,
		WidthMM:           out.FusedCrackScore * float32(e.cfg.Sensing.SensingWidth) * e.cfg.Sensing.PxToMMScale / 100,
		LengthMM:          out.FusedCrackScore * float32(e.cfg.Sensing.SensingHeight) * e.cfg.Sensing.PxToMMScale / 100,
		SeverityLabel:     sensing.CrackSeverityFor(out.FusedCrackScore),
		ConfidencePercent: out.FusedCrackScore * 100,
		IsCritical:        action == types.ActionStop,
		IsWarning:         action == types.ActionSlow || action == types.ActionCaution,
	}

	decision := types.ControlDecision{
		FrameID:             job.FrameID,
		TraceID:             job.TraceID,
		Timestamp:           start,
		Throttle:            out.Throttle,
		Steer:               out.Steer,
		Action:              action,
		Crack:               crack,
		SemanticActive:      out.SemanticActive,
		SemanticAgeMS:       out.SemanticAgeMS,
		LatencyMS:           latencyMS,
		IsNullCycle:         out.IsNullCycle,
		SignatureConfidence: sigMatch.Confidence,
	}

	// CONTROL is pushed before UPLINK for this frame_id so Lane 6's
	// dispatch order preserves the contractual ordering (DESIGN.md).
	e.dispatcher.PushControl(decision)

	if e.cfg.EnableLane2 {
		l2Buf := make([]byte, len(resized))
		copy(l2Buf, resized)
		e.l2Ring.TryPush(types.FrameJob{
			FrameID:    job.FrameID,
			TraceID:    job.TraceID,
			Height:     e.cfg.Sensing.SensingHeight,
			Width:      e.cfg.Sensing.SensingWidth,
			CrackScore: out.CrackScore,
			Buf:        l2Buf,
		})
	}

	if e.cfg.EnableLane3 {
		e.l3Ring.TryPush(types.SemanticJob{
			FrameID:    job.FrameID,
			TraceID:    job.TraceID,
			Height:     job.Height,
			Width:      job.Width,
			Timestamp:  nowMS(),
			CrackScore: out.CrackScore,
			Sparsity:   out.Sparsity,
			Buf:        job.Buf,
		})
	}

	if e.cfg.EnableLane4 {
		metricsSnap := e.metricsReg.Snapshot()
		e.l4Ring.TryPush(types.UplinkPayload{
			FrameID:             job.FrameID,
			TraceID:             job.TraceID,
			Timestamp:           start,
			Throttle:            out.Throttle,
			Steer:               out.Steer,
			CrackScore:          out.FusedCrackScore,
			Sparsity:            out.Sparsity,
			Action:              action,
			ControlLatencyMS:    latencyMS,
			CrackSeverity:       crack.SeverityLabel,
			CrackWidthMM:        crack.WidthMM,
			FailsafeStatus:      e.FailsafeStatus(),
			SignatureConfidence: sigMatch.Confidence,
			YoloCount:           metricsSnap.YoloCount,
			LatencyViolations:   metricsSnap.LatencyViolations,
		})
	}

	if e.cfg.EnableLane5 {
		l5Buf := make([]byte, len(resized))
		copy(l5Buf, resized)
		e.l5Ring.TryPush(types.VisJob{
			FrameID:    job.FrameID,
			Height:     e.cfg.Sensing.SensingHeight,
			Width:      e.cfg.Sensing.SensingWidth,
			CrackScore: out.FusedCrackScore,
			Sparsity:   out.Sparsity,
			OnCount:    out.OnSpikeCount,
			OffCount:   out.OffSpikeCount,
			Buf:        l5Buf,
		})
	}
}

// runLane2 is the signature-matching lane and the only lane that touches
// the bank: it takes the bank's exclusive lock for every Match/Register
// call. Lane 1 and Lane 3 read its results through the signatureMatch
// snapshot, not through the bank.
func (e *Engine) runLane2() {
	for {
		select {
		case <-e.ctx.Done():
			return
		default:
		}
		job, ok := e.l2Ring.PopWait(e.cfg.LaneWaitTimeout)
		if !ok {
			continue
		}
		desc := extractDescriptors(job.Buf, job.CrackScore, 0)
		now := nowMS() / 1000.0

		match := e.bank.Match(desc, now)
		if !match.Matched {
			id := e.bank.Register(desc, now, 0)
			match = types.SignatureMatch{Matched: false, ID: id, CrackScore: job.CrackScore}
		} else {
			match.CrackScore = job.CrackScore
		}
		e.signatureMatch.Publish(match)
	}
}

// runLane3 is the gated-inference lane: it runs the detector-scheduler
// cascade and, only when it says to, pays the cost of the external
// detector call.
func (e *Engine) runLane3() {
	for {
		select {
		case <-e.ctx.Done():
			return
		default:
		}
		job, ok := e.l3Ring.PopWait(e.cfg.LaneWaitTimeout)
		if !ok {
			continue
		}

		sig, _ := e.signatureMatch.Load()
		decision := e.gate.Decide(sig, int(job.FrameID), job.Timestamp, job.CrackScore, false)
		if !decision.ShouldInfer {
			continue
		}

		snap, err := e.cfg.Detector.Detect(job.Buf, job.Height, job.Width)
		if err != nil {
			e.logger.Warn("engine: lane3 detector unavailable, keeping last snapshot",
				"frame_id", job.FrameID, "err", err)
			continue
		}

		e.semanticSnapshot.Publish(snap)
		e.semanticState.Publish(types.SemanticState{
			FrameID:       job.FrameID,
			TimestampMS:   nowMS(),
			NumDetected:   snap.NumDetections,
			MaxConfidence: snap.MaxConfidence,
		})

		e.metricsReg.RecordYolo(sig.Confidence)
		e.detectCtrl.AddDetection(snap.MaxConfidence, job.CrackScore)
		e.detectCtrl.UpdateAdaptiveThresholds()
	}
}

// runLane4 serializes and ships uplink payloads, then hands the same
// payload to Lane 6 for the user's UplinkHook.
func (e *Engine) runLane4() {
	for {
		select {
		case <-e.ctx.Done():
			return
		default:
		}
		payload, ok := e.l4Ring.PopWait(e.cfg.LaneWaitTimeout)
		if !ok {
			continue
		}

		wire, err := e.cfg.UplinkSerializer.Serialize(payload)
		if err != nil {
			e.logger.Error("engine: lane4 serialize failed", "frame_id", payload.FrameID, "err", err)
			continue
		}
		if err := e.cfg.UplinkSink.Send(wire); err != nil {
			e.logger.Warn("engine: lane4 sink send failed", "frame_id", payload.FrameID, "err", err)
		}

		e.dispatcher.PushUplink(payload)
		e.metricsReg.RecordUplink()
	}
}

// runLane5 draws and encodes the overlay frame, publishing the result
// for any out-of-band viewer to pull.
func (e *Engine) runLane5() {
	for {
		select {
		case <-e.ctx.Done():
			return
		default:
		}
		job, ok := e.l5Ring.PopWait(e.cfg.LaneWaitTimeout)
		if !ok {
			continue
		}

		blob, err := e.cfg.VizEncoder.Encode(job)
		if err != nil {
			e.logger.Warn("engine: lane5 encode failed, skipping frame", "frame_id", job.FrameID, "err", err)
			continue
		}
		e.vizBlob.Store(blob)
		e.metricsReg.RecordVizBytes(len(blob))
	}
}
