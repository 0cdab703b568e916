package metrics

import (
	"sync"
	"time"
)

// emaRate tracks an EMA of the interval between tick() calls and reports
// it as a Hz rate — used for both the frame FPS counter and the detector
// Hz counter, matching §4.6's "EMA on observed publish intervals".
type emaRate struct {
	mu       sync.Mutex
	alpha    float64
	lastTick time.Time
	emaMS    float64
	primed   bool
}

func newEMARate(alpha float64) *emaRate {
	return &emaRate{alpha: alpha}
}

func (e *emaRate) tick() {
	now := time.Now()
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.primed {
		e.lastTick = now
		e.primed = true
		return
	}
	intervalMS := float64(now.Sub(e.lastTick).Microseconds()) / 1000.0
	e.lastTick = now
	if e.emaMS == 0 {
		e.emaMS = intervalMS
		return
	}
	e.emaMS = e.alpha*intervalMS + (1-e.alpha)*e.emaMS
}

func (e *emaRate) rate() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.emaMS <= 0 {
		return 0
	}
	return 1000.0 / e.emaMS
}

// emaByteRate tracks an EMA of the instantaneous Mb/s implied by the
// bytes delivered at each tick, used for Lane 5's rolling viz bitrate
// estimate (§4.7). Unlike emaRate, the quantity smoothed is the
// rate itself rather than an interval, since byte counts vary per tick
// while emaRate assumes a roughly constant-size event.
type emaByteRate struct {
	mu       sync.Mutex
	alpha    float64
	lastTick time.Time
	emaMbps  float64
	primed   bool
}

func newEMAByteRate(alpha float64) *emaByteRate {
	return &emaByteRate{alpha: alpha}
}

func (e *emaByteRate) tick(nBytes int) {
	now := time.Now()
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.primed {
		e.lastTick = now
		e.primed = true
		return
	}
	intervalS := now.Sub(e.lastTick).Seconds()
	e.lastTick = now
	if intervalS <= 0 {
		return
	}
	mbps := float64(nBytes) * 8 / intervalS / 1e6
	if e.emaMbps == 0 {
		e.emaMbps = mbps
		return
	}
	e.emaMbps = e.alpha*mbps + (1-e.alpha)*e.emaMbps
}

func (e *emaByteRate) rate() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.emaMbps
}
