// Package viz defines Lane 5's external collaborator: an encoder that
// turns an overlaid frame into an opaque byte blob, plus the short-held
// mutex guarding the latest blob for an out-of-band HTTP surface.
package viz

import (
	"sync"

	"github.com/orionlabs/sensing-core/types"
)

// Encoder draws an overlay (score bars, severity label, spike counts)
// onto job's buffer and encodes the result. job.Buf is a copy made
// exclusively for this call (engine/lanes.go's Lane 1 fan-out never
// shares a buffer between lanes), so in-place mutation here is safe —
// no other lane holds a reference to it. Exceptions/panics inside a
// real codec are the implementer's concern; per DESIGN NOTES the engine
// treats a returned error as a no-op viz frame and logs, never raising
// upward.
type Encoder interface {
	Encode(job types.VisJob) ([]byte, error)
}

// NoopEncoder produces an empty blob; used when viz is disabled or no
// real codec is wired yet.
type NoopEncoder struct{}

func (NoopEncoder) Encode(types.VisJob) ([]byte, error) { return nil, nil }

// LatestBlob guards the most recently encoded frame under one short-held
// mutex, exactly as §5 describes, so a separate HTTP surface may read it
// without touching Lane 5's hot path.
type LatestBlob struct {
	mu   sync.Mutex
	blob []byte
}

// Store replaces the latest blob.
func (l *LatestBlob) Store(b []byte) {
	l.mu.Lock()
	l.blob = b
	l.mu.Unlock()
}

// Load returns a copy of the latest blob.
func (l *LatestBlob) Load() []byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.blob == nil {
		return nil
	}
	out := make([]byte, len(l.blob))
	copy(out, l.blob)
	return out
}
