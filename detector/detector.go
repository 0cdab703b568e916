// Package detector defines Lane 3's external collaborator: the
// object-detection model. The engine consumes only a semantic risk
// summary from it — the model itself, and everything about how it was
// trained or run, stays out of scope.
package detector

import "github.com/orionlabs/sensing-core/types"

// Detector runs inference on a full-resolution BGR buffer and returns a
// semantic risk summary. Implementations may block; Lane 3 is the only
// lane that ever waits on this call, and it is rate-limited by gating so
// it never becomes a bottleneck for Lane 1.
type Detector interface {
	Detect(buf []byte, height, width int) (types.SemanticSnapshot, error)
}

// Unavailable is a Detector that always fails, representing the detector
// being offline. Lane 3 logs and continues on ExternalCollaboratorFailure
// — Lane 1 is unaffected because it only reads the last-valid snapshot.
type Unavailable struct{}

func (Unavailable) Detect([]byte, int, int) (types.SemanticSnapshot, error) {
	return types.SemanticSnapshot{}, errUnavailable
}

var errUnavailable = detectorError("detector: unavailable")

type detectorError string

func (e detectorError) Error() string { return string(e) }
