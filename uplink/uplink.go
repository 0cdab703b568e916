// Package uplink defines Lane 4's external collaborator: a serializer
// that turns an UplinkPayload into opaque bytes, plus a sink that accepts
// them. No wire format is part of the core — JSONSerializer below is a
// convenience default for tests and the demo binary, not a contract.
package uplink

import (
	"encoding/json"

	"github.com/orionlabs/sensing-core/types"
)

// Serializer converts one UplinkPayload into bytes opaque to the engine.
type Serializer interface {
	Serialize(types.UplinkPayload) ([]byte, error)
}

// Sink accepts serialized bytes for delivery to the telemetry transport.
type Sink interface {
	Send([]byte) error
}

// JSONSerializer is a trivial default Serializer. Standard library
// encoding/json is appropriate here precisely because spec places wire
// format outside the core's contract — there is no ecosystem codec for a
// format the core does not define.
type JSONSerializer struct{}

func (JSONSerializer) Serialize(p types.UplinkPayload) ([]byte, error) {
	return json.Marshal(p)
}

// DiscardSink drops every payload. Useful for tests and for lanes that
// are disabled via Config.
type DiscardSink struct{}

func (DiscardSink) Send([]byte) error { return nil }
