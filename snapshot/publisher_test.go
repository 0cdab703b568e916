package snapshot

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type payload struct {
	SequenceID uint32
	Value      int
}

func TestPublishLoadRoundTrip(t *testing.T) {
	p := NewPublisher(payload{})
	seq := p.Publish(payload{Value: 7})
	got, gotSeq := p.Load()
	require.Equal(t, 7, got.Value)
	require.Equal(t, seq, gotSeq)
}

func TestSequenceIDNeverDisagreesWithBody(t *testing.T) {
	p := NewPublisher(payload{})
	var lastSeq uint32
	for i := 0; i < 100; i++ {
		seq := p.Publish(payload{Value: i})
		got, gotSeq := p.Load()
		require.Equal(t, seq, gotSeq)
		require.Equal(t, i, got.Value, "body must correspond to the sequence id it was loaded with")
		require.Greater(t, gotSeq, lastSeq)
		lastSeq = gotSeq
	}
}

func TestRepublishingSameValueStillBumpsSequence(t *testing.T) {
	p := NewPublisher(payload{})
	s1 := p.Publish(payload{Value: 1})
	s2 := p.Publish(payload{Value: 1})
	require.NotEqual(t, s1, s2)
}

func TestLoadSeqMatchesLoad(t *testing.T) {
	p := NewPublisher(payload{})
	p.Publish(payload{Value: 3})
	_, seq := p.Load()
	require.Equal(t, seq, p.LoadSeq())
}
