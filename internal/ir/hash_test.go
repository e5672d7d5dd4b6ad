package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTrace() []Event {
	return []Event{
		{Seq: 1, Frame: 0, Segment: "update", Kind: "started", Process: "spinner", TimeMillis: 0},
		{Seq: 2, Frame: 3, Segment: "update", Kind: "waiting", Process: "spinner", TimeMillis: 3000,
			Detail: Object{"target": String("loader")}},
		{Seq: 3, Frame: 5, Segment: "update", Kind: "completed", Process: "spinner", TimeMillis: 5000},
	}
}

func TestEventIDDeterminism(t *testing.T) {
	e := sampleTrace()[1]

	id1, err := EventID("run-1", e)
	require.NoError(t, err)
	id2, err := EventID("run-1", e)
	require.NoError(t, err)

	assert.Equal(t, id1, id2, "EventID must be deterministic")
	assert.Len(t, id1, 64, "SHA-256 hex is 64 characters")
}

func TestEventIDChangesWithInput(t *testing.T) {
	e := sampleTrace()[1]
	base := MustEventID("run-1", e)

	other := e
	other.Seq = 9
	detail := e
	detail.Detail = Object{"target": String("other")}

	assert.NotEqual(t, base, MustEventID("run-2", e), "run id is part of the key")
	assert.NotEqual(t, base, MustEventID("run-1", other))
	assert.NotEqual(t, base, MustEventID("run-1", detail))
}

func TestEventIDNilAndEmptyDetailAgree(t *testing.T) {
	e := sampleTrace()[0]
	withEmpty := e
	withEmpty.Detail = Object{}

	assert.Equal(t, MustEventID("r", e), MustEventID("r", withEmpty))
}

func TestDigestIgnoresRunID(t *testing.T) {
	a, err := Digest(sampleTrace())
	require.NoError(t, err)
	b, err := Digest(sampleTrace())
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestDigestSensitiveToOrder(t *testing.T) {
	trace := sampleTrace()
	a, err := Digest(trace)
	require.NoError(t, err)

	trace[0], trace[2] = trace[2], trace[0]
	b, err := Digest(trace)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestDigestEmptyTrace(t *testing.T) {
	d, err := Digest(nil)
	require.NoError(t, err)
	assert.Len(t, d, 64)
}

func TestSourceHashDomainSeparated(t *testing.T) {
	src := []byte("name: demo")
	assert.Equal(t, SourceHash(src), SourceHash(src))
	assert.NotEqual(t, SourceHash(src), hashWithDomain(DomainEvent, src))
}

func TestMillis(t *testing.T) {
	assert.Equal(t, int64(1500), Millis(1.5))
	assert.Equal(t, int64(143), Millis(1.0/7))
	assert.Equal(t, int64(0), Millis(0))
}
