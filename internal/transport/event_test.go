package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitter_DispatchOrderAndOnce(t *testing.T) {
	e := newEmitter()
	var calls []string

	e.add("x", func(Event) { calls = append(calls, "a") }, false)
	e.add("x", func(Event) { calls = append(calls, "once") }, true)
	e.add("x", func(Event) { calls = append(calls, "b") }, false)

	e.dispatch(Event{Name: "x"})
	e.dispatch(Event{Name: "x"})

	assert.Equal(t, []string{"a", "once", "b", "a", "b"}, calls)
	assert.Equal(t, 2, e.count("x"))
}

func TestEmitter_RemoveUnknownAndStale(t *testing.T) {
	e := newEmitter()
	id := e.add("x", func(Event) {}, false)

	assert.False(t, e.remove("x", id+100))
	assert.False(t, e.remove("y", id))
	assert.True(t, e.remove("x", id))
	assert.False(t, e.remove("x", id))
	assert.Zero(t, e.count("x"))
}

func TestEmitter_HandlersMayMutateTable(t *testing.T) {
	e := newEmitter()
	var second int
	var first ListenerID
	first = e.add("x", func(Event) {
		e.remove("x", first)
		e.add("x", func(Event) { second++ }, false)
	}, false)

	e.dispatch(Event{Name: "x"})
	assert.Zero(t, second)

	e.dispatch(Event{Name: "x"})
	assert.Equal(t, 1, second)
}

func TestEmitter_IDsAreUnique(t *testing.T) {
	e := newEmitter()
	a := e.add("x", func(Event) {}, false)
	b := e.add("y", func(Event) {}, true)
	assert.NotEqual(t, a, b)
}

func TestEvent_Decode(t *testing.T) {
	var v struct {
		A int `json:"a"`
	}
	require.NoError(t, Event{Data: []byte(`{"a":3}`)}.Decode(&v))
	assert.Equal(t, 3, v.A)

	var p *struct{}
	require.NoError(t, Event{}.Decode(&p))
	assert.Nil(t, p)
}

func TestEnvelope_RoundTrip(t *testing.T) {
	frame, err := Envelope("join", map[string]string{"conversationId": "c1"})
	require.NoError(t, err)

	event, data, err := decodeEnvelope(frame)
	require.NoError(t, err)
	assert.Equal(t, "join", event)
	assert.JSONEq(t, `{"conversationId":"c1"}`, string(data))
}

func TestEnvelope_Malformed(t *testing.T) {
	for _, frame := range []string{`not json`, `{"data":{}}`, `{"event":3}`, `{"event":""}`} {
		_, _, err := decodeEnvelope([]byte(frame))
		assert.ErrorIs(t, err, errMalformedEnvelope, frame)
	}

	event, data, err := decodeEnvelope([]byte(`{"event":"get_unread_count"}`))
	require.NoError(t, err)
	assert.Equal(t, "get_unread_count", event)
	assert.Nil(t, data)
}
