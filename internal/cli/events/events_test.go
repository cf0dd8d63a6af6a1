package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_AuthExpired(t *testing.T) {
	bus := New()

	var got []AuthExpired
	handler := func(ev AuthExpired) { got = append(got, ev) }
	require.NoError(t, bus.OnAuthExpired(handler))

	bus.PublishAuthExpired(AuthExpired{Method: "GET", URL: "/api/user/info"})
	bus.PublishAuthExpired(AuthExpired{Method: "POST", URL: "/api/batch"})

	require.Len(t, got, 2)
	assert.Equal(t, "/api/user/info", got[0].URL)
	assert.Equal(t, "POST", got[1].Method)

	require.NoError(t, bus.Unsubscribe(handler))
	bus.PublishAuthExpired(AuthExpired{})
	assert.Len(t, got, 2)
}

func TestBus_NilPublishIsNoop(t *testing.T) {
	var bus *Bus
	assert.NotPanics(t, func() { bus.PublishAuthExpired(AuthExpired{}) })
}
