package sse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubBroadcastByCode(t *testing.T) {
	h := NewHub()
	all, unsubAll := h.Subscribe(AllCodes)
	defer unsubAll()
	hard, unsubHard := h.Subscribe("550")
	defer unsubHard()
	full, unsubFull := h.Subscribe("552")
	defer unsubFull()

	h.Broadcast("550", []byte("x"))

	require.Len(t, all, 1)
	require.Len(t, hard, 1)
	assert.Len(t, full, 0)
	assert.Equal(t, []byte("x"), <-all)
	assert.Equal(t, 3, h.Subscribers())
}

func TestHubUnsubscribe(t *testing.T) {
	h := NewHub()
	ch, unsubscribe := h.Subscribe("550")
	unsubscribe()
	unsubscribe()

	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, 0, h.Subscribers())
	h.Broadcast("550", []byte("x"))
}

func TestHubDropsWhenFull(t *testing.T) {
	h := NewHub()
	ch, unsubscribe := h.Subscribe(AllCodes)
	defer unsubscribe()
	for i := 0; i < 20; i++ {
		h.Broadcast("", []byte("x"))
	}
	assert.Len(t, ch, cap(ch))
}

func TestEvent(t *testing.T) {
	got := Event("bounce", map[string]string{"code": "550"})
	assert.Equal(t, "event: bounce\ndata: {\"code\":\"550\"}\n\n", string(got))
}
