package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackkolly/rollback-controller/internal/models"
)

func testClient() *Client {
	return &Client{send: make(chan []byte, 8)}
}

func TestHubBroadcastsPublishedEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub(ctx, nil)
	go hub.Run()
	defer hub.Stop()

	client := testClient()
	hub.register <- client
	require.Eventually(t, func() bool { return hub.GetClientCount() == 1 }, time.Second, 5*time.Millisecond)

	hub.Publish(models.MonitorEvent{
		Type:      models.EventTrigger,
		Service:   "web",
		Timestamp: time.Now().UTC(),
	})

	select {
	case raw := <-client.send:
		var event models.MonitorEvent
		require.NoError(t, json.Unmarshal(raw, &event))
		assert.Equal(t, models.EventTrigger, event.Type)
		assert.Equal(t, "web", event.Service)
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}
}

func TestHubUnregisterClosesSendChannel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub(ctx, nil)
	go hub.Run()
	defer hub.Stop()

	client := testClient()
	hub.register <- client
	hub.unregister <- client

	require.Eventually(t, func() bool { return hub.GetClientCount() == 0 }, time.Second, 5*time.Millisecond)
	_, open := <-client.send
	assert.False(t, open)
}

func TestDetachAfterStopDoesNotBlock(t *testing.T) {
	hub := NewHub(context.Background(), nil)
	go hub.Run()
	hub.Stop()

	client := testClient()
	client.hub = hub

	done := make(chan struct{})
	go func() {
		client.detach()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("detach blocked after hub stop")
	}
}

func TestPublishAfterStopDoesNotBlock(t *testing.T) {
	hub := NewHub(context.Background(), nil)
	hub.Stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 600; i++ {
			hub.Publish(models.MonitorEvent{Type: models.EventWindowTick, Service: "web"})
		}
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked after Stop")
	}
}
