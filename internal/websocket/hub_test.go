package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorillaws "github.com/gorilla/websocket"
	"github.com/ikkim/gigmarket-backend/internal/app/model"
	"github.com/ikkim/gigmarket-backend/internal/app/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) *Hub {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return hub
}

func receive(t *testing.T, client *Client) []byte {
	t.Helper()
	select {
	case msg := <-client.Send:
		return msg
	case <-time.After(time.Second):
		t.Fatal("no message delivered")
		return nil
	}
}

func TestHub_SendToUserReachesEveryDevice(t *testing.T) {
	hub := startHub(t)

	phone := NewClient(hub, nil, "user-1")
	laptop := NewClient(hub, nil, "user-1")
	other := NewClient(hub, nil, "user-2")
	hub.Register(phone)
	hub.Register(laptop)
	hub.Register(other)
	require.Eventually(t, func() bool {
		return hub.ConnectionCount("user-1") == 2 && hub.IsUserOnline("user-2")
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, hub.SendToUser("user-1", map[string]string{"type": "hello"}))

	assert.JSONEq(t, `{"type":"hello"}`, string(receive(t, phone)))
	assert.JSONEq(t, `{"type":"hello"}`, string(receive(t, laptop)))
	select {
	case msg := <-other.Send:
		t.Fatalf("unexpected message for other user: %s", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_UnregisterClosesSend(t *testing.T) {
	hub := startHub(t)
	client := NewClient(hub, nil, "user-1")
	hub.Register(client)
	require.Eventually(t, func() bool { return hub.IsUserOnline("user-1") }, time.Second, 5*time.Millisecond)

	hub.Unregister(client)
	require.Eventually(t, func() bool { return !hub.IsUserOnline("user-1") }, time.Second, 5*time.Millisecond)

	_, open := <-client.Send
	assert.False(t, open)

	// A second unregister is a no-op.
	hub.Unregister(client)
	require.NoError(t, hub.SendToUser("user-1", "ignored"))
}

func TestHub_StalledClientIsDropped(t *testing.T) {
	hub := startHub(t)
	client := &Client{Hub: hub, UserID: "user-1", Send: make(chan []byte, 1), LastResetTime: time.Now()}
	hub.Register(client)
	require.Eventually(t, func() bool { return hub.IsUserOnline("user-1") }, time.Second, 5*time.Millisecond)

	require.NoError(t, hub.SendToUser("user-1", "first"))
	require.NoError(t, hub.SendToUser("user-1", "second"))

	require.Eventually(t, func() bool { return !hub.IsUserOnline("user-1") }, time.Second, 5*time.Millisecond)
}

func TestHub_PingIsAnsweredAndRateLimited(t *testing.T) {
	hub := startHub(t)
	client := NewClient(hub, nil, "user-1")
	hub.Register(client)
	require.Eventually(t, func() bool { return hub.IsUserOnline("user-1") }, time.Second, 5*time.Millisecond)

	hub.HandleClientMessage(client, []byte(`{"type":"ping"}`))
	assert.JSONEq(t, `{"type":"pong"}`, string(receive(t, client)))

	hub.HandleClientMessage(client, []byte(`not json`))
	for i := 0; i < maxMessagesPerSecond+5; i++ {
		hub.HandleClientMessage(client, []byte(`{"type":"ping"}`))
	}
	// One ping and the garbage message already used two slots this second.
	answered := 0
	for {
		select {
		case <-client.Send:
			answered++
			continue
		case <-time.After(100 * time.Millisecond):
		}
		break
	}
	assert.Equal(t, maxMessagesPerSecond-2, answered)
}

func TestKYCNotifier_PushesExternalStatus(t *testing.T) {
	hub := startHub(t)
	client := NewClient(hub, nil, "user-1")
	hub.Register(client)
	require.Eventually(t, func() bool { return hub.IsUserOnline("user-1") }, time.Second, 5*time.Millisecond)

	NewKYCNotifier(hub).NotifyKYCStatus("user-1", &model.KYCSession{
		ID:     "session-1",
		UserID: "user-1",
		Status: model.KYCStatusManualReview,
	})

	var msg KYCStatusMessage
	require.NoError(t, json.Unmarshal(receive(t, client), &msg))
	assert.Equal(t, KYCStatusMessageType, msg.Type)
	assert.Equal(t, "session-1", msg.SessionID)
	assert.Equal(t, service.ExternalStatusManualReview, msg.Status)
	assert.Equal(t, model.KYCStatusManualReview, msg.RawStatus)
}

func TestClient_PumpsOverRealConnection(t *testing.T) {
	hub := startHub(t)
	upgrader := gorillaws.Upgrader{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := NewClient(hub, &Conn{Conn: conn}, "user-1")
		hub.Register(client)
		go client.WritePump()
		go client.ReadPump()
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	peer, _, err := gorillaws.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer peer.Close()

	require.Eventually(t, func() bool { return hub.IsUserOnline("user-1") }, time.Second, 5*time.Millisecond)

	require.NoError(t, peer.WriteMessage(gorillaws.TextMessage, []byte(`{"type":"ping"}`)))
	require.NoError(t, peer.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := peer.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"pong"}`, string(data))

	require.NoError(t, peer.Close())
	require.Eventually(t, func() bool { return !hub.IsUserOnline("user-1") }, 2*time.Second, 10*time.Millisecond)
}
