package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dentlab/api/internal/auth"
	"github.com/dentlab/api/internal/events"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// mockClient creates a client for testing without a real WebSocket connection
func mockClient(hub *Hub, room uuid.UUID) *Client {
	return &Client{
		hub:  hub,
		room: room,
		send: make(chan []byte, 256),
	}
}

func startHub(t *testing.T) *Hub {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub := NewHub()
	go hub.Run(ctx)
	return hub
}

func orderEvent(clinicID uuid.UUID, typ events.Type) events.Event {
	return events.Event{
		Type:        typ,
		ClinicID:    clinicID,
		OrderID:     uuid.New(),
		OrderNumber: "2503010001",
		Status:      "pending",
		TotalAmount: "100.00",
		OccurredAt:  time.Now().UTC(),
	}
}

func expectEvent(t *testing.T, c *Client, want events.Type) {
	t.Helper()
	select {
	case msg := <-c.send:
		var received events.Event
		if err := json.Unmarshal(msg, &received); err != nil {
			t.Fatalf("failed to unmarshal message: %v", err)
		}
		if received.Type != want {
			t.Errorf("expected type %q, got %q", want, received.Type)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("client did not receive message")
	}
}

func expectNothing(t *testing.T, c *Client) {
	t.Helper()
	select {
	case <-c.send:
		t.Fatal("client should not have received a message")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubRegistration(t *testing.T) {
	hub := startHub(t)

	clinicID := uuid.New()
	client := mockClient(hub, clinicID)

	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	defer hub.mu.RUnlock()

	if hub.rooms[clinicID] == nil {
		t.Fatal("clinic room not created")
	}
	if !hub.rooms[clinicID][client] {
		t.Fatal("client not registered in clinic room")
	}
}

func TestHubCleanupEmptyRoom(t *testing.T) {
	hub := startHub(t)

	clinicID := uuid.New()
	client1 := mockClient(hub, clinicID)
	client2 := mockClient(hub, clinicID)

	hub.register <- client1
	hub.register <- client2
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	if len(hub.rooms[clinicID]) != 2 {
		t.Fatalf("expected 2 clients, got %d", len(hub.rooms[clinicID]))
	}
	hub.mu.RUnlock()

	hub.unregister <- client1
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	if len(hub.rooms[clinicID]) != 1 {
		t.Fatalf("expected 1 client after first unregister, got %d", len(hub.rooms[clinicID]))
	}
	hub.mu.RUnlock()

	hub.unregister <- client2
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	if hub.rooms[clinicID] != nil {
		t.Fatal("room should be deleted when last client unregisters")
	}
	hub.mu.RUnlock()
}

func TestPublishReachesOwnClinicAndAdmins(t *testing.T) {
	hub := startHub(t)

	clinicA := uuid.New()
	clinicB := uuid.New()
	a := mockClient(hub, clinicA)
	b := mockClient(hub, clinicB)
	admin := mockClient(hub, adminRoom)

	hub.register <- a
	hub.register <- b
	hub.register <- admin
	time.Sleep(10 * time.Millisecond)

	if err := hub.Publish(context.Background(), orderEvent(clinicA, events.OrderCreated)); err != nil {
		t.Fatalf("publish: %v", err)
	}

	expectEvent(t, a, events.OrderCreated)
	expectEvent(t, admin, events.OrderCreated)
	expectNothing(t, b)
}

func TestPublishToClinicWithoutSubscribers(t *testing.T) {
	hub := startHub(t)

	other := mockClient(hub, uuid.New())
	hub.register <- other
	time.Sleep(10 * time.Millisecond)

	if err := hub.Publish(context.Background(), orderEvent(uuid.New(), events.OrderPaid)); err != nil {
		t.Fatalf("publish: %v", err)
	}
	expectNothing(t, other)
}

func TestSlowClientIsDropped(t *testing.T) {
	hub := startHub(t)

	clinicID := uuid.New()
	slow := &Client{hub: hub, room: clinicID, send: make(chan []byte)}
	hub.register <- slow
	time.Sleep(10 * time.Millisecond)

	if err := hub.Publish(context.Background(), orderEvent(clinicID, events.OrderCancelled)); err != nil {
		t.Fatalf("publish: %v", err)
	}
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	defer hub.mu.RUnlock()
	if hub.rooms[clinicID] != nil {
		t.Fatal("slow client should have been removed")
	}
	if _, ok := <-slow.send; ok {
		t.Fatal("slow client's send channel should be closed")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub()
	go hub.Run(ctx)

	client := mockClient(hub, uuid.New())
	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	cancel()
	select {
	case <-hub.done:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("hub did not stop")
	}

	if _, ok := <-client.send; ok {
		t.Fatal("client send channel should be closed on shutdown")
	}
	if err := hub.Publish(context.Background(), orderEvent(uuid.New(), events.OrderCreated)); err != nil && err != errHubStopped {
		t.Fatalf("unexpected publish error: %v", err)
	}
}

func TestRoomFor(t *testing.T) {
	clinicID := uuid.New()
	tests := []struct {
		name     string
		claims   auth.Claims
		wantRoom uuid.UUID
		wantOK   bool
	}{
		{"admin", auth.Claims{Role: "admin"}, adminRoom, true},
		{"clinic", auth.Claims{Role: "clinic", ClinicID: clinicID}, clinicID, true},
		{"clinic without id", auth.Claims{Role: "clinic"}, uuid.Nil, false},
		{"unknown role", auth.Claims{Role: "guest", ClinicID: clinicID}, uuid.Nil, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			room, ok := roomFor(&tc.claims)
			if ok != tc.wantOK || room != tc.wantRoom {
				t.Errorf("roomFor: got (%v, %v), want (%v, %v)", room, ok, tc.wantRoom, tc.wantOK)
			}
		})
	}
}

const testSecret = "ws-test-secret"

func streamServer(t *testing.T, hub *Hub) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWS(hub, testSecret, w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func waitForRoom(t *testing.T, hub *Hub, room uuid.UUID) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		hub.mu.RLock()
		n := len(hub.rooms[room])
		hub.mu.RUnlock()
		if n > 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("subscriber never joined its room")
}

func TestServeWS_StreamsOneEventPerFrame(t *testing.T) {
	hub := startHub(t)
	srv := streamServer(t, hub)

	clinicID := uuid.New()
	token, err := auth.GenerateToken(testSecret, uuid.New(), clinicID, "clinic")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/orders?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	waitForRoom(t, hub, clinicID)

	ctx := context.Background()
	if err := hub.Publish(ctx, orderEvent(clinicID, events.OrderCreated)); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := hub.Publish(ctx, orderEvent(clinicID, events.OrderPaid)); err != nil {
		t.Fatalf("publish: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(time.Second))
	for _, want := range []events.Type{events.OrderCreated, events.OrderPaid} {
		kind, frame, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if kind != websocket.TextMessage {
			t.Fatalf("frame type: got %d, want text", kind)
		}
		var got events.Event
		if err := json.Unmarshal(frame, &got); err != nil {
			t.Fatalf("frame is not a single event: %v (%s)", err, frame)
		}
		if got.Type != want || got.ClinicID != clinicID {
			t.Errorf("event: got %+v, want %s for %s", got, want, clinicID)
		}
	}
}

func TestServeWS_RejectsBadCredentials(t *testing.T) {
	hub := startHub(t)
	srv := streamServer(t, hub)
	base := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/orders"

	refresh, err := auth.GenerateRefreshToken(testSecret, uuid.New())
	if err != nil {
		t.Fatalf("generate refresh token: %v", err)
	}
	noClinic, err := auth.GenerateToken(testSecret, uuid.New(), uuid.Nil, "clinic")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	tests := []struct {
		name   string
		query  string
		status int
	}{
		{"missing token", "", http.StatusUnauthorized},
		{"garbage token", "?token=nope", http.StatusUnauthorized},
		{"refresh token", "?token=" + refresh, http.StatusUnauthorized},
		{"clinic login without clinic", "?token=" + noClinic, http.StatusForbidden},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, resp, err := websocket.DefaultDialer.Dial(base+tc.query, nil)
			if err == nil {
				t.Fatal("expected handshake to fail")
			}
			if resp == nil || resp.StatusCode != tc.status {
				t.Fatalf("status: got %v, want %d", resp, tc.status)
			}
		})
	}
}

func TestServeWS_AcceptsBearerHeader(t *testing.T) {
	hub := startHub(t)
	srv := streamServer(t, hub)

	token, err := auth.GenerateToken(testSecret, uuid.New(), uuid.Nil, "admin")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	header := http.Header{"Authorization": {"Bearer " + token}}
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/orders", header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	waitForRoom(t, hub, adminRoom)

	clinicID := uuid.New()
	if err := hub.Publish(context.Background(), orderEvent(clinicID, events.OrderCancelled)); err != nil {
		t.Fatalf("publish: %v", err)
	}

	var got events.Event
	conn.SetReadDeadline(time.Now().Add(time.Second))
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Type != events.OrderCancelled || got.ClinicID != clinicID {
		t.Errorf("admin stream: got %+v", got)
	}
}
