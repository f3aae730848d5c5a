package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/KBoateng4/Mentorlink-client/cmd/models"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func quickPolicy() Policy {
	return Policy{MaxAttempts: 3, Delay: 20 * time.Millisecond}
}

func TestDialDeliversEvents(t *testing.T) {
	var gotAuth atomic.Value
	hold := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth.Store(r.Header.Get("Authorization"))
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		conn.WriteMessage(websocket.TextMessage, []byte(`{"event": "newNotification", "notification": {"id": "n1", "type": "ASSIGNMENT"}}`))
		<-hold
		conn.Close()
	}))
	defer server.Close()
	defer close(hold)

	received := make(chan models.Event, 1)
	conn, err := Dial(context.Background(), wsURL(server), "tok-1", quickPolicy(), func(ev models.Event) {
		received <- ev
	}, nil, zap.NewNop())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	select {
	case ev := <-received:
		if ev.Kind() != models.KindNew || ev.Notification == nil || ev.Notification.ID != "n1" {
			t.Errorf("unexpected event: %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no event arrived")
	}

	if auth, _ := gotAuth.Load().(string); auth != "Bearer tok-1" {
		t.Errorf("Authorization at upgrade = %q", auth)
	}
}

func TestDialFailsWhenNothingListens(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	if _, err := Dial(context.Background(), wsURL(server), "tok", quickPolicy(), func(models.Event) {}, nil, zap.NewNop()); err == nil {
		t.Fatal("expected dial to fail against a dead server")
	}
}

func TestReconnectFiresResync(t *testing.T) {
	var connections int32
	hold := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		if atomic.AddInt32(&connections, 1) == 1 {
			conn.Close() // drop the first connection right away
			return
		}
		<-hold
		conn.Close()
	}))
	defer server.Close()
	defer close(hold)

	resynced := make(chan struct{}, 1)
	conn, err := Dial(context.Background(), wsURL(server), "tok", quickPolicy(), func(models.Event) {}, func() {
		select {
		case resynced <- struct{}{}:
		default:
		}
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	select {
	case <-resynced:
	case <-time.After(2 * time.Second):
		t.Fatal("reconnect never triggered a resync")
	}
	if conn.Degraded() {
		t.Error("a successful reconnect must not degrade the channel")
	}
}

func TestDegradesAfterRetryBudget(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.Close()
	}))

	conn, err := Dial(context.Background(), wsURL(server), "tok", Policy{MaxAttempts: 2, Delay: 10 * time.Millisecond}, func(models.Event) {}, nil, zap.NewNop())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	// no server to come back to
	server.CloseClientConnections()
	server.Close()

	deadline := time.Now().Add(3 * time.Second)
	for !conn.Degraded() {
		if time.Now().After(deadline) {
			t.Fatal("channel never degraded after the retry budget")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
