package observer

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"reactorrad.ai/internal/protocol"
	"reactorrad.ai/internal/sim/reactor"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, b, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		t.Fatalf("decode %s: %v", b, err)
	}
}

func TestHub_SubscribeAndFilteredTick(t *testing.T) {
	hub := NewHub("sandbox", nil, func() (uint64, protocol.Settings) {
		return 7, protocol.Settings{Model: "scaled"}
	})
	srv := httptest.NewServer(hub.WSHandler())
	defer srv.Close()

	conn := dial(t, srv)
	if err := conn.WriteJSON(protocol.SubscribeMsg{Type: protocol.TypeSubscribe, ProtocolVersion: protocol.Version, ActorID: 20}); err != nil {
		t.Fatalf("write subscribe: %v", err)
	}
	var welcome protocol.WelcomeMsg
	readJSON(t, conn, &welcome)
	if welcome.Type != protocol.TypeWelcome || welcome.Tick != 7 || welcome.Settings.Model != "scaled" {
		t.Fatalf("welcome=%+v", welcome)
	}
	if got := hub.Stats().Sessions; got != 1 {
		t.Fatalf("sessions=%d want 1", got)
	}

	hits := []reactor.Hit{{ActorID: 10, Damage: 1}, {ActorID: 20, Damage: 2}}
	entry := reactor.TickLogEntry{
		Tick:   8,
		At:     "2026-01-01T00:00:00Z",
		Damage: &reactor.DamagePass{Sources: 1, Actors: 2, Hits: hits},
	}
	if err := hub.WriteTick(entry); err != nil {
		t.Fatalf("WriteTick: %v", err)
	}

	var tick protocol.TickMsg
	readJSON(t, conn, &tick)
	if tick.Type != protocol.TypeTick || tick.Tick != 8 || tick.WorldID != "sandbox" {
		t.Fatalf("tick=%+v", tick)
	}
	if tick.Damage == nil || len(tick.Damage.Hits) != 1 || tick.Damage.Hits[0].ActorID != 20 || tick.Damage.TotalDamage != 2 {
		t.Fatalf("damage=%+v want only actor 20", tick.Damage)
	}
}

func TestHub_RejectsWrongVersion(t *testing.T) {
	hub := NewHub("sandbox", nil, nil)
	srv := httptest.NewServer(hub.WSHandler())
	defer srv.Close()

	conn := dial(t, srv)
	_ = conn.WriteJSON(protocol.SubscribeMsg{Type: protocol.TypeSubscribe, ProtocolVersion: "0.1"})
	var em protocol.ErrorMsg
	readJSON(t, conn, &em)
	if em.Type != protocol.TypeError || em.Code != protocol.ErrProtoVersion {
		t.Fatalf("error=%+v want %s", em, protocol.ErrProtoVersion)
	}
	if hub.Stats().Sessions != 0 {
		t.Fatalf("rejected client was registered")
	}
}

func TestTickMessage_ValidatesAgainstSchema(t *testing.T) {
	e := reactor.TickLogEntry{
		Tick:      3,
		At:        "2026-01-01T00:00:00Z",
		ElapsedMS: 50,
		Damage:    &reactor.DamagePass{ElapsedMS: 50},
		Scan:      &reactor.ScanPass{Scan: reactor.ScanResult{SourcesAdded: 2, SourcesTracked: 2, StructuresTracked: 1}},
	}
	b, err := json.Marshal(TickMessage("w", e, 0))
	if err != nil {
		t.Fatal(err)
	}
	if err := protocol.ValidateTick(b); err != nil {
		t.Fatalf("tick schema: %v\n%s", err, b)
	}
}

func TestSendLatest_DropsOldest(t *testing.T) {
	ch := make(chan []byte, 2)
	sendLatest(ch, []byte("a"))
	sendLatest(ch, []byte("b"))
	if !sendLatest(ch, []byte("c")) {
		t.Fatalf("expected a drop on a full queue")
	}
	if got := string(<-ch) + string(<-ch); got != "bc" {
		t.Fatalf("queue=%q want bc", got)
	}
}

func TestIsLoopbackRemote(t *testing.T) {
	for addr, want := range map[string]bool{
		"127.0.0.1:1234": true,
		"[::1]:80":       true,
		"10.0.0.2:80":    false,
		"garbage":        false,
	} {
		if got := isLoopbackRemote(addr); got != want {
			t.Fatalf("%s: got %v want %v", addr, got, want)
		}
	}
}
