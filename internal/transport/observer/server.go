// Package observer streams logged reactor ticks to websocket clients.
package observer

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"reactorrad.ai/internal/protocol"
	"reactorrad.ai/internal/sim/reactor"
)

// State reports what a new session is told in WELCOME. It must be safe to
// call from HTTP goroutines.
type State func() (tick uint64, settings protocol.Settings)

// Hub implements reactor.TickLogger by fanning TICK messages out to every
// subscribed session. Each session keeps a small latest-wins queue, so a
// slow client loses old ticks instead of stalling the driver.
type Hub struct {
	worldID string
	log     *log.Logger
	state   State

	// AllowRemote accepts non-loopback clients.
	AllowRemote bool

	upgrader websocket.Upgrader
	nextID   atomic.Uint64

	mu       sync.Mutex
	sessions map[string]*session

	sent    atomic.Uint64
	dropped atomic.Uint64
}

type session struct {
	id  string
	sub protocol.SubscribeMsg
	out chan []byte
}

func NewHub(worldID string, logger *log.Logger, state State) *Hub {
	if state == nil {
		state = func() (uint64, protocol.Settings) { return 0, protocol.Settings{} }
	}
	return &Hub{
		worldID: worldID,
		log:     logger,
		state:   state,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		sessions: map[string]*session{},
	}
}

type Stats struct {
	Sessions int
	Sent     uint64
	Dropped  uint64
}

func (h *Hub) Stats() Stats {
	h.mu.Lock()
	n := len(h.sessions)
	h.mu.Unlock()
	return Stats{Sessions: n, Sent: h.sent.Load(), Dropped: h.dropped.Load()}
}

// WriteTick implements reactor.TickLogger. It never blocks.
func (h *Hub) WriteTick(e reactor.TickLogEntry) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.sessions) == 0 {
		return nil
	}
	var all []byte
	for _, s := range h.sessions {
		if s.sub.DamageOnly && e.Damage == nil {
			continue
		}
		var b []byte
		if s.sub.ActorID == 0 {
			if all == nil {
				var err error
				if all, err = json.Marshal(TickMessage(h.worldID, e, 0)); err != nil {
					return err
				}
			}
			b = all
		} else {
			var err error
			if b, err = json.Marshal(TickMessage(h.worldID, e, s.sub.ActorID)); err != nil {
				return err
			}
		}
		if sendLatest(s.out, b) {
			h.dropped.Add(1)
		}
		h.sent.Add(1)
	}
	return nil
}

// TickMessage converts a driver log entry to its wire form. A non-zero
// actor keeps only that actor's hits.
func TickMessage(worldID string, e reactor.TickLogEntry, actor uint64) protocol.TickMsg {
	msg := protocol.TickMsg{
		Type:            protocol.TypeTick,
		ProtocolVersion: protocol.Version,
		WorldID:         worldID,
		Tick:            e.Tick,
		At:              e.At,
		ElapsedMS:       e.ElapsedMS,
	}
	if p := e.Damage; p != nil {
		d := &protocol.DamageInfo{
			ElapsedMS: p.ElapsedMS,
			Sources:   p.Sources,
			Actors:    p.Actors,
			Hits:      []protocol.HitInfo{},
		}
		for _, hit := range p.Hits {
			if actor != 0 && uint64(hit.ActorID) != actor {
				continue
			}
			d.TotalDamage += hit.Damage
			d.Hits = append(d.Hits, protocol.HitInfo{
				StructureID: uint64(hit.StructureID),
				SourceID:    uint64(hit.SourceID),
				ActorID:     uint64(hit.ActorID),
				Distance:    hit.Distance,
				Damage:      hit.Damage,
				HealthAfter: hit.HealthAfter,
			})
		}
		msg.Damage = d
	}
	if sp := e.Scan; sp != nil {
		msg.Scan = &protocol.ScanInfo{
			StructuresRemoved: sp.Cleanup.StructuresRemoved,
			SourcesRemoved:    sp.Cleanup.SourcesRemoved,
			SourcesAdded:      sp.Scan.SourcesAdded,
			StructuresTracked: sp.Scan.StructuresTracked,
			SourcesTracked:    sp.Scan.SourcesTracked,
			Failures:          sp.Cleanup.Failures + sp.Scan.Failures,
		}
	}
	return msg
}

func (h *Hub) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !h.AllowRemote && !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := h.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		sub, code, err := parseSubscribe(msg)
		if err != nil {
			h.reject(conn, code, err)
			return
		}

		s := &session{
			id:  fmt.Sprintf("O%d", h.nextID.Add(1)),
			sub: sub,
			out: make(chan []byte, 8),
		}
		h.mu.Lock()
		h.sessions[s.id] = s
		h.mu.Unlock()
		defer func() {
			h.mu.Lock()
			delete(h.sessions, s.id)
			h.mu.Unlock()
		}()
		tick, settings := h.state()
		welcome, _ := json.Marshal(protocol.WelcomeMsg{
			Type:            protocol.TypeWelcome,
			ProtocolVersion: protocol.Version,
			SessionID:       s.id,
			WorldID:         h.worldID,
			Tick:            tick,
			Settings:        settings,
		})
		_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, welcome); err != nil {
			return
		}

		if h.log != nil {
			h.log.Printf("observer %s subscribed actor=%d", s.id, sub.ActorID)
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		writeErr := make(chan error, 1)
		go func() {
			for {
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case b := <-s.out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						writeErr <- err
						return
					}
				}
			}
		}()

		// Reader loop: SUBSCRIBE again to change the filter.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			next, _, err := parseSubscribe(msg)
			if err != nil {
				continue
			}
			h.mu.Lock()
			s.sub = next
			h.mu.Unlock()
		}

		cancel()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func parseSubscribe(raw []byte) (protocol.SubscribeMsg, string, error) {
	var sub protocol.SubscribeMsg
	if err := protocol.ValidateSubscribe(raw); err != nil {
		return sub, protocol.ErrProtoBadRequest, err
	}
	if err := json.Unmarshal(raw, &sub); err != nil {
		return sub, protocol.ErrProtoBadRequest, err
	}
	if sub.ProtocolVersion != protocol.Version {
		return sub, protocol.ErrProtoVersion, fmt.Errorf("unsupported protocol_version %q", sub.ProtocolVersion)
	}
	return sub, "", nil
}

func (h *Hub) reject(conn *websocket.Conn, code string, err error) {
	b, _ := json.Marshal(protocol.ErrorMsg{
		Type:            protocol.TypeError,
		ProtocolVersion: protocol.Version,
		Code:            code,
		Message:         err.Error(),
	})
	_ = conn.SetWriteDeadline(time.Now().Add(time.Second))
	_ = conn.WriteMessage(websocket.TextMessage, b)
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected SUBSCRIBE"), time.Now().Add(time.Second))
}

// sendLatest queues b, evicting the oldest entry when ch is full. It
// reports whether an entry was dropped.
func sendLatest(ch chan []byte, b []byte) bool {
	select {
	case ch <- b:
		return false
	default:
	}
	dropped := false
	select {
	case <-ch:
		dropped = true
	default:
	}
	select {
	case ch <- b:
	default:
		dropped = true
	}
	return dropped
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
