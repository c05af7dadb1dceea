package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"reactorrad.ai/internal/persistence/indexdb"
	persistlog "reactorrad.ai/internal/persistence/log"
	"reactorrad.ai/internal/persistence/snapshot"
	"reactorrad.ai/internal/protocol"
	"reactorrad.ai/internal/sim/reactor"
	"reactorrad.ai/internal/sim/sandbox"
	"reactorrad.ai/internal/sim/tuning"
	"reactorrad.ai/internal/transport/observer"
)

const maxSettingsBody = 64 * 1024

type app struct {
	worldID string
	dataDir string

	world  *sandbox.World
	driver *reactor.Driver
	idx    *indexdb.SQLiteIndex
	hub    *observer.Hub
	audit  auditLogger
	log    *log.Logger

	// settingsMu orders read-modify-write updates from admin and watch.
	settingsMu sync.Mutex
}

func (a *app) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", a.handleMetrics)

	// Local-only admin endpoints.
	mux.HandleFunc("/admin/v1/state", a.loopbackOnly(a.handleState))
	mux.HandleFunc("/admin/v1/settings", a.loopbackOnly(a.handleSettings))
	mux.HandleFunc("/admin/v1/registry/snapshot", a.loopbackOnly(a.handleSnapshot))
	if a.hub != nil {
		mux.HandleFunc("/admin/v1/observer/ws", a.hub.WSHandler())
	}
	return mux
}

func (a *app) loopbackOnly(h http.HandlerFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			writeError(rw, http.StatusForbidden, protocol.ErrNoPermission, "forbidden")
			return
		}
		h(rw, r)
	}
}

func (a *app) handleMetrics(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
	m := a.driver.Metrics()
	id := a.worldID

	// Minimal Prometheus exposition format.
	fmt.Fprintf(rw, "# HELP reactorrad_world_tick Current sandbox tick.\n")
	fmt.Fprintf(rw, "# TYPE reactorrad_world_tick gauge\n")
	fmt.Fprintf(rw, "reactorrad_world_tick{world=%q} %d\n", id, a.world.CurrentTick())

	fmt.Fprintf(rw, "# HELP reactorrad_world_characters Characters in the sandbox.\n")
	fmt.Fprintf(rw, "# TYPE reactorrad_world_characters gauge\n")
	fmt.Fprintf(rw, "reactorrad_world_characters{world=%q} %d\n", id, a.world.CharacterCount())

	fmt.Fprintf(rw, "# HELP reactorrad_world_deaths_total Characters whose health reached zero.\n")
	fmt.Fprintf(rw, "# TYPE reactorrad_world_deaths_total counter\n")
	fmt.Fprintf(rw, "reactorrad_world_deaths_total{world=%q} %d\n", id, a.world.Deaths())

	fmt.Fprintf(rw, "# HELP reactorrad_engine_active Whether the engine is between Init and Shutdown.\n")
	fmt.Fprintf(rw, "# TYPE reactorrad_engine_active gauge\n")
	fmt.Fprintf(rw, "reactorrad_engine_active{world=%q} %d\n", id, boolGauge(m.Active))

	fmt.Fprintf(rw, "# HELP reactorrad_engine_ticks_total Active engine ticks.\n")
	fmt.Fprintf(rw, "# TYPE reactorrad_engine_ticks_total counter\n")
	fmt.Fprintf(rw, "reactorrad_engine_ticks_total{world=%q} %d\n", id, m.Ticks)

	fmt.Fprintf(rw, "# HELP reactorrad_engine_passes_total Completed passes by kind.\n")
	fmt.Fprintf(rw, "# TYPE reactorrad_engine_passes_total counter\n")
	fmt.Fprintf(rw, "reactorrad_engine_passes_total{world=%q,pass=%q} %d\n", id, "damage", m.DamagePasses)
	fmt.Fprintf(rw, "reactorrad_engine_passes_total{world=%q,pass=%q} %d\n", id, "scan", m.ScanPasses)

	fmt.Fprintf(rw, "# HELP reactorrad_engine_hits_total Source-actor pairs within range.\n")
	fmt.Fprintf(rw, "# TYPE reactorrad_engine_hits_total counter\n")
	fmt.Fprintf(rw, "reactorrad_engine_hits_total{world=%q} %d\n", id, m.Hits)

	fmt.Fprintf(rw, "# HELP reactorrad_engine_failures_total Host errors and recovered panics.\n")
	fmt.Fprintf(rw, "# TYPE reactorrad_engine_failures_total counter\n")
	fmt.Fprintf(rw, "reactorrad_engine_failures_total{world=%q} %d\n", id, m.Failures)

	fmt.Fprintf(rw, "# HELP reactorrad_engine_tracked Registry size.\n")
	fmt.Fprintf(rw, "# TYPE reactorrad_engine_tracked gauge\n")
	fmt.Fprintf(rw, "reactorrad_engine_tracked{world=%q,kind=%q} %d\n", id, "structures", m.TrackedStructures)
	fmt.Fprintf(rw, "reactorrad_engine_tracked{world=%q,kind=%q} %d\n", id, "sources", m.TrackedSources)

	fmt.Fprintf(rw, "# HELP reactorrad_engine_damage_total Sum of damage applied (negative heals).\n")
	fmt.Fprintf(rw, "# TYPE reactorrad_engine_damage_total gauge\n")
	fmt.Fprintf(rw, "reactorrad_engine_damage_total{world=%q} %.3f\n", id, m.TotalDamage)

	fmt.Fprintf(rw, "# HELP reactorrad_engine_step_ms Last engine tick duration in milliseconds.\n")
	fmt.Fprintf(rw, "# TYPE reactorrad_engine_step_ms gauge\n")
	fmt.Fprintf(rw, "reactorrad_engine_step_ms{world=%q} %.3f\n", id, m.StepMS)

	if a.hub != nil {
		hs := a.hub.Stats()
		fmt.Fprintf(rw, "# HELP reactorrad_observer_sessions Connected observer sessions.\n")
		fmt.Fprintf(rw, "# TYPE reactorrad_observer_sessions gauge\n")
		fmt.Fprintf(rw, "reactorrad_observer_sessions{world=%q} %d\n", id, hs.Sessions)
		fmt.Fprintf(rw, "# HELP reactorrad_observer_messages_total Observer messages by outcome.\n")
		fmt.Fprintf(rw, "# TYPE reactorrad_observer_messages_total counter\n")
		fmt.Fprintf(rw, "reactorrad_observer_messages_total{world=%q,outcome=%q} %d\n", id, "sent", hs.Sent)
		fmt.Fprintf(rw, "reactorrad_observer_messages_total{world=%q,outcome=%q} %d\n", id, "dropped", hs.Dropped)
	}

	if a.idx != nil {
		s := a.idx.Stats()
		fmt.Fprintf(rw, "# HELP reactorrad_index_queue_depth Index writer backlog.\n")
		fmt.Fprintf(rw, "# TYPE reactorrad_index_queue_depth gauge\n")
		fmt.Fprintf(rw, "reactorrad_index_queue_depth{world=%q} %d\n", id, s.QueueDepth)
		fmt.Fprintf(rw, "# HELP reactorrad_index_queue_capacity Index writer queue capacity.\n")
		fmt.Fprintf(rw, "# TYPE reactorrad_index_queue_capacity gauge\n")
		fmt.Fprintf(rw, "reactorrad_index_queue_capacity{world=%q} %d\n", id, s.QueueCapacity)
		fmt.Fprintf(rw, "# HELP reactorrad_index_dropped_total Index writes dropped on a full queue.\n")
		fmt.Fprintf(rw, "# TYPE reactorrad_index_dropped_total counter\n")
		fmt.Fprintf(rw, "reactorrad_index_dropped_total{world=%q,kind=%q} %d\n", id, "tick", s.DropTickTotal)
		fmt.Fprintf(rw, "reactorrad_index_dropped_total{world=%q,kind=%q} %d\n", id, "audit", s.DropAuditTotal)
		fmt.Fprintf(rw, "reactorrad_index_dropped_total{world=%q,kind=%q} %d\n", id, "snapshot", s.DropSnapshotTotal)
	}
}

func boolGauge(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (a *app) handleState(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	resp := struct {
		WorldID    string            `json:"world_id"`
		Tick       uint64            `json:"tick"`
		Characters int               `json:"characters"`
		Deaths     uint64            `json:"deaths"`
		Metrics    reactor.Metrics   `json:"metrics"`
		Settings   protocol.Settings `json:"settings"`
	}{
		WorldID:    a.worldID,
		Tick:       a.world.CurrentTick(),
		Characters: a.world.CharacterCount(),
		Deaths:     a.world.Deaths(),
		Metrics:    a.driver.Metrics(),
		Settings:   wireSettings(a.driver.Settings()),
	}
	writeJSON(rw, http.StatusOK, resp)
}

func (a *app) handleSettings(rw http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(rw, http.StatusOK, wireSettings(a.driver.Settings()))
	case http.MethodPost:
		raw, err := io.ReadAll(io.LimitReader(r.Body, maxSettingsBody))
		if err != nil {
			writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, err.Error())
			return
		}
		if err := protocol.ValidateSettings(raw); err != nil {
			writeError(rw, http.StatusBadRequest, protocol.ErrInvalid, err.Error())
			return
		}
		var msg protocol.SettingsMsg
		if err := json.Unmarshal(raw, &msg); err != nil {
			writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, err.Error())
			return
		}
		if msg.ProtocolVersion != protocol.Version {
			writeError(rw, http.StatusBadRequest, protocol.ErrProtoVersion, fmt.Sprintf("unsupported protocol_version %q", msg.ProtocolVersion))
			return
		}
		next, err := a.patchSettings(r.RemoteAddr, msg.Settings)
		if err != nil {
			code := protocol.ErrInternal
			status := http.StatusInternalServerError
			if errors.Is(err, reactor.ErrInvalidSettings) {
				code, status = protocol.ErrInvalid, http.StatusBadRequest
			}
			writeError(rw, status, code, err.Error())
			return
		}
		writeJSON(rw, http.StatusOK, next)
	default:
		rw.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (a *app) patchSettings(remote string, p protocol.SettingsPatch) (protocol.Settings, error) {
	a.settingsMu.Lock()
	defer a.settingsMu.Unlock()
	next := p.Apply(wireSettings(a.driver.Settings()))
	if err := a.applyLocked("admin", remote, tuning.Radiation(next)); err != nil {
		return protocol.Settings{}, err
	}
	return next, nil
}

// applySettings validates r, swaps it into the driver and records the change.
func (a *app) applySettings(source, remote string, r tuning.Radiation) error {
	a.settingsMu.Lock()
	defer a.settingsMu.Unlock()
	return a.applyLocked(source, remote, r)
}

func (a *app) applyLocked(source, remote string, r tuning.Radiation) error {
	if err := a.driver.SetSettings(r.Settings()); err != nil {
		return err
	}
	a.log.Printf("settings updated by %s: model=%s damage_rate=%g", source, r.Model, r.DamageRate)
	if a.audit == nil {
		return nil
	}
	return a.audit.WriteAudit(persistlog.AuditEntry{
		At:       time.Now().UTC().Format(time.RFC3339Nano),
		Tick:     a.world.CurrentTick(),
		Source:   source,
		Remote:   remote,
		Settings: r,
	})
}

func (a *app) handleSnapshot(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var snap snapshot.RegistryV1
	if err := a.world.Do(ctx, func() { snap = a.driver.ExportRegistry(a.worldID) }); err != nil {
		writeError(rw, http.StatusServiceUnavailable, protocol.ErrBusy, err.Error())
		return
	}
	path := filepath.Join(a.dataDir, "snapshots", fmt.Sprintf("%d.snap.zst", snap.Header.Tick))
	if err := snapshot.WriteSnapshot(path, snap); err != nil {
		a.log.Printf("snapshot write: %v", err)
		writeError(rw, http.StatusInternalServerError, protocol.ErrInternal, err.Error())
		return
	}
	if a.idx != nil {
		a.idx.RecordSnapshot(path, snap)
	}
	writeJSON(rw, http.StatusOK, map[string]any{
		"ok":         true,
		"tick":       snap.Header.Tick,
		"path":       path,
		"structures": len(snap.Structures),
		"sources":    snap.SourceCount(),
	})
}

// wireSettings converts driver settings to the admin/observer document.
func wireSettings(s reactor.Settings) protocol.Settings {
	return protocol.Settings(tuning.FromSettings(s))
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}

func writeError(rw http.ResponseWriter, status int, code, msg string) {
	writeJSON(rw, status, protocol.ErrorMsg{
		Type:            protocol.TypeError,
		ProtocolVersion: protocol.Version,
		Code:            code,
		Message:         msg,
	})
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
