package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	persistlog "reactorrad.ai/internal/persistence/log"
	"reactorrad.ai/internal/persistence/snapshot"
	"reactorrad.ai/internal/sim/reactor"
)

func TestSettingsBody_TypesValues(t *testing.T) {
	raw, err := settingsBody([]string{"damage_rate=2.5", "model=legacy", "damage_interval_ms=0", "scan_on_init=true"})
	if err != nil {
		t.Fatalf("settingsBody: %v", err)
	}
	var msg struct {
		Type     string         `json:"type"`
		Settings map[string]any `json:"settings"`
	}
	if err := json.Unmarshal(raw, &msg); err != nil {
		t.Fatal(err)
	}
	if msg.Type != "SETTINGS" || msg.Settings["damage_rate"] != 2.5 || msg.Settings["model"] != "legacy" || msg.Settings["scan_on_init"] != true {
		t.Fatalf("msg=%+v", msg)
	}

	for _, bad := range [][]string{{"damage_rate"}, {"dmg=1"}, {"scan_interval_ms=soon"}, {"model=gamma"}} {
		if _, err := settingsBody(bad); err == nil {
			t.Fatalf("%v: expected error", bad)
		}
	}
}

func TestLatestSnapshot_PicksHighestTick(t *testing.T) {
	worldDir := t.TempDir()
	dir := filepath.Join(worldDir, "snapshots")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"9.snap.zst", "120.snap.zst", "30.snap.zst", "notes.txt", "x.snap.zst"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if got := filepath.Base(latestSnapshot(worldDir)); got != "120.snap.zst" {
		t.Fatalf("latest=%s want 120.snap.zst", got)
	}
	if got := latestSnapshot(t.TempDir()); got != "" {
		t.Fatalf("empty dir: latest=%q", got)
	}
}

func TestSnapshotCmd_PrintsJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "7.snap.zst")
	snap := snapshot.RegistryV1{
		Header:     snapshot.Header{Version: snapshot.Version, WorldID: "w", Tick: 7},
		Structures: []snapshot.StructureV1{{ID: 1, Sources: []snapshot.SourceV1{{ID: 2, Power: 10}}}},
	}
	if err := snapshot.WriteSnapshot(path, snap); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}
	var out bytes.Buffer
	if err := snapshotCmd([]string{path}, &out); err != nil {
		t.Fatalf("snapshotCmd: %v", err)
	}
	var got snapshot.RegistryV1
	if err := json.Unmarshal(out.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v\n%s", err, out.String())
	}
	if got.Header.Tick != 7 || got.SourceCount() != 1 {
		t.Fatalf("got=%+v", got)
	}
}

func TestReadEvents_FiltersAndSummarizes(t *testing.T) {
	worldDir := t.TempDir()
	tl := persistlog.NewTickLogger(worldDir)
	hits := []reactor.Hit{{ActorID: 1, Damage: 2}, {ActorID: 2, Damage: -1}}
	entries := []reactor.TickLogEntry{
		{Tick: 1, Scan: &reactor.ScanPass{}},
		{Tick: 2, Damage: &reactor.DamagePass{Hits: hits}},
		{Tick: 3, Damage: &reactor.DamagePass{Hits: hits[:1]}},
	}
	for _, e := range entries {
		if err := tl.WriteTick(e); err != nil {
			t.Fatalf("WriteTick: %v", err)
		}
	}
	if err := tl.Close(); err != nil {
		t.Fatal(err)
	}
	dir := filepath.Join(worldDir, "events")

	s, err := readEvents(dir, eventsFilter{}, func(reactor.TickLogEntry) error { return nil })
	if err != nil {
		t.Fatalf("readEvents: %v", err)
	}
	if s.Ticks != 3 || s.DamagePasses != 2 || s.ScanPasses != 1 || s.Hits != 3 || s.TotalDamage != 3 {
		t.Fatalf("summary=%+v", s)
	}

	var ticks []uint64
	s, err = readEvents(dir, eventsFilter{actor: 2}, func(e reactor.TickLogEntry) error {
		ticks = append(ticks, e.Tick)
		if len(e.Damage.Hits) != 1 || e.Damage.Hits[0].ActorID != 2 {
			t.Fatalf("tick %d hits=%+v want only actor 2", e.Tick, e.Damage.Hits)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("readEvents actor: %v", err)
	}
	if len(ticks) != 1 || ticks[0] != 2 || s.TotalDamage != -1 {
		t.Fatalf("ticks=%v summary=%+v", ticks, s)
	}

	var out bytes.Buffer
	if err := eventsCmd([]string{"-dir", dir, "-damage_only"}, &out); err != nil {
		t.Fatalf("eventsCmd: %v", err)
	}
	if n := strings.Count(out.String(), "\n"); n != 2 {
		t.Fatalf("lines=%d want 2:\n%s", n, out.String())
	}

	if _, err := readEvents(t.TempDir(), eventsFilter{}, nil); err == nil {
		t.Fatalf("expected error for a directory without logs")
	}
}
