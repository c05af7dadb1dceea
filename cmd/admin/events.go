package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"path/filepath"

	persistlog "reactorrad.ai/internal/persistence/log"
	"reactorrad.ai/internal/sim/reactor"
)

type eventsFilter struct {
	sinceTick  uint64
	toTick     uint64
	actor      uint64
	damageOnly bool
}

func (f eventsFilter) keep(e *reactor.TickLogEntry) bool {
	if e.Tick < f.sinceTick || (f.toTick != 0 && e.Tick > f.toTick) {
		return false
	}
	if f.damageOnly && e.Damage == nil {
		return false
	}
	if f.actor != 0 {
		if e.Damage == nil {
			return false
		}
		hits := e.Damage.Hits[:0:0]
		for _, h := range e.Damage.Hits {
			if uint64(h.ActorID) == f.actor {
				hits = append(hits, h)
			}
		}
		if len(hits) == 0 {
			return false
		}
		d := *e.Damage
		d.Hits = hits
		e.Damage = &d
	}
	return true
}

type eventsSummary struct {
	Files        int     `json:"files"`
	Ticks        int     `json:"ticks"`
	DamagePasses int     `json:"damage_passes"`
	ScanPasses   int     `json:"scan_passes"`
	Hits         int     `json:"hits"`
	TotalDamage  float64 `json:"total_damage"`
	FirstTick    uint64  `json:"first_tick"`
	LastTick     uint64  `json:"last_tick"`
}

func (s *eventsSummary) add(e reactor.TickLogEntry) {
	if s.Ticks == 0 {
		s.FirstTick = e.Tick
	}
	s.Ticks++
	s.LastTick = e.Tick
	if e.Damage != nil {
		s.DamagePasses++
		s.Hits += len(e.Damage.Hits)
		s.TotalDamage += e.Damage.TotalDamage()
	}
	if e.Scan != nil {
		s.ScanPasses++
	}
}

// eventsCmd decodes the hourly tick logs of a world. By default it prints
// one JSON line per entry; -summary prints aggregate counts instead.
func eventsCmd(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("events", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "sandbox", "world id")
	dir := fs.String("dir", "", "log directory (default: <data>/worlds/<world>/events)")
	since := fs.Uint64("since_tick", 0, "first tick (inclusive)")
	to := fs.Uint64("to_tick", 0, "last tick (inclusive, 0 = no limit)")
	actor := fs.Uint64("actor", 0, "keep only hits on this actor")
	damageOnly := fs.Bool("damage_only", false, "skip scan-only ticks")
	summary := fs.Bool("summary", false, "print totals instead of entries")
	_ = fs.Parse(args)

	d := *dir
	if d == "" {
		d = filepath.Join(*dataDir, "worlds", *worldID, "events")
	}
	f := eventsFilter{sinceTick: *since, toTick: *to, actor: *actor, damageOnly: *damageOnly}
	s, err := readEvents(d, f, func(e reactor.TickLogEntry) error {
		if *summary {
			return nil
		}
		b, err := json.Marshal(e)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, string(b))
		return err
	})
	if err != nil {
		return err
	}
	if *summary {
		return json.NewEncoder(out).Encode(s)
	}
	return nil
}

func readEvents(dir string, f eventsFilter, fn func(reactor.TickLogEntry) error) (eventsSummary, error) {
	var s eventsSummary
	files, err := persistlog.Files(dir, "events")
	if err != nil {
		return s, err
	}
	if len(files) == 0 {
		return s, fmt.Errorf("no tick logs in %s", dir)
	}
	s.Files = len(files)
	for _, path := range files {
		err := persistlog.ReadTicks(path, func(e reactor.TickLogEntry) error {
			if !f.keep(&e) {
				return nil
			}
			s.add(e)
			return fn(e)
		})
		if err != nil {
			return s, err
		}
	}
	return s, nil
}
