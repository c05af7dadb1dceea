package reactor

import (
	"fmt"
	"sync/atomic"
	"time"

	"reactorrad.ai/internal/sim/reactor/host"
	"reactorrad.ai/internal/sim/reactor/registry"
)

type Config struct {
	Settings Settings
	Clock    Clock
	Logger   Logger
}

// Driver is the plugin entry point: the host calls Init once, Tick every
// simulation step from a single goroutine, and Shutdown when unloading.
type Driver struct {
	world    host.World
	clock    Clock
	log      Logger
	settings atomic.Pointer[Settings]

	reg     *registry.Registry
	scanner *Scanner
	engine  *Engine

	tickLogger TickLogger

	active     bool
	tick       uint64
	lastUpdate time.Time
	lastDamage time.Time
	lastScan   time.Time

	m metrics
}

type metrics struct {
	active      atomic.Bool
	ticks       atomic.Uint64
	damagePass  atomic.Uint64
	scanPass    atomic.Uint64
	hits        atomic.Uint64
	failures    atomic.Uint64
	structures  atomic.Int64
	sources     atomic.Int64
	damageMilli atomic.Int64
	lastStepNS  atomic.Int64
}

// Metrics is a point-in-time copy of the driver counters.
type Metrics struct {
	Active            bool    `json:"active"`
	Ticks             uint64  `json:"ticks"`
	DamagePasses      uint64  `json:"damage_passes"`
	ScanPasses        uint64  `json:"scan_passes"`
	Hits              uint64  `json:"hits"`
	Failures          uint64  `json:"failures"`
	TrackedStructures int64   `json:"tracked_structures"`
	TrackedSources    int64   `json:"tracked_sources"`
	TotalDamage       float64 `json:"total_damage"`
	StepMS            float64 `json:"step_ms"`
}

func New(w host.World, cfg Config) (*Driver, error) {
	if w == nil {
		return nil, fmt.Errorf("reactor: nil world")
	}
	s := cfg.Settings
	if s == (Settings{}) {
		s = DefaultSettings()
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = nopLogger{}
	}
	reg := registry.New()
	d := &Driver{
		world:   w,
		clock:   cfg.Clock,
		log:     cfg.Logger,
		reg:     reg,
		scanner: NewScanner(w, reg, cfg.Logger),
		engine:  NewEngine(cfg.Logger),
	}
	d.settings.Store(&s)
	now := d.clock.Now()
	d.lastUpdate, d.lastDamage, d.lastScan = now, now, now
	return d, nil
}

func (d *Driver) SetTickLogger(l TickLogger) { d.tickLogger = l }

// Settings returns the settings the next tick will use. Safe from any goroutine.
func (d *Driver) Settings() Settings { return *d.settings.Load() }

// SetSettings validates s and makes it visible to the next tick. Safe from
// any goroutine.
func (d *Driver) SetSettings(s Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	d.settings.Store(&s)
	return nil
}

// Registry exposes the source index. Only the tick goroutine may use it.
func (d *Driver) Registry() *registry.Registry { return d.reg }

func (d *Driver) Active() bool { return d.m.active.Load() }

// Init moves the driver from stopped to active. Timers restart from now so
// the first pass after a restart does not see the downtime as elapsed time.
func (d *Driver) Init() {
	if d.active {
		return
	}
	d.active = true
	d.m.active.Store(true)
	now := d.clock.Now()
	d.lastUpdate, d.lastDamage, d.lastScan = now, now, now
	if d.Settings().ScanOnInit {
		pass := d.scanPass()
		d.emit(TickLogEntry{Tick: d.tick, At: now.UTC().Format(time.RFC3339Nano), Scan: &pass})
	}
}

// Shutdown stops future ticks. Registry contents are kept.
func (d *Driver) Shutdown() {
	d.active = false
	d.m.active.Store(false)
}

// Tick advances the driver by one host step.
func (d *Driver) Tick() { d.Step() }

// Step is Tick returning what the step did. ok is false while stopped.
func (d *Driver) Step() (entry TickLogEntry, ok bool) {
	if !d.active {
		return TickLogEntry{}, false
	}
	start := time.Now()
	s := d.Settings()
	now := d.clock.Now()

	elapsed := now.Sub(d.lastUpdate)
	d.lastUpdate = now
	d.tick++
	entry = TickLogEntry{
		Tick:      d.tick,
		At:        now.UTC().Format(time.RFC3339Nano),
		ElapsedMS: durationMS(elapsed),
	}

	if sinceDamage := now.Sub(d.lastDamage); sinceDamage > s.DamageInterval {
		passElapsed := elapsed
		if s.ElapsedMode == ElapsedPass {
			passElapsed = sinceDamage
		}
		d.lastDamage = now
		pass := d.engine.Apply(s, passElapsed, d.reg, d.world)
		d.m.damagePass.Add(1)
		d.m.hits.Add(uint64(len(pass.Hits)))
		d.m.damageMilli.Add(int64(pass.TotalDamage() * 1000))
		if pass.Failed {
			d.m.failures.Add(1)
		}
		entry.Damage = &pass
	}

	if now.Sub(d.lastScan) > s.ScanInterval {
		d.lastScan = now
		pass := d.scanPass()
		entry.Scan = &pass
	}

	d.m.ticks.Add(1)
	d.m.lastStepNS.Store(int64(time.Since(start)))
	if entry.Damage != nil || entry.Scan != nil {
		d.emit(entry)
	}
	return entry, true
}

func (d *Driver) scanPass() ScanPass {
	pass := ScanPass{
		Cleanup: d.scanner.CleanUp(),
		Scan:    d.scanner.FullScan(),
	}
	d.m.scanPass.Add(1)
	d.m.failures.Add(uint64(pass.Cleanup.Failures + pass.Scan.Failures))
	d.m.structures.Store(int64(d.reg.Len()))
	d.m.sources.Store(int64(d.reg.SourceCount()))
	return pass
}

func (d *Driver) emit(entry TickLogEntry) {
	if d.tickLogger == nil {
		return
	}
	if err := d.tickLogger.WriteTick(entry); err != nil {
		d.log.Printf("reactor: tick logger: %v", err)
	}
}

func (d *Driver) Metrics() Metrics {
	return Metrics{
		Active:            d.m.active.Load(),
		Ticks:             d.m.ticks.Load(),
		DamagePasses:      d.m.damagePass.Load(),
		ScanPasses:        d.m.scanPass.Load(),
		Hits:              d.m.hits.Load(),
		Failures:          d.m.failures.Load(),
		TrackedStructures: d.m.structures.Load(),
		TrackedSources:    d.m.sources.Load(),
		TotalDamage:       float64(d.m.damageMilli.Load()) / 1000,
		StepMS:            float64(d.m.lastStepNS.Load()) / float64(time.Millisecond),
	}
}
