package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"reactorrad.ai/internal/persistence/indexdb"
	persistlog "reactorrad.ai/internal/persistence/log"
	"reactorrad.ai/internal/protocol"
	"reactorrad.ai/internal/sim/reactor"
	"reactorrad.ai/internal/sim/sandbox"
	"reactorrad.ai/internal/sim/tuning"
	"reactorrad.ai/internal/transport/observer"
)

func main() {
	var (
		addr         = flag.String("addr", ":8080", "http listen address")
		configDir    = flag.String("configs", "./configs", "config directory")
		tuningPath   = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		scenarioPath = flag.String("scenario", "", "path to scenario.yaml (default: <configs>/scenario.yaml)")
		dataDir      = flag.String("data", "./data", "runtime data directory")
		disableDB    = flag.Bool("disable_db", false, "disable the sqlite exposure index")
		watch        = flag.Bool("watch", false, "reload tuning.yaml on change")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	tp := *tuningPath
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("tuning: %v", err)
		}
		logger.Printf("tuning: %s not found, using defaults", tp)
		tune = tuning.Defaults()
	}

	sp := *scenarioPath
	if sp == "" {
		sp = filepath.Join(*configDir, "scenario.yaml")
	}
	sc, err := sandbox.LoadScenario(sp)
	if err != nil {
		logger.Fatalf("scenario: %v", err)
	}
	w, err := sandbox.Build(sc, sandbox.Config{TickRateHz: tune.Sandbox.TickRateHz, Respawn: tune.Sandbox.Respawn})
	if err != nil {
		logger.Fatalf("world: %v", err)
	}

	driver, err := reactor.New(w, reactor.Config{
		Settings: tune.Radiation.Settings(),
		Logger:   log.New(os.Stdout, "[reactor] ", log.LstdFlags|log.Lmicroseconds),
	})
	if err != nil {
		logger.Fatalf("reactor: %v", err)
	}
	w.SetPlugin(driver)

	worldDir := filepath.Join(*dataDir, "worlds", w.ID())

	var idx *indexdb.SQLiteIndex
	if tune.Logging.IndexDB && !*disableDB {
		idx, err = indexdb.OpenSQLite(filepath.Join(worldDir, "index", "world.sqlite"))
		if err != nil {
			logger.Fatalf("index db: %v", err)
		}
		defer idx.Close()
	}

	a := &app{
		worldID: w.ID(),
		dataDir: worldDir,
		world:   w,
		driver:  driver,
		idx:     idx,
		log:     logger,
	}
	a.hub = observer.NewHub(w.ID(), logger, func() (uint64, protocol.Settings) {
		return w.CurrentTick(), wireSettings(driver.Settings())
	})

	ticks := multiTickLogger{a.hub}
	audits := multiAuditLogger{}
	if tune.Logging.EventLog {
		tickLog := persistlog.NewTickLogger(worldDir)
		auditLog := persistlog.NewAuditLogger(worldDir)
		defer tickLog.Close()
		defer auditLog.Close()
		ticks = append(ticks, tickLog)
		audits = append(audits, auditLog)
	}
	if idx != nil {
		ticks = append(ticks, idx)
		audits = append(audits, idx)
	}
	driver.SetTickLogger(ticks)
	a.audit = audits

	ctx, cancel := signalContext()
	defer cancel()

	watchDone := make(chan struct{})
	if *watch {
		tw, err := tuning.Watch(tp)
		if err != nil {
			logger.Fatalf("watch %s: %v", tp, err)
		}
		defer tw.Close()
		go func() {
			defer close(watchDone)
			a.watchTuning(ctx, tw)
		}()
		logger.Printf("watching %s", tp)
	} else {
		close(watchDone)
	}

	worldDone := make(chan struct{})
	go func() {
		defer close(worldDone)
		if err := w.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("world stopped: %v", err)
		}
	}()

	srv := &http.Server{
		Addr:              *addr,
		Handler:           a.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("world=%s structures=%d characters=%d model=%s", w.ID(), len(sc.Structures), w.CharacterCount(), tune.Radiation.Model)
	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Printf("ListenAndServe: %v", err)
		cancel()
	}
	// ListenAndServe returns once Shutdown starts; handlers may still be
	// writing audits and snapshots. Loggers and the index close after the
	// handlers, the watcher and the driver's Shutdown are done.
	<-shutdownDone
	<-watchDone
	<-worldDone
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

// watchTuning applies radiation settings from every reloaded tuning file.
// Sandbox and logging sections only take effect on restart.
func (a *app) watchTuning(ctx context.Context, tw *tuning.Watcher) {
	for {
		select {
		case <-ctx.Done():
			return
		case t, ok := <-tw.Updates:
			if !ok {
				return
			}
			if err := a.applySettings("watch", "", t.Radiation); err != nil {
				a.log.Printf("tuning reload: %v", err)
				continue
			}
			a.log.Printf("tuning reloaded: model=%s damage_rate=%g", t.Radiation.Model, t.Radiation.DamageRate)
		case err, ok := <-tw.Errors:
			if !ok {
				return
			}
			a.log.Printf("tuning reload: %v", err)
		}
	}
}

type multiTickLogger []reactor.TickLogger

func (m multiTickLogger) WriteTick(entry reactor.TickLogEntry) error {
	for _, l := range m {
		_ = l.WriteTick(entry)
	}
	return nil
}

type auditLogger interface {
	WriteAudit(entry persistlog.AuditEntry) error
}

type multiAuditLogger []auditLogger

func (m multiAuditLogger) WriteAudit(entry persistlog.AuditEntry) error {
	for _, l := range m {
		_ = l.WriteAudit(entry)
	}
	return nil
}
