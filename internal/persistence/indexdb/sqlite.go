package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"reactorrad.ai/internal/persistence/log"
	"reactorrad.ai/internal/persistence/snapshot"
	"reactorrad.ai/internal/sim/reactor"
)

// SQLiteIndex is a queryable copy of the tick log. Writes are queued and
// applied by one goroutine in batched transactions; when the queue is full
// entries are dropped and counted. The JSONL log remains the source of
// truth. The driver's tick counter restarts with the process, so rows from
// an earlier run with the same tick are replaced, hits included.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	// mu orders sends on ch against Close.
	mu     sync.RWMutex
	closed bool

	dropTick     atomic.Uint64
	dropAudit    atomic.Uint64
	dropSnapshot atomic.Uint64
}

type reqKind int

const (
	reqTick reqKind = iota + 1
	reqAudit
	reqSnapshot
)

type req struct {
	kind reqKind

	tick     reactor.TickLogEntry
	audit    log.AuditEntry
	snapshot snapshotRow
}

type snapshotRow struct {
	Tick       uint64
	Path       string
	WorldID    string
	Structures int
	Sources    int
}

// Stats reports queue health for /metrics.
type Stats struct {
	QueueDepth        int
	QueueCapacity     int
	DropTickTotal     uint64
	DropAuditTotal    uint64
	DropSnapshotTotal uint64
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS passes (
			tick INTEGER PRIMARY KEY,
			at TEXT NOT NULL,
			elapsed_ms REAL NOT NULL,
			actors INTEGER NOT NULL,
			sources INTEGER NOT NULL,
			skipped INTEGER NOT NULL,
			hits INTEGER NOT NULL,
			total_damage REAL NOT NULL,
			failed INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS hits (
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			structure_id INTEGER NOT NULL,
			source_id INTEGER NOT NULL,
			actor_id INTEGER NOT NULL,
			distance REAL NOT NULL,
			hit_range REAL NOT NULL,
			leak REAL NOT NULL,
			damage REAL NOT NULL,
			health_after REAL NOT NULL,
			PRIMARY KEY (tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_hits_actor_tick ON hits(actor_id, tick);`,
		`CREATE INDEX IF NOT EXISTS idx_hits_source_tick ON hits(source_id, tick);`,
		`CREATE TABLE IF NOT EXISTS scans (
			tick INTEGER PRIMARY KEY,
			at TEXT NOT NULL,
			structures_removed INTEGER NOT NULL,
			sources_removed INTEGER NOT NULL,
			structures_seen INTEGER NOT NULL,
			structures_tracked INTEGER NOT NULL,
			sources_tracked INTEGER NOT NULL,
			sources_added INTEGER NOT NULL,
			skipped INTEGER NOT NULL,
			failures INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS settings_changes (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			at TEXT NOT NULL,
			tick INTEGER NOT NULL,
			source TEXT NOT NULL,
			remote TEXT,
			raw_json TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			tick INTEGER PRIMARY KEY,
			path TEXT NOT NULL,
			world_id TEXT NOT NULL,
			structures INTEGER NOT NULL,
			sources INTEGER NOT NULL
		);`,
		`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1');`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.ch)
		s.mu.Unlock()
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:        len(s.ch),
		QueueCapacity:     cap(s.ch),
		DropTickTotal:     s.dropTick.Load(),
		DropAuditTotal:    s.dropAudit.Load(),
		DropSnapshotTotal: s.dropSnapshot.Load(),
	}
}

// WriteTick implements reactor.TickLogger. It never blocks the tick.
func (s *SQLiteIndex) WriteTick(entry reactor.TickLogEntry) error {
	if s == nil {
		return nil
	}
	s.enqueue(req{kind: reqTick, tick: entry}, &s.dropTick)
	return nil
}

func (s *SQLiteIndex) WriteAudit(entry log.AuditEntry) error {
	if s == nil {
		return nil
	}
	s.enqueue(req{kind: reqAudit, audit: entry}, &s.dropAudit)
	return nil
}

func (s *SQLiteIndex) RecordSnapshot(path string, snap snapshot.RegistryV1) {
	if s == nil {
		return
	}
	r := snapshotRow{
		Tick:       snap.Header.Tick,
		Path:       path,
		WorldID:    snap.Header.WorldID,
		Structures: len(snap.Structures),
		Sources:    snap.SourceCount(),
	}
	s.enqueue(req{kind: reqSnapshot, snapshot: r}, &s.dropSnapshot)
}

// enqueue never blocks; a full queue counts the request in drops. Requests
// after Close are ignored.
func (s *SQLiteIndex) enqueue(r req, drops *atomic.Uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- r:
	default:
		drops.Add(1)
	}
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertPass, _ := s.db.Prepare(`INSERT OR REPLACE INTO passes(tick,at,elapsed_ms,actors,sources,skipped,hits,total_damage,failed) VALUES(?,?,?,?,?,?,?,?,?)`)
	deleteHits, _ := s.db.Prepare(`DELETE FROM hits WHERE tick=?`)
	insertHit, _ := s.db.Prepare(`INSERT OR REPLACE INTO hits(tick,seq,structure_id,source_id,actor_id,distance,hit_range,leak,damage,health_after) VALUES(?,?,?,?,?,?,?,?,?,?)`)
	insertScan, _ := s.db.Prepare(`INSERT OR REPLACE INTO scans(tick,at,structures_removed,sources_removed,structures_seen,structures_tracked,sources_tracked,sources_added,skipped,failures) VALUES(?,?,?,?,?,?,?,?,?,?)`)
	insertAudit, _ := s.db.Prepare(`INSERT INTO settings_changes(at,tick,source,remote,raw_json) VALUES(?,?,?,?,?)`)
	insertSnapshot, _ := s.db.Prepare(`INSERT OR REPLACE INTO snapshots(tick,path,world_id,structures,sources) VALUES(?,?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertPass, deleteHits, insertHit, insertScan, insertAudit, insertSnapshot} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	exec := func(st *sql.Stmt, args ...any) bool {
		if st == nil || tx == nil {
			return false
		}
		if _, err := tx.Stmt(st).Exec(args...); err != nil {
			rollback()
			return false
		}
		opCount++
		return true
	}

	flush := time.NewTicker(commitMaxWait)
	defer flush.Stop()

	for {
		var r req
		select {
		case rr, ok := <-s.ch:
			if !ok {
				commit()
				return
			}
			r = rr
		case <-flush.C:
			if time.Since(lastCommit) >= commitMaxWait {
				commit()
			}
			continue
		}

		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqTick:
			e := r.tick
			if p := e.Damage; p != nil {
				if !exec(insertPass, int64(e.Tick), e.At, p.ElapsedMS, p.Actors, p.Sources, p.Skipped, len(p.Hits), p.TotalDamage(), boolInt(p.Failed)) {
					continue
				}
				// A replayed tick may carry fewer hits than the earlier run.
				if !exec(deleteHits, int64(e.Tick)) {
					continue
				}
				for i, h := range p.Hits {
					if !exec(insertHit, int64(e.Tick), i, int64(h.StructureID), int64(h.SourceID), int64(h.ActorID),
						h.Distance, h.Range, h.Leak, h.Damage, h.HealthAfter) {
						break
					}
				}
			}
			if sp := e.Scan; sp != nil && tx != nil {
				exec(insertScan, int64(e.Tick), e.At,
					sp.Cleanup.StructuresRemoved, sp.Cleanup.SourcesRemoved,
					sp.Scan.StructuresSeen, sp.Scan.StructuresTracked, sp.Scan.SourcesTracked,
					sp.Scan.SourcesAdded, sp.Scan.Skipped, sp.Cleanup.Failures+sp.Scan.Failures)
			}

		case reqAudit:
			a := r.audit
			raw, _ := json.Marshal(a.Settings)
			exec(insertAudit, a.At, int64(a.Tick), a.Source, a.Remote, string(raw))

		case reqSnapshot:
			sn := r.snapshot
			exec(insertSnapshot, int64(sn.Tick), sn.Path, sn.WorldID, sn.Structures, sn.Sources)
		}
		if tx != nil && opCount >= commitEvery {
			commit()
		}
	}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
