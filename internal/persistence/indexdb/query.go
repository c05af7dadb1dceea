package indexdb

import (
	"context"
	"encoding/json"
	"fmt"
)

// Exposure is one actor's accumulated radiation across the index.
type Exposure struct {
	ActorID     uint64  `json:"actor_id"`
	Hits        int     `json:"hits"`
	TotalDamage float64 `json:"total_damage"`
	MinHealth   float64 `json:"min_health"`
	LastTick    uint64  `json:"last_tick"`
}

// TopExposed returns the actors with the largest absolute accumulated
// damage. The scaled model can heal at full integrity, so the sign is kept
// in TotalDamage and ignored for ranking.
func (s *SQLiteIndex) TopExposed(ctx context.Context, limit int) ([]Exposure, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT actor_id, COUNT(*), SUM(damage), MIN(health_after), MAX(tick)
		FROM hits
		GROUP BY actor_id
		ORDER BY ABS(SUM(damage)) DESC, actor_id ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("top exposed: %w", err)
	}
	defer rows.Close()

	var out []Exposure
	for rows.Next() {
		var (
			e      Exposure
			actor  int64
			latest int64
		)
		if err := rows.Scan(&actor, &e.Hits, &e.TotalDamage, &e.MinHealth, &latest); err != nil {
			return nil, err
		}
		e.ActorID = uint64(actor)
		e.LastTick = uint64(latest)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Counts returns row counts per table, for admin summaries.
func (s *SQLiteIndex) Counts(ctx context.Context) (map[string]int64, error) {
	out := map[string]int64{}
	for _, table := range []string{"passes", "hits", "scans", "settings_changes", "snapshots"} {
		var n int64
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
			return nil, fmt.Errorf("count %s: %w", table, err)
		}
		out[table] = n
	}
	return out, nil
}

type SnapshotRow struct {
	Tick       uint64 `json:"tick"`
	Path       string `json:"path"`
	WorldID    string `json:"world_id"`
	Structures int    `json:"structures"`
	Sources    int    `json:"sources"`
}

// Snapshots lists recorded registry dumps, newest first.
func (s *SQLiteIndex) Snapshots(ctx context.Context, limit int) ([]SnapshotRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `SELECT tick,path,world_id,structures,sources FROM snapshots ORDER BY tick DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("snapshots: %w", err)
	}
	defer rows.Close()

	var out []SnapshotRow
	for rows.Next() {
		var (
			r    SnapshotRow
			tick int64
		)
		if err := rows.Scan(&tick, &r.Path, &r.WorldID, &r.Structures, &r.Sources); err != nil {
			return nil, err
		}
		r.Tick = uint64(tick)
		out = append(out, r)
	}
	return out, rows.Err()
}

type SettingsChange struct {
	Seq      int64           `json:"seq"`
	At       string          `json:"at"`
	Tick     uint64          `json:"tick"`
	Source   string          `json:"source"`
	Remote   string          `json:"remote,omitempty"`
	Settings json.RawMessage `json:"settings"`
}

// SettingsChanges returns the audit trail of settings updates, newest first.
func (s *SQLiteIndex) SettingsChanges(ctx context.Context, limit int) ([]SettingsChange, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `SELECT seq,at,tick,source,COALESCE(remote,''),raw_json FROM settings_changes ORDER BY seq DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("settings changes: %w", err)
	}
	defer rows.Close()

	var out []SettingsChange
	for rows.Next() {
		var (
			c    SettingsChange
			tick int64
			raw  string
		)
		if err := rows.Scan(&c.Seq, &c.At, &tick, &c.Source, &c.Remote, &raw); err != nil {
			return nil, err
		}
		c.Tick = uint64(tick)
		c.Settings = json.RawMessage(raw)
		out = append(out, c)
	}
	return out, rows.Err()
}
