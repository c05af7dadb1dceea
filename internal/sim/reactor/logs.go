package reactor

import (
	"fmt"

	"reactorrad.ai/internal/sim/reactor/host"
)

// Logger is the diagnostics sink. *log.Logger satisfies it.
type Logger interface {
	Printf(format string, v ...any)
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}

// TickLogger receives one entry per tick that ran a damage or scan pass.
type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

type TickLogEntry struct {
	Tick      uint64      `json:"tick"`
	At        string      `json:"at"`
	ElapsedMS float64     `json:"elapsed_ms"`
	Damage    *DamagePass `json:"damage,omitempty"`
	Scan      *ScanPass   `json:"scan,omitempty"`
}

type DamagePass struct {
	ElapsedMS float64 `json:"elapsed_ms"`
	Actors    int     `json:"actors"`
	Sources   int     `json:"sources"`
	Skipped   int     `json:"skipped"`
	Hits      []Hit   `json:"hits,omitempty"`
	// Failed is set when the actor list could not be read.
	Failed bool `json:"failed,omitempty"`
}

func (p DamagePass) TotalDamage() float64 {
	var sum float64
	for _, h := range p.Hits {
		sum += h.Damage
	}
	return sum
}

type Hit struct {
	StructureID host.EntityID `json:"structure_id"`
	SourceID    host.EntityID `json:"source_id"`
	ActorID     host.EntityID `json:"actor_id"`
	Distance    float64       `json:"distance"`
	Range       float64       `json:"range"`
	Leak        float64       `json:"leak"`
	Damage      float64       `json:"damage"`
	HealthAfter float64       `json:"health_after"`
}

type ScanPass struct {
	Cleanup CleanupResult `json:"cleanup"`
	Scan    ScanResult    `json:"scan"`
}

type CleanupResult struct {
	StructuresRemoved int `json:"structures_removed"`
	SourcesRemoved    int `json:"sources_removed"`
	Failures          int `json:"failures"`
}

type ScanResult struct {
	StructuresSeen    int `json:"structures_seen"`
	StructuresTracked int `json:"structures_tracked"`
	SourcesTracked    int `json:"sources_tracked"`
	SourcesAdded      int `json:"sources_added"`
	Skipped           int `json:"skipped"`
	Failures          int `json:"failures"`
}

// guard runs fn and turns a panic raised by host code into an error.
func guard(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = fmt.Errorf("panic: %w", e)
				return
			}
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	fn()
	return nil
}
