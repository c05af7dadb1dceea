package protocol

// SUBSCRIBE (observer -> server)
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	// ActorID limits TICK hits to one actor. Zero means all actors.
	ActorID uint64 `json:"actor_id,omitempty"`
	// DamageOnly drops ticks that only ran a scan.
	DamageOnly bool `json:"damage_only,omitempty"`
}

// WELCOME (server -> observer)
type WelcomeMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	SessionID       string   `json:"session_id"`
	WorldID         string   `json:"world_id"`
	Tick            uint64   `json:"tick"`
	Settings        Settings `json:"settings"`
}

// TICK (server -> observer): one logged driver tick.
type TickMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	WorldID         string      `json:"world_id"`
	Tick            uint64      `json:"tick"`
	At              string      `json:"at"`
	ElapsedMS       float64     `json:"elapsed_ms"`
	Damage          *DamageInfo `json:"damage,omitempty"`
	Scan            *ScanInfo   `json:"scan,omitempty"`
}

type DamageInfo struct {
	ElapsedMS   float64   `json:"elapsed_ms"`
	Sources     int       `json:"sources"`
	Actors      int       `json:"actors"`
	TotalDamage float64   `json:"total_damage"`
	Hits        []HitInfo `json:"hits"`
}

type HitInfo struct {
	StructureID uint64  `json:"structure_id"`
	SourceID    uint64  `json:"source_id"`
	ActorID     uint64  `json:"actor_id"`
	Distance    float64 `json:"distance"`
	Damage      float64 `json:"damage"`
	HealthAfter float64 `json:"health_after"`
}

type ScanInfo struct {
	StructuresRemoved int `json:"structures_removed"`
	SourcesRemoved    int `json:"sources_removed"`
	SourcesAdded      int `json:"sources_added"`
	StructuresTracked int `json:"structures_tracked"`
	SourcesTracked    int `json:"sources_tracked"`
	Failures          int `json:"failures"`
}

// SETTINGS (admin -> server): a partial update. Absent fields keep their
// current value.
type SettingsMsg struct {
	Type            string        `json:"type"`
	ProtocolVersion string        `json:"protocol_version"`
	Settings        SettingsPatch `json:"settings"`
}

type SettingsPatch struct {
	Model              *string  `json:"model,omitempty"`
	DamageRate         *float64 `json:"damage_rate,omitempty"`
	RadiationRange     *float64 `json:"radiation_range,omitempty"`
	EffectiveRangeBase *float64 `json:"effective_range_base,omitempty"`
	RangePerPower      *float64 `json:"range_per_power,omitempty"`
	DamageIntervalMs   *int     `json:"damage_interval_ms,omitempty"`
	ScanIntervalMs     *int     `json:"scan_interval_ms,omitempty"`
	ElapsedMode        *string  `json:"elapsed_mode,omitempty"`
	ScanOnInit         *bool    `json:"scan_on_init,omitempty"`
}

// Settings is the full settings document returned by GET and WELCOME.
type Settings struct {
	Model              string  `json:"model"`
	DamageRate         float64 `json:"damage_rate"`
	RadiationRange     float64 `json:"radiation_range"`
	EffectiveRangeBase float64 `json:"effective_range_base"`
	RangePerPower      float64 `json:"range_per_power"`
	DamageIntervalMs   int     `json:"damage_interval_ms"`
	ScanIntervalMs     int     `json:"scan_interval_ms"`
	ElapsedMode        string  `json:"elapsed_mode"`
	ScanOnInit         bool    `json:"scan_on_init"`
}

// Apply returns s with every field present in p overwritten.
func (p SettingsPatch) Apply(s Settings) Settings {
	if p.Model != nil {
		s.Model = *p.Model
	}
	if p.DamageRate != nil {
		s.DamageRate = *p.DamageRate
	}
	if p.RadiationRange != nil {
		s.RadiationRange = *p.RadiationRange
	}
	if p.EffectiveRangeBase != nil {
		s.EffectiveRangeBase = *p.EffectiveRangeBase
	}
	if p.RangePerPower != nil {
		s.RangePerPower = *p.RangePerPower
	}
	if p.DamageIntervalMs != nil {
		s.DamageIntervalMs = *p.DamageIntervalMs
	}
	if p.ScanIntervalMs != nil {
		s.ScanIntervalMs = *p.ScanIntervalMs
	}
	if p.ElapsedMode != nil {
		s.ElapsedMode = *p.ElapsedMode
	}
	if p.ScanOnInit != nil {
		s.ScanOnInit = *p.ScanOnInit
	}
	return s
}

type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code"`
	Message         string `json:"message"`
}
