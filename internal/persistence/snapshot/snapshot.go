package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

const Version = 1

type Header struct {
	Version int    `json:"version"`
	WorldID string `json:"world_id"`
	Tick    uint64 `json:"tick"`
	At      string `json:"at"`
}

// RegistryV1 is a dump of the structure→source index for diagnostics. It is
// never loaded back into a running engine; the next full scan rebuilds it.
type RegistryV1 struct {
	Header Header `json:"header"`

	Settings   SettingsV1    `json:"settings"`
	Structures []StructureV1 `json:"structures"`
}

type SettingsV1 struct {
	Model              string  `json:"model"`
	DamageRate         float64 `json:"damage_rate"`
	RadiationRange     float64 `json:"radiation_range"`
	EffectiveRangeBase float64 `json:"effective_range_base"`
	RangePerPower      float64 `json:"range_per_power"`
	DamageIntervalMS   int64   `json:"damage_interval_ms"`
	ScanIntervalMS     int64   `json:"scan_interval_ms"`
	ElapsedMode        string  `json:"elapsed_mode"`
}

type StructureV1 struct {
	ID         uint64     `json:"id"`
	Disposed   bool       `json:"disposed"`
	TotalPower float64    `json:"total_power"`
	Position   [3]float64 `json:"position"`
	Sources    []SourceV1 `json:"sources"`
}

type SourceV1 struct {
	ID        uint64     `json:"id"`
	Min       [3]int     `json:"min"`
	WorldPos  [3]float64 `json:"world_pos"`
	Power     float64    `json:"power"`
	Integrity float64    `json:"integrity_percent"`
	Enabled   bool       `json:"enabled"`
	Disposed  bool       `json:"disposed"`
}

func (s RegistryV1) SourceCount() int {
	n := 0
	for _, st := range s.Structures {
		n += len(st.Sources)
	}
	return n
}

func WriteSnapshot(path string, snap RegistryV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}

	bw := bufio.NewWriterSize(enc, 64*1024)

	// JSON header line first so tools can peek without gob.
	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		_ = enc.Close()
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		_ = enc.Close()
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		_ = enc.Close()
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		_ = enc.Close()
		return err
	}
	return enc.Close()
}

func ReadSnapshot(path string) (RegistryV1, error) {
	var snap RegistryV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 64*1024)
	if _, err := br.ReadBytes('\n'); err != nil {
		return snap, fmt.Errorf("read header: %w", err)
	}
	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	if snap.Header.Version != Version {
		return snap, fmt.Errorf("unsupported snapshot version %d", snap.Header.Version)
	}
	return snap, nil
}

// ReadHeader decodes only the JSON header line.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()

	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("header json: %w", err)
	}
	return h, nil
}
