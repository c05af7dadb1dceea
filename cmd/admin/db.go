package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"reactorrad.ai/internal/persistence/indexdb"
)

// dbCmd queries the exposure index: top (default), counts, snapshots or
// settings.
func dbCmd(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "sandbox", "world id (ignored with -db)")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	limit := fs.Int("limit", 10, "result limit")
	_ = fs.Parse(args)

	q := "top"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = filepath.Join(*dataDir, "worlds", *worldID, "index", "world.sqlite")
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("open index: %w", err)
	}
	idx, err := indexdb.OpenSQLite(path)
	if err != nil {
		return err
	}
	defer idx.Close()

	ctx := context.Background()
	enc := json.NewEncoder(out)
	switch q {
	case "top":
		rows, err := idx.TopExposed(ctx, *limit)
		if err != nil {
			return err
		}
		for _, r := range rows {
			_ = enc.Encode(r)
		}
	case "counts":
		counts, err := idx.Counts(ctx)
		if err != nil {
			return err
		}
		return enc.Encode(counts)
	case "snapshots":
		rows, err := idx.Snapshots(ctx, *limit)
		if err != nil {
			return err
		}
		for _, r := range rows {
			_ = enc.Encode(r)
		}
	case "settings":
		rows, err := idx.SettingsChanges(ctx, *limit)
		if err != nil {
			return err
		}
		for _, r := range rows {
			_ = enc.Encode(r)
		}
	default:
		return fmt.Errorf("unknown db query %q (top|counts|snapshots|settings)", q)
	}
	return nil
}
