package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"reactorrad.ai/internal/persistence/snapshot"
)

func main() {
	var err error
	args := os.Args[1:]
	cmd := "list"
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}
	switch cmd {
	case "list":
		err = listCmd(args, os.Stdout)
	case "snapshot":
		err = snapshotCmd(args, os.Stdout)
	case "db":
		err = dbCmd(args, os.Stdout)
	case "events":
		err = eventsCmd(args, os.Stdout)
	case "state":
		err = stateCmd(args, os.Stdout)
	case "settings":
		err = settingsCmd(args, os.Stdout)
	case "capture":
		err = captureCmd(args, os.Stdout)
	default:
		err = fmt.Errorf("unknown command %q (list|snapshot|db|events|state|settings|capture)", cmd)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func listCmd(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	_ = fs.Parse(args)

	entries, err := os.ReadDir(filepath.Join(*dataDir, "worlds"))
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			fmt.Fprintln(out, e.Name())
		}
	}
	return nil
}

// snapshotCmd prints a registry dump as indented JSON. With no path it
// picks the newest dump of -world.
func snapshotCmd(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("snapshot", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "sandbox", "world id (used when no path is given)")
	headerOnly := fs.Bool("header", false, "print only the header")
	_ = fs.Parse(args)

	path := strings.TrimSpace(fs.Arg(0))
	if path == "" {
		path = latestSnapshot(filepath.Join(*dataDir, "worlds", *worldID))
		if path == "" {
			return fmt.Errorf("no snapshot found for world %q", *worldID)
		}
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if *headerOnly {
		h, err := snapshot.ReadHeader(path)
		if err != nil {
			return err
		}
		return enc.Encode(h)
	}
	snap, err := snapshot.ReadSnapshot(path)
	if err != nil {
		return err
	}
	return enc.Encode(snap)
}

func latestSnapshot(worldDir string) string {
	dir := filepath.Join(worldDir, "snapshots")
	ents, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var best string
	var bestTick uint64
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".snap.zst") {
			continue
		}
		tick, err := strconv.ParseUint(strings.TrimSuffix(name, ".snap.zst"), 10, 64)
		if err != nil {
			continue
		}
		if best == "" || tick > bestTick {
			bestTick = tick
			best = filepath.Join(dir, name)
		}
	}
	return best
}
