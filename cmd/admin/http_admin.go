package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"reactorrad.ai/internal/protocol"
)

func stateCmd(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("state", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	_ = fs.Parse(args)
	return call(out, http.MethodGet, adminURL(*baseURL, "/admin/v1/state"), nil, 5*time.Second)
}

// captureCmd asks the server to write a registry dump.
func captureCmd(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("capture", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	_ = fs.Parse(args)
	return call(out, http.MethodPost, adminURL(*baseURL, "/admin/v1/registry/snapshot"), nil, 10*time.Second)
}

// settingsCmd prints the live settings, or updates them from key=value
// arguments, e.g. `settings damage_rate=2 model=legacy`.
func settingsCmd(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("settings", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	_ = fs.Parse(args)

	u := adminURL(*baseURL, "/admin/v1/settings")
	if fs.NArg() == 0 {
		return call(out, http.MethodGet, u, nil, 5*time.Second)
	}
	body, err := settingsBody(fs.Args())
	if err != nil {
		return err
	}
	return call(out, http.MethodPost, u, body, 5*time.Second)
}

// settingsBody builds a SETTINGS message from key=value pairs. Values are
// typed by the key so the server schema sees numbers and booleans.
func settingsBody(pairs []string) ([]byte, error) {
	patch := map[string]any{}
	for _, kv := range pairs {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, fmt.Errorf("bad setting %q (want key=value)", kv)
		}
		k = strings.TrimSpace(k)
		v = strings.TrimSpace(v)
		switch k {
		case "model", "elapsed_mode":
			patch[k] = v
		case "damage_rate", "radiation_range", "effective_range_base", "range_per_power":
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			patch[k] = f
		case "damage_interval_ms", "scan_interval_ms":
			n, err := strconv.Atoi(v)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			patch[k] = n
		case "scan_on_init":
			b, err := strconv.ParseBool(v)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			patch[k] = b
		default:
			return nil, fmt.Errorf("unknown setting %q", k)
		}
	}
	raw, err := json.Marshal(map[string]any{
		"type":             protocol.TypeSettings,
		"protocol_version": protocol.Version,
		"settings":         patch,
	})
	if err != nil {
		return nil, err
	}
	if err := protocol.ValidateSettings(raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func adminURL(base, path string) string {
	return strings.TrimRight(strings.TrimSpace(base), "/") + path
}

func call(out io.Writer, method, u string, body []byte, timeout time.Duration) error {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequest(method, u, r)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	cl := &http.Client{Timeout: timeout}
	resp, err := cl.Do(req)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	fmt.Fprintln(out, strings.TrimSpace(string(b)))
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("%s %s: %s", method, u, resp.Status)
	}
	return nil
}
