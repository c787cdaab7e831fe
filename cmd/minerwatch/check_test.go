package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// localProvider maps the httptest host to an open-ethereum-pool layout.
const localProvider = `
providers:
  - domain: 127.0.0.1
    name: local
    path_template: /api/accounts/{wallet}
    hashrate_path: currentHashrate
    workers_path: workers
    worker_hashrate_key: hr
`

func TestRunCheck_PrintsEvents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/accounts/0xabc" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `{"workersOnline": 3, "workersOffline": 1, "currentHashrate": 0, "workers": {"rig1": {"hr": 0}}}`)
	}))
	defer srv.Close()

	path := writeConfig(t, localProvider+fmt.Sprintf(`
monitors:
  - name: aggregate
    pool_url: %[1]s
    wallet_address: "0xabc"
  - name: idle
    pool_url: %[1]s
    wallet_address: "0xabc"
    mode: hashrate_zero
`, srv.URL))

	output, err := executeCmd(t, "check", "-c", path)
	if err != nil {
		t.Fatalf("check command error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3:\n%s", len(lines), output)
	}

	var first struct {
		Monitor string         `json:"monitor"`
		Kind    string         `json:"kind"`
		Record  map[string]any `json:"record"`
	}
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("line 0 is not JSON: %v", err)
	}
	if first.Monitor != "aggregate" || first.Kind != "status_changed" {
		t.Errorf("first event = %+v", first)
	}
	if first.Record["workersOnline"] != float64(3) {
		t.Errorf("record = %v, want workersOnline 3", first.Record)
	}

	for _, line := range lines[1:] {
		if !strings.Contains(line, `"kind":"hashrate_zero"`) {
			t.Errorf("line %q is not a hashrate alert", line)
		}
	}
}

func TestRunCheck_FetchFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	path := writeConfig(t, localProvider+fmt.Sprintf(`
monitors:
  - pool_url: %s
    wallet_address: "0xabc"
`, srv.URL))

	output, err := executeCmd(t, "check", "-c", path)
	if err == nil {
		t.Fatal("check command expected error for a failing pool")
	}
	if output != "" {
		t.Errorf("stdout = %q, want no events", output)
	}
}
