package config

import (
	"strings"
	"testing"
	"time"

	"github.com/jpalmerr/minerwatch"
)

func TestBuildMonitors_SingleMonitor(t *testing.T) {
	cfg := &Config{
		Monitors: []MonitorConfig{
			{
				Name:          "main rig",
				PoolURL:       "https://clopool.pro",
				WalletAddress: "0xabc",
			},
		},
	}

	monitors, err := BuildMonitors(cfg)
	if err != nil {
		t.Fatalf("BuildMonitors() error = %v", err)
	}
	if len(monitors) != 1 {
		t.Fatalf("len(monitors) = %d, want 1", len(monitors))
	}

	m := monitors[0]
	if m.Name != "main rig" {
		t.Errorf("Name = %q, want %q", m.Name, "main rig")
	}
	if m.PoolURL != "https://clopool.pro" || m.WalletAddress != "0xabc" {
		t.Errorf("PoolURL = %q, WalletAddress = %q", m.PoolURL, m.WalletAddress)
	}
}

func TestBuildMonitors_AllOptions(t *testing.T) {
	cfg := &Config{
		Monitors: []MonitorConfig{
			{
				Name:                        "idle check",
				PoolURL:                     "https://2miners.com",
				WalletAddress:               "0xabc",
				Mode:                        "hashrate_zero",
				Debug:                       true,
				ExpectedReceivePeriodInDays: 7,
				Timeout:                     Duration(5 * time.Second),
				Schedule:                    "@every 10m",
			},
		},
	}

	monitors, err := BuildMonitors(cfg)
	if err != nil {
		t.Fatalf("BuildMonitors() error = %v", err)
	}

	m := monitors[0]
	if m.Mode != minerwatch.ModeHashrateZero {
		t.Errorf("Mode = %q, want %q", m.Mode, minerwatch.ModeHashrateZero)
	}
	if !m.Debug {
		t.Error("Debug = false, want true")
	}
	if m.ExpectedReceivePeriodDays != 7 {
		t.Errorf("ExpectedReceivePeriodDays = %d, want 7", m.ExpectedReceivePeriodDays)
	}
	if m.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", m.Timeout)
	}
	if m.Schedule != "@every 10m" {
		t.Errorf("Schedule = %q, want @every 10m", m.Schedule)
	}
}

func TestBuildMonitors_Fleet(t *testing.T) {
	cfg := &Config{
		Fleets: []FleetConfig{
			{
				Name:         "Rigs",
				Pools:        []string{"https://clopool.pro"},
				Wallets:      []string{"0xaaa", "0xbbb"},
				StatusWanted: []string{"workersOnline", "workersOffline"},
			},
		},
	}

	monitors, err := BuildMonitors(cfg)
	if err != nil {
		t.Fatalf("BuildMonitors() error = %v", err)
	}
	if len(monitors) != 4 {
		t.Fatalf("len(monitors) = %d, want 4", len(monitors))
	}

	names := make(map[string]bool)
	for _, m := range monitors {
		names[m.Name] = true
	}
	for _, want := range []string{
		"Rigs (workersOnline/clopool.pro/0xaaa)",
		"Rigs (workersOffline/clopool.pro/0xbbb)",
	} {
		if !names[want] {
			t.Errorf("missing monitor %q in %v", want, names)
		}
	}
}

func TestBuildMonitors_HashrateFleet(t *testing.T) {
	cfg := &Config{
		Fleets: []FleetConfig{
			{
				Name:         "Idle",
				Mode:         "hashrate_zero",
				Pools:        []string{"https://clopool.pro", "https://2miners.com"},
				Wallets:      []string{"0xaaa"},
				StatusWanted: []string{"workersOnline"},
				Timeout:      Duration(3 * time.Second),
			},
		},
	}

	monitors, err := BuildMonitors(cfg)
	if err != nil {
		t.Fatalf("BuildMonitors() error = %v", err)
	}
	if len(monitors) != 2 {
		t.Fatalf("len(monitors) = %d, want 2", len(monitors))
	}
	for _, m := range monitors {
		if m.Mode != minerwatch.ModeHashrateZero {
			t.Errorf("%s: Mode = %q", m.Name, m.Mode)
		}
		if m.Timeout != 3*time.Second {
			t.Errorf("%s: Timeout = %v", m.Name, m.Timeout)
		}
		if strings.Contains(m.Name, "workersOnline") {
			t.Errorf("hashrate fleet name %q should not carry a field", m.Name)
		}
	}
}

func TestBuildMonitors_MixedMonitorsAndFleets(t *testing.T) {
	yaml := `
monitors:
  - pool_url: https://clopool.pro
    wallet_address: "0x111"
fleets:
  - name: Rigs
    pools: [https://2miners.com]
    wallets: ["0xaaa", "0xbbb", "0xccc"]
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	monitors, err := BuildMonitors(cfg)
	if err != nil {
		t.Fatalf("BuildMonitors() error = %v", err)
	}
	if len(monitors) != cfg.MonitorCount() {
		t.Errorf("len(monitors) = %d, MonitorCount() = %d", len(monitors), cfg.MonitorCount())
	}
	if len(monitors) != 4 {
		t.Errorf("len(monitors) = %d, want 4", len(monitors))
	}
}

func TestBuildMonitors_DuplicateFleetWallet(t *testing.T) {
	cfg := &Config{
		Fleets: []FleetConfig{
			{
				Name:    "Rigs",
				Pools:   []string{"https://clopool.pro"},
				Wallets: []string{"0xaaa", "0xaaa"},
			},
		},
	}

	_, err := BuildMonitors(cfg)
	if err == nil {
		t.Fatal("BuildMonitors() expected error for repeated wallet")
	}
	if !strings.Contains(err.Error(), "repeated") {
		t.Errorf("error = %q, want to mention repetition", err)
	}
}

func TestBuildMonitors_EmptyConfig(t *testing.T) {
	monitors, err := BuildMonitors(&Config{})
	if err != nil {
		t.Fatalf("BuildMonitors() error = %v", err)
	}
	if len(monitors) != 0 {
		t.Errorf("len(monitors) = %d, want 0", len(monitors))
	}
}

func TestBuildMonitors_RegistersProviders(t *testing.T) {
	cfg := &Config{
		Providers: []ProviderConfig{
			{
				Domain:            "builder-test.example",
				PathTemplate:      "/v1/miner/{wallet}",
				HashratePath:      "stats.hashrate",
				WorkersPath:       "stats.workers",
				WorkerIDKey:       "name",
				WorkerHashrateKey: "hashrate",
			},
		},
		Monitors: []MonitorConfig{
			{PoolURL: "https://pool.builder-test.example", WalletAddress: "0xabc"},
		},
	}

	if _, err := BuildMonitors(cfg); err != nil {
		t.Fatalf("BuildMonitors() error = %v", err)
	}

	url, p, err := minerwatch.ResolveEndpoint("https://pool.builder-test.example", "0xabc")
	if err != nil {
		t.Fatalf("ResolveEndpoint() error = %v", err)
	}
	if url != "https://pool.builder-test.example/v1/miner/0xabc" {
		t.Errorf("url = %q", url)
	}
	if p.Name != "builder-test.example" {
		t.Errorf("provider name = %q, want the domain", p.Name)
	}
	if p.Schema.WorkerIDKey != "name" {
		t.Errorf("schema = %+v", p.Schema)
	}
}
