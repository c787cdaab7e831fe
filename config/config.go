// Package config provides YAML configuration parsing for minerwatch.
//
// This package enables running minerwatch as a standalone binary with a
// configuration file, as an alternative to the programmatic SDK approach.
//
// Example configuration:
//
//	port: 8080
//	schedule: "@every 1h"
//
//	state:
//	  backend: redis
//	  redis:
//	    addr: localhost:6379
//	    password: ${REDIS_PASSWORD:-}
//
//	monitors:
//	  - name: main rig
//	    pool_url: https://clopool.pro
//	    wallet_address: ${WALLET}
//	    status_wanted: workersOnline
//
//	fleets:
//	  - name: Rigs
//	    pools: [https://clopool.pro, https://2miners.com]
//	    wallets: [0xaaa, 0xbbb]
//	    mode: hashrate_zero
//
//	providers:
//	  - domain: example.net
//	    path_template: /api/accounts/{wallet}
//	    hashrate_path: currentHashrate
//	    workers_path: workers
//	    worker_hashrate_key: hr
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

const (
	defaultPort     = 8080
	defaultSchedule = "@every 1h"

	// BackendMemory keeps state in process memory.
	BackendMemory = "memory"
	// BackendRedis keeps state in Redis.
	BackendRedis = "redis"
)

// Config is the root configuration structure for minerwatch.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// Port is the HTTP server port. Defaults to 8080.
	Port int `yaml:"port"`

	// Schedule is the default cron spec. Defaults to "@every 1h".
	Schedule string `yaml:"schedule"`

	// State selects where the last seen status of each monitor is kept.
	State StateConfig `yaml:"state"`

	// Monitors defines individual pool/wallet monitors.
	Monitors []MonitorConfig `yaml:"monitors"`

	// Fleets defines monitor groups that expand via cartesian product.
	Fleets []FleetConfig `yaml:"fleets"`

	// Providers adds or replaces entries of the pool provider table.
	Providers []ProviderConfig `yaml:"providers"`
}

// ProviderConfig describes how to query a pool domain and read its response.
type ProviderConfig struct {
	// Domain is the last two labels of the pool host, e.g. "clopool.pro",
	// or an IP address.
	Domain string `yaml:"domain"`

	Name string `yaml:"name"`

	// PathTemplate is appended to the pool URL and must contain {wallet}.
	PathTemplate string `yaml:"path_template"`

	HashratePath      string `yaml:"hashrate_path"`
	WorkersPath       string `yaml:"workers_path"`
	WorkerIDKey       string `yaml:"worker_id_key"`
	WorkerHashrateKey string `yaml:"worker_hashrate_key"`
}

// StateConfig selects the state backend.
type StateConfig struct {
	// Backend is "memory" (default) or "redis".
	Backend string `yaml:"backend"`

	// Redis is required when Backend is "redis".
	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	// Prefix is prepended to every state key. Defaults to "minerwatch:".
	Prefix string `yaml:"prefix"`
}

// MonitorConfig defines a single monitor.
type MonitorConfig struct {
	// Name identifies the monitor. Defaults to "<domain>/<wallet>".
	Name string `yaml:"name"`

	// PoolURL is the pool base URL.
	// Supports environment variable substitution: ${VAR} or ${VAR:-default}
	PoolURL string `yaml:"pool_url"`

	// WalletAddress is the account to query. Supports substitution.
	WalletAddress string `yaml:"wallet_address"`

	// Mode is "aggregate" (default) or "hashrate_zero".
	Mode string `yaml:"mode"`

	// StatusWanted is the aggregate field to watch. Defaults to workersOnline.
	StatusWanted string `yaml:"status_wanted"`

	// Debug logs raw response bodies.
	Debug bool `yaml:"debug"`

	// ExpectedReceivePeriodInDays bounds the time between events before the
	// monitor reports unhealthy. Defaults to 2.
	ExpectedReceivePeriodInDays int `yaml:"expected_receive_period_in_days"`

	// Timeout is the request timeout. Defaults to 10s.
	Timeout Duration `yaml:"timeout"`

	// Schedule overrides the global schedule for this monitor.
	Schedule string `yaml:"schedule"`
}

// FleetConfig defines monitors expanded over pools × wallets × fields.
type FleetConfig struct {
	// Name is the base name for generated monitors.
	Name string `yaml:"name"`

	// Pools are the pool base URLs. Supports substitution.
	Pools []string `yaml:"pools"`

	// Wallets are the wallet addresses. Supports substitution.
	Wallets []string `yaml:"wallets"`

	// StatusWanted lists the aggregate fields to watch.
	// Ignored in hashrate_zero mode.
	StatusWanted []string `yaml:"status_wanted"`

	Mode                        string   `yaml:"mode"`
	Debug                       bool     `yaml:"debug"`
	ExpectedReceivePeriodInDays int      `yaml:"expected_receive_period_in_days"`
	Timeout                     Duration `yaml:"timeout"`
	Schedule                    string   `yaml:"schedule"`
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part, present when a default was given
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}

		sub := envVarPattern.FindStringSubmatch(match)
		if len(sub) < 2 {
			return match
		}

		name := sub[1]
		hasDefault := len(sub) > 2 && sub[2] != ""

		value, exists := os.LookupEnv(name)
		if !exists {
			if hasDefault {
				return sub[3]
			}
			firstErr = fmt.Errorf("environment variable %q is not set", name)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a YAML configuration file.
//
// Environment variables in the file are expanded before parsing.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data.
//
// Environment variables are expanded in pool URLs, wallet addresses and the
// Redis address and password. Defaults are applied for Port (8080), Schedule
// ("@every 1h") and the state backend (memory).
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.Schedule == "" {
		cfg.Schedule = defaultSchedule
	}
	if cfg.State.Backend == "" {
		cfg.State.Backend = BackendMemory
	}

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// MonitorCount returns the number of monitors the configuration expands to.
func (c *Config) MonitorCount() int {
	n := len(c.Monitors)
	for _, f := range c.Fleets {
		size := len(f.Pools) * len(f.Wallets)
		if f.Mode != "hashrate_zero" && len(f.StatusWanted) > 1 {
			size *= len(f.StatusWanted)
		}
		n += size
	}
	return n
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	if err := validateSchedule(c.Schedule); err != nil {
		return fmt.Errorf("schedule: %w", err)
	}
	if err := c.State.expandAndValidate(); err != nil {
		return err
	}

	for i := range c.Monitors {
		m := &c.Monitors[i]
		ctx := fmt.Sprintf("monitors[%d]", i)
		if m.Name != "" {
			ctx = fmt.Sprintf("monitors[%d] (%s)", i, m.Name)
		}

		if m.PoolURL == "" {
			return fmt.Errorf("%s: pool_url is required", ctx)
		}
		expanded, err := expandEnvVars(m.PoolURL)
		if err != nil {
			return fmt.Errorf("%s: pool_url: %w", ctx, err)
		}
		m.PoolURL = expanded
		if err := validatePoolURL(m.PoolURL); err != nil {
			return fmt.Errorf("%s: %w", ctx, err)
		}

		if m.WalletAddress == "" {
			return fmt.Errorf("%s: wallet_address is required", ctx)
		}
		if m.WalletAddress, err = expandEnvVars(m.WalletAddress); err != nil {
			return fmt.Errorf("%s: wallet_address: %w", ctx, err)
		}

		if err := validateMode(m.Mode); err != nil {
			return fmt.Errorf("%s: %w", ctx, err)
		}
		if m.Mode != "hashrate_zero" && m.StatusWanted != "" {
			if err := validateStatusWanted(m.StatusWanted); err != nil {
				return fmt.Errorf("%s: %w", ctx, err)
			}
		}
		if err := validateCommon(m.ExpectedReceivePeriodInDays, m.Timeout, m.Schedule); err != nil {
			return fmt.Errorf("%s: %w", ctx, err)
		}
	}

	for i := range c.Fleets {
		f := &c.Fleets[i]

		if f.Name == "" {
			return fmt.Errorf("fleets[%d]: name is required", i)
		}
		ctx := fmt.Sprintf("fleets[%d] (%s)", i, f.Name)

		if len(f.Pools) == 0 {
			return fmt.Errorf("%s: at least one pool is required", ctx)
		}
		for j, p := range f.Pools {
			expanded, err := expandEnvVars(p)
			if err != nil {
				return fmt.Errorf("%s: pools[%d]: %w", ctx, j, err)
			}
			if err := validatePoolURL(expanded); err != nil {
				return fmt.Errorf("%s: pools[%d]: %w", ctx, j, err)
			}
			f.Pools[j] = expanded
		}

		if len(f.Wallets) == 0 {
			return fmt.Errorf("%s: at least one wallet is required", ctx)
		}
		for j, w := range f.Wallets {
			expanded, err := expandEnvVars(w)
			if err != nil {
				return fmt.Errorf("%s: wallets[%d]: %w", ctx, j, err)
			}
			f.Wallets[j] = expanded
		}

		if err := validateMode(f.Mode); err != nil {
			return fmt.Errorf("%s: %w", ctx, err)
		}
		if f.Mode != "hashrate_zero" {
			for _, s := range f.StatusWanted {
				if err := validateStatusWanted(s); err != nil {
					return fmt.Errorf("%s: %w", ctx, err)
				}
			}
		}
		if err := validateCommon(f.ExpectedReceivePeriodInDays, f.Timeout, f.Schedule); err != nil {
			return fmt.Errorf("%s: %w", ctx, err)
		}
	}

	for i, p := range c.Providers {
		if p.Domain == "" {
			return fmt.Errorf("providers[%d]: domain is required", i)
		}
		if !strings.Contains(p.PathTemplate, "{wallet}") {
			return fmt.Errorf("providers[%d] (%s): path_template must contain {wallet}", i, p.Domain)
		}
		if p.HashratePath == "" {
			return fmt.Errorf("providers[%d] (%s): hashrate_path is required", i, p.Domain)
		}
	}

	if len(c.Monitors) == 0 && len(c.Fleets) == 0 {
		return errors.New("at least one monitor or fleet must be defined")
	}

	return nil
}

func (s *StateConfig) expandAndValidate() error {
	switch s.Backend {
	case BackendMemory:
		return nil
	case BackendRedis:
	default:
		return fmt.Errorf("state: unknown backend %q (expected %q or %q)", s.Backend, BackendMemory, BackendRedis)
	}

	addr, err := expandEnvVars(s.Redis.Addr)
	if err != nil {
		return fmt.Errorf("state.redis.addr: %w", err)
	}
	if addr == "" {
		return errors.New("state.redis.addr is required for the redis backend")
	}
	s.Redis.Addr = addr

	password, err := expandEnvVars(s.Redis.Password)
	if err != nil {
		return fmt.Errorf("state.redis.password: %w", err)
	}
	s.Redis.Password = password

	if s.Redis.DB < 0 {
		return fmt.Errorf("state.redis.db cannot be negative, got %d", s.Redis.DB)
	}
	return nil
}

func validatePoolURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid pool_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("pool_url scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("pool_url must have a host")
	}
	return nil
}

func validateMode(mode string) error {
	switch mode {
	case "", "aggregate", "hashrate_zero":
		return nil
	}
	return fmt.Errorf("unknown mode %q (expected aggregate or hashrate_zero)", mode)
}

func validateStatusWanted(s string) error {
	switch s {
	case "workersOnline", "workersOffline", "workersTotal":
		return nil
	}
	return fmt.Errorf("status_wanted must be workersOnline, workersOffline or workersTotal, got %q", s)
}

func validateCommon(periodDays int, timeout Duration, schedule string) error {
	if periodDays < 0 {
		return fmt.Errorf("expected_receive_period_in_days cannot be negative, got %d", periodDays)
	}
	if timeout != 0 && timeout.Duration() < time.Second {
		return fmt.Errorf("timeout must be at least 1s if specified, got %s", timeout.Duration())
	}
	if schedule != "" {
		if err := validateSchedule(schedule); err != nil {
			return fmt.Errorf("schedule: %w", err)
		}
	}
	return nil
}

func validateSchedule(spec string) error {
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid cron spec %q: %w", spec, err)
	}
	return nil
}
