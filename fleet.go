package minerwatch

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"
)

// fleet dimension keys
const (
	dimField  = "field"
	dimPool   = "pool"
	dimWallet = "wallet"
)

// fleetConfig holds mutable state during fleet expansion.
type fleetConfig struct {
	pools         []string
	wallets       []string
	fields        []WatchedField
	mode          Mode
	schedule      string
	timeout       time.Duration
	receivePeriod int
	debug         bool
}

// FleetOption configures a fleet passed to [NewFleet].
type FleetOption func(*fleetConfig) error

// NewFleet expands pools × wallets × fields into one monitor [Config] per
// combination.
//
// Each name has the form "Base (field/host/wallet)" using the host of the
// pool URL; hashrate fleets omit the field. Combinations are
// produced in a stable order.
//
// Example:
//
//	cfgs, err := minerwatch.NewFleet("Rigs",
//	    minerwatch.WithFleetPools("https://clopool.pro"),
//	    minerwatch.WithFleetWallets("0xaaa", "0xbbb"),
//	    minerwatch.WithFleetFields(minerwatch.FieldWorkersOnline, minerwatch.FieldWorkersOffline),
//	)
//	// Returns 4 configs, usable with WithMonitors(cfgs...)
func NewFleet(baseName string, opts ...FleetOption) ([]Config, error) {
	if strings.TrimSpace(baseName) == "" {
		return nil, errors.New("fleet name cannot be empty")
	}

	cfg := &fleetConfig{mode: ModeAggregate}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if len(cfg.pools) == 0 {
		return nil, errors.New("at least one pool URL required")
	}
	if len(cfg.wallets) == 0 {
		return nil, errors.New("at least one wallet required")
	}

	dims := map[string][]string{
		dimPool:   cfg.pools,
		dimWallet: cfg.wallets,
	}
	if cfg.mode == ModeAggregate {
		fields := cfg.fields
		if len(fields) == 0 {
			fields = []WatchedField{FieldWorkersOnline}
		}
		dims[dimField] = make([]string, len(fields))
		for i, f := range fields {
			dims[dimField][i] = f.String()
		}
	}

	combinations := cartesianProduct(dims)
	configs := make([]Config, 0, len(combinations))
	for _, combo := range combinations {
		c := Config{
			Name:                      fleetMemberName(baseName, combo),
			PoolURL:                   combo[dimPool],
			WalletAddress:             combo[dimWallet],
			Mode:                      cfg.mode,
			WatchedField:              WatchedField(combo[dimField]),
			Debug:                     cfg.debug,
			ExpectedReceivePeriodDays: cfg.receivePeriod,
			Timeout:                   cfg.timeout,
			Schedule:                  cfg.schedule,
		}
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("fleet member %q: %w", c.Name, err)
		}
		configs = append(configs, c)
	}
	return configs, nil
}

// WithFleetPools sets the pool base URLs of the fleet.
//
// Returns an error if no URLs are given or a URL is repeated.
func WithFleetPools(urls ...string) FleetOption {
	return func(cfg *fleetConfig) error {
		if err := checkDimension("pool", urls); err != nil {
			return err
		}
		cfg.pools = append([]string(nil), urls...)
		return nil
	}
}

// WithFleetWallets sets the wallet addresses of the fleet.
//
// Returns an error if no wallets are given or a wallet is repeated.
func WithFleetWallets(wallets ...string) FleetOption {
	return func(cfg *fleetConfig) error {
		if err := checkDimension("wallet", wallets); err != nil {
			return err
		}
		cfg.wallets = append([]string(nil), wallets...)
		return nil
	}
}

// WithFleetFields sets the watched fields of an aggregate fleet. Defaults to
// [FieldWorkersOnline].
//
// Returns an error if a field is unknown or repeated.
func WithFleetFields(fields ...WatchedField) FleetOption {
	return func(cfg *fleetConfig) error {
		values := make([]string, len(fields))
		for i, f := range fields {
			if !f.Valid() {
				return fmt.Errorf("unknown watched field %q", f)
			}
			values[i] = f.String()
		}
		if err := checkDimension("field", values); err != nil {
			return err
		}
		cfg.fields = append([]WatchedField(nil), fields...)
		return nil
	}
}

// WithFleetMode sets the mode of every fleet member. Defaults to
// [ModeAggregate].
func WithFleetMode(mode Mode) FleetOption {
	return func(cfg *fleetConfig) error {
		if !mode.Valid() {
			return fmt.Errorf("unknown mode %q", mode)
		}
		cfg.mode = mode
		return nil
	}
}

// WithFleetSchedule sets the cron spec of every fleet member.
func WithFleetSchedule(spec string) FleetOption {
	return func(cfg *fleetConfig) error {
		cfg.schedule = spec
		return nil
	}
}

// WithFleetTimeout sets the request timeout of every fleet member.
//
// Returns an error if the duration is zero or negative.
func WithFleetTimeout(d time.Duration) FleetOption {
	return func(cfg *fleetConfig) error {
		if d <= 0 {
			return errors.New("timeout must be positive")
		}
		cfg.timeout = d
		return nil
	}
}

// WithFleetReceivePeriod sets the expected receive period, in days, of every
// fleet member.
//
// Returns an error if days is zero or negative.
func WithFleetReceivePeriod(days int) FleetOption {
	return func(cfg *fleetConfig) error {
		if days <= 0 {
			return errors.New("expected receive period must be a positive number of days")
		}
		cfg.receivePeriod = days
		return nil
	}
}

// WithFleetDebug enables response body logging for every fleet member.
func WithFleetDebug(debug bool) FleetOption {
	return func(cfg *fleetConfig) error {
		cfg.debug = debug
		return nil
	}
}

// checkDimension rejects empty dimensions and duplicate values.
func checkDimension(name string, values []string) error {
	if len(values) == 0 {
		return fmt.Errorf("fleet %s list cannot be empty", name)
	}
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("fleet %s cannot be empty", name)
		}
		if _, dup := seen[v]; dup {
			return fmt.Errorf("fleet %s %q is repeated", name, v)
		}
		seen[v] = struct{}{}
	}
	return nil
}

// cartesianProduct generates all combinations of dimension values.
// Keys are sorted alphabetically for deterministic output.
// Values maintain their original slice order.
//
// Example:
//
//	Input:  {"x": ["a","b"], "y": ["1","2"]}
//	Output: [{"x":"a","y":"1"}, {"x":"a","y":"2"}, {"x":"b","y":"1"}, {"x":"b","y":"2"}]
func cartesianProduct(dims map[string][]string) []map[string]string {
	if len(dims) == 0 {
		return nil
	}

	keys := make([]string, 0, len(dims))
	for k := range dims {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	total := 1
	for _, k := range keys {
		if len(dims[k]) == 0 {
			return nil
		}
		total *= len(dims[k])
	}

	result := make([]map[string]string, 0, total)
	indices := make([]int, len(keys))
	for {
		combo := make(map[string]string, len(keys))
		for i, k := range keys {
			combo[k] = dims[k][indices[i]]
		}
		result = append(result, combo)

		// increment indices (rightmost first)
		for i := len(keys) - 1; i >= 0; i-- {
			indices[i]++
			if indices[i] < len(dims[keys[i]]) {
				break
			}
			indices[i] = 0
			if i == 0 {
				return result
			}
		}
	}
}

// fleetMemberName formats "Base (field/host/wallet)", skipping absent
// dimensions.
func fleetMemberName(baseName string, combo map[string]string) string {
	parts := make([]string, 0, 3)
	if f, ok := combo[dimField]; ok {
		parts = append(parts, f)
	}
	pool := combo[dimPool]
	if u, err := url.Parse(pool); err == nil && u.Host != "" {
		pool = u.Host
	}
	parts = append(parts, pool, combo[dimWallet])
	return fmt.Sprintf("%s (%s)", baseName, strings.Join(parts, "/"))
}
