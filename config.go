package minerwatch

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	// DefaultExpectedReceivePeriodDays is used when the period is unset.
	DefaultExpectedReceivePeriodDays = 2

	defaultMonitorTimeout = 10 * time.Second
)

// Config describes one pool/wallet pair to watch.
//
// Config is read-only to the monitor. Use [Config.Validate] (called by
// [NewMonitor]) to check it before use.
type Config struct {
	// Name identifies the monitor in logs, metrics, events and the state
	// store key. Defaults to "<provider domain>/<wallet>".
	Name string

	// PoolURL is the pool base URL, e.g. "https://clopool.pro".
	PoolURL string

	// WalletAddress is the account to query.
	WalletAddress string

	// Mode selects what to watch. Defaults to [ModeAggregate].
	Mode Mode

	// WatchedField is the aggregate field observed in [ModeAggregate].
	// Defaults to [FieldWorkersOnline].
	WatchedField WatchedField

	// Debug logs raw response bodies.
	Debug bool

	// ExpectedReceivePeriodDays is the maximum number of days without an
	// event before the monitor is considered not working.
	// Defaults to [DefaultExpectedReceivePeriodDays].
	ExpectedReceivePeriodDays int

	// Timeout bounds each pool request. Defaults to 10s.
	Timeout time.Duration

	// Schedule is a cron spec for this monitor when run by a [Watcher].
	// Empty uses the watcher's schedule.
	Schedule string
}

// withDefaults returns a copy of c with unset fields defaulted.
func (c Config) withDefaults() Config {
	if c.Mode == "" {
		c.Mode = ModeAggregate
	}
	if c.WatchedField == "" {
		c.WatchedField = FieldWorkersOnline
	}
	if c.ExpectedReceivePeriodDays == 0 {
		c.ExpectedReceivePeriodDays = DefaultExpectedReceivePeriodDays
	}
	if c.Timeout == 0 {
		c.Timeout = defaultMonitorTimeout
	}
	if c.Name == "" {
		domain, err := ProviderDomain(c.PoolURL)
		if err != nil {
			domain = c.PoolURL
		}
		c.Name = domain + "/" + c.WalletAddress
	}
	return c
}

// Validate reports the first problem found in c after defaults are applied.
//
// A pool URL whose domain has no provider is not a validation error: it is
// reported by every check as an [*UnsupportedProviderError], so providers
// registered after construction are honoured.
func (c Config) Validate() error {
	c = c.withDefaults()
	if strings.TrimSpace(c.WalletAddress) == "" {
		return errors.New("wallet_address is a required field")
	}
	if strings.TrimSpace(c.PoolURL) == "" {
		return errors.New("pool_url is a required field")
	}
	if c.ExpectedReceivePeriodDays < 1 {
		return errors.New("expected_receive_period_in_days must be a positive number of days")
	}
	if !c.Mode.Valid() {
		return fmt.Errorf("unknown mode %q (expected %q or %q)", c.Mode, ModeAggregate, ModeHashrateZero)
	}
	if c.Mode == ModeAggregate && !c.WatchedField.Valid() {
		return fmt.Errorf("status_wanted must be one of %s, %s or %s, got %q",
			FieldWorkersOnline, FieldWorkersOffline, FieldWorkersTotal, c.WatchedField)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout cannot be negative, got %s", c.Timeout)
	}
	if c.Schedule != "" {
		if _, err := cron.ParseStandard(c.Schedule); err != nil {
			return fmt.Errorf("invalid schedule %q: %w", c.Schedule, err)
		}
	}
	return nil
}

// ExpectedReceivePeriod returns the receive period as a duration.
func (c Config) ExpectedReceivePeriod() time.Duration {
	return time.Duration(c.ExpectedReceivePeriodDays) * 24 * time.Hour
}
