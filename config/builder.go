package config

import (
	"fmt"

	"github.com/jpalmerr/minerwatch"
)

// BuildMonitors converts parsed configuration into SDK monitor configs.
//
// It registers the configured providers, then processes both direct monitors
// and fleets, returning a combined slice. Fleets are expanded via cartesian
// product.
func BuildMonitors(cfg *Config) ([]minerwatch.Config, error) {
	if err := RegisterProviders(cfg); err != nil {
		return nil, err
	}

	var monitors []minerwatch.Config

	for _, mc := range cfg.Monitors {
		c := buildMonitor(mc)
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("monitor %q: %w", mc.Name, err)
		}
		monitors = append(monitors, c)
	}

	for _, fc := range cfg.Fleets {
		members, err := buildFleet(fc)
		if err != nil {
			return nil, err
		}
		monitors = append(monitors, members...)
	}

	return monitors, nil
}

// buildMonitor converts a single MonitorConfig to an SDK Config.
func buildMonitor(mc MonitorConfig) minerwatch.Config {
	return minerwatch.Config{
		Name:                      mc.Name,
		PoolURL:                   mc.PoolURL,
		WalletAddress:             mc.WalletAddress,
		Mode:                      minerwatch.Mode(mc.Mode),
		WatchedField:              minerwatch.WatchedField(mc.StatusWanted),
		Debug:                     mc.Debug,
		ExpectedReceivePeriodDays: mc.ExpectedReceivePeriodInDays,
		Timeout:                   mc.Timeout.Duration(),
		Schedule:                  mc.Schedule,
	}
}

// buildFleet expands a FleetConfig through [minerwatch.NewFleet].
func buildFleet(fc FleetConfig) ([]minerwatch.Config, error) {
	opts := []minerwatch.FleetOption{
		minerwatch.WithFleetPools(fc.Pools...),
		minerwatch.WithFleetWallets(fc.Wallets...),
		minerwatch.WithFleetDebug(fc.Debug),
	}
	if fc.Mode != "" {
		opts = append(opts, minerwatch.WithFleetMode(minerwatch.Mode(fc.Mode)))
	}
	if len(fc.StatusWanted) > 0 && fc.Mode != string(minerwatch.ModeHashrateZero) {
		fields := make([]minerwatch.WatchedField, len(fc.StatusWanted))
		for i, s := range fc.StatusWanted {
			fields[i] = minerwatch.WatchedField(s)
		}
		opts = append(opts, minerwatch.WithFleetFields(fields...))
	}
	if fc.Schedule != "" {
		opts = append(opts, minerwatch.WithFleetSchedule(fc.Schedule))
	}
	if fc.Timeout != 0 {
		opts = append(opts, minerwatch.WithFleetTimeout(fc.Timeout.Duration()))
	}
	if fc.ExpectedReceivePeriodInDays != 0 {
		opts = append(opts, minerwatch.WithFleetReceivePeriod(fc.ExpectedReceivePeriodInDays))
	}

	members, err := minerwatch.NewFleet(fc.Name, opts...)
	if err != nil {
		return nil, fmt.Errorf("fleet (%s): %w", fc.Name, err)
	}
	return members, nil
}

// RegisterProviders adds the configured providers to the process-wide
// provider table.
func RegisterProviders(cfg *Config) error {
	for _, pc := range cfg.Providers {
		name := pc.Name
		if name == "" {
			name = pc.Domain
		}
		err := minerwatch.RegisterProvider(pc.Domain, minerwatch.Provider{
			Name:         name,
			PathTemplate: pc.PathTemplate,
			Schema: minerwatch.Schema{
				HashratePath:      pc.HashratePath,
				WorkersPath:       pc.WorkersPath,
				WorkerIDKey:       pc.WorkerIDKey,
				WorkerHashrateKey: pc.WorkerHashrateKey,
			},
		})
		if err != nil {
			return fmt.Errorf("provider %q: %w", pc.Domain, err)
		}
	}
	return nil
}
