// Package poller provides the pool HTTP client and the cron scheduler that
// drives monitor ticks.
//
// The main components are:
//
//   - [Client]: GET client with per-request timeouts and a 1MB body limit
//   - [Scheduler]: runs [Job] values on cron specs, one tick at a time per job
//   - [TickResult]: outcome of a single tick
//
// Users of the minerwatch library should not need to interact with this
// package directly.
package poller
