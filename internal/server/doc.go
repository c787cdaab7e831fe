// Package server provides the read-only HTTP status API for minerwatch.
//
// It exposes monitor health and recent events as JSON, streams new events
// over Server-Sent Events, and serves Prometheus metrics. It never changes
// monitor configuration.
//
// Users of the minerwatch library should not need to interact with this
// package directly.
package server
