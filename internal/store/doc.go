// Package store provides monitor state persistence and the event feed.
//
// The main components are:
//
//   - [StateStore]: single string slot per key, holding a monitor's last
//     fingerprint
//   - [MemoryStore]: in-process StateStore
//   - [RedisStore]: StateStore backed by Redis, for state that survives
//     restarts
//   - [Feed]: bounded history of emitted events with pub/sub for live
//     streaming
//
// All implementations are safe for concurrent access. Feed subscribers
// receive events via channels with non-blocking sends (slow subscribers miss
// events rather than block emission).
//
// Users of the minerwatch library should not need to interact with this
// package directly.
package store
