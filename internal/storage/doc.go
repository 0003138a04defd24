// Package storage keeps the firing history of jobs.
//
// Only outcomes are recorded (finished, failed, cancelled); schedules are
// never persisted and are rebuilt from the job file on start.
//
// Drivers:
//   - "file":   append-only JSON Lines, compacted to the newest records
//   - "sqlite": modernc.org/sqlite (pure Go, no cgo)
package storage
