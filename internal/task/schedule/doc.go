// Package schedule computes when a job first fires and how often it repeats.
//
// A Strategy is a pure function of "now" and its parameters that yields a
// Plan{DueTime, Period, Single}. The job engine arms its timer from the plan
// and owns everything after that, including drift correction.
//
// Strategies:
//   - Fixed:    initial delay + period
//   - Anchored: absolute first run + period
//   - Daily:    wall-clock time of day, 24h period
//   - Once:     single self-disposing shot (absolute or immediate)
//   - Cron:     cron expression with a uniform cadence (robfig/cron)
//
// Parse maps the schedule strings used in job files onto these strategies.
package schedule
