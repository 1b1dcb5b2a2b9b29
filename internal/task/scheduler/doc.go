// Package scheduler triggers recurring jobs (cron expressions or fixed
// intervals) on top of robfig/cron.
//
// Each job runs in its own goroutine under a context derived from the one
// passed to Start. A trigger that fires while the previous run of the same job
// is still in flight is skipped, and panics are recovered and logged.
package scheduler
