// Package scheduler turns schedules into engine tasks. It owns cron and
// interval entries (robfig/cron) plus named one-shot timers; execution,
// retries and overlap gating belong to the task engine.
package scheduler
