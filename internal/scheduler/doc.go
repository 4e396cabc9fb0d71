// Package scheduler is the coordination core of the daemon. It ingests new
// source files from watched directories, admits waiting missions into the
// worker pool in insertion order while capacity remains, arms per-attempt
// deadlines, and classifies attempt outcomes into finish, retry, error, or
// cancel. The two periodic duties run on a cron runner, never on the pool
// itself.
package scheduler
