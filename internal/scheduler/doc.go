// Package scheduler runs the director's job scheduling loop.
//
// A single goroutine scans every job's schedule for runtimes falling today
// or tomorrow, queues them in a priority queue ordered by runtime and
// priority, sleeps until the most urgent one is due and hands it to an
// ExecuteFunc. Other goroutines only ever touch the queue and the wake
// signal: manual "run" commands and client connections enqueue through
// AddJobWithNoRunResourceToQueue, configuration reloads go through Reload.
//
// Time is injected through TimeSource so tests can drive the loop with a
// simulated clock.
package scheduler
