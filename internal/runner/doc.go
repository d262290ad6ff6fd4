// Package runner executes dispatched jobs on a bounded worker pool.
//
// The scheduler loop hands every due job to Service.Execute, which never
// blocks: the job is queued for a worker or dropped when the queue is full.
// Workers record the run in the catalog, run the job's command (or only log
// it when the job has none) and record how it ended.
package runner
