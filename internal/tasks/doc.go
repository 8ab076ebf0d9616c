// Package tasks implements the asynchronous analysis pipeline: durable
// task records with a retry-capable state machine, and a worker pool
// that drains them off the chat stream's critical path.
//
// # State machine
//
//	PENDING -> PROCESSING -> COMPLETED
//	               |
//	               v
//	            FAILED -> (explicit Retry) -> PENDING
//
// A task can be retried only while FAILED with retry budget left
// (retry_count < max_retry_count). Retry resets status, error and
// timing fields but never the retry counter. Workers never retry on
// their own; a failed analyzer call stays FAILED until an operator
// calls Retry or BatchRetry.
//
// # Concurrency
//
// Every transition is guarded at write time inside the store, so a pool
// of workers can race to claim the same task and exactly one wins.
// Snapshot writes are last-write-wins: the analysis data is advisory
// and never feeds back into conversation correctness.
package tasks
