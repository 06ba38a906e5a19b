// Package jobs runs batch transcription jobs.
//
// A Runner accepts a source reference, lists it, and feeds every item to the
// processor in listing order, either sequentially or through a bounded worker
// pool. Job state lives in a Registry guarded by one mutex; every state change
// goes through Status.CanTransition so a job becomes terminal exactly once.
// Jobs keep running when the submitting caller goes away; only Shutdown
// cancels them.
package jobs
