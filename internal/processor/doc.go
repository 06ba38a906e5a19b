// Package processor turns one listed item into a transcript.
//
// Process materializes the item, probes and (when needed) converts its audio,
// plans chunks, submits each chunk to the inference client, meters every call,
// merges the chunk results and persists the artifacts. It never returns an
// error: every failure becomes a Failure outcome carrying the reason, so one
// bad file cannot abort the batch.
package processor
