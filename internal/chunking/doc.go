// Package chunking splits oversized media items into contiguous time windows
// and folds the per-window transcription results back into one result.
//
// PlanItem is pure arithmetic over the item's byte size and probed duration;
// cutting the windows out of the media is left to the caller. Merge is the
// inverse step applied once every window has been transcribed.
package chunking
