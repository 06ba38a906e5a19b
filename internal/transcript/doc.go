// Package transcript defines transcription results and their rendered forms.
//
// Result is the structured output of one item, Outcome the per-item success or
// failure recorded by a job. Format renders a single result for humans, Combine
// joins a job's successful results into one document, and ArtifactStore keeps
// both forms on disk under deterministic names so reruns can skip finished
// items.
package transcript
