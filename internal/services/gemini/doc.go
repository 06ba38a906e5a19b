// Package gemini is a REST client for the Google Gemini file and
// generateContent APIs, specialised for audio transcription.
//
// # Flow
//
// Submit uploads a local file with the resumable upload protocol, polls the
// uploaded file until the service finishes processing it, asks the model for
// a JSON transcription, and deletes the uploaded file afterwards. The reply is
// decoded by transcript.Parse; token counts come from usageMetadata.
//
// # Retry Behaviour
//
// Each HTTP call retries on 408/429/5xx and network timeouts with exponential
// backoff (base 1s, max 10s), honouring Retry-After. The attempt count comes
// from inference.retry_attempts and defaults to a single attempt. Context
// cancellation aborts retries immediately.
//
// # Entry Points
//
// NewClient: construct from Config.
// Client.Submit: transcribe one file.
// Client.HealthCheck: list models to verify the key.
package gemini
