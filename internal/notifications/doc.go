// Package notifications delivers job events to chat channels.
//
// Two transports are supported: ntfy (plain-text POST to a topic URL) and
// Slack incoming webhooks. NewService picks whichever are configured, fans out
// to all of them, and degrades to a no-op when none are. Delivery failures are
// logged and swallowed so a broken webhook never fails a job.
package notifications
