// Package source lists audio items from a shared folder and materializes them
// into a job's working directory.
//
// Two backends exist: Local walks a directory on disk and Drive talks to the
// Google Drive v3 REST API with an API key. Router picks between them from the
// reference the caller supplied (a filesystem path, a Drive folder link, or a
// bare folder ID). Every failure is tagged with services.ErrSourceUnavailable.
package source
