// Package media wraps the ffprobe and ffmpeg invocations the item pipeline
// needs: probing duration, transcoding to an accepted upload format, and
// cutting time windows out of long recordings.
//
// Commands run through a small runner seam so tests can substitute canned
// output. All failures are tagged with services.ErrMedia.
package media
