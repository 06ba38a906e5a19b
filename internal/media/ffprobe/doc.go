// Package ffprobe decodes ffprobe JSON output for audio inputs.
//
// Args builds the argument list for a format and stream probe and Parse
// decodes the JSON ffprobe prints. The media toolkit runs the binary.
package ffprobe
