// Package ffmpeg implements audio.Toolkit on top of the ffmpeg and ffprobe
// command-line tools.
//
// Joins use the concat demuxer with stream copy. Cuts and gain changes
// decode and re-encode with the source codec, which is lossless for PCM and
// FLAC. Loudness comes from the loudnorm filter's JSON report. Every command
// runs under the configured command timeout; a measurement that exceeds it
// reports services.ErrMeasurementTimeout.
package ffmpeg
