// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Key types:
//   - Result: parsed ffprobe output containing streams and format metadata
//   - Stream: individual audio stream properties including sample layout
//   - Format: container-level metadata (duration, size, tags)
//
// Entry points:
//   - Args: the ffprobe invocation for one file
//   - Parse: decodes the JSON payload into a Result
//
// Helper methods on Result locate the first audio stream, resolve its bit
// depth and sample count, and read title/artist tags from stream or
// container metadata.
package ffprobe
