// Package cue reads and writes cue sheets.
//
// Parsing is a permissive line scan: indentation, line endings, and unknown
// directives are tolerated, while track numbering and INDEX 01 presence are
// enforced. Positions use the 75 frames per second cue timebase and convert
// to sample offsets at any rate. Regenerated sheets describe a single joined
// master with cumulative INDEX 01 positions.
package cue
