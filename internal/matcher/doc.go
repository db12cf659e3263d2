// Package matcher pairs cue sheet entries with physical track files.
//
// A similarity pass scores every entry against every file using canonical
// filenames, embedded title/performer tags, and per-track FILE references,
// then greedily accepts the best pairs above AcceptThreshold. Whatever is
// left is assigned by positional fallback: remaining files in filename order
// fill remaining entries in track-number order. Files beyond the last entry
// receive synthetic numbers so none is dropped. Results are deterministic.
package matcher
