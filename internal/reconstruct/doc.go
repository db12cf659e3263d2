// Package reconstruct drives one disc session from extraction output to
// relocated archival masters.
//
// A session moves through Discovered, Matched, Concatenated, the optional
// Normalized, Relocated and Done, or ends in Failed. Masters are built in a
// per-session work directory and only moved into the preservation and edit
// trees once complete, so an aborted session never leaves a partial master
// at its destination.
package reconstruct
