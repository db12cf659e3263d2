// Command splice reconstructs disc sessions extracted as one file per track
// into archival Preservation Masters, with optional loudness-normalized Edit
// Masters, and can split a master back into tracks from its cue sheet.
package main
