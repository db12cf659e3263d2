// Package preflight provides readiness checks for the filesystem paths and
// external tools splice depends on.
//
// The join and watch commands call RunAll before touching any session and
// refuse to start when a check fails, so a misconfigured destination is
// reported once instead of failing every session. The check command prints
// the same results alongside tool availability.
package preflight
