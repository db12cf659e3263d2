// Package workdir inspects and reclaims per-session scratch directories left
// under the work directory by interrupted runs.
//
// Reconstruction builds masters in work_dir/<session>-<random> and removes the
// directory when the session ends. A killed process leaves it behind; these
// helpers only ever touch directories named that way.
package workdir
