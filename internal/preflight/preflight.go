package preflight

import (
	"fmt"

	"splice/internal/config"
	"splice/internal/deps"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll checks the input root, every destination role, and the tools the
// configured engine cannot run without.
func RunAll(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryReadable("Input root", cfg.Paths.InputRoot),
		CheckDirectoryAccess("Originals directory", cfg.Paths.OriginalsDir),
		CheckDirectoryAccess("Preservation directory", cfg.Paths.PreservationDir),
	}
	if cfg.Loudness.Enabled {
		results = append(results, CheckDirectoryAccess("Edit directory", cfg.Paths.EditDir))
	}
	results = append(results, CheckDirectoryAccess("Work directory", cfg.Paths.WorkDir))

	for _, status := range deps.Missing(CheckSystemDeps(cfg)) {
		results = append(results, Result{Name: status.Name, Detail: status.Detail})
	}
	return results
}

// Failed returns the checks that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}

// Err summarizes failed checks as a single error, or nil.
func Err(results []Result) error {
	failed := Failed(results)
	if len(failed) == 0 {
		return nil
	}
	if len(failed) == 1 {
		return fmt.Errorf("preflight: %s: %s", failed[0].Name, failed[0].Detail)
	}
	return fmt.Errorf("preflight: %s: %s (and %d more)", failed[0].Name, failed[0].Detail, len(failed)-1)
}
