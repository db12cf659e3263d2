// Package services defines shared utilities consumed by the reconstruction
// stages and the external tool integrations.
//
// Key responsibilities:
//   - Context helpers that stamp session identifiers, stage names, and run
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper that translate failures
//     into the reconstruction error taxonomy used by run reports.
//
// Use these helpers when wiring new stage logic so error classification and
// observability stay uniform across the pipeline.
package services
