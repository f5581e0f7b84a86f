// Package services defines shared utilities consumed by the pipeline phases
// and the external collaborator clients.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs and phase names for logging.
//   - Structured error markers plus the Wrap helper that tag failures with a
//     classification the CLI and diagnostic translator can rely on.
//
// Use these helpers when wiring new phase logic so operational behaviour
// (error handling, observability) stays uniform across the pipeline.
package services
