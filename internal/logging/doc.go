// Package logging provides the slog front-end used across reelforge: a
// console handler tuned for interactive use, a JSON handler for log files,
// attr helpers, and context-derived fields (run ID, phase) so every pipeline
// log line carries the same identifiers.
package logging
