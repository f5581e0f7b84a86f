// Package composition extracts render parameters from a declarative animation
// source file without executing it. The extractor scans the file for the
// exported config literal and parses its field values structurally, so
// untrusted animation code never runs at extraction time.
package composition
