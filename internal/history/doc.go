// Package history persists batch runs and per-session outcomes in SQLite so
// operators can review earlier runs without the original console output.
package history
