// Package schedule models per-queue power-outage intervals: parsing them out
// of free-form post text, anchoring them to a calendar date, and keeping the
// two live schedule days ("today", "tomorrow") loaded from their backing files.
//
// A queue is an outage rotation group identified as "<group>.<subgroup>",
// e.g. "3.1". An interval is a half-open wall-clock span [start, end) during
// which power is off for that queue.
package schedule
