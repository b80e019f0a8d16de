// Package classify discretizes feature sets into operating-state codes with
// hysteresis. Each configured feature is bucketed against its own ascending
// threshold list; the per-feature levels combine into an overall status
// (stopped=0 / running=1) through a veto feature and a minimum running-feature
// count. Two independent debounce layers suppress noise-driven flapping:
// transition/close counters gate 0→1 and 1→0 flips, and an optional
// time-series counter forces the prior status until enough consecutive
// contrary samples arrive.
//
// All temporal state (accepted status, counters, bounded status history,
// last-seen time) is keyed by device id, so one stage instance serves many
// devices without cross-contamination.
package classify
