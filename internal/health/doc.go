// Package health turns classified feature streams into 0..100 health scores.
//
// The primary Stage accumulates configured features per device while the
// equipment is running, and on each observation with enough samples cleans,
// smooths and summarizes the window, scores each summary statistic against a
// threshold ladder and combines the per-feature scores into weighted
// composite healths. ErrorStage is a lighter variant for error-style
// channels: it scores the latest smoothed point with no run/stop gating.
package health
