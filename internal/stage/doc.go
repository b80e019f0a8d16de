// Package stage defines the contract every processing stage implements and
// the supporting pieces shared by all stages: the read-only ParameterSet
// (params.go), the error taxonomy (errors.go) and threshold bucketing
// (level.go).
//
// A stage is initialized once from a ParameterSet, then called synchronously
// with one record at a time. Process accepts an injectable time.Time so tests
// control the clock without sleeping. Stages own their per-device temporal
// state exclusively; callers that need cross-goroutine access must serialize
// (the chain manager does).
package stage
