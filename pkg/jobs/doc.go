// Package jobs runs periodic background work such as conflict detection
// and the critical notification digest.
package jobs
