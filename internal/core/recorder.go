package core

import "time"

// Recorder receives pipeline measurements. internal/metrics provides the
// Prometheus implementation.
type Recorder interface {
	RowProcessed(skipped bool)
	ReferenceLookup(kind ReferenceKind, cached bool, err error)
	BatchCommitted(size int, d time.Duration, err error)
	RunFinished(summary RunSummary, d time.Duration)
}

// NopRecorder discards all measurements.
type NopRecorder struct{}

func (NopRecorder) RowProcessed(bool) {}
func (NopRecorder) ReferenceLookup(ReferenceKind, bool, error) {}
func (NopRecorder) BatchCommitted(int, time.Duration, error) {}
func (NopRecorder) RunFinished(RunSummary, time.Duration) {}
