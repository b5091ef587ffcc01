// Package metrics provides observability hooks for the persistence
// coordinator. Components receive a Recorder through dependency
// injection and default to NoopRecorder, so metrics can be enabled by
// swapping in the Prometheus implementation without code changes.
package metrics

import "time"

// LoadSource enumerates where the initial schedule data came from.
type LoadSource string

const (
	LoadLocal   LoadSource = "local"
	LoadRemote  LoadSource = "remote"
	LoadDefault LoadSource = "default"
)

// Recorder defines observability hooks for load, save and mirror
// operations. All methods must be safe on the NoopRecorder zero value.
type Recorder interface {
	ObserveSaveDuration(d time.Duration)
	IncSaveOutcome(success bool)
	IncMirrorWrite(success bool)
	IncLoadSource(source LoadSource)
	SetSheetCount(n int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics
// are not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveSaveDuration(time.Duration) {}
func (NoopRecorder) IncSaveOutcome(bool)               {}
func (NoopRecorder) IncMirrorWrite(bool)               {}
func (NoopRecorder) IncLoadSource(LoadSource)          {}
func (NoopRecorder) SetSheetCount(int)                 {}
