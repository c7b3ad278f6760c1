// Package events defines the observer surface of the build orchestrator.
//
// Jobs and the pool report everything through a Sink; presentation layers
// (CLI output, desktop notifications, tests) subscribe without the
// orchestrator knowing how events are rendered.
package events

import (
	"sync"
	"sync/atomic"
	"time"
)

// Type classifies messages emitted during job execution.
type Type string

const (
	TypeStatus    Type = "status"
	TypeProgress  Type = "progress"
	TypeFinished  Type = "finished"
	TypeFailed    Type = "failed"
	TypeCancelled Type = "cancelled"
	TypeBatchDone Type = "batch-done"
)

// Event is a sequenced payload consumed by subscribers.
type Event struct {
	Seq          int64     `json:"seq"`
	Timestamp    time.Time `json:"timestamp"`
	JobID        string    `json:"jobId,omitempty"`
	Type         Type      `json:"type"`
	Message      string    `json:"message,omitempty"`
	Percent      int       `json:"percent,omitempty"`
	ArtifactPath string    `json:"artifactPath,omitempty"`
	SizeMB       int64     `json:"sizeMB,omitempty"`
}

// Sink receives job and batch events. Implementations must be safe for
// concurrent calls from multiple job goroutines and must not block.
type Sink interface {
	Status(jobID, text string)
	Progress(jobID string, percent int)
	Finished(jobID, artifactPath string, sizeMB int64)
	Failed(jobID, message string)
	Cancelled(jobID, message string)
	BatchDone()
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) Status(string, string)          {}
func (NopSink) Progress(string, int)           {}
func (NopSink) Finished(string, string, int64) {}
func (NopSink) Failed(string, string)          {}
func (NopSink) Cancelled(string, string)       {}
func (NopSink) BatchDone()                     {}

// ChannelSink forwards events to a buffered channel. Sends never block:
// when the consumer falls behind, events are dropped and counted rather
// than stalling a job goroutine.
type ChannelSink struct {
	ch      chan Event
	nextSeq int64
	dropped int64
}

// NewChannelSink creates a sink with the given buffer size.
func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 256
	}
	return &ChannelSink{ch: make(chan Event, buffer)}
}

// Events returns the receive side of the sink.
func (s *ChannelSink) Events() <-chan Event {
	return s.ch
}

// Dropped returns how many events were discarded due to a full buffer.
func (s *ChannelSink) Dropped() int64 {
	return atomic.LoadInt64(&s.dropped)
}

// Close closes the event channel. Call only after the producing batch is
// done; sends on a closed sink would panic.
func (s *ChannelSink) Close() {
	close(s.ch)
}

func (s *ChannelSink) send(e Event) {
	e.Seq = atomic.AddInt64(&s.nextSeq, 1)
	e.Timestamp = time.Now()
	select {
	case s.ch <- e:
	default:
		atomic.AddInt64(&s.dropped, 1)
	}
}

func (s *ChannelSink) Status(jobID, text string) {
	s.send(Event{JobID: jobID, Type: TypeStatus, Message: text})
}

func (s *ChannelSink) Progress(jobID string, percent int) {
	s.send(Event{JobID: jobID, Type: TypeProgress, Percent: percent})
}

func (s *ChannelSink) Finished(jobID, artifactPath string, sizeMB int64) {
	s.send(Event{JobID: jobID, Type: TypeFinished, ArtifactPath: artifactPath, SizeMB: sizeMB})
}

func (s *ChannelSink) Failed(jobID, message string) {
	s.send(Event{JobID: jobID, Type: TypeFailed, Message: message})
}

func (s *ChannelSink) Cancelled(jobID, message string) {
	s.send(Event{JobID: jobID, Type: TypeCancelled, Message: message})
}

func (s *ChannelSink) BatchDone() {
	s.send(Event{Type: TypeBatchDone})
}

// MultiSink fans events out to several sinks in order.
type MultiSink struct {
	mu    sync.RWMutex
	sinks []Sink
}

// NewMultiSink creates a fan-out sink.
func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

// Add registers another sink. Safe to call before the batch starts.
func (m *MultiSink) Add(s Sink) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sinks = append(m.sinks, s)
}

func (m *MultiSink) each(fn func(Sink)) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.sinks {
		fn(s)
	}
}

func (m *MultiSink) Status(jobID, text string) {
	m.each(func(s Sink) { s.Status(jobID, text) })
}

func (m *MultiSink) Progress(jobID string, percent int) {
	m.each(func(s Sink) { s.Progress(jobID, percent) })
}

func (m *MultiSink) Finished(jobID, artifactPath string, sizeMB int64) {
	m.each(func(s Sink) { s.Finished(jobID, artifactPath, sizeMB) })
}

func (m *MultiSink) Failed(jobID, message string) {
	m.each(func(s Sink) { s.Failed(jobID, message) })
}

func (m *MultiSink) Cancelled(jobID, message string) {
	m.each(func(s Sink) { s.Cancelled(jobID, message) })
}

func (m *MultiSink) BatchDone() {
	m.each(func(s Sink) { s.BatchDone() })
}
