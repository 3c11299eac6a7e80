package logging

import (
	"encoding/json"
	"time"

	"github.com/wgmesh/meshctl/internal/errx"
)

// EmitterConfig holds the static metadata stamped onto every event: the
// run identifier that ties together one up/down invocation's primitive
// log lines.
type EmitterConfig struct {
	RunID string // Caller-supplied; NewEmitter does not fill in an empty value
}

// Emitter provides convenience methods for emitting typed events.
// It holds static metadata and dispatches to one or more sinks.
//
// A nil *Emitter is safe to hold; callers guard emission with:
//
//	if emitter != nil {
//	    _ = emitter.Emit(...)
//	}
type Emitter struct {
	config EmitterConfig
	sinks  []Sink
}

// NewEmitter creates an emitter with the given configuration and sinks.
// The RunID is stamped as given, so the caller sets it before passing the
// config (mesh.Engine uses a fresh uuid).
func NewEmitter(cfg EmitterConfig, sinks ...Sink) *Emitter {
	return &Emitter{
		config: cfg,
		sinks:  sinks,
	}
}

// Emit constructs an event with the emitter's static metadata and writes
// it to all registered sinks.
//
// Parameters:
//   - eventType: one of the Event* constants (e.g., EventPrimitiveApply)
//   - host: the host name the event pertains to (empty for network-wide events)
//   - summary: human-readable one-line summary
//   - tags: optional tags for filtering (nil is fine)
//   - data: the typed data struct (e.g., *PrimitiveData); nil for no payload
//
// Returns the first error encountered. Callers should discard errors
// with _ = (best-effort semantics).
func (e *Emitter) Emit(eventType, host, summary string, tags []string, data interface{}) error {
	var rawData json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return errx.Wrap(ErrMarshalData, err)
		}
		rawData = b
	}

	event := &Event{
		Timestamp: time.Now().UTC(),
		RunID:     e.config.RunID,
		Host:      host,
		EventType: eventType,
		Summary:   summary,
		Tags:      tags,
		Data:      rawData,
	}

	for _, sink := range e.sinks {
		if err := sink.Write(event); err != nil {
			return err
		}
	}
	return nil
}

// Close closes all sinks. Returns the first error encountered.
func (e *Emitter) Close() error {
	var firstErr error
	for _, sink := range e.sinks {
		if err := sink.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
