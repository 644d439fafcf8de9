package sink

import "context"

// MemorySink keeps events in memory. It is used by tests and is not
// selectable from configuration.
type MemorySink struct {
	Events []Event
	Closed int
}

// NewMemorySink returns an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Write stores the event.
func (s *MemorySink) Write(evt Event) error {
	s.Events = append(s.Events, evt)
	return nil
}

// Close counts the call.
func (s *MemorySink) Close(_ context.Context) error {
	s.Closed++
	return nil
}
