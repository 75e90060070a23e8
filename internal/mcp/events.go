package mcp

import (
	"sync"
	"time"

	"constitution/internal/invariant"
)

// Event is one decision the server made on behalf of a tool call.
type Event struct {
	Timestamp string   `json:"ts"`
	Tool      string   `json:"tool"`
	Subject   string   `json:"subject"`
	OK        bool     `json:"ok"`
	Rules     []string `json:"rules,omitempty"`
}

// EventLog is a thread-safe, append-only log of tool decisions.
type EventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *EventLog) Append(tool, subject string, ok bool, rules ...invariant.Rule) {
	e := Event{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Tool:      tool,
		Subject:   subject,
		OK:        ok,
	}
	for _, r := range rules {
		e.Rules = append(e.Rules, string(r))
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

// Since returns a copy of the events from index i onward.
func (l *EventLog) Since(i int) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i < 0 {
		i = 0
	}
	if i >= len(l.events) {
		return []Event{}
	}
	return append([]Event(nil), l.events[i:]...)
}

func (l *EventLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}
