// Package progress defines the ordered event stream a deployment session emits to its observers.
//
// The stream performs no business logic: it neither filters nor gates by level. Consumers that
// only care about warnings or errors apply that policy themselves.
package progress

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Level classifies a progress event.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarn    Level = "warn"
	LevelError   Level = "error"
)

// ParseLevel converts a textual level into a Level.
func ParseLevel(s string) (Level, error) {
	switch l := Level(strings.ToLower(strings.TrimSpace(s))); l {
	case LevelInfo, LevelSuccess, LevelWarn, LevelError:
		return l, nil
	case "warning":
		return LevelWarn, nil
	default:
		return "", fmt.Errorf("unknown progress level %q", s)
	}
}

// String implements fmt.Stringer.
func (l Level) String() string { return string(l) }

// MarshalText implements encoding.TextMarshaler.
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Level) UnmarshalText(b []byte) error {
	parsed, err := ParseLevel(string(b))
	if err != nil {
		return err
	}
	*l = parsed

	return nil
}

// Event is a single immutable progress record.
type Event struct {
	Message   string    `json:"message"`
	Level     Level     `json:"level"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEvent returns an Event stamped with the current time.
func NewEvent(level Level, format string, args ...any) Event {
	return Event{
		Message:   fmt.Sprintf(format, args...),
		Level:     level,
		Timestamp: time.Now(),
	}
}

// Channel is the producer side of a progress stream.
type Channel interface {
	Emit(Event)
}

// Log is an append-only Channel that keeps the full history of one session and delivers every
// event synchronously to its subscribers, in emission order and exactly once.
//
// Subscribers must not call Emit on the same Log.
type Log struct {
	mu     sync.RWMutex
	events []Event

	// deliverMu serialises delivery so that subscribers observe events in emission order.
	deliverMu sync.Mutex
	subs      []*subscription
	nextSubID int
}

type subscription struct {
	id int
	fn func(Event)
}

var _ Channel = (*Log)(nil)

// NewLog returns an empty Log.
func NewLog() *Log {
	return &Log{}
}

// Emit appends the event to the log and delivers it to the current subscribers.
func (l *Log) Emit(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	l.deliverMu.Lock()
	defer l.deliverMu.Unlock()

	l.mu.Lock()
	l.events = append(l.events, e)
	subs := make([]*subscription, len(l.subs))
	copy(subs, l.subs)
	l.mu.Unlock()

	for _, s := range subs {
		s.fn(e)
	}
}

// Subscribe registers fn to receive every event emitted after this call. The returned function
// removes the subscription.
func (l *Log) Subscribe(fn func(Event)) (unsubscribe func()) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.nextSubID++
	sub := &subscription{id: l.nextSubID, fn: fn}
	l.subs = append(l.subs, sub)

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()

		for i, s := range l.subs {
			if s.id == sub.id {
				l.subs = append(l.subs[:i], l.subs[i+1:]...)
				return
			}
		}
	}
}

// Events returns a copy of every event emitted so far.
func (l *Log) Events() []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()

	events := make([]Event, len(l.events))
	copy(events, l.events)

	return events
}

// Len returns the number of events emitted so far.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return len(l.events)
}

// Abbrev shortens a hex identifier for display, keeping the first 10 and the last 8 characters.
// Identifiers that are already short are returned unchanged.
func Abbrev(s string) string {
	if len(s) <= 21 {
		return s
	}

	return s[:10] + "..." + s[len(s)-8:]
}
