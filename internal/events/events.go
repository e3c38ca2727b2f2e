// Package events implements the typed ChatEvent bus and replay history
// buffer from spec §4.10. Grounded on the teacher's
// internal/agent/event_sink.go and event_emitter.go, which use a single
// envelope struct tagged by Kind so unknown variants decode as opaque JSON
// on the UI side.
package events

import (
	"sync"
	"time"
)

// Kind tags a ChatEvent's variant.
type Kind string

const (
	KindMessageAdded          Kind = "message_added"
	KindStreamStart           Kind = "stream_start"
	KindStreamDelta           Kind = "stream_delta"
	KindStreamReasoningDelta  Kind = "stream_reasoning_delta"
	KindStreamEnd             Kind = "stream_end"
	KindTypingStatusChanged   Kind = "typing_status_changed"
	KindToolRequest           Kind = "tool_request"
	KindToolExecutionCompleted Kind = "tool_execution_completed"
	KindOperationCancelled    Kind = "operation_cancelled"
	KindTaskUpdate            Kind = "task_update"
	KindRetryAttempt          Kind = "retry_attempt"
	KindSessionsList          Kind = "sessions_list"
	KindProfilesList          Kind = "profiles_list"
	KindSettings              Kind = "settings"
	KindError                 Kind = "error"
	KindConversationCleared   Kind = "conversation_cleared"
	KindTimingUpdate          Kind = "timing_update"
)

// Event is the stable envelope every variant is carried in; unknown Kinds
// decode to an opaque Payload on the UI side.
type Event struct {
	Kind      Kind      `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
	SessionID string    `json:"session_id,omitempty"`
	Replay    bool      `json:"replay,omitempty"`
	Payload   any       `json:"payload,omitempty"`
}

// TypingStatusPayload is the payload for KindTypingStatusChanged.
type TypingStatusPayload struct {
	Typing bool `json:"typing"`
}

// ToolRequestPayload is the payload for KindToolRequest.
type ToolRequestPayload struct {
	ToolUseID string `json:"tool_use_id"`
	ToolName  string `json:"tool_name"`
	Summary   string `json:"summary"`
	Before    string `json:"before,omitempty"`
	After     string `json:"after,omitempty"`
}

// ToolExecutionCompletedPayload is the payload for KindToolExecutionCompleted.
type ToolExecutionCompletedPayload struct {
	ToolUseID string `json:"tool_use_id"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
}

// TaskUpdatePayload is the payload for KindTaskUpdate.
type TaskUpdatePayload struct {
	Title string          `json:"title"`
	Tasks []TaskStatusRow  `json:"tasks"`
}

// TaskStatusRow is one row of a TaskUpdate payload.
type TaskStatusRow struct {
	Description string `json:"description"`
	Status      string `json:"status"`
}

// RetryAttemptPayload is the payload for KindRetryAttempt.
type RetryAttemptPayload struct {
	Attempt int           `json:"attempt"`
	MaxAttempts int        `json:"max_attempts"`
	Delay   time.Duration `json:"delay"`
	Reason  string        `json:"reason"`
}

// ErrorPayload is the payload for KindError.
type ErrorPayload struct {
	Message string `json:"message"`
}

// Sink is a single-producer/single-consumer event channel with an
// in-memory history buffer for replay (spec §4.9/§4.10).
type Sink struct {
	mu      sync.Mutex
	history []Event
	subs    []chan Event
	maxHist int
}

// NewSink creates a Sink retaining up to maxHistory events for replay.
func NewSink(maxHistory int) *Sink {
	if maxHistory <= 0 {
		maxHistory = 2000
	}
	return &Sink{maxHist: maxHistory}
}

// Subscribe returns a channel that receives every event sent after this
// call (forward-only; use History for already-emitted events).
func (s *Sink) Subscribe(buffer int) <-chan Event {
	ch := make(chan Event, buffer)
	s.mu.Lock()
	s.subs = append(s.subs, ch)
	s.mu.Unlock()
	return ch
}

// Send appends the event to history and forwards it to subscribers.
func (s *Sink) Send(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	s.mu.Lock()
	s.history = append(s.history, e)
	if len(s.history) > s.maxHist {
		s.history = s.history[len(s.history)-s.maxHist:]
	}
	subs := append([]chan Event{}, s.subs...)
	s.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// SendReplay forwards an event to subscribers marked as a replay, without
// appending it to history (it is already represented there, or came from a
// resumed session's own event log).
func (s *Sink) SendReplay(e Event) {
	e.Replay = true
	s.mu.Lock()
	subs := append([]chan Event{}, s.subs...)
	s.mu.Unlock()
	for _, ch := range subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// History returns a snapshot of retained events, oldest first.
func (s *Sink) History() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.history))
	copy(out, s.history)
	return out
}
