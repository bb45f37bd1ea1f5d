package domain

// AnswerEventType discriminates the events emitted while answering a
// question.
type AnswerEventType string

const (
	EventStatus   AnswerEventType = "status"
	EventMetadata AnswerEventType = "metadata"
	EventToken    AnswerEventType = "token"
	EventError    AnswerEventType = "error"
	EventDone     AnswerEventType = "done"
)

// AnswerEvent is one element of the ordered event stream produced for
// an answer request. Exactly one terminal event (done or error) ends
// every stream. Only the fields relevant to the event type are set.
type AnswerEvent struct {
	Type AnswerEventType `json:"type"`

	// status
	Message string `json:"message,omitempty"`

	// metadata (Plan is also attached to error events for diagnosis)
	Plan    *Plan  `json:"plan,omitempty"`
	Hits    []Hit  `json:"hits,omitempty"`
	Context string `json:"context,omitempty"`

	// token
	Content string `json:"content,omitempty"`

	// error
	Error string `json:"error,omitempty"`
}

// Terminal reports whether the event ends the stream.
func (e AnswerEvent) Terminal() bool {
	return e.Type == EventDone || e.Type == EventError
}

func StatusEvent(message string) AnswerEvent {
	return AnswerEvent{Type: EventStatus, Message: message}
}

func MetadataEvent(plan *Plan, hits []Hit, context string) AnswerEvent {
	return AnswerEvent{Type: EventMetadata, Plan: plan, Hits: hits, Context: context}
}

func TokenEvent(content string) AnswerEvent {
	return AnswerEvent{Type: EventToken, Content: content}
}

func ErrorEvent(message string, plan *Plan) AnswerEvent {
	return AnswerEvent{Type: EventError, Error: message, Plan: plan}
}

func DoneEvent() AnswerEvent {
	return AnswerEvent{Type: EventDone}
}
