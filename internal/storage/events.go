package storage

import "time"

// EventWriter is the interface for writing access events.
// Write() must NEVER block the caller.
type EventWriter interface {
	Write(event *AccessEvent)
	Close()
}

// AccessEvent represents a single member access check to be persisted.
type AccessEvent struct {
	RequestID     string
	ProjectID     string
	Timestamp     time.Time
	ContextType   string // qualified name of the access's context type
	MemberKind    string // "method", "constructor" or "field"
	MemberName    string // empty for constructors
	ParamTypes    []string
	Verdict       string // real verdict, even in shadow mode
	IsShadow      bool
	Matched       bool // whether the selector list (or tag) matched the member
	Polarity      string
	Reason        string
	UserID        string
	SessionID     string
	TenantID      string
	ClientTraceID string
	LatencyMs     float32
}
