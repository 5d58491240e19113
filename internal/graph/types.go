package graph

import "fmt"

// ThreadValue is one datapoint of the active-threads metric. EndTime is the
// provider's raw timestamp ("2024-05-01T07:00:00+0000"); callers that need a
// calendar day take the portion before 'T'.
type ThreadValue struct {
	EndTime string
	Value   int
}

// ThreadSeries is the daily series of the active unique threads metric.
type ThreadSeries struct {
	Values []ThreadValue
}

// Conversation is one entry of the raw conversation listing. LastMessageTime
// is the created_time of the most recent message, empty when the
// conversation has no messages.
type Conversation struct {
	ID              string
	LastMessageTime string
}

// ErrorKind discriminates why a remote call failed.
type ErrorKind string

const (
	KindTimeout ErrorKind = "timeout"
	KindStatus  ErrorKind = "status"
	KindDecode  ErrorKind = "decode"
	KindNetwork ErrorKind = "network"
)

// TransportError is the single failure type returned by the client. The
// caller treats any of it as "no data from this endpoint" and moves on; the
// kind exists for logging and tests, not for control flow.
type TransportError struct {
	Kind   ErrorKind
	Op     string // "insights" or "conversations"
	Status int    // set for KindStatus
	Body   string // truncated upstream body, for KindStatus
	Err    error
}

func (e *TransportError) Error() string {
	switch e.Kind {
	case KindStatus:
		return fmt.Sprintf("graph: %s returned %d: %s", e.Op, e.Status, e.Body)
	case KindTimeout:
		return fmt.Sprintf("graph: %s timed out", e.Op)
	default:
		return fmt.Sprintf("graph: %s failed: %v", e.Op, e.Err)
	}
}

func (e *TransportError) Unwrap() error { return e.Err }

// Timeout reports whether the call failed by exceeding its deadline.
func (e *TransportError) Timeout() bool { return e.Kind == KindTimeout }
