package queue

// Stream field names shared by producer, consumer and reclaimer.
const (
	fieldEventID        = "event_id"
	fieldChannelID      = "channel_id"
	fieldCounterpartyID = "counterparty_id"
	fieldText           = "text"
	fieldTraceID        = "trace_id"
	fieldAttempt        = "attempt"
	fieldLastError      = "last_error"
	fieldError          = "error"
)

// InboundTask is one customer message waiting for a reply.
type InboundTask struct {
	EventID        string
	ChannelID      string
	CounterpartyID string
	Text           string
	TraceID        *string
	Attempt        int
}
