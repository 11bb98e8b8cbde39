package observability

// EventEnvelope is the body of every event published to the message broker:
// a coarse type for consumer routing, a specific name, and a free-form
// payload.
type EventEnvelope struct {
	EventType string      `json:"event_type"`
	EventName string      `json:"event_name"`
	Payload   interface{} `json:"payload"`
}

// BuildHeaders assembles broker message headers from the correlation ids of
// the originating request. Empty ids are left out rather than sent blank.
func BuildHeaders(requestID, traceID string) map[string]string {
	headers := map[string]string{}
	if requestID != "" {
		headers["x-request-id"] = requestID
	}
	if traceID != "" {
		headers["trace_id"] = traceID
	}
	return headers
}
