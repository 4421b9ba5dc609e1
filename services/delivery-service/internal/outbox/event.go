package outbox

// Event is the delivery domain event envelope written to the outbox table.
// All event types share one topic; EventType travels as a message header.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}
