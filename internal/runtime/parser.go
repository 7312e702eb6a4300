package runtime

// EventParser defines the contract for backend-specific event parsing.
// All backends must implement this to ensure a consistent envelope
// stream regardless of what the child actually prints.
type EventParser interface {
	// ParseEvent converts one stdout line of backend-specific JSON into
	// the typed envelope. Lines that parse but carry an unrecognized
	// type map to EventUnknown rather than an error.
	ParseEvent(data []byte) (Envelope, error)
}

// ParserFunc adapts an ordinary function to the EventParser interface.
type ParserFunc func(data []byte) (Envelope, error)

// ParseEvent calls f.
func (f ParserFunc) ParseEvent(data []byte) (Envelope, error) {
	return f(data)
}
