package publisher

// Publisher represents a service for publishing error events
type Publisher interface {
	// Publish publishes a message to a stream
	Publish(key string, message []byte) error

	// TrimStreams trims all streams to the configured maximum length
	TrimStreams() error

	// Close closes the publisher connection
	Close() error
}

// NopPublisher drops every message. Used when no stream backend is configured.
type NopPublisher struct{}

// Publish discards the message
func (NopPublisher) Publish(string, []byte) error { return nil }

// TrimStreams does nothing
func (NopPublisher) TrimStreams() error { return nil }

// Close does nothing
func (NopPublisher) Close() error { return nil }
