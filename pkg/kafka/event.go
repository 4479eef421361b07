package kafka

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// envelopeVersion is bumped when the Event wire layout changes incompatibly.
const envelopeVersion = 1

// metadataHeaderPrefix namespaces metadata entries copied onto message headers.
const metadataHeaderPrefix = "meta."

// Event is the envelope every catalog message is wrapped in. Consumers key
// their idempotency on EventID; partitioning follows AggregateID so all
// changes to one product land on the same partition in order.
type Event struct {
	EventID       string            `json:"event_id"`
	EventType     string            `json:"event_type"`
	AggregateID   string            `json:"aggregate_id"`
	AggregateType string            `json:"aggregate_type"`
	Version       int               `json:"version"`
	Timestamp     time.Time         `json:"timestamp"`
	Source        string            `json:"source"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	Data          json.RawMessage   `json:"data"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// NewEvent encodes data into a fresh envelope stamped with a random ID and
// the current UTC time. eventType and aggregateID are required.
func NewEvent(eventType, aggregateID, aggregateType, source string, data any) (*Event, error) {
	if eventType == "" {
		return nil, errors.New("event type is required")
	}
	if aggregateID == "" {
		return nil, fmt.Errorf("%s: aggregate id is required", eventType)
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", eventType, err)
	}

	return &Event{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		Version:       envelopeVersion,
		Timestamp:     time.Now().UTC(),
		Source:        source,
		Data:          payload,
		Metadata:      map[string]string{},
	}, nil
}

// WithCorrelationID sets the correlation ID and returns e for chaining.
func (e *Event) WithCorrelationID(id string) *Event {
	e.CorrelationID = id
	return e
}

// WithMetadata records a key/value pair and returns e for chaining. Empty
// values are ignored.
func (e *Event) WithMetadata(key, value string) *Event {
	if value == "" {
		return e
	}
	if e.Metadata == nil {
		e.Metadata = map[string]string{}
	}
	e.Metadata[key] = value
	return e
}

// Key is the partition key.
func (e *Event) Key() []byte {
	return []byte(e.AggregateID)
}

// Headers returns the routing headers consumers can filter on without
// decoding the body. Metadata follows in key order.
func (e *Event) Headers() []kafka.Header {
	headers := make([]kafka.Header, 0, 3+len(e.Metadata))
	headers = append(headers,
		kafka.Header{Key: "event_type", Value: []byte(e.EventType)},
		kafka.Header{Key: "source", Value: []byte(e.Source)},
	)
	if e.CorrelationID != "" {
		headers = append(headers, kafka.Header{Key: "correlation_id", Value: []byte(e.CorrelationID)})
	}
	for _, k := range slices.Sorted(maps.Keys(e.Metadata)) {
		headers = append(headers, kafka.Header{Key: metadataHeaderPrefix + k, Value: []byte(e.Metadata[k])})
	}
	return headers
}

// Marshal encodes the envelope as JSON.
func (e *Event) Marshal() ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode event %s: %w", e.EventID, err)
	}
	return b, nil
}

// UnmarshalEvent decodes an envelope, rejecting versions newer than this
// package understands.
func UnmarshalEvent(data []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	if event.Version > envelopeVersion {
		return nil, fmt.Errorf("event %s: unsupported envelope version %d", event.EventID, event.Version)
	}
	return &event, nil
}

// UnmarshalData decodes the payload into target.
func (e *Event) UnmarshalData(target any) error {
	if err := json.Unmarshal(e.Data, target); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.EventType, err)
	}
	return nil
}
