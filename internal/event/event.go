package event

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	json "github.com/json-iterator/go"
)

// SchemaVersion is the wire schema version stamped on new events
const SchemaVersion = "1.0.0"

// Provider identifies a cloud storage provider
type Provider string

const (
	ProviderAWSS3  Provider = "aws_s3"
	ProviderGCPGCS Provider = "gcp_gcs"
)

// MetadataChecksumSHA256 is the metadata key carrying the expected
// SHA-256 hex digest of the object content
const MetadataChecksumSHA256 = "checksumSHA256"

// Location identifies an object within a provider's bucket
type Location struct {
	Provider Provider `json:"provider"`
	Bucket   string   `json:"bucket"`
	Key      string   `json:"key"`
	Region   string   `json:"region,omitempty"`
}

// TransferEvent describes a single object transfer between two cloud
// storage locations
type TransferEvent struct {
	SchemaVersion string                 `json:"schemaVersion"`
	EventID       string                 `json:"eventId"`
	CorrelationID string                 `json:"correlationId"`
	Timestamp     time.Time              `json:"timestamp"`
	Source        Location               `json:"source"`
	Destination   Location               `json:"destination"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

// New creates a transfer event with minted identifiers and the current
// timestamp
func New(source, destination Location, metadata map[string]interface{}) *TransferEvent {
	return &TransferEvent{
		SchemaVersion: SchemaVersion,
		EventID:       uuid.NewString(),
		CorrelationID: uuid.NewString(),
		Timestamp:     time.Now().UTC(),
		Source:        source,
		Destination:   destination,
		Metadata:      metadata,
	}
}

// Validate checks that the event carries everything a transfer needs
func (e *TransferEvent) Validate() error {
	if e.EventID == "" {
		return fmt.Errorf("eventId is required")
	}
	if err := e.Source.validate("source"); err != nil {
		return err
	}
	if err := e.Destination.validate("destination"); err != nil {
		return err
	}
	return nil
}

func (l Location) validate(field string) error {
	if l.Provider == "" {
		return fmt.Errorf("%s.provider is required", field)
	}
	if l.Bucket == "" {
		return fmt.Errorf("%s.bucket is required", field)
	}
	if l.Key == "" {
		return fmt.Errorf("%s.key is required", field)
	}
	return nil
}

// ChecksumSHA256 returns the expected content digest from metadata, if present
func (e *TransferEvent) ChecksumSHA256() (string, bool) {
	if e.Metadata == nil {
		return "", false
	}
	v, ok := e.Metadata[MetadataChecksumSHA256]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// Marshal encodes the event to its JSON wire form
func Marshal(e *TransferEvent) ([]byte, error) {
	return json.Marshal(e)
}

// Unmarshal decodes and validates an event from its JSON wire form
func Unmarshal(data []byte) (*TransferEvent, error) {
	var e TransferEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("failed to decode event: %w", err)
	}
	if err := e.Validate(); err != nil {
		return nil, fmt.Errorf("invalid event: %w", err)
	}
	return &e, nil
}
