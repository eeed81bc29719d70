package event

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const wireEvent = `{
	"schemaVersion": "1.0.0",
	"eventId": "3e9f0c41-8a3d-4f4e-9e18-2f1f4a9c7b11",
	"correlationId": "0b7e3c52-6f3f-4f2f-8f77-5f0f3b2a9c22",
	"timestamp": "2024-03-01T12:00:00Z",
	"source": {"provider": "aws_s3", "bucket": "source-bucket", "key": "reports/q1.csv", "region": "us-east-1"},
	"destination": {"provider": "gcp_gcs", "bucket": "dest-bucket", "key": "reports/q1.csv"},
	"metadata": {"checksumSHA256": "AbC123", "contentType": "text/csv"}
}`

func TestUnmarshalWireFormat(t *testing.T) {
	ev, err := Unmarshal([]byte(wireEvent))
	require.NoError(t, err)

	assert.Equal(t, "1.0.0", ev.SchemaVersion)
	assert.Equal(t, "3e9f0c41-8a3d-4f4e-9e18-2f1f4a9c7b11", ev.EventID)
	assert.Equal(t, "0b7e3c52-6f3f-4f2f-8f77-5f0f3b2a9c22", ev.CorrelationID)
	assert.True(t, ev.Timestamp.Equal(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)))

	assert.Equal(t, ProviderAWSS3, ev.Source.Provider)
	assert.Equal(t, "source-bucket", ev.Source.Bucket)
	assert.Equal(t, "reports/q1.csv", ev.Source.Key)
	assert.Equal(t, "us-east-1", ev.Source.Region)

	assert.Equal(t, ProviderGCPGCS, ev.Destination.Provider)
	assert.Equal(t, "dest-bucket", ev.Destination.Bucket)
	assert.Empty(t, ev.Destination.Region)

	sum, ok := ev.ChecksumSHA256()
	assert.True(t, ok)
	assert.Equal(t, "AbC123", sum)
}

func TestUnmarshalRejectsBadPayloads(t *testing.T) {
	_, err := Unmarshal([]byte("not json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode event")

	_, err = Unmarshal([]byte(`{"eventId": ""}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid event")
}

func TestMarshalWireFormat(t *testing.T) {
	ev := New(
		Location{Provider: ProviderAWSS3, Bucket: "b", Key: "k"},
		Location{Provider: ProviderGCPGCS, Bucket: "b2", Key: "k2"},
		nil,
	)

	data, err := Marshal(ev)
	require.NoError(t, err)

	s := string(data)
	assert.Contains(t, s, `"schemaVersion"`)
	assert.Contains(t, s, `"eventId"`)
	assert.Contains(t, s, `"correlationId"`)
	assert.Contains(t, s, `"timestamp"`)
	assert.Contains(t, s, `"source"`)
	assert.Contains(t, s, `"destination"`)
	// Empty metadata and regions stay off the wire
	assert.NotContains(t, s, `"metadata"`)
	assert.NotContains(t, s, `"region"`)

	decoded, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, ev.EventID, decoded.EventID)
	assert.Equal(t, ev.Source, decoded.Source)
}

func TestNewMintsIdentifiers(t *testing.T) {
	src := Location{Provider: ProviderAWSS3, Bucket: "b", Key: "k"}
	dst := Location{Provider: ProviderGCPGCS, Bucket: "b2", Key: "k2"}

	ev := New(src, dst, nil)
	require.NoError(t, ev.Validate())

	assert.Equal(t, SchemaVersion, ev.SchemaVersion)
	assert.NotEqual(t, ev.EventID, ev.CorrelationID)
	_, err := uuid.Parse(ev.EventID)
	assert.NoError(t, err)
	_, err = uuid.Parse(ev.CorrelationID)
	assert.NoError(t, err)
	assert.False(t, ev.Timestamp.IsZero())

	other := New(src, dst, nil)
	assert.NotEqual(t, ev.EventID, other.EventID)
}

func TestValidate(t *testing.T) {
	valid := func() *TransferEvent {
		return &TransferEvent{
			EventID:     "evt-1",
			Source:      Location{Provider: ProviderAWSS3, Bucket: "b", Key: "k"},
			Destination: Location{Provider: ProviderGCPGCS, Bucket: "b2", Key: "k2"},
		}
	}

	assert.NoError(t, valid().Validate())

	ev := valid()
	ev.EventID = ""
	err := ev.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "eventId is required")

	ev = valid()
	ev.Source.Provider = ""
	err = ev.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source.provider is required")

	ev = valid()
	ev.Source.Bucket = ""
	err = ev.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source.bucket is required")

	ev = valid()
	ev.Destination.Key = ""
	err = ev.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "destination.key is required")
}

func TestChecksumSHA256(t *testing.T) {
	ev := &TransferEvent{}
	_, ok := ev.ChecksumSHA256()
	assert.False(t, ok)

	ev.Metadata = map[string]interface{}{"contentType": "text/plain"}
	_, ok = ev.ChecksumSHA256()
	assert.False(t, ok)

	ev.Metadata[MetadataChecksumSHA256] = 42
	_, ok = ev.ChecksumSHA256()
	assert.False(t, ok)

	ev.Metadata[MetadataChecksumSHA256] = ""
	_, ok = ev.ChecksumSHA256()
	assert.False(t, ok)

	ev.Metadata[MetadataChecksumSHA256] = "abc123"
	sum, ok := ev.ChecksumSHA256()
	assert.True(t, ok)
	assert.Equal(t, "abc123", sum)
}
