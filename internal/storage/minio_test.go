package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanEndpoint(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
		want     string
		wantErr  bool
	}{
		{"host port", "localhost:9000", "localhost:9000", false},
		{"http scheme", "http://localhost:9000", "localhost:9000", false},
		{"https scheme", "https://s3.us-east-1.amazonaws.com", "s3.us-east-1.amazonaws.com", false},
		{"trailing slash", "http://localhost:9000/", "localhost:9000", false},
		{"path with scheme", "http://localhost:9000/bucket", "", true},
		{"path without scheme", "localhost:9000/bucket", "", true},
		{"empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := cleanEndpoint(tt.endpoint)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewMinIOBackend(t *testing.T) {
	b, err := NewMinIOBackend(Config{
		Endpoint:  "localhost:9000",
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
		Region:    "us-east-1",
	})
	require.NoError(t, err)
	assert.NotNil(t, b)

	_, err = NewMinIOBackend(Config{Endpoint: "http://localhost:9000/bucket"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid endpoint")
}
