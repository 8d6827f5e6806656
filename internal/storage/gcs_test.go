package storage

import (
	"context"
	"testing"
)

func TestGCSClientOptions(t *testing.T) {
	tests := []struct {
		name   string
		config GCSConfig
		want   int
	}{
		{"default credentials", GCSConfig{Bucket: "b", UseDefaultCredential: true}, 0},
		{"credentials JSON", GCSConfig{Bucket: "b", CredentialsJSON: `{"type":"service_account"}`}, 1},
		{"credentials file", GCSConfig{Bucket: "b", CredentialsFile: "/etc/gcp/key.json"}, 1},
		{"emulator endpoint", GCSConfig{Bucket: "b", Endpoint: "http://localhost:4443/storage/v1/"}, 2},
		{"endpoint with credentials file", GCSConfig{Bucket: "b", Endpoint: "https://gcs", CredentialsFile: "/key.json"}, 2},
		{"nothing configured", GCSConfig{Bucket: "b"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := len(gcsClientOptions(tt.config)); got != tt.want {
				t.Errorf("len(gcsClientOptions()) = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestGCSWriter_ObjectPath(t *testing.T) {
	w := &GCSWriter{bucket: "archive"}

	tests := []struct {
		path string
		want string
	}{
		{"topic=a/batch.parquet", "topic=a/batch.parquet"},
		{"gs://archive/topic=a/batch.parquet", "topic=a/batch.parquet"},
		{"gs://archive", ""},
		{"/topic=a/batch.parquet", "topic=a/batch.parquet"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := w.objectPath(tt.path); got != tt.want {
				t.Errorf("objectPath(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestNewGCSWriter_Emulator(t *testing.T) {
	w, err := NewGCSWriter(context.Background(), GCSConfig{
		Bucket:   "archive",
		Endpoint: "http://localhost:4443/storage/v1/",
	}, testLogger(), nil)
	if err != nil {
		t.Fatalf("NewGCSWriter() error = %v", err)
	}
	if w.Backend() != "gcs" {
		t.Errorf("Backend() = %s, want gcs", w.Backend())
	}
	if err := w.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
