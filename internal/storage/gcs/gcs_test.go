package gcs

import (
	"testing"

	appconfig "github.com/qa-dashboard/qa-dashboard/internal/config"
)

// ---------------------------------------------------------------------------
// Configuration validation (no GCS connection required)
// ---------------------------------------------------------------------------

func TestNew_MissingBucket(t *testing.T) {
	_, err := New(&appconfig.GCSStorageConfig{Bucket: ""})
	if err == nil {
		t.Error("New() = nil error, want error for missing bucket")
	}
}

func TestClientOptions(t *testing.T) {
	tests := []struct {
		name     string
		cfg      appconfig.GCSStorageConfig
		wantErr  bool
		wantOpts int
	}{
		{"default adc", appconfig.GCSStorageConfig{Bucket: "b"}, false, 0},
		{"workload identity", appconfig.GCSStorageConfig{Bucket: "b", AuthMethod: "workload_identity"}, false, 0},
		{"emulator endpoint", appconfig.GCSStorageConfig{Bucket: "b", Endpoint: "http://localhost:4443/storage/v1/"}, false, 1},
		{"inferred service account", appconfig.GCSStorageConfig{Bucket: "b", CredentialsFile: "/etc/gcs.json"}, false, 1},
		{"inline json", appconfig.GCSStorageConfig{Bucket: "b", AuthMethod: "service_account", CredentialsJSON: `{"type":"service_account"}`}, false, 1},
		{"service account without credentials", appconfig.GCSStorageConfig{Bucket: "b", AuthMethod: "service_account"}, true, 0},
		{"unsupported method", appconfig.GCSStorageConfig{Bucket: "b", AuthMethod: "not-a-valid-method"}, true, 0},
		{"missing bucket", appconfig.GCSStorageConfig{}, true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			opts, err := clientOptions(&cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("clientOptions() error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(opts) != tt.wantOpts {
				t.Errorf("clientOptions() returned %d options, want %d", len(opts), tt.wantOpts)
			}
		})
	}
}
