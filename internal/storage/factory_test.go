package storage_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/qa-dashboard/qa-dashboard/internal/config"
	"github.com/qa-dashboard/qa-dashboard/internal/storage"
)

type mockStorage struct{}

func (m *mockStorage) Download(_ context.Context, _ string) (io.ReadCloser, error) { return nil, nil }
func (m *mockStorage) GetURL(_ context.Context, _ string, _ time.Duration) (string, error) {
	return "", nil
}
func (m *mockStorage) Exists(_ context.Context, _ string) (bool, error) { return false, nil }

func TestRegister_AddsFactory(t *testing.T) {
	storage.Register("test-backend", func(_ *config.Config) (storage.Storage, error) {
		return &mockStorage{}, nil
	})

	cfg := &config.Config{}
	cfg.Storage.Backend = "test-backend"

	s, err := storage.NewStorage(cfg)
	if err != nil {
		t.Fatalf("NewStorage() error: %v", err)
	}
	if s == nil {
		t.Fatal("NewStorage() returned nil")
	}
}

func TestNewStorage_None(t *testing.T) {
	cfg := &config.Config{}
	cfg.Storage.Backend = "none"

	s, err := storage.NewStorage(cfg)
	if err != nil {
		t.Fatalf("NewStorage() error: %v", err)
	}
	if s != nil {
		t.Errorf("NewStorage() = %T, want nil for backend none", s)
	}
}

func TestNewStorage_UnknownBackend(t *testing.T) {
	for _, name := range []string{"completely-unknown-backend", ""} {
		cfg := &config.Config{}
		cfg.Storage.Backend = name
		if _, err := storage.NewStorage(cfg); err == nil {
			t.Errorf("NewStorage(%q) = nil error, want error", name)
		}
	}
}

func TestSplitContainer(t *testing.T) {
	tests := []struct {
		in              string
		container, name string
		ok              bool
	}{
		{"drafts/report.pdf", "drafts", "report.pdf", true},
		{"/drafts/2024/report.pdf", "drafts", "2024/report.pdf", true},
		{"report.pdf", "", "", false},
		{"drafts/", "", "", false},
		{"", "", "", false},
	}
	for _, tt := range tests {
		c, n, ok := storage.SplitContainer(tt.in)
		if c != tt.container || n != tt.name || ok != tt.ok {
			t.Errorf("SplitContainer(%q) = (%q, %q, %v), want (%q, %q, %v)", tt.in, c, n, ok, tt.container, tt.name, tt.ok)
		}
	}
}

func TestCleanPath(t *testing.T) {
	valid := map[string]string{
		"drafts/a.pdf":       "drafts/a.pdf",
		"/finals/x/y.pdf":    "finals/x/y.pdf",
		`drafts\windows.pdf`: "drafts/windows.pdf",
	}
	for in, want := range valid {
		got, ok := storage.CleanPath(in)
		if !ok || got != want {
			t.Errorf("CleanPath(%q) = (%q, %v), want (%q, true)", in, got, ok, want)
		}
	}
	for _, in := range []string{"", "../etc/passwd", "drafts/../../x", "drafts//a.pdf", "./a.pdf"} {
		if _, ok := storage.CleanPath(in); ok {
			t.Errorf("CleanPath(%q) accepted, want rejected", in)
		}
	}
}
