package testutil

import (
	"encoding/base64"
	"testing"

	"ai-images-server-go/internal/platform/config"
	"ai-images-server-go/internal/platform/logging"
)

// RedPixelPNG is a 1x1 red PNG, base64 encoded.
const RedPixelPNG = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mP8z8DwHwAFBQIAX8jx0gAAAABJRU5ErkJggg=="

// RedPixelBytes returns the decoded fixture.
func RedPixelBytes(t testing.TB) []byte {
	t.Helper()
	data, err := base64.StdEncoding.DecodeString(RedPixelPNG)
	if err != nil {
		t.Fatalf("decode fixture: %v", err)
	}
	return data
}

func SetupTestConfig(t testing.TB) *config.Config {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.App.Env = config.EnvDevelopment
	cfg.Server.IP = "127.0.0.1"
	cfg.Log = config.LogConfig{Level: "DEBUG"}
	cfg.Storage.Driver = config.DriverMock
	cfg.Storage.PublicBaseURL = "https://cdn.test"
	cfg.Describer.APIKey = "sk-test"
	return cfg
}

// SetupTestLogger returns a logger writing nowhere.
func SetupTestLogger(t testing.TB) *logging.Logger {
	t.Helper()
	logger := logging.Discard()
	t.Cleanup(func() { _ = logger.Close() })
	return logger
}

func Ptr[T any](v T) *T {
	return &v
}

func AssertNoError(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func AssertError(t testing.TB, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error but got nil")
	}
}
