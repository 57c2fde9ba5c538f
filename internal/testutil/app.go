// Shared setup for tests that need a fully wired application.

package testutil

import (
	"testing"

	"github.com/vrsandeep/mango-shelf/internal/config"
	"github.com/vrsandeep/mango-shelf/internal/core"
	"github.com/vrsandeep/mango-shelf/internal/downloader/providers"
	"github.com/vrsandeep/mango-shelf/internal/downloader/providers/mockadex"
)

// TestConfig returns a configuration pointing at temporary directories.
func TestConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.Library.Path = t.TempDir()
	cfg.Checker.Timeout = 5
	cfg.Downloader.Workers = 1
	cfg.Notify.NATS.Subject = "mango.chapters"
	return cfg
}

// SetupTestApp builds a core.App on a fresh database with the mockadex
// provider registered. The returned provider can be given chapter lists.
func SetupTestApp(t *testing.T) (*core.App, *mockadex.MockadexProvider) {
	t.Helper()
	db := SetupTestDB(t)

	app, err := core.NewWithDB(TestConfig(t), db)
	if err != nil {
		t.Fatalf("Failed to set up app: %v", err)
	}
	app.Version = "test"

	providers.UnregisterAll()
	t.Cleanup(providers.UnregisterAll)

	// Register providers for the test environment
	mock := mockadex.New()
	providers.Register(mock)
	return app, mock
}
