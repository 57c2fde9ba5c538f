package core_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vrsandeep/mango-shelf/internal/core"
	"github.com/vrsandeep/mango-shelf/internal/jobs"
	"github.com/vrsandeep/mango-shelf/internal/library"
	"github.com/vrsandeep/mango-shelf/internal/testutil"
)

func TestNewWithDBWiresServices(t *testing.T) {
	app, err := core.NewWithDB(testutil.TestConfig(t), testutil.SetupTestDB(t))
	require.NoError(t, err)

	assert.NotNil(t, app.Store())
	assert.NotNil(t, app.Checker())
	assert.NotNil(t, app.Reconciler())
	assert.NotNil(t, app.Notifier())
	assert.NotNil(t, app.Locks())
	assert.NotNil(t, app.WsHub())
	assert.Equal(t, "dev", app.Version)

	var ids []string
	for _, st := range app.JobManager().GetStatus() {
		ids = append(ids, st.ID)
		assert.Equal(t, "idle", st.Status)
	}
	assert.ElementsMatch(t, []string{jobs.BookmarkCheckJobID, jobs.QueueCleanupJobID, library.SweepJobID}, ids)
}

func TestNewFromFileRejectsMissingConfig(t *testing.T) {
	_, err := core.NewFromFile(t.TempDir() + "/missing.yml")
	assert.Error(t, err)
}
