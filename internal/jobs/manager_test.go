package jobs_test

import (
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/vrsandeep/mango-shelf/internal/checker"
	"github.com/vrsandeep/mango-shelf/internal/config"
	"github.com/vrsandeep/mango-shelf/internal/jobs"
	"github.com/vrsandeep/mango-shelf/internal/store"
	"github.com/vrsandeep/mango-shelf/internal/websocket"
)

type fakeJobContext struct {
	db     *sql.DB
	cfg    *config.Config
	ws     *websocket.Hub
	jobMgr *jobs.JobManager
}

func (f *fakeJobContext) DB() *sql.DB                  { return f.db }
func (f *fakeJobContext) Config() *config.Config       { return f.cfg }
func (f *fakeJobContext) WsHub() *websocket.Hub        { return f.ws }
func (f *fakeJobContext) JobManager() *jobs.JobManager { return f.jobMgr }
func (f *fakeJobContext) Store() *store.Store          { return nil }
func (f *fakeJobContext) Checker() *checker.Service    { return nil }

func newFakeContext() *fakeJobContext {
	ctx := &fakeJobContext{cfg: &config.Config{}, ws: websocket.NewHub()}
	ctx.jobMgr = jobs.NewManager(ctx)
	return ctx
}

func waitIdle(t *testing.T, mgr *jobs.JobManager) {
	t.Helper()
	assert.Eventually(t, func() bool { return !mgr.IsRunning() }, time.Second, 5*time.Millisecond)
}

func TestManager_NewManager(t *testing.T) {
	mgr := newFakeContext().jobMgr
	assert.NotNil(t, mgr)
	assert.Empty(t, mgr.GetStatus())
}

func TestManager_RegisterAndGetStatus(t *testing.T) {
	mgr := newFakeContext().jobMgr
	mgr.Register("jobB", "Job B", func(ctx jobs.JobContext) {})
	mgr.Register("jobA", "Job A", func(ctx jobs.JobContext) {})
	statuses := mgr.GetStatus()
	assert.Len(t, statuses, 2)
	assert.Equal(t, "jobA", statuses[0].ID, "statuses are sorted by id")
	assert.Equal(t, "idle", statuses[1].Status)
}

func TestManager_RunJob_SuccessAndStatus(t *testing.T) {
	ctx := newFakeContext()
	mgr := ctx.jobMgr
	var mu sync.Mutex
	var got jobs.JobContext
	mgr.Register("jobX", "Job X", func(c jobs.JobContext) {
		mu.Lock()
		got = c
		mu.Unlock()
	})
	// A nil context falls back to the one the manager was built with.
	assert.NoError(t, mgr.RunJob("jobX", nil))
	waitIdle(t, mgr)

	mu.Lock()
	assert.Same(t, ctx, got)
	mu.Unlock()
	status := mgr.GetStatus()[0]
	assert.Equal(t, "success", status.Status)
	assert.False(t, status.EndTime.Before(status.StartTime))
}

func TestManager_RunJob_AlreadyRunning(t *testing.T) {
	ctx := newFakeContext()
	mgr := ctx.jobMgr
	block := make(chan struct{})
	mgr.Register("jobY", "Job Y", func(ctx jobs.JobContext) { <-block })
	mgr.Register("jobZ", "Job Z", func(ctx jobs.JobContext) {})
	assert.NoError(t, mgr.RunJob("jobY", ctx))
	assert.ErrorIs(t, mgr.RunJob("jobY", ctx), jobs.ErrJobRunning)
	assert.ErrorIs(t, mgr.RunJob("jobZ", ctx), jobs.ErrJobRunning, "one job at a time")
	assert.True(t, mgr.IsRunning())
	close(block)
	waitIdle(t, mgr)
}

func TestManager_RunJob_NotFound(t *testing.T) {
	ctx := newFakeContext()
	err := ctx.jobMgr.RunJob("nojob", ctx)
	assert.ErrorIs(t, err, jobs.ErrJobNotFound)
}

func TestManager_RunJob_Panic(t *testing.T) {
	ctx := newFakeContext()
	mgr := ctx.jobMgr
	mgr.Register("panicJob", "Panic Job", func(ctx jobs.JobContext) { panic("fail") })
	assert.NoError(t, mgr.RunJob("panicJob", ctx))
	waitIdle(t, mgr)
	statuses := mgr.GetStatus()
	assert.Equal(t, "failed", statuses[0].Status)
	assert.Contains(t, statuses[0].Message, "panicked")
}

func TestManager_MarkFailed(t *testing.T) {
	ctx := newFakeContext()
	mgr := ctx.jobMgr
	mgr.Register("failing", "Failing Job", func(c jobs.JobContext) {
		c.JobManager().MarkFailed("failing", "source unavailable")
	})
	assert.NoError(t, mgr.RunJob("failing", ctx))
	waitIdle(t, mgr)
	status := mgr.GetStatus()[0]
	assert.Equal(t, "failed", status.Status)
	assert.Equal(t, "source unavailable", status.Message)

	// Marking an idle job changes nothing.
	mgr.MarkFailed("failing", "late")
	assert.Equal(t, "source unavailable", mgr.GetStatus()[0].Message)
}

func TestManager_Concurrency(t *testing.T) {
	ctx := newFakeContext()
	mgr := ctx.jobMgr
	var mu sync.Mutex
	var count int
	block := make(chan struct{})
	mgr.Register("jobC", "Job C", func(ctx jobs.JobContext) {
		mu.Lock()
		count++
		mu.Unlock()
		<-block
	})
	wg := sync.WaitGroup{}
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = mgr.RunJob("jobC", ctx)
		}()
	}
	wg.Wait()
	close(block)
	waitIdle(t, mgr)
	mu.Lock()
	assert.Equal(t, 1, count, "job should only run once concurrently")
	mu.Unlock()
}
