package ingester

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apperrors "github.com/chainsafe/ledger-ingest/pkg/app/errors"
	"github.com/chainsafe/ledger-ingest/pkg/config"
	"github.com/chainsafe/ledger-ingest/pkg/db"
	"github.com/chainsafe/ledger-ingest/pkg/ingest"
)

type fakeRunner struct {
	res       *ingest.RunResult
	err       error
	runs      atomic.Int32
	snapshots atomic.Int32
}

func (f *fakeRunner) Run(context.Context) (*ingest.RunResult, error) {
	f.runs.Add(1)
	return f.res, f.err
}

func (f *fakeRunner) Snapshot(context.Context) (*ingest.RunResult, error) {
	f.snapshots.Add(1)
	return f.res, f.err
}

type fakeLister struct {
	list []db.CheckpointInfo
	err  error
}

func (f *fakeLister) ListCheckpoints(context.Context) ([]db.CheckpointInfo, error) {
	return f.list, f.err
}

type fakeStores struct{}

func (fakeStores) Load(context.Context, string, ingest.Style) (ingest.Position, error) {
	return ingest.Position{}, nil
}
func (fakeStores) Save(context.Context, string, ingest.Position) error { return nil }
func (fakeStores) Insert(context.Context, *ingest.Record) (ingest.InsertOutcome, error) {
	return ingest.Inserted, nil
}
func (fakeStores) Acquire(context.Context, string, string, time.Duration) error { return nil }
func (fakeStores) Release(context.Context, string, string) error { return nil }

func testJobConfigs() []config.JobConfig {
	return []config.JobConfig{
		{Name: "aptos-main", Chain: config.ChainAptos, Address: "0xa", Network: "mainnet", PositionStyle: config.StyleOffset},
		{Name: "sui-main", Chain: config.ChainSui, Address: "0xb", Network: "mainnet", PositionStyle: config.StyleCursor},
	}
}

func doneResult(to ingest.Position) *ingest.RunResult {
	return &ingest.RunResult{RunID: "run-1", State: ingest.StateDone, To: to, Fetched: 3, Inserted: 2, Skipped: 1}
}

func TestRunJobs_FatalAndNonFatal(t *testing.T) {
	cfgs := testJobConfigs()
	board := newStatusBoard(cfgs)

	ok := &fakeRunner{res: doneResult(ingest.Position{Style: ingest.StyleOffset, Offset: 3})}
	down := &fakeRunner{
		res: &ingest.RunResult{RunID: "run-2", State: ingest.StateFailed},
		err: apperrors.SourceUnavailableError(errors.New("503"), "query events"),
	}
	jobs := []*job{
		{cfg: cfgs[0], runner: ok, close: func() {}},
		{cfg: cfgs[1], runner: down, close: func() {}},
	}

	err := runJobs(context.Background(), jobs, false, board, zap.NewNop())
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.KindSourceUnavailable))
	assert.Contains(t, err.Error(), "job sui-main")
	assert.Equal(t, int32(1), ok.runs.Load())
	assert.Equal(t, int32(1), down.runs.Load())

	st, found := board.get("aptos-main")
	require.True(t, found)
	assert.Equal(t, ingest.StateDone, st.State)
	assert.Equal(t, "offset=3", st.Position)
	assert.Equal(t, 2, st.Inserted)
	assert.Empty(t, st.Error)

	st, _ = board.get("sui-main")
	assert.Equal(t, ingest.StateFailed, st.State)
	assert.Equal(t, "SourceUnavailable", st.ErrorKind)
}

func TestRunJobs_NonFatalIsNotReturned(t *testing.T) {
	cfgs := testJobConfigs()[:1]
	r := &fakeRunner{
		res: doneResult(ingest.Position{Style: ingest.StyleOffset}),
		err: apperrors.StorageFailureError(errors.New("disk full"), "save checkpoint"),
	}
	jobs := []*job{{cfg: cfgs[0], runner: r, close: func() {}}}

	err := runJobs(context.Background(), jobs, false, newStatusBoard(cfgs), zap.NewNop())
	assert.NoError(t, err)
}

func TestRunJobs_LatestUsesSnapshot(t *testing.T) {
	cfgs := testJobConfigs()[:1]
	r := &fakeRunner{res: doneResult(ingest.Position{Style: ingest.StyleOffset})}
	jobs := []*job{{cfg: cfgs[0], runner: r, close: func() {}}}

	require.NoError(t, runJobs(context.Background(), jobs, true, newStatusBoard(cfgs), zap.NewNop()))
	assert.Equal(t, int32(0), r.runs.Load())
	assert.Equal(t, int32(1), r.snapshots.Load())
}

func TestRunJobs_StopsOnCanceledContext(t *testing.T) {
	cfgs := testJobConfigs()
	r := &fakeRunner{res: doneResult(ingest.Position{})}
	jobs := []*job{
		{cfg: cfgs[0], runner: r, close: func() {}},
		{cfg: cfgs[1], runner: r, close: func() {}},
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := runJobs(ctx, jobs, false, newStatusBoard(cfgs), zap.NewNop())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(0), r.runs.Load())
}

func TestSchedule_RunsUntilCanceled(t *testing.T) {
	cfgs := testJobConfigs()[:1]
	board := newStatusBoard(cfgs)
	r := &fakeRunner{res: doneResult(ingest.Position{})}
	jobs := []*job{{cfg: cfgs[0], runner: r, close: func() {}}}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		schedule(ctx, jobs, board, 10*time.Millisecond, zap.NewNop())
	}()

	require.Eventually(t, func() bool { return r.runs.Load() >= 2 }, time.Second, 5*time.Millisecond)
	assert.True(t, board.isReady())
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("schedule did not stop after cancel")
	}
}

func TestBuildJobs(t *testing.T) {
	jobs, err := buildJobs(context.Background(), testJobConfigs(), fakeStores{}, zap.NewNop())
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "aptos-main", jobs[0].cfg.Name)
	assert.IsType(t, &ingest.Processor{}, jobs[0].runner)
	closeJobs(jobs)

	_, err = buildJobs(context.Background(), []config.JobConfig{{Name: "x", Chain: "solana"}}, fakeStores{}, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unsupported chain "solana"`)
}

func TestProcessorOptions(t *testing.T) {
	jc := config.JobConfig{
		Name:           "sui-main",
		Address:        "0xb",
		Network:        "testnet",
		PageSize:       25,
		PositionStyle:  config.StyleCursor,
		AdvancePolicy:  config.AdvanceStoredPrefix,
		RequestTimeout: 5 * time.Second,
		LeaseTTL:       time.Minute,
	}
	opts := processorOptions(jc)
	assert.Equal(t, ingest.StyleCursor, opts.Style)
	assert.Equal(t, ingest.AdvanceStoredPrefix, opts.AdvancePolicy)
	assert.Equal(t, 25, opts.PageSize)
	assert.Equal(t, 5*time.Second, opts.FetchTimeout)
	assert.Equal(t, time.Minute, opts.LeaseTTL)
}

func TestRouter_HealthAndReady(t *testing.T) {
	board := newStatusBoard(testJobConfigs())
	srv := httptest.NewServer(newRouter(board, &fakeLister{}, zap.NewNop()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/ready")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	board.markReady()
	resp, err = http.Get(srv.URL + "/ready")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRouter_Jobs(t *testing.T) {
	board := newStatusBoard(testJobConfigs())
	board.record("aptos-main", doneResult(ingest.Position{Style: ingest.StyleOffset, Offset: 3}), nil)
	lister := &fakeLister{list: []db.CheckpointInfo{
		{Address: "0xa", Style: ingest.StyleOffset, Position: "3"},
		{Address: "0xa", Style: ingest.StyleCursor, Position: `{"txDigest":"d"}`},
	}}
	srv := httptest.NewServer(newRouter(board, lister, zap.NewNop()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/jobs")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Jobs []jobView `json:"jobs"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Jobs, 2)
	assert.Equal(t, "aptos-main", body.Jobs[0].Name)
	require.NotNil(t, body.Jobs[0].Checkpoint)
	assert.Equal(t, ingest.StyleOffset, body.Jobs[0].Checkpoint.Style)
	assert.Equal(t, "3", body.Jobs[0].Checkpoint.Position)
	assert.Equal(t, 1, body.Jobs[0].Runs)
	assert.Nil(t, body.Jobs[1].Checkpoint)
}

func TestRouter_GetJob(t *testing.T) {
	board := newStatusBoard(testJobConfigs())
	srv := httptest.NewServer(newRouter(board, &fakeLister{}, zap.NewNop()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/jobs/sui-main")
	require.NoError(t, err)
	var view jobView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&view))
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, config.StyleCursor, view.Style)

	resp, err = http.Get(srv.URL + "/api/v1/jobs/nope")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var errBody map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&errBody))
	assert.Equal(t, "NotFound", errBody["kind"])
}

func TestRouter_CheckpointsStorageError(t *testing.T) {
	board := newStatusBoard(testJobConfigs())
	srv := httptest.NewServer(newRouter(board, &fakeLister{err: errors.New("connection reset")}, zap.NewNop()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/checkpoints")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestServer_RejectsLatestWithServe(t *testing.T) {
	cfg := &config.Config{Jobs: testJobConfigs()}
	err := NewServer(cfg, Options{Latest: true, Serve: true}).Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mutually exclusive")

	err = NewServer(cfg, Options{Jobs: []string{"missing"}}).Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown job "missing"`)
}
