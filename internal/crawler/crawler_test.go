package crawler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jonathan/course-crawler/internal/fetch"
	"github.com/jonathan/course-crawler/internal/metrics"
	"github.com/jonathan/course-crawler/internal/recovery"
	"github.com/jonathan/course-crawler/internal/storage"
	"github.com/jonathan/course-crawler/internal/types"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	mu     sync.Mutex
	bodies map[types.Career]string
	errs   map[types.Career]error
	empty  map[types.Career]bool
	calls  []types.Career
	onCall func(types.Career)
}

func (f *fakeFetcher) Fetch(_ context.Context, career types.Career) (*fetch.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, career)
	f.mu.Unlock()
	if f.onCall != nil {
		f.onCall(career)
	}
	if err, ok := f.errs[career]; ok {
		return nil, err
	}
	if f.empty[career] {
		return nil, nil
	}
	body, ok := f.bodies[career]
	if !ok {
		body = `{"course":[]}`
	}
	return &fetch.Result{Body: body, StatusCode: 200, Duration: 10 * time.Millisecond}, nil
}

type memoryStore struct {
	mu        sync.Mutex
	documents map[types.Career][]byte
	archives  map[types.Career]string
	failSave  map[types.Career]bool
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		documents: map[types.Career][]byte{},
		archives:  map[types.Career]string{},
		failSave:  map[types.Career]bool{},
	}
}

func (s *memoryStore) SaveDocument(_ context.Context, doc *storage.Document) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSave[doc.Career] {
		return "", &storage.PersistError{Career: doc.Career, Op: "write document", Cause: errors.New("disk full")}
	}
	data, err := doc.Content.Indent()
	if err != nil {
		return "", err
	}
	s.documents[doc.Career] = data
	return "mem:" + doc.Career.Code(), nil
}

func (s *memoryStore) ArchiveRaw(_ context.Context, raw *storage.RawArchive) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.archives[raw.Career] = raw.Raw
	return fmt.Sprintf("mem:raw:%s:%s", raw.Career.Code(), raw.Tag), nil
}

func (s *memoryStore) Close() error { return nil }

type sleepRecorder struct {
	calls []time.Duration
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.calls = append(r.calls, d)
	return ctx.Err()
}

func newTestCrawler(t *testing.T, f Fetcher, s storage.Store, opts Options) (*Crawler, *sleepRecorder) {
	t.Helper()
	rec := &sleepRecorder{}
	opts.Fetcher = f
	opts.Store = s
	if opts.Sleep == nil {
		opts.Sleep = rec.sleep
	}
	c, err := New(opts)
	require.NoError(t, err)
	return c, rec
}

func TestNew_Validation(t *testing.T) {
	store := newMemoryStore()
	fetcher := &fakeFetcher{}

	tests := []struct {
		name    string
		opts    Options
		wantErr string
	}{
		{name: "nil fetcher", opts: Options{Store: store}, wantErr: "fetcher is nil"},
		{name: "nil store", opts: Options{Fetcher: fetcher}, wantErr: "store is nil"},
		{name: "negative pacing", opts: Options{Fetcher: fetcher, Store: store, Pacing: -time.Second}, wantErr: "pacing must be non-negative"},
		{name: "unknown career", opts: Options{Fetcher: fetcher, Store: store, Careers: []types.Career{"X"}}, wantErr: `unknown career code "X"`},
		{name: "duplicate career", opts: Options{Fetcher: fetcher, Store: store, Careers: []types.Career{types.CareerMaster, types.CareerMaster}}, wantErr: "duplicate career code"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.opts)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNew_DefaultsToAllCareers(t *testing.T) {
	c, err := New(Options{Fetcher: &fakeFetcher{}, Store: newMemoryStore()})
	require.NoError(t, err)
	assert.Equal(t, types.AllCareers(), c.Careers())
}

func TestRunPass_AllSucceed(t *testing.T) {
	fetcher := &fakeFetcher{bodies: map[types.Career]string{
		types.CareerUndergraduate: `{"course":[{"title":"微積分"}]}`,
	}}
	store := newMemoryStore()
	c, _ := newTestCrawler(t, fetcher, store, Options{})

	report := c.RunPass(context.Background())

	require.Len(t, report.Results, len(types.AllCareers()))
	assert.Equal(t, types.AllCareers(), fetcher.calls)
	assert.Equal(t, 6, report.Succeeded())
	assert.Equal(t, 0, report.Failed())
	for i, career := range types.AllCareers() {
		res := report.Results[i]
		assert.Equal(t, career, res.Career)
		assert.Equal(t, StatusPersisted, res.Status)
		assert.Equal(t, "mem:"+career.Code(), res.Location)
		assert.Contains(t, store.documents, career)
	}
	assert.Equal(t, "{\n  \"course\": [\n    {\n      \"title\": \"微積分\"\n    }\n  ]\n}", string(store.documents[types.CareerUndergraduate]))
}

func TestRunPass_TransportFailureIsolated(t *testing.T) {
	fetcher := &fakeFetcher{errs: map[types.Career]error{
		types.CareerContinuing: &fetch.Error{URL: "http://x", Message: "HTTP status 503", StatusCode: 503},
	}}
	store := newMemoryStore()
	c, _ := newTestCrawler(t, fetcher, store, Options{})

	report := c.RunPass(context.Background())

	m := report.Map()
	require.Len(t, m, 6)
	for _, career := range types.AllCareers() {
		want := career != types.CareerContinuing
		assert.Equal(t, want, m[career.Label()], career.Label())
		_, persisted := store.documents[career]
		assert.Equal(t, want, persisted, career.Label())
	}

	res, ok := report.Result(types.CareerContinuing)
	require.True(t, ok)
	assert.Equal(t, StatusFetchFailed, res.Status)
	var fetchErr *fetch.Error
	require.True(t, errors.As(res.Err, &fetchErr))
	assert.Equal(t, 503, fetchErr.StatusCode)
	assert.Empty(t, store.archives)
}

func TestRunPass_NoResultIsFetchFailure(t *testing.T) {
	fetcher := &fakeFetcher{empty: map[types.Career]bool{types.CareerMaster: true}}
	store := newMemoryStore()
	c, _ := newTestCrawler(t, fetcher, store, Options{})

	report := c.RunPass(context.Background())

	require.Len(t, report.Results, 6)
	assert.Equal(t, 5, report.Succeeded())
	res, ok := report.Result(types.CareerMaster)
	require.True(t, ok)
	assert.Equal(t, StatusFetchFailed, res.Status)
	assert.Equal(t, "transport_failure", res.Reason)
	require.Error(t, res.Err)
	assert.NotContains(t, store.documents, types.CareerMaster)
	assert.Empty(t, store.archives)

	// Later careers still run
	after, ok := report.Result(types.CareerDoctoral)
	require.True(t, ok)
	assert.Equal(t, StatusPersisted, after.Status)
}

func TestRunPass_RecoveryFailureArchivesPristineRaw(t *testing.T) {
	raw := "\x01Service Unavailable, please retry later\r\n"
	fetcher := &fakeFetcher{bodies: map[types.Career]string{types.CareerDoctoral: raw}}
	store := newMemoryStore()
	c, _ := newTestCrawler(t, fetcher, store, Options{})

	report := c.RunPass(context.Background())

	res, ok := report.Result(types.CareerDoctoral)
	require.True(t, ok)
	assert.Equal(t, StatusRecoveryFailed, res.Status)
	assert.Equal(t, recovery.ReasonBoundaryNotFound.String(), res.Reason)
	assert.True(t, errors.Is(res.Err, recovery.ErrBoundaryNotFound))
	assert.Equal(t, "mem:raw:D:failed", res.Location)

	assert.Equal(t, raw, store.archives[types.CareerDoctoral])
	assert.NotContains(t, store.documents, types.CareerDoctoral)
	assert.Equal(t, 5, report.Succeeded())
}

func TestRunPass_RescueAndRepairs(t *testing.T) {
	fetcher := &fakeFetcher{bodies: map[types.Career]string{
		types.CareerMaster:    `noise {"rescued": true} tail ]%%`,
		types.CareerInService: `{"a":, "b":1,}`,
	}}
	store := newMemoryStore()
	c, _ := newTestCrawler(t, fetcher, store, Options{})

	report := c.RunPass(context.Background())

	master, _ := report.Result(types.CareerMaster)
	assert.Equal(t, StatusPersisted, master.Status)
	assert.Equal(t, recovery.StageRescue, master.Stage)
	assert.Equal(t, 1, master.Records)
	assert.Zero(t, master.Repairs)
	assert.JSONEq(t, `{"rescued": true}`, string(store.documents[types.CareerMaster]))

	inService, _ := report.Result(types.CareerInService)
	assert.Equal(t, StatusPersisted, inService.Status)
	assert.Equal(t, recovery.StagePrimary, inService.Stage)
	assert.Equal(t, 2, inService.Records)
	assert.Equal(t, 2, inService.Repairs)
	assert.JSONEq(t, `{"a": null, "b": 1}`, string(store.documents[types.CareerInService]))
}

func TestRunPass_PersistFailure(t *testing.T) {
	store := newMemoryStore()
	store.failSave[types.CareerGeneralEducation] = true
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	c, _ := newTestCrawler(t, &fakeFetcher{}, store, Options{Logger: logger})

	report := c.RunPass(context.Background())

	res, _ := report.Result(types.CareerGeneralEducation)
	assert.Equal(t, StatusPersistFailed, res.Status)
	assert.False(t, res.Succeeded())
	assert.False(t, report.Map()[types.CareerGeneralEducation.Label()])

	var persistErr *storage.PersistError
	require.True(t, errors.As(res.Err, &persistErr))
	assert.Contains(t, logs.String(), "recovered but not persisted")
	assert.Empty(t, store.archives)
}

func TestRunPass_PacingAfterEveryCareer(t *testing.T) {
	fetcher := &fakeFetcher{errs: map[types.Career]error{types.CareerUndergraduate: errors.New("connection refused")}}
	c, rec := newTestCrawler(t, fetcher, newMemoryStore(), Options{Pacing: 2 * time.Second})

	c.RunPass(context.Background())

	require.Len(t, rec.calls, 6)
	for _, d := range rec.calls {
		assert.Equal(t, 2*time.Second, d)
	}
}

func TestRunPass_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fetcher := &fakeFetcher{onCall: func(career types.Career) {
		if career == types.CareerGeneralEducation {
			cancel()
		}
	}}
	c, _ := newTestCrawler(t, fetcher, newMemoryStore(), Options{})

	report := c.RunPass(ctx)

	require.Len(t, report.Results, 6)
	assert.Equal(t, []types.Career{types.CareerUndergraduate, types.CareerGeneralEducation}, fetcher.calls)
	assert.Equal(t, StatusPersisted, report.Results[0].Status)
	for _, res := range report.Results[2:] {
		assert.Equal(t, StatusCanceled, res.Status)
		assert.Equal(t, ReasonCanceled, res.Reason)
		assert.False(t, res.Succeeded())
	}
}

func TestRunPass_RealSleepHonorsCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	fetcher := &fakeFetcher{onCall: func(types.Career) { cancel() }}

	c, err := New(Options{Fetcher: fetcher, Store: newMemoryStore(), Pacing: time.Hour})
	require.NoError(t, err)

	done := make(chan *Report, 1)
	go func() { done <- c.RunPass(ctx) }()

	select {
	case report := <-done:
		assert.Len(t, report.Results, 6)
		assert.Len(t, fetcher.calls, 1)
	case <-time.After(5 * time.Second):
		t.Fatal("RunPass did not return after cancel")
	}
}

func TestRunPass_Metrics(t *testing.T) {
	m := metrics.New()
	fetcher := &fakeFetcher{
		bodies: map[types.Career]string{types.CareerMaster: "no json here"},
		errs:   map[types.Career]error{types.CareerDoctoral: errors.New("timeout")},
	}
	c, _ := newTestCrawler(t, fetcher, newMemoryStore(), Options{Metrics: m})

	c.RunPass(context.Background())

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CareersTotal.WithLabelValues("U", "persisted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CareersTotal.WithLabelValues("G", "recovery_failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CareersTotal.WithLabelValues("D", "fetch_failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RecoveryTotal.WithLabelValues("boundary_not_found")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.RecoveryTotal.WithLabelValues("primary")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.LastPassFailures))
}

func TestRunPass_FileStore(t *testing.T) {
	store, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)
	fetcher := &fakeFetcher{bodies: map[types.Career]string{types.CareerInService: "%%% broken {"}}
	c, _ := newTestCrawler(t, fetcher, store, Options{})

	report := c.RunPass(context.Background())
	assert.Equal(t, 5, report.Succeeded())

	data, err := os.ReadFile(store.DocumentPath(types.CareerMaster))
	require.NoError(t, err)
	assert.JSONEq(t, `{"course":[]}`, string(data))

	raw, err := os.ReadFile(store.ArchivePath(types.CareerInService, types.ArchiveTagFailed))
	require.NoError(t, err)
	assert.Equal(t, "%%% broken {", string(raw))
}

func TestReport_JSON(t *testing.T) {
	c, _ := newTestCrawler(t, &fakeFetcher{}, newMemoryStore(), Options{Careers: []types.Career{types.CareerMaster}})
	report := c.RunPass(context.Background())

	data, err := json.Marshal(report)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	results := decoded["results"].([]any)
	require.Len(t, results, 1)
	first := results[0].(map[string]any)
	assert.Equal(t, "G", first["career"])
	assert.Equal(t, "碩士班", first["label"])
	assert.Equal(t, "persisted", first["status"])
	assert.Equal(t, report.RunID.String(), decoded["run_id"])
}
