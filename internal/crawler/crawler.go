// Package crawler drives one pass over every career: fetch, recover, then persist or archive.
// A failure in one career never aborts the others.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/course-crawler/internal/fetch"
	"github.com/jonathan/course-crawler/internal/logging"
	"github.com/jonathan/course-crawler/internal/metrics"
	"github.com/jonathan/course-crawler/internal/recovery"
	"github.com/jonathan/course-crawler/internal/storage"
	"github.com/jonathan/course-crawler/internal/types"
)

// DefaultPacing is the pause after every career.
const DefaultPacing = 2 * time.Second

// Fetcher retrieves the raw course listing for a career.
type Fetcher interface {
	Fetch(ctx context.Context, career types.Career) (*fetch.Result, error)
}

// SleepFunc pauses for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Options configures a Crawler.
type Options struct {
	Fetcher  Fetcher
	Store    storage.Store
	Logger   *slog.Logger       // Defaults to a discarding logger
	Pipeline *recovery.Pipeline // Defaults to the default repair passes
	Metrics  *metrics.Metrics   // Optional
	Careers  []types.Career     // Defaults to every career
	Pacing   time.Duration
	Sleep    SleepFunc // Defaults to a context-aware timer
	Now      func() time.Time
}

var errNoResult = errors.New("fetcher returned no result")

// Crawler runs crawl passes. It holds no state between passes.
type Crawler struct {
	fetcher  Fetcher
	store    storage.Store
	logger   *slog.Logger
	pipeline *recovery.Pipeline
	metrics  *metrics.Metrics
	careers  []types.Career
	pacing   time.Duration
	sleep    SleepFunc
	now      func() time.Time
}

// New validates opts and creates a Crawler.
func New(opts Options) (*Crawler, error) {
	if opts.Fetcher == nil {
		return nil, fmt.Errorf("crawler: fetcher is nil")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("crawler: store is nil")
	}
	if opts.Pacing < 0 {
		return nil, fmt.Errorf("crawler: pacing must be non-negative, got %s", opts.Pacing)
	}

	careers := opts.Careers
	if len(careers) == 0 {
		careers = types.AllCareers()
	}
	seen := make(map[types.Career]bool, len(careers))
	for _, c := range careers {
		if !c.Valid() {
			return nil, fmt.Errorf("crawler: unknown career code %q", string(c))
		}
		if seen[c] {
			return nil, fmt.Errorf("crawler: duplicate career code %q", string(c))
		}
		seen[c] = true
	}

	c := &Crawler{
		fetcher:  opts.Fetcher,
		store:    opts.Store,
		logger:   opts.Logger,
		pipeline: opts.Pipeline,
		metrics:  opts.Metrics,
		careers:  append([]types.Career(nil), careers...),
		pacing:   opts.Pacing,
		sleep:    opts.Sleep,
		now:      opts.Now,
	}
	if c.logger == nil {
		c.logger = logging.Discard()
	}
	if c.pipeline == nil {
		c.pipeline = recovery.New()
	}
	if c.sleep == nil {
		c.sleep = sleepContext
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c, nil
}

// Careers returns the careers visited by a pass, in order.
func (c *Crawler) Careers() []types.Career {
	return append([]types.Career(nil), c.careers...)
}

// RunPass processes every career once, in order, and returns the report.
// Every career yields exactly one Result. When ctx is canceled the remaining
// careers are recorded as canceled without being fetched.
func (c *Crawler) RunPass(ctx context.Context) *Report {
	report := &Report{
		RunID:     uuid.New(),
		StartedAt: c.now(),
		Results:   make([]Result, 0, len(c.careers)),
	}
	log := c.logger.With("run_id", report.RunID.String())
	log.Info("crawl pass started", "careers", len(c.careers), "pacing", c.pacing.String())

	for _, career := range c.careers {
		var res Result
		if ctx.Err() != nil {
			res = canceledResult(career, ctx.Err())
		} else {
			res = c.processCareer(ctx, log, report.RunID, career)
			// Pacing applies after every processed career, whatever the outcome
			_ = c.sleep(ctx, c.pacing)
		}
		c.metrics.ObserveCareer(career.Code(), res.Status.String())
		report.Results = append(report.Results, res)
	}

	report.FinishedAt = c.now()
	c.metrics.ObservePass(report.FinishedAt, report.Failed())
	c.logSummary(log, report)
	return report
}

func (c *Crawler) processCareer(ctx context.Context, log *slog.Logger, runID uuid.UUID, career types.Career) Result {
	log = log.With("career", career.Code(), "label", career.Label())
	res := Result{Career: career, Label: career.Label()}

	log.Info("fetching course listing")
	fetched, err := c.fetcher.Fetch(ctx, career)
	if fetched != nil {
		c.metrics.ObserveFetch(career.Code(), fetched.Duration)
	}
	if err != nil {
		if ctx.Err() != nil {
			return canceledResult(career, err)
		}
		log.Error("fetch failed", "error", err)
		res.Status = StatusFetchFailed
		res.Reason = "transport_failure"
		res.Err = err
		return res
	}
	if fetched == nil {
		log.Error("fetch failed", "error", errNoResult)
		res.Status = StatusFetchFailed
		res.Reason = "transport_failure"
		res.Err = errNoResult
		return res
	}

	doc, err := c.pipeline.Recover(fetched.Body)
	if err != nil {
		return c.archiveFailure(ctx, log, runID, res, fetched.Body, err)
	}

	if doc.PrimaryErr != nil {
		log.Warn("primary parse failed, rescued", "error", doc.PrimaryErr)
	}
	for _, r := range doc.Repairs {
		log.Debug("repair applied", "pass", r.Pass, "count", r.Count)
	}
	c.metrics.ObserveRecovery(string(doc.Stage))
	res.Stage = doc.Stage
	res.Records = doc.Len()
	res.Repairs = doc.RepairCount()
	log.Info("parsed course listing", "stage", doc.Stage, "records", res.Records, "repairs", res.Repairs)

	loc, err := c.store.SaveDocument(ctx, &storage.Document{RunID: runID, Career: career, Content: doc})
	if err != nil {
		log.Error("recovered but not persisted", "error", err)
		res.Status = StatusPersistFailed
		res.Reason = "persistence_failure"
		res.Err = err
		return res
	}

	log.Info("persisted course listing", "location", loc)
	res.Status = StatusPersisted
	res.Location = loc
	return res
}

func (c *Crawler) archiveFailure(ctx context.Context, log *slog.Logger, runID uuid.UUID, res Result, body string, err error) Result {
	raw := body
	res.Reason = "recovery_failure"
	var recErr *recovery.Error
	if errors.As(err, &recErr) {
		raw = recErr.Raw
		res.Reason = recErr.Reason.String()
		if recErr.Reason == recovery.ReasonRescueParse {
			log.Warn("primary parse failed, rescue did not parse either")
		}
	}
	c.metrics.ObserveRecovery(res.Reason)
	log.Error("recovery failed", "reason", res.Reason, "error", err)

	res.Status = StatusRecoveryFailed
	res.Err = err

	loc, archiveErr := c.store.ArchiveRaw(ctx, &storage.RawArchive{
		RunID:  runID,
		Career: res.Career,
		Tag:    types.ArchiveTagFailed,
		Raw:    raw,
	})
	if archiveErr != nil {
		log.Error("failed to archive raw payload", "error", archiveErr)
		res.Err = errors.Join(err, archiveErr)
		return res
	}
	log.Info("archived raw payload", "location", loc)
	res.Location = loc
	return res
}

func (c *Crawler) logSummary(log *slog.Logger, report *Report) {
	log.Info("crawl pass finished",
		"succeeded", report.Succeeded(),
		"failed", report.Failed(),
		"duration", report.Duration().String())
	for _, res := range report.Results {
		if res.Succeeded() {
			log.Info("career summary", "label", res.Label, "status", res.Status)
			continue
		}
		log.Warn("career summary", "label", res.Label, "status", res.Status, "reason", res.Reason)
	}
}

func canceledResult(career types.Career, err error) Result {
	return Result{
		Career: career,
		Label:  career.Label(),
		Status: StatusCanceled,
		Reason: ReasonCanceled,
		Err:    err,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
