package sync

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/fossilsync/internal/model"
	"github.com/nhle/fossilsync/internal/source"
	"github.com/nhle/fossilsync/internal/store"
)

// defaultFetchTimeout bounds the network work of a single target.
const defaultFetchTimeout = 2 * time.Minute

// TargetResult is the outcome of synchronizing one target.
type TargetResult struct {
	Target     string
	Service    string
	Issues     int
	Duplicates int
	Sync       store.SyncResult
	Duration   time.Duration
	Err        error
}

// Report collects the results of one pull, in target order.
type Report struct {
	Results []TargetResult
}

// Failed returns the results that ended in an error.
func (r Report) Failed() []TargetResult {
	var failed []TargetResult
	for _, res := range r.Results {
		if res.Err != nil {
			failed = append(failed, res)
		}
	}
	return failed
}

// Engine runs synchronization passes from configured targets into a store.
type Engine struct {
	store        store.Store
	deps         source.Deps
	logger       *zap.Logger
	fetchTimeout time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithFetchTimeout overrides the per-target timeout.
func WithFetchTimeout(d time.Duration) Option {
	return func(e *Engine) { e.fetchTimeout = d }
}

// New creates an Engine writing into s. deps is handed to every service.
func New(s store.Store, deps source.Deps, opts ...Option) *Engine {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	e := &Engine{
		store:        s,
		deps:         deps,
		logger:       deps.Logger.Named("sync"),
		fetchTimeout: defaultFetchTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Pull synchronizes every target concurrently. A failing target leaves its
// stored tasks untouched and does not stop the others; the returned error
// joins all target failures.
func (e *Engine) Pull(ctx context.Context, targets []model.TargetConfig) (Report, error) {
	report := Report{Results: make([]TargetResult, len(targets))}

	var wg gosync.WaitGroup
	for i, cfg := range targets {
		wg.Add(1)
		go func(i int, cfg model.TargetConfig) {
			defer wg.Done()
			report.Results[i] = e.pullTarget(ctx, cfg)
		}(i, cfg)
	}
	wg.Wait()

	var errs []error
	for _, res := range report.Results {
		if res.Err != nil {
			errs = append(errs, fmt.Errorf("target %s: %w", res.Target, res.Err))
		}
	}
	return report, errors.Join(errs...)
}

// Watch pulls immediately and then every interval until ctx is done,
// handing each report to onReport.
func (e *Engine) Watch(
	ctx context.Context,
	targets []model.TargetConfig,
	interval time.Duration,
	onReport func(Report, error),
) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		onReport(e.Pull(ctx, targets))

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (e *Engine) pullTarget(ctx context.Context, cfg model.TargetConfig) (res TargetResult) {
	start := time.Now()
	res = TargetResult{Target: cfg.Name, Service: cfg.Service}
	logger := e.logger.With(zap.String("target", cfg.Name))

	defer func() {
		res.Duration = time.Since(start)
		if res.Err != nil {
			logger.Warn("target failed", zap.Error(res.Err))
			return
		}
		logger.Info("target synchronized",
			zap.Int("issues", res.Issues),
			zap.Int("added", res.Sync.Added),
			zap.Int("updated", res.Sync.Updated),
			zap.Int("completed", res.Sync.Completed),
			zap.Duration("took", res.Duration),
		)
	}()

	svc, err := source.New(ctx, cfg, e.deps)
	if err != nil {
		res.Err = err
		return res
	}

	// The timeout starts after construction, which may wait on a prompt.
	fetchCtx, cancel := context.WithTimeout(ctx, e.fetchTimeout)
	defer cancel()

	issues, err := svc.Issues(fetchCtx)
	if err != nil {
		res.Err = err
		return res
	}

	tasks := make([]model.Task, 0, len(issues))
	seen := make(map[string]bool, len(issues))
	for _, issue := range issues {
		if seen[issue.UniqueKey] {
			res.Duplicates++
			logger.Warn("duplicate issue ignored", zap.String("key", issue.UniqueKey))
			continue
		}
		seen[issue.UniqueKey] = true
		tasks = append(tasks, model.TaskFromIssue(cfg.Name, issue))
	}
	res.Issues = len(tasks)

	res.Sync, err = e.store.SyncTarget(ctx, cfg.Name, tasks)
	if err != nil {
		res.Err = fmt.Errorf("storing tasks: %w", err)
	}
	return res
}
