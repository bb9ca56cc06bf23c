// Package ingest implements the resumable ingestion loop: load checkpoint,
// fetch one page, store every item, persist the new position.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chainsafe/ledger-ingest/internal/metrics"
	apperrors "github.com/chainsafe/ledger-ingest/pkg/app/errors"
)

const (
	defaultPageSize     = 10
	defaultFetchTimeout = 30 * time.Second
	defaultLeaseTTL     = 5 * time.Minute
	releaseTimeout      = 5 * time.Second
)

// State is a step of a single run
type State string

const (
	StateIdle                 State = "idle"
	StateLoadingCheckpoint    State = "loading_checkpoint"
	StateFetching             State = "fetching"
	StateStoring              State = "extracting_storing"
	StatePersistingCheckpoint State = "persisting_checkpoint"
	StateDone                 State = "done"
	StateFailed               State = "failed"
)

// Options holds the per-job configuration of a Processor
type Options struct {
	Job           string
	Address       string
	Network       string
	PageSize      int
	Style         Style
	AdvancePolicy AdvancePolicy
	FetchTimeout  time.Duration
	LeaseTTL      time.Duration
}

// RunResult summarizes one run
type RunResult struct {
	RunID     string
	State     State
	From      Position
	To        Position
	Advanced  bool
	Fetched   int
	Inserted  int
	Skipped   int
	Failed    int
	Recovered bool
}

// Option configures optional Processor collaborators
type Option func(*Processor)

// WithLeaser makes every run hold a lease on the address
func WithLeaser(l Leaser) Option {
	return func(p *Processor) { p.leaser = l }
}

// WithClock overrides the time source used for FetchedAt
func WithClock(now func() time.Time) Option {
	return func(p *Processor) { p.now = now }
}

// Processor runs the ingestion loop for one monitored address
type Processor struct {
	opts        Options
	source      Source
	extractor   Extractor
	checkpoints CheckpointStore
	records     RecordStore
	leaser      Leaser
	logger      *zap.Logger
	now         func() time.Time
}

// NewProcessor creates a new ingestion processor
func NewProcessor(
	opts Options,
	source Source,
	extractor Extractor,
	checkpoints CheckpointStore,
	records RecordStore,
	logger *zap.Logger,
	options ...Option,
) *Processor {
	if opts.PageSize <= 0 {
		opts.PageSize = defaultPageSize
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = defaultFetchTimeout
	}
	if opts.LeaseTTL <= 0 {
		opts.LeaseTTL = defaultLeaseTTL
	}
	if opts.AdvancePolicy == "" {
		opts.AdvancePolicy = AdvanceReturned
	}
	if opts.Style == "" {
		opts.Style = StyleOffset
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Processor{
		opts:        opts,
		source:      source,
		extractor:   extractor,
		checkpoints: checkpoints,
		records:     records,
		logger:      logger,
		now:         time.Now,
	}
	for _, o := range options {
		if o != nil {
			o(p)
		}
	}
	return p
}

// Job returns the configured job name
func (p *Processor) Job() string {
	return p.opts.Job
}

// Run performs exactly one page fetch and at most one checkpoint update.
// A source failure leaves the checkpoint untouched.
func (p *Processor) Run(ctx context.Context) (*RunResult, error) {
	res := &RunResult{RunID: uuid.NewString(), State: StateIdle}
	logger := p.logger.With(
		zap.String("job", p.opts.Job),
		zap.String("address", p.opts.Address),
		zap.String("run_id", res.RunID),
	)
	started := time.Now()
	defer func() {
		metrics.RunDuration.WithLabelValues(p.opts.Job).Observe(time.Since(started).Seconds())
		metrics.RunsTotal.WithLabelValues(p.opts.Job, string(res.State)).Inc()
	}()

	release, err := p.acquireLease(ctx, res.RunID, logger)
	if err != nil {
		return p.fail(res, logger, err)
	}
	defer release()

	res.State = StateLoadingCheckpoint
	from, err := p.checkpoints.Load(ctx, p.opts.Address, p.opts.Style)
	if err != nil {
		return p.fail(res, logger, fmt.Errorf("load checkpoint: %w", err))
	}
	if from.Recovered {
		res.Recovered = true
		metrics.ErrorsTotal.WithLabelValues(p.opts.Job, apperrors.KindCorruptCheckpoint.String()).Inc()
		logger.Warn("Stored checkpoint unreadable, starting from the beginning")
	}
	res.From, res.To = from, from
	logger.Info("Loaded checkpoint", zap.Stringer("position", from))

	res.State = StateFetching
	page, err := p.fetch(ctx, from)
	if err != nil {
		return p.fail(res, logger, err)
	}
	res.Fetched = len(page.Items)
	metrics.ItemsFetched.WithLabelValues(p.opts.Job).Add(float64(res.Fetched))
	logger.Info("Fetched page",
		zap.Int("items", res.Fetched),
		zap.Bool("has_next_page", page.HasNextPage))

	res.State = StateStoring
	prefix := p.storeAll(ctx, page, res, logger)

	res.State = StatePersistingCheckpoint
	to, advance := p.nextPosition(from, page, prefix)
	if res.Failed > 0 && p.opts.Style == StyleOffset && p.opts.AdvancePolicy == AdvanceReturned {
		logger.Warn("Advancing offset past items that failed to store",
			zap.Int("failed", res.Failed))
	}
	if advance {
		if err := p.checkpoints.Save(ctx, p.opts.Address, to); err != nil {
			res.State = StateFailed
			metrics.ErrorsTotal.WithLabelValues(p.opts.Job, apperrors.KindStorageFailure.String()).Inc()
			logger.Error("Failed to persist checkpoint", zap.Stringer("position", to), zap.Error(err))
			return res, apperrors.StorageFailureError(err, "save checkpoint")
		}
		res.To = to
		res.Advanced = !to.Equal(from)
		if res.Advanced {
			metrics.CheckpointAdvances.WithLabelValues(p.opts.Job).Inc()
		}
		logger.Info("Updated checkpoint", zap.Stringer("position", to))
	} else {
		logger.Info("Checkpoint unchanged", zap.Stringer("position", from))
	}
	if p.opts.Style == StyleOffset {
		metrics.CheckpointOffset.WithLabelValues(p.opts.Job).Set(float64(res.To.Offset))
	}

	res.State = StateDone
	metrics.LastSuccess.WithLabelValues(p.opts.Job).SetToCurrentTime()
	logger.Info("Run completed",
		zap.Int("fetched", res.Fetched),
		zap.Int("inserted", res.Inserted),
		zap.Int("skipped", res.Skipped),
		zap.Int("failed", res.Failed))
	return res, nil
}

// Snapshot fetches the first page from the start position and stores it.
// The checkpoint is neither read nor written.
func (p *Processor) Snapshot(ctx context.Context) (*RunResult, error) {
	res := &RunResult{RunID: uuid.NewString(), State: StateFetching}
	logger := p.logger.With(
		zap.String("job", p.opts.Job),
		zap.String("address", p.opts.Address),
		zap.String("run_id", res.RunID),
		zap.Bool("snapshot", true),
	)
	start := StartPosition(p.opts.Style)
	res.From, res.To = start, start

	page, err := p.fetch(ctx, start)
	if err != nil {
		return p.fail(res, logger, err)
	}
	res.Fetched = len(page.Items)

	res.State = StateStoring
	p.storeAll(ctx, page, res, logger)

	res.State = StateDone
	logger.Info("Snapshot completed",
		zap.Int("fetched", res.Fetched),
		zap.Int("inserted", res.Inserted),
		zap.Int("skipped", res.Skipped),
		zap.Int("failed", res.Failed))
	return res, nil
}

func (p *Processor) acquireLease(ctx context.Context, owner string, logger *zap.Logger) (func(), error) {
	if p.leaser == nil {
		return func() {}, nil
	}
	if err := p.leaser.Acquire(ctx, p.opts.Address, owner, p.opts.LeaseTTL); err != nil {
		return nil, err
	}
	return func() {
		// The run context may already be canceled; release on a fresh one.
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer cancel()
		if err := p.leaser.Release(rctx, p.opts.Address, owner); err != nil {
			logger.Warn("Failed to release lease", zap.Error(err))
		}
	}, nil
}

func (p *Processor) fetch(ctx context.Context, pos Position) (*Page, error) {
	fctx, cancel := context.WithTimeout(ctx, p.opts.FetchTimeout)
	defer cancel()

	page, err := p.source.FetchPage(fctx, p.opts.Address, pos, p.opts.PageSize)
	if err != nil {
		if !apperrors.Is(err, apperrors.KindSourceUnavailable) {
			err = apperrors.SourceUnavailableError(err, "fetch page")
		}
		return nil, err
	}
	if page == nil {
		page = &Page{}
	}
	return page, nil
}

// storeAll extracts and inserts every item in source order and returns the
// length of the leading run of consumed items.
func (p *Processor) storeAll(ctx context.Context, page *Page, res *RunResult, logger *zap.Logger) int {
	prefix := 0
	broken := false
	for i, raw := range page.Items {
		outcome, err := p.storeItem(ctx, raw, logger)
		switch {
		case err != nil:
			res.Failed++
			broken = true
			kind := apperrors.KindOf(err)
			metrics.RecordsTotal.WithLabelValues(p.opts.Job, "failed").Inc()
			metrics.ErrorsTotal.WithLabelValues(p.opts.Job, kind.String()).Inc()
			logger.Error("Failed to store item",
				zap.Int("index", i),
				zap.Stringer("kind", kind),
				zap.Error(err))
			continue
		case outcome == AlreadyExists:
			res.Skipped++
			metrics.RecordsTotal.WithLabelValues(p.opts.Job, outcome.String()).Inc()
		default:
			res.Inserted++
			metrics.RecordsTotal.WithLabelValues(p.opts.Job, outcome.String()).Inc()
		}
		if !broken {
			prefix++
		}
	}
	return prefix
}

func (p *Processor) storeItem(ctx context.Context, raw []byte, logger *zap.Logger) (InsertOutcome, error) {
	rec, err := p.extractor.Extract(raw)
	if err != nil {
		if !apperrors.Is(err, apperrors.KindInvalidItem) {
			err = apperrors.InvalidItemError(err, "extract item")
		}
		return Inserted, err
	}
	rec.Network = p.opts.Network
	rec.FetchedAt = p.now().UTC()

	outcome, err := p.records.Insert(ctx, rec)
	if err != nil {
		if !apperrors.Is(err, apperrors.KindStorageFailure) {
			err = apperrors.StorageFailureError(err, "insert "+rec.ID)
		}
		return Inserted, err
	}
	if outcome == AlreadyExists {
		logger.Debug("Record already stored, skipping", zap.String("id", rec.ID))
	} else {
		logger.Info("Stored record",
			zap.String("id", rec.ID),
			zap.Stringp("sender", rec.Sender),
			zap.Stringp("amount", rec.Amount))
	}
	return outcome, nil
}

// nextPosition computes the position to persist and whether to persist it.
func (p *Processor) nextPosition(from Position, page *Page, prefix int) (Position, bool) {
	if p.opts.Style == StyleCursor {
		if page.HasNextPage && len(page.NextCursor) > 0 {
			return Position{Style: StyleCursor, Cursor: page.NextCursor}, true
		}
		return from, false
	}

	consumed := len(page.Items)
	if p.opts.AdvancePolicy == AdvanceStoredPrefix {
		consumed = prefix
	}
	to := Position{Style: StyleOffset, Offset: from.Offset + int64(consumed)}
	// Always written for offset jobs so a first run creates the row.
	return to, true
}

func (p *Processor) fail(res *RunResult, logger *zap.Logger, err error) (*RunResult, error) {
	failedIn := res.State
	res.State = StateFailed
	kind := apperrors.KindOf(err)
	metrics.ErrorsTotal.WithLabelValues(p.opts.Job, kind.String()).Inc()
	logger.Error("Run failed",
		zap.String("state", string(failedIn)),
		zap.Stringer("kind", kind),
		zap.Error(err))
	return res, err
}
