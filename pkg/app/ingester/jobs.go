package ingester

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	apperrors "github.com/chainsafe/ledger-ingest/pkg/app/errors"
	"github.com/chainsafe/ledger-ingest/pkg/aptos"
	"github.com/chainsafe/ledger-ingest/pkg/config"
	"github.com/chainsafe/ledger-ingest/pkg/ingest"
	"github.com/chainsafe/ledger-ingest/pkg/sui"
)

// jobRunner is the part of ingest.Processor driven by the server
type jobRunner interface {
	Run(ctx context.Context) (*ingest.RunResult, error)
	Snapshot(ctx context.Context) (*ingest.RunResult, error)
}

// stores bundles the persistence collaborators of a processor
type stores interface {
	ingest.CheckpointStore
	ingest.RecordStore
	ingest.Leaser
}

type job struct {
	cfg    config.JobConfig
	runner jobRunner
	close  func()
}

func processorOptions(jc config.JobConfig) ingest.Options {
	return ingest.Options{
		Job:           jc.Name,
		Address:       jc.Address,
		Network:       jc.Network,
		PageSize:      jc.PageSize,
		Style:         ingest.Style(jc.PositionStyle),
		AdvancePolicy: ingest.AdvancePolicy(jc.AdvancePolicy),
		FetchTimeout:  jc.RequestTimeout,
		LeaseTTL:      jc.LeaseTTL,
	}
}

func buildJob(ctx context.Context, jc config.JobConfig, st stores, logger *zap.Logger) (*job, error) {
	logger = logger.With(zap.String("job", jc.Name), zap.String("chain", jc.Chain))
	httpClient := &http.Client{Timeout: jc.RequestTimeout}

	var (
		source    ingest.Source
		extractor ingest.Extractor
		closeFn   = func() {}
	)
	switch jc.Chain {
	case config.ChainAptos:
		url := jc.RPCURL
		if url == "" {
			url = aptos.NetworkURL(jc.Network)
		}
		client := aptos.NewClient(url, aptos.WithHTTPClient(httpClient), aptos.WithLogger(logger))
		source, extractor = aptos.NewSource(client), aptos.Extractor

	case config.ChainSui:
		url := jc.RPCURL
		if url == "" {
			url = sui.FullnodeURL(jc.Network)
		}
		client, err := sui.Dial(ctx, url, sui.WithHTTPClient(httpClient), sui.WithLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("job %s: %w", jc.Name, err)
		}
		source, extractor, closeFn = sui.NewSource(client), sui.Extractor, client.Close

	default:
		return nil, fmt.Errorf("job %s: unsupported chain %q", jc.Name, jc.Chain)
	}

	proc := ingest.NewProcessor(processorOptions(jc), source, extractor, st, st, logger, ingest.WithLeaser(st))
	return &job{cfg: jc, runner: proc, close: closeFn}, nil
}

func buildJobs(ctx context.Context, cfgs []config.JobConfig, st stores, logger *zap.Logger) ([]*job, error) {
	jobs := make([]*job, 0, len(cfgs))
	for _, jc := range cfgs {
		j, err := buildJob(ctx, jc, st, logger)
		if err != nil {
			closeJobs(jobs)
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}

func closeJobs(jobs []*job) {
	for _, j := range jobs {
		j.close()
	}
}

// runJobs runs every job once, in order. Fatal failures are collected and
// returned together; other failures are logged and the run still counts.
func runJobs(ctx context.Context, jobs []*job, latest bool, board *statusBoard, logger *zap.Logger) error {
	var fatal []error
	for _, j := range jobs {
		if ctx.Err() != nil {
			fatal = append(fatal, ctx.Err())
			break
		}

		var (
			res *ingest.RunResult
			err error
		)
		if latest {
			res, err = j.runner.Snapshot(ctx)
		} else {
			res, err = j.runner.Run(ctx)
		}
		board.record(j.cfg.Name, res, err)

		if err == nil {
			continue
		}
		if apperrors.IsFatal(err) {
			fatal = append(fatal, fmt.Errorf("job %s: %w", j.cfg.Name, err))
			continue
		}
		logger.Warn("Job finished with non-fatal error",
			zap.String("job", j.cfg.Name),
			zap.Stringer("kind", apperrors.KindOf(err)),
			zap.Error(err))
	}
	return errors.Join(fatal...)
}
