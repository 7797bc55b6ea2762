// HomeScout - Property Scoring and Recommendation Engine
// Copyright 2026 ZeepSeek
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zeepseek/homescout

package scoring

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zeepseek/homescout/internal/config"
	"github.com/zeepseek/homescout/internal/logging"
	"github.com/zeepseek/homescout/internal/metrics"
	"github.com/zeepseek/homescout/internal/models"
	"github.com/zeepseek/homescout/internal/store"
)

// Mode selects which listings a pipeline run covers and how.
type Mode string

// Pipeline run modes.
const (
	// ModeNoBatch loads the whole listing population in one read and
	// scores it sequentially on one session. Diagnostic use.
	ModeNoBatch Mode = "no_batch"
	// ModeSingle scores every listing sequentially over paginated
	// reads, one session, no pooling.
	ModeSingle Mode = "single"
	// ModeBatch scores every listing with a worker pool over sub-batches.
	ModeBatch Mode = "batch"
	// ModeIncomplete re-scores only listings whose score row is missing
	// or has a zero category count.
	ModeIncomplete Mode = "incomplete"
)

// ErrUnknownMode is returned for a mode string outside the known set.
var ErrUnknownMode = errors.New("scoring: unknown batch mode")

// ParseMode validates a mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeNoBatch, ModeSingle, ModeBatch, ModeIncomplete:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// Session is the per-worker write handle the pipeline scores through.
type Session interface {
	UpsertScore(ctx context.Context, score models.PropertyScore) error
	Close() error
}

// Store is the listing source and score sink for the pipeline.
type Store interface {
	CountListings(ctx context.Context) (int, error)
	Listing(ctx context.Context, listingID int64) (models.Listing, error)
	ListingPage(ctx context.Context, afterID int64, limit int) ([]models.Listing, error)
	IncompleteListings(ctx context.Context, afterID int64, limit int) ([]models.Listing, error)
	Session(ctx context.Context) (Session, error)
}

// Options tunes one pipeline run. Zero values fall back to the configured
// defaults; a Limit of 0 means no row cap.
type Options struct {
	BatchSize int
	Workers   int
	Limit     int
}

// Result summarizes one pipeline run.
type Result struct {
	Mode      Mode          `json:"mode"`
	Total     int           `json:"total"`
	Processed int           `json:"processed"`
	Failed    int           `json:"failed"`
	Elapsed   time.Duration `json:"elapsed"`
}

// Pipeline runs batch score recalculation over the listing population.
//
// A run never aborts on a single listing's failure: each listing is scored
// and written independently, transient write conflicts are retried with a
// fixed backoff, and listings that still fail are counted and logged. Only
// context cancellation and page-level read errors stop a run early.
type Pipeline struct {
	db       Store
	computer *Computer
	cfg      config.ScoringConfig
}

// NewPipeline creates a Pipeline.
func NewPipeline(db Store, computer *Computer, cfg config.ScoringConfig) *Pipeline {
	return &Pipeline{db: db, computer: computer, cfg: cfg}
}

// Run executes one recalculation in the given mode. Re-running any mode is
// idempotent: scores converge to the same values for unchanged POI data.
func (p *Pipeline) Run(ctx context.Context, mode Mode, opts Options) (Result, error) {
	start := time.Now()
	res := Result{Mode: mode}
	opts = p.withDefaults(opts)

	var err error
	switch mode {
	case ModeNoBatch:
		// Page size 0 fetches the whole population in one read.
		err = p.runSequential(ctx, 0, opts.Limit, &res)
	case ModeSingle:
		err = p.runSequential(ctx, opts.BatchSize, opts.Limit, &res)
	case ModeBatch:
		err = p.runPooled(ctx, p.db.ListingPage, opts, &res)
	case ModeIncomplete:
		err = p.runPooled(ctx, p.db.IncompleteListings, opts, &res)
	default:
		return res, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}

	res.Elapsed = time.Since(start)
	metrics.BatchDuration.WithLabelValues(string(mode)).Observe(res.Elapsed.Seconds())

	logging.Info().
		Str("mode", string(mode)).
		Int("total", res.Total).
		Int("processed", res.Processed).
		Int("failed", res.Failed).
		Dur("elapsed", res.Elapsed).
		Msg("score recalculation finished")
	return res, err
}

// ScoreOne recomputes and persists a single listing's score outside any
// batch run.
func (p *Pipeline) ScoreOne(ctx context.Context, listingID int64) error {
	listing, err := p.db.Listing(ctx, listingID)
	if err != nil {
		return fmt.Errorf("failed to load listing %d: %w", listingID, err)
	}

	sess, err := p.db.Session(ctx)
	if err != nil {
		return err
	}
	defer closeSession(sess)

	return p.scoreOne(ctx, sess, listing)
}

// withDefaults fills unset run options from the configuration.
func (p *Pipeline) withDefaults(opts Options) Options {
	if opts.BatchSize <= 0 {
		opts.BatchSize = p.cfg.BatchSize
	}
	if opts.Workers <= 0 {
		opts.Workers = p.cfg.Workers
	}
	if opts.Limit < 0 {
		opts.Limit = 0
	}
	return opts
}

// capTotal applies the row cap to the population count.
func capTotal(total, limit int) int {
	if limit > 0 && limit < total {
		return limit
	}
	return total
}

// runSequential walks listing pages on a single session without any
// pooling. pageSize 0 reads the whole population in one page; limit caps
// the number of rows scored.
func (p *Pipeline) runSequential(ctx context.Context, pageSize, limit int, res *Result) error {
	total, err := p.db.CountListings(ctx)
	if err != nil {
		return err
	}
	total = capTotal(total, limit)
	res.Total = total
	if total == 0 {
		return nil
	}
	if pageSize <= 0 {
		pageSize = total
	}

	sess, err := p.db.Session(ctx)
	if err != nil {
		return err
	}
	defer closeSession(sess)

	var afterID int64
	start := time.Now()
	for remaining := total; remaining > 0; {
		if err := ctx.Err(); err != nil {
			return err
		}
		page, err := p.db.ListingPage(ctx, afterID, min(pageSize, remaining))
		if err != nil {
			return err
		}
		if len(page) == 0 {
			return nil
		}
		for _, listing := range page {
			if err := p.scoreOne(ctx, sess, listing); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				res.Failed++
				continue
			}
			res.Processed++
		}
		remaining -= len(page)
		afterID = page[len(page)-1].ID
		p.logProgress(res, start)
	}
	return nil
}

// pageFunc is a keyset page reader: listings after afterID, at most limit.
type pageFunc func(ctx context.Context, afterID int64, limit int) ([]models.Listing, error)

// runPooled walks pages from nextPage and scores each page's sub-batches on
// an errgroup worker pool. Every sub-batch checks out its own session, so
// workers never share a connection. Cancellation is honored between pages
// and between listings.
func (p *Pipeline) runPooled(ctx context.Context, nextPage pageFunc, opts Options, res *Result) error {
	total, err := p.db.CountListings(ctx)
	if err != nil {
		return err
	}
	total = capTotal(total, opts.Limit)
	res.Total = total

	var processed, failed atomic.Int64
	var afterID int64
	start := time.Now()

	for remaining := total; remaining > 0; {
		if err := ctx.Err(); err != nil {
			break
		}
		page, err := nextPage(ctx, afterID, min(opts.BatchSize, remaining))
		if err != nil {
			res.Processed = int(processed.Load())
			res.Failed = int(failed.Load())
			return err
		}
		if len(page) == 0 {
			break
		}
		remaining -= len(page)
		afterID = page[len(page)-1].ID

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(opts.Workers)

		for _, sub := range subBatches(page, p.cfg.SubBatchSize) {
			g.Go(func() error {
				sess, err := p.db.Session(gctx)
				if err != nil {
					return err
				}
				defer closeSession(sess)

				for _, listing := range sub {
					if err := gctx.Err(); err != nil {
						return err
					}
					if err := p.scoreOne(gctx, sess, listing); err != nil {
						failed.Add(1)
						continue
					}
					processed.Add(1)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			res.Processed = int(processed.Load())
			res.Failed = int(failed.Load())
			return err
		}

		res.Processed = int(processed.Load())
		res.Failed = int(failed.Load())
		p.logProgress(res, start)
	}

	res.Processed = int(processed.Load())
	res.Failed = int(failed.Load())
	return ctx.Err()
}

// scoreOne computes and persists one listing's score, retrying transient
// write conflicts with a fixed backoff. Non-transient failures are logged
// and returned without retry.
func (p *Pipeline) scoreOne(ctx context.Context, sess Session, listing models.Listing) error {
	score, err := p.computer.Compute(ctx, listing)
	if err != nil {
		logging.Error().Err(err).Int64("listing_id", listing.ID).Msg("score computation failed")
		metrics.BatchListingsFailed.Inc()
		return err
	}

	for attempt := 0; ; attempt++ {
		err = sess.UpsertScore(ctx, score)
		if err == nil {
			metrics.BatchListingsProcessed.Inc()
			return nil
		}
		if attempt >= p.cfg.RetryAttempts || !store.IsTransient(err) {
			logging.Error().Err(err).
				Int64("listing_id", listing.ID).
				Int("attempts", attempt+1).
				Msg("score write failed")
			metrics.BatchListingsFailed.Inc()
			return err
		}

		metrics.BatchWriteRetries.Inc()
		logging.Warn().Err(err).
			Int64("listing_id", listing.ID).
			Int("attempt", attempt+1).
			Msg("transient score write conflict, retrying")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.cfg.RetryDelay):
		}
	}
}

func (p *Pipeline) logProgress(res *Result, start time.Time) {
	logging.Info().
		Int("processed", res.Processed).
		Int("failed", res.Failed).
		Int("total", res.Total).
		Dur("elapsed", time.Since(start)).
		Msg("score recalculation progress")
}

// subBatches splits a page into chunks of at most size listings.
func subBatches(page []models.Listing, size int) [][]models.Listing {
	if size <= 0 {
		return [][]models.Listing{page}
	}
	var out [][]models.Listing
	for start := 0; start < len(page); start += size {
		end := min(start+size, len(page))
		out = append(out, page[start:end])
	}
	return out
}

func closeSession(sess Session) {
	if err := sess.Close(); err != nil {
		logging.Warn().Err(err).Msg("failed to close scoring session")
	}
}
