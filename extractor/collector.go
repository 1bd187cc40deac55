package extractor

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"supplier-pricing/internal/types"
)

// FingerprintFunc computes the identity of a configuration
type FingerprintFunc func(types.ProductConfiguration) types.Fingerprint

// CollectorOption configures a Collector
type CollectorOption func(*Collector)

// WithFingerprint replaces the content hash, mainly for tests
func WithFingerprint(fn FingerprintFunc) CollectorOption {
	return func(c *Collector) { c.fingerprint = fn }
}

// Collector submits a batch to the pool and gathers exactly one result per
// distinct configuration. Individual failures never abort the batch; a
// fingerprint collision does, before anything is submitted.
type Collector struct {
	pool        *Pool
	logger      types.Logger
	fingerprint FingerprintFunc
}

// NewCollector creates a collector feeding pool
func NewCollector(pool *Pool, logger types.Logger, opts ...CollectorOption) *Collector {
	c := &Collector{
		pool:        pool,
		logger:      logger,
		fingerprint: types.ProductConfiguration.Fingerprint,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Collect runs configs and returns the batch report. It returns an
// IntegrityError, and no report, if two different configurations share a
// fingerprint. Identical configurations are deduplicated.
func (c *Collector) Collect(ctx context.Context, configs []types.ProductConfiguration) (*types.BatchReport, error) {
	report := &types.BatchReport{ID: uuid.NewString(), StartedAt: time.Now()}

	registry := make(map[types.Fingerprint]types.ProductConfiguration, len(configs))
	fps := make([]types.Fingerprint, 0, len(configs))
	unique := make([]types.ProductConfiguration, 0, len(configs))
	for _, cfg := range configs {
		fp := c.fingerprint(cfg)
		if prior, ok := registry[fp]; ok {
			if !prior.SameContent(cfg) {
				return nil, &types.IntegrityError{Fingerprint: fp, First: prior, Second: cfg}
			}
			c.logger.Debugf("skipping duplicate configuration %s", fp.Short())
			continue
		}
		registry[fp] = cfg
		fps = append(fps, fp)
		unique = append(unique, cfg)
	}

	c.logger.Infof("Batch %s: %d configurations (%d duplicates skipped)", report.ID, len(unique), len(configs)-len(unique))

	// an authentication failure only skips the rest of this batch
	defer c.pool.EndBatch(report.ID)

	tickets := make([]*Ticket, len(unique))
	for i, cfg := range unique {
		t, err := c.pool.SubmitBatch(ctx, report.ID, cfg)
		if err != nil {
			for _, prev := range tickets[:i] {
				prev.Cancel()
			}
			return nil, err
		}
		tickets[i] = t
	}

	results := make([]types.ExtractionResult, len(unique))
	g := new(errgroup.Group)
	for i, t := range tickets {
		g.Go(func() error {
			select {
			case <-t.Done():
			case <-ctx.Done():
				// pending jobs are withdrawn, running ones stop at their next step
				t.Cancel()
				<-t.Done()
			}
			res, err := t.Wait(context.Background())
			if err != nil {
				res = types.FailedResult(unique[i], types.StepAuthenticate, err)
			}
			res.Fingerprint = fps[i]
			results[i] = res
			return err
		})
	}
	if err := g.Wait(); err != nil {
		c.logger.Warnf("Batch %s interrupted: %v", report.ID, err)
	}

	report.Results = results
	report.FinishedAt = time.Now()
	report.Tally()
	c.logger.Infof("Batch %s finished: %d completed, %d failed", report.ID, report.Completed, report.Failed)
	return report, nil
}
