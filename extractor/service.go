package extractor

import (
	"context"

	"supplier-pricing/adapters"
	"supplier-pricing/internal/types"
	"supplier-pricing/utils"
)

// Service owns the engine, session pool and collector of one process
type Service struct {
	pool      *Pool
	collector *Collector
	closers   []func()
}

// NewService wires a pool of MaxConcurrentSessions sessions from opener
func NewService(config *types.Config, registry *adapters.Registry, opener SessionOpener, sink types.ArtifactSink, logger types.Logger) *Service {
	engine := NewEngine(config, registry, sink, logger)
	pool := NewPool(config.MaxConcurrentSessions, opener, engine, logger)
	return &Service{
		pool:      pool,
		collector: NewCollector(pool, logger),
	}
}

// NewBrowserService wires a service backed by Chrome sessions
func NewBrowserService(config *types.Config, sink types.ArtifactSink, logger types.Logger) *Service {
	browser := utils.NewBrowserClient(config, logger)
	s := NewService(config, adapters.DefaultRegistry(), BrowserOpener(browser), sink, logger)
	s.closers = append(s.closers, browser.Close)
	return s
}

// BrowserOpener opens a fresh Chrome session for every job
func BrowserOpener(browser *utils.BrowserClient) SessionOpener {
	return OpenerFunc(func(ctx context.Context, supplier string) (types.PageDriver, error) {
		session, err := browser.Open(ctx)
		if err != nil {
			return nil, err
		}
		return session, nil
	})
}

// Extract prices configs and returns the batch report
func (s *Service) Extract(ctx context.Context, configs []types.ProductConfiguration) (*types.BatchReport, error) {
	return s.collector.Collect(ctx, configs)
}

// Pool exposes the session pool, mainly for its counters
func (s *Service) Pool() *Pool {
	return s.pool
}

// Close withdraws queued jobs, waits for running sessions and releases
// the browser.
func (s *Service) Close() {
	s.pool.Close()
	for _, c := range s.closers {
		c()
	}
}
