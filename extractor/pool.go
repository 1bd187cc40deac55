package extractor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"supplier-pricing/internal/types"
)

var (
	// ErrPoolClosed is returned when submitting to a closed pool
	ErrPoolClosed = errors.New("session pool closed")
	// ErrJobCancelled is returned by Wait for jobs cancelled before they started
	ErrJobCancelled = fmt.Errorf("job cancelled before start: %w", context.Canceled)
)

// SessionOpener opens one browser session for a supplier
type SessionOpener interface {
	Open(ctx context.Context, supplier string) (types.PageDriver, error)
}

// OpenerFunc adapts a function to SessionOpener
type OpenerFunc func(ctx context.Context, supplier string) (types.PageDriver, error)

// Open calls f
func (f OpenerFunc) Open(ctx context.Context, supplier string) (types.PageDriver, error) {
	return f(ctx, supplier)
}

const (
	ticketPending int32 = iota
	ticketStarted
	ticketCancelled
)

// Ticket tracks one submitted configuration
type Ticket struct {
	ID     string
	Batch  string
	Config types.ProductConfiguration

	ctx    context.Context
	cancel context.CancelFunc
	state  atomic.Int32
	done   chan struct{}
	result types.ExtractionResult
	err    error
}

// Cancel withdraws a job that has not started, returning true. A job already
// running is asked to stop at its next step boundary and false is returned.
func (t *Ticket) Cancel() bool {
	if t.state.CompareAndSwap(ticketPending, ticketCancelled) {
		t.cancel()
		t.err = ErrJobCancelled
		close(t.done)
		return true
	}
	t.cancel()
	return false
}

// Done is closed once the ticket has a result or was cancelled
func (t *Ticket) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the job finishes or ctx ends
func (t *Ticket) Wait(ctx context.Context) (types.ExtractionResult, error) {
	select {
	case <-t.done:
		return t.result, t.err
	case <-ctx.Done():
		return types.ExtractionResult{}, ctx.Err()
	}
}

func (t *Ticket) complete(result types.ExtractionResult) {
	t.result = result
	close(t.done)
	t.cancel()
}

// Pool runs configurations with at most Size sessions open at once.
// Jobs are admitted strictly in submission order by a single dispatcher.
type Pool struct {
	size   int64
	sem    *semaphore.Weighted
	opener SessionOpener
	runner Runner
	logger types.Logger

	ctx    context.Context
	stop   context.CancelFunc
	wg     sync.WaitGroup
	notify chan struct{}

	mu      sync.Mutex
	queue   []*Ticket
	closed  bool
	blocked map[blockKey]string

	open atomic.Int64
	peak atomic.Int64
}

// NewPool creates a pool and starts its dispatcher
func NewPool(size int, opener SessionOpener, runner Runner, logger types.Logger) *Pool {
	if size < 1 {
		size = 1
	}
	ctx, stop := context.WithCancel(context.Background())
	p := &Pool{
		size:    int64(size),
		sem:     semaphore.NewWeighted(int64(size)),
		opener:  opener,
		runner:  runner,
		logger:  logger,
		ctx:     ctx,
		stop:    stop,
		notify:  make(chan struct{}, 1),
		blocked: make(map[blockKey]string),
	}
	p.wg.Add(1)
	go p.dispatch()
	return p
}

// Size returns the maximum number of concurrent sessions
func (p *Pool) Size() int {
	return int(p.size)
}

// Open returns the number of sessions currently open
func (p *Pool) Open() int {
	return int(p.open.Load())
}

// Peak returns the highest number of sessions open at once
func (p *Pool) Peak() int {
	return int(p.peak.Load())
}

// Submit queues cfg outside any batch. ctx governs the job: cancelling it
// before admission withdraws the job, cancelling it later stops the run
// between steps.
func (p *Pool) Submit(ctx context.Context, cfg types.ProductConfiguration) (*Ticket, error) {
	return p.SubmitBatch(ctx, "", cfg)
}

// SubmitBatch queues cfg as part of batch. A refused login skips the
// supplier's remaining jobs of the same batch only.
func (p *Pool) SubmitBatch(ctx context.Context, batch string, cfg types.ProductConfiguration) (*Ticket, error) {
	jobCtx, cancel := context.WithCancel(ctx)
	t := &Ticket{
		ID:     uuid.NewString(),
		Batch:  batch,
		Config: cfg,
		ctx:    jobCtx,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		cancel()
		return nil, ErrPoolClosed
	}
	p.queue = append(p.queue, t)
	p.mu.Unlock()

	select {
	case p.notify <- struct{}{}:
	default:
	}
	return t, nil
}

// next pops the oldest queued ticket, blocking until one arrives or the pool stops
func (p *Pool) next() *Ticket {
	for {
		p.mu.Lock()
		if len(p.queue) > 0 {
			t := p.queue[0]
			p.queue[0] = nil
			p.queue = p.queue[1:]
			p.mu.Unlock()
			return t
		}
		p.mu.Unlock()

		select {
		case <-p.notify:
		case <-p.ctx.Done():
			return nil
		}
	}
}

func (p *Pool) dispatch() {
	defer p.wg.Done()
	for {
		t := p.next()
		if t == nil {
			return
		}
		if t.state.Load() == ticketCancelled {
			continue
		}
		if err := p.sem.Acquire(p.ctx, 1); err != nil {
			t.Cancel()
			continue
		}
		if t.ctx.Err() != nil {
			t.Cancel()
			p.sem.Release(1)
			continue
		}
		if !t.state.CompareAndSwap(ticketPending, ticketStarted) {
			p.sem.Release(1)
			continue
		}
		p.wg.Add(1)
		go p.execute(t)
	}
}

func (p *Pool) execute(t *Ticket) {
	defer p.wg.Done()
	defer p.sem.Release(1)

	supplier := strings.ToLower(t.Config.Supplier)
	key := blockKey{batch: t.Batch, supplier: supplier}
	if reason, blocked := p.blockedReason(key); blocked {
		t.complete(types.FailedResult(t.Config, types.StepAuthenticate, &types.AuthenticationError{
			Supplier: supplier,
			Reason:   "skipped after earlier authentication failure: " + reason,
		}))
		return
	}

	n := p.open.Add(1)
	defer p.open.Add(-1)
	for {
		peak := p.peak.Load()
		if n <= peak || p.peak.CompareAndSwap(peak, n) {
			break
		}
	}

	sessionID := uuid.NewString()
	driver, err := p.opener.Open(t.ctx, supplier)
	if err != nil {
		p.logger.Errorf("[%s] failed to open session: %v", supplier, err)
		res := types.FailedResult(t.Config, types.StepAuthenticate, fmt.Errorf("%w: %v", types.ErrSessionClosed, err))
		res.FailureReason = "failed to open session: " + err.Error()
		t.complete(res)
		return
	}
	defer func() {
		if err := driver.Close(); err != nil {
			p.logger.Warnf("[%s] failed to close session %s: %v", supplier, sessionID, err)
		}
	}()

	p.logger.Debugf("[%s] session %s running %s", supplier, sessionID, t.Config.Fingerprint().Short())
	result := p.runner.Run(t.ctx, driver, t.Config)
	result.SessionID = sessionID

	if result.ErrorType == types.ErrorTypeAuthentication {
		p.block(key, result.FailureReason)
	}
	t.complete(result)
}

// blockKey scopes a refused login to one batch
type blockKey struct {
	batch    string
	supplier string
}

// block stops further sessions for a supplier whose login was refused
func (p *Pool) block(key blockKey, reason string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.blocked[key]; !ok {
		p.logger.Errorf("[%s] authentication failed, remaining jobs for this supplier will be skipped", key.supplier)
		p.blocked[key] = reason
	}
}

func (p *Pool) blockedReason(key blockKey) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	reason, ok := p.blocked[key]
	return reason, ok
}

// EndBatch forgets the login failures recorded for batch, so later jobs
// try the supplier again.
func (p *Pool) EndBatch(batch string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for key := range p.blocked {
		if key.batch == batch {
			delete(p.blocked, key)
		}
	}
}

// Close stops admitting jobs, withdraws queued ones and waits for running
// sessions to finish.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	pending := p.queue
	p.queue = nil
	p.mu.Unlock()

	for _, t := range pending {
		t.Cancel()
	}
	p.stop()
	p.wg.Wait()
}
