package waf

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// backgroundPool runs deferred analysis tasks on a bounded set of workers.
// Tasks are fire-and-forget: the request path never waits on them, and a
// panicking task must not take down anything but itself.
type backgroundPool struct {
	logger    zerolog.Logger
	tasks     chan backgroundTask
	timeout   time.Duration
	wg        sync.WaitGroup
	closeOnce sync.Once
}

type backgroundTask struct {
	txid string
	run  func(ctx context.Context)
}

func newBackgroundPool(logger zerolog.Logger, workers, queueSize int, timeout time.Duration) *backgroundPool {
	if workers <= 0 {
		workers = 4
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	p := &backgroundPool{
		logger:  logger,
		tasks:   make(chan backgroundTask, queueSize),
		timeout: timeout,
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

// submit enqueues a task without blocking. When the queue is full the task is
// dropped and the drop is logged; losing a deferred analysis only costs an
// incident report, never a response.
func (p *backgroundPool) submit(txid string, run func(ctx context.Context)) {
	select {
	case p.tasks <- backgroundTask{txid: txid, run: run}:
	default:
		p.logger.Warn().Str("txid", txid).Msg("background analysis queue full, dropping task")
	}
}

func (p *backgroundPool) worker() {
	defer p.wg.Done()
	for t := range p.tasks {
		p.runOne(t)
	}
}

func (p *backgroundPool) runOne(t backgroundTask) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error().Str("txid", t.txid).Interface("panic", r).Msg("background analysis panicked")
		}
	}()

	// Deliberately not derived from the inbound request's context: a
	// cancelled connection must not cancel incident reporting.
	ctx := context.Background()
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	t.run(ctx)
}

// close stops the workers after draining queued tasks.
func (p *backgroundPool) close() {
	p.closeOnce.Do(func() { close(p.tasks) })
	p.wg.Wait()
}
