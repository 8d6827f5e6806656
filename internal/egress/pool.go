package egress

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/jittakal/mqttpubstore/internal/buffer"
	"github.com/jittakal/mqttpubstore/pkg/publication"
	"github.com/jittakal/mqttpubstore/pkg/sink"
)

// Pool runs egress workers against one shared buffer.
type Pool struct {
	workers []*Worker
	logger  *slog.Logger
}

// NewPool creates size workers numbered from 0. Each gets a copy of cfg with
// its own ID.
func NewPool(
	size int,
	cfg WorkerConfig,
	buf *buffer.PublicationBuffer[publication.Publication],
	processor Processor,
	snk sink.Sink,
	dlq sink.DeadLetter,
	logger *slog.Logger,
	metrics MetricsCollector,
) *Pool {
	size = max(size, 1)

	workers := make([]*Worker, size)
	for i := range workers {
		workerCfg := cfg
		workerCfg.ID = i
		workers[i] = NewWorker(workerCfg, buf, processor, snk, dlq, logger, metrics)
	}

	return &Pool{workers: workers, logger: logger}
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return len(p.workers)
}

// Run starts every worker and waits for all of them to stop. The first worker
// error stops the others and is returned.
func (p *Pool) Run(ctx context.Context) error {
	p.logger.Info("starting egress pool", "workers", len(p.workers))

	g, ctx := errgroup.WithContext(ctx)
	for _, w := range p.workers {
		g.Go(func() error {
			return w.Run(ctx)
		})
	}

	err := g.Wait()
	p.logger.Info("egress pool stopped", "error", err)
	return err
}
