package verification

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	markerpkg "github.com/frahmantamala/moviemix/internal/marker"
)

var (
	ErrQueueFull         = errors.New("verification queue full")
	ErrDispatcherStopped = errors.New("verification dispatcher stopped")
)

type VerifierAPI interface {
	Verify(ctx context.Context, orderID string) (*Outcome, error)
}

type Job struct {
	OrderID string
}

type Worker struct {
	ID         int
	WorkerPool chan chan Job
	JobChannel chan Job
	Logger     *slog.Logger
}

func NewWorker(id int, workerPool chan chan Job, logger *slog.Logger) *Worker {
	return &Worker{
		ID:         id,
		WorkerPool: workerPool,
		JobChannel: make(chan Job),
		Logger:     logger,
	}
}

func (w *Worker) Start(ctx context.Context, wg *sync.WaitGroup, processFunc func(Job)) {
	wg.Add(1)
	go func() {
		defer wg.Done()

		for {
			select {
			case w.WorkerPool <- w.JobChannel:
			case <-ctx.Done():
				w.Logger.Debug("worker shutting down", "worker_id", w.ID)
				return
			}

			select {
			case job := <-w.JobChannel:
				w.Logger.Debug("worker verifying order", "worker_id", w.ID, "order_id", job.OrderID)
				processFunc(job)
			case <-ctx.Done():
				w.Logger.Debug("worker shutting down", "worker_id", w.ID)
				return
			}
		}
	}()
}

type DispatcherConfig struct {
	Workers   int
	QueueSize int
}

// Dispatcher runs verifications in the background: resumed markers at
// startup and orders handed over by the webhook or CLI.
type Dispatcher struct {
	verifier VerifierAPI
	markers  markerpkg.Store
	logger   *slog.Logger

	jobQueue   chan Job
	workerPool chan chan Job
	maxWorkers int
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	once       sync.Once
	inflight   sync.WaitGroup

	mu      sync.Mutex
	stopped bool
}

func NewDispatcher(verifier VerifierAPI, markers markerpkg.Store, config DispatcherConfig, logger *slog.Logger) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())

	maxWorkers := config.Workers
	if maxWorkers <= 0 {
		maxWorkers = 4
	}
	queueSize := config.QueueSize
	if queueSize <= 0 {
		queueSize = 100
	}

	return &Dispatcher{
		verifier:   verifier,
		markers:    markers,
		logger:     logger,
		maxWorkers: maxWorkers,
		jobQueue:   make(chan Job, queueSize),
		workerPool: make(chan chan Job, maxWorkers),
		ctx:        ctx,
		cancel:     cancel,
	}
}

func (d *Dispatcher) Start() {
	d.once.Do(func() {
		for i := 0; i < d.maxWorkers; i++ {
			worker := NewWorker(i, d.workerPool, d.logger)
			worker.Start(d.ctx, &d.wg, d.process)
		}

		d.wg.Add(1)
		go d.dispatch()

		d.logger.Info("verification dispatcher started",
			"max_workers", d.maxWorkers,
			"queue_size", cap(d.jobQueue))
	})
}

func (d *Dispatcher) dispatch() {
	defer d.wg.Done()

	for {
		select {
		case job := <-d.jobQueue:
			select {
			case jobChannel := <-d.workerPool:
				select {
				case jobChannel <- job:
				case <-d.ctx.Done():
					d.inflight.Done()
					return
				}
			case <-d.ctx.Done():
				d.inflight.Done()
				return
			}
		case <-d.ctx.Done():
			d.logger.Info("verification dispatcher shutting down")
			return
		}
	}
}

func (d *Dispatcher) process(job Job) {
	defer d.inflight.Done()

	outcome, err := d.verifier.Verify(d.ctx, job.OrderID)
	if err != nil {
		d.logger.Warn("background verification ended with error", "order_id", job.OrderID, "error", err)
		return
	}
	d.logger.Info("background verification finished",
		"order_id", outcome.OrderID,
		"status", outcome.Status,
		"attempts", outcome.Attempts,
		"already_resolved", outcome.AlreadyResolved)
}

// Submit queues an order for verification without blocking.
func (d *Dispatcher) Submit(orderID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return ErrDispatcherStopped
	}

	d.inflight.Add(1)
	select {
	case d.jobQueue <- Job{OrderID: orderID}:
		return nil
	default:
		d.inflight.Done()
		d.logger.Warn("verification queue full", "order_id", orderID, "queue_capacity", cap(d.jobQueue))
		return ErrQueueFull
	}
}

// ResumePending queues every persisted marker, returning how many were queued.
func (d *Dispatcher) ResumePending(ctx context.Context) (int, error) {
	markers, err := d.markers.List(ctx)
	if err != nil {
		return 0, err
	}

	queued := 0
	for _, m := range markers {
		if err := d.Submit(m.OrderID); err != nil {
			d.logger.Warn("could not resume verification", "order_id", m.OrderID, "error", err)
			continue
		}
		queued++
	}
	d.logger.Info("resumed pending verifications", "pending", len(markers), "queued", queued)
	return queued, nil
}

// Drain blocks until every submitted job has finished or ctx is done.
func (d *Dispatcher) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) Shutdown() {
	d.mu.Lock()
	d.stopped = true
	d.mu.Unlock()

	d.logger.Info("shutting down verification dispatcher")
	d.cancel()
	d.wg.Wait()

	// release jobs that never reached a worker
	for {
		select {
		case <-d.jobQueue:
			d.inflight.Done()
		default:
			d.logger.Info("verification dispatcher shutdown complete")
			return
		}
	}
}
