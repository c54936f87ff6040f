package sender

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m3rciful/tourbot/core/logger"
)

var (
	// ErrQueueClosed is returned when enqueue is attempted after dispatcher stop.
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	// ErrQueueFull indicates the queue is saturated and the job was not accepted.
	ErrQueueFull = errors.New("telegram sender: queue full")
)

// Options controls the behaviour of the outbound dispatcher.
type Options struct {
	// QueueSize is the buffer of every worker shard.
	QueueSize int
	Workers   int
	// MaxDuration is how long a job may run before it is reported as timed
	// out, and how long EnqueueWait waits for a free slot. A timed-out job
	// still holds its shard until the call returns; the bot's HTTP client
	// timeout bounds that.
	MaxDuration time.Duration
}

type job struct {
	ctx      context.Context
	key      int64
	action   string
	endpoint string
	run      func() error
}

// Dispatcher executes outbound Telegram calls asynchronously. Jobs that share a
// key (the chat id) land on the same worker and run in enqueue order.
// Failed jobs are logged and counted, never retried.
type Dispatcher struct {
	opts   Options
	shards []chan job
	mu     sync.RWMutex
	closed bool
	once   sync.Once
	wg     sync.WaitGroup
	errs   atomic.Uint64
	done   atomic.Uint64
}

// NewDispatcher starts a dispatcher with sane defaults if options are zeroed.
func NewDispatcher(opts Options) *Dispatcher {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.MaxDuration <= 0 {
		opts.MaxDuration = 12 * time.Second
	}

	d := &Dispatcher{
		opts:   opts,
		shards: make([]chan job, opts.Workers),
	}

	d.wg.Add(opts.Workers)
	for i := range d.shards {
		d.shards[i] = make(chan job, opts.QueueSize)
		go d.worker(d.shards[i])
	}

	return d
}

// Enqueue schedules the provided function for asynchronous execution on the shard owning key.
func (d *Dispatcher) Enqueue(ctx context.Context, key int64, action, endpoint string, run func() error) error {
	if run == nil {
		return errors.New("telegram sender: nil run function")
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrQueueClosed
	}

	j := job{
		ctx:      ctx,
		key:      key,
		action:   action,
		endpoint: endpoint,
		run:      run,
	}

	select {
	case d.shards[d.shardFor(key)] <- j:
		return nil
	default:
		return ErrQueueFull
	}
}

// EnqueueWait is Enqueue that waits for a free slot on a full shard, up to
// MaxDuration or until ctx is done. It never runs the job out of turn.
func (d *Dispatcher) EnqueueWait(ctx context.Context, key int64, action, endpoint string, run func() error) error {
	err := d.Enqueue(ctx, key, action, endpoint, run)
	if !errors.Is(err, ErrQueueFull) {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrQueueClosed
	}

	timer := time.NewTimer(d.opts.MaxDuration)
	defer timer.Stop()

	j := job{ctx: ctx, key: key, action: action, endpoint: endpoint, run: run}
	select {
	case d.shards[d.shardFor(key)] <- j:
		return nil
	case <-timer.C:
		return ErrQueueFull
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) shardFor(key int64) int {
	if key < 0 {
		key = -key
	}
	return int(uint64(key) % uint64(len(d.shards)))
}

// ErrorCount returns the number of failed jobs.
func (d *Dispatcher) ErrorCount() uint64 {
	return d.errs.Load()
}

// DoneCount returns the number of jobs that finished, successfully or not.
func (d *Dispatcher) DoneCount() uint64 {
	return d.done.Load()
}

// Close stops accepting jobs and waits for workers to drain queued ones.
func (d *Dispatcher) Close() {
	d.once.Do(func() {
		d.mu.Lock()
		d.closed = true
		for _, sh := range d.shards {
			close(sh)
		}
		d.mu.Unlock()
		d.wg.Wait()
	})
}

func (d *Dispatcher) worker(jobs <-chan job) {
	defer d.wg.Done()
	for j := range jobs {
		d.handleJob(j)
	}
}

func (d *Dispatcher) handleJob(j job) {
	defer d.done.Add(1)

	ctx := j.ctx
	if ctx == nil {
		ctx = context.Background()
	}

	start := time.Now()
	result := make(chan error, 1)
	go func() {
		result <- j.run()
	}()

	timer := time.NewTimer(d.opts.MaxDuration)
	defer timer.Stop()

	var err error
	select {
	case err = <-result:
	case <-timer.C:
		d.fail(ctx, j, time.Since(start), context.DeadlineExceeded)
		// the next job of this shard waits for the call, so one chat's
		// replies never overtake each other
		late := <-result
		logger.Warn(ctx, "tg.sender", "send.late", append(sendAttrs(j, time.Since(start)),
			slog.Bool("ok", late == nil),
		)...)
		return
	}

	if err != nil {
		d.fail(ctx, j, time.Since(start), err)
		return
	}
	logger.Debug(ctx, "tg.sender", "send.ok", sendAttrs(j, time.Since(start))...)
}

func (d *Dispatcher) fail(ctx context.Context, j job, elapsed time.Duration, err error) {
	d.errs.Add(1)
	logger.Error(ctx, "tg.sender", "send.fail", append(sendAttrs(j, elapsed),
		slog.String("err", SanitizeError(err)),
		slog.String("error_kind", ClassifyError(err)),
	)...)
}

// sendAttrs describes a job; update metadata comes from the context.
func sendAttrs(j job, elapsed time.Duration) []slog.Attr {
	attrs := []slog.Attr{
		slog.String("action", j.action),
		slog.String("endpoint", j.endpoint),
		slog.Duration("elapsed", elapsed),
	}
	if j.key != 0 {
		attrs = append(attrs, slog.Int64("shard_key", j.key))
	}
	return attrs
}
