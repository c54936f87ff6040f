package logger

import (
	"bufio"
	"errors"
	"io"
	"sync"
)

// sink is one output of the async writer. A sink that failed once is muted
// so a broken log file never silences the console.
type sink struct {
	w   *bufio.Writer
	err error
}

// asyncWriter provides buffered asynchronous writes to one or more sinks.
type asyncWriter struct {
	queue    chan []byte
	flushReq chan chan error
	done     chan struct{}
	sinks    []*sink
	sinkMu   sync.Mutex

	// stateMu guards closed; writers hold it shared while they enqueue.
	stateMu sync.RWMutex
	closed  bool
}

var errWriterClosed = errors.New("logger: writer closed")

func newAsyncWriter(writers []io.Writer, bufSize int) *asyncWriter {
	if bufSize <= 0 {
		bufSize = 64 * 1024
	}
	sinks := make([]*sink, 0, len(writers))
	for _, w := range writers {
		if w == nil {
			continue
		}
		sinks = append(sinks, &sink{w: bufio.NewWriterSize(w, bufSize)})
	}
	aw := &asyncWriter{
		queue:    make(chan []byte, 256),
		flushReq: make(chan chan error),
		done:     make(chan struct{}),
		sinks:    sinks,
	}
	go aw.loop()
	return aw
}

func (w *asyncWriter) loop() {
	for {
		select {
		case data, ok := <-w.queue:
			if !ok {
				_ = w.flushAll()
				close(w.done)
				return
			}
			if len(data) == 0 {
				continue
			}
			w.writeAll(data)
		case ack := <-w.flushReq:
			ack <- w.flushAll()
		}
	}
}

// Write enqueues the payload for asynchronous fan-out to all sinks.
// It fails only once every sink has failed.
func (w *asyncWriter) Write(p []byte) (int, error) {
	if err := w.getErr(); err != nil {
		return 0, err
	}
	if len(p) == 0 {
		return 0, nil
	}
	data := make([]byte, len(p))
	copy(data, p)
	w.stateMu.RLock()
	defer w.stateMu.RUnlock()
	if w.closed {
		return 0, errWriterClosed
	}
	// blocks when the queue is full; losing log lines is worse than slowing down
	w.queue <- data
	return len(p), nil
}

// Flush waits for the writer to flush all buffered content to sinks.
func (w *asyncWriter) Flush() error {
	if err := w.getErr(); err != nil {
		return err
	}
	w.stateMu.RLock()
	defer w.stateMu.RUnlock()
	if w.closed {
		return errWriterClosed
	}
	ack := make(chan error, 1)
	w.flushReq <- ack
	return <-ack
}

// Close drains the queue and reports the sink errors seen so far.
func (w *asyncWriter) Close() error {
	w.stateMu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.stateMu.Unlock()
	<-w.done
	return w.sinkErrors()
}

func (w *asyncWriter) writeAll(p []byte) {
	w.sinkMu.Lock()
	defer w.sinkMu.Unlock()
	for _, s := range w.sinks {
		if s.err != nil {
			continue
		}
		if _, err := s.w.Write(p); err != nil {
			s.err = err
			continue
		}
		if err := s.w.Flush(); err != nil {
			s.err = err
		}
	}
}

func (w *asyncWriter) flushAll() error {
	w.sinkMu.Lock()
	defer w.sinkMu.Unlock()
	var errs []error
	for _, s := range w.sinks {
		if s.err != nil {
			continue
		}
		if err := s.w.Flush(); err != nil {
			s.err = err
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// getErr returns an error only when no healthy sink is left.
func (w *asyncWriter) getErr() error {
	w.sinkMu.Lock()
	defer w.sinkMu.Unlock()
	var errs []error
	for _, s := range w.sinks {
		if s.err == nil {
			return nil
		}
		errs = append(errs, s.err)
	}
	return errors.Join(errs...)
}

func (w *asyncWriter) sinkErrors() error {
	w.sinkMu.Lock()
	defer w.sinkMu.Unlock()
	var errs []error
	for _, s := range w.sinks {
		if s.err != nil {
			errs = append(errs, s.err)
		}
	}
	return errors.Join(errs...)
}
