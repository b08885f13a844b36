// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package bgzf

import (
	"context"
	"io"
	"sync"

	"golang.org/x/sync/errgroup"
)

// AsyncReader wraps a Reader with a single background worker that
// scans and inflates the next batch while the caller drains the
// current one. Semantically it behaves exactly like Reader; the only
// observable difference is overlap between inflation and caller-side
// work. An AsyncReader must be closed with Close to release its
// worker goroutine; a cancelled context causes pending batches to be
// discarded once in flight work completes, per the batch boundary
// cancellation policy.
type AsyncReader struct {
	r *Reader

	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group
	ch     chan batchResult

	cur []byte
	err error
}

type batchResult struct {
	blocks [][]byte
	err    error
}

// NewAsyncReader returns an AsyncReader over r, with the same
// batchSize/numThreads semantics as NewReader.
func NewAsyncReader(ctx context.Context, r io.Reader, batchSize, numThreads int) *AsyncReader {
	ctx, cancel := context.WithCancel(ctx)
	group, gctx := errgroup.WithContext(ctx)
	a := &AsyncReader{
		r:      NewReader(r, batchSize, numThreads),
		ctx:    ctx,
		cancel: cancel,
		group:  group,
		ch:     make(chan batchResult, 1),
	}
	group.Go(func() error { return a.pump(gctx) })
	return a
}

// pump repeatedly refills batches in the background and forwards them
// over a depth-1 channel, stopping once the context is cancelled or a
// terminal error (including io.EOF) is produced.
func (a *AsyncReader) pump(ctx context.Context) error {
	for {
		blocks, err := a.r.refillBatch()
		select {
		case a.ch <- batchResult{blocks: blocks, err: err}:
		case <-ctx.Done():
			return nil
		}
		if err != nil {
			return nil
		}
	}
}

// Read implements io.Reader, serving bytes produced by the background
// worker in file order.
func (a *AsyncReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	total := 0
	for total < len(p) {
		if len(a.cur) == 0 {
			if a.err != nil {
				if total > 0 {
					return total, nil
				}
				return 0, a.err
			}
			res, ok := <-a.ch
			if !ok {
				a.err = io.ErrClosedPipe
				continue
			}
			if res.err != nil {
				a.err = res.err
			}
			a.r.pending = res.blocks
			a.r.advance()
			a.cur = a.r.cur
			a.r.cur = nil
			continue
		}
		n := copy(p[total:], a.cur)
		a.cur = a.cur[n:]
		total += n
	}
	return total, nil
}

// Close cancels the background worker and waits for it to finish.
func (a *AsyncReader) Close() error {
	a.cancel()
	_ = a.group.Wait()
	return nil
}

// AsyncWriter wraps a Writer with a single background worker so that
// callers can prepare the next batch of input while the previous
// batch compresses. Semantically it behaves exactly like Writer: all
// writes are applied in order, and any error encountered by the
// worker becomes sticky and is returned by the next call to Write,
// Flush, or Close.
type AsyncWriter struct {
	w *Writer

	jobs chan interface{} // []byte to write, or chan struct{} barrier signal
	done chan struct{}

	mu  sync.Mutex
	err error

	closeOnce sync.Once
}

// NewAsyncWriter returns an AsyncWriter writing BGZF blocks to w, with
// the same batchSize/numThreads semantics as NewWriter.
func NewAsyncWriter(w io.Writer, batchSize, numThreads int) *AsyncWriter {
	a := &AsyncWriter{
		w:    NewWriter(w, batchSize, numThreads),
		jobs: make(chan interface{}, 1),
		done: make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *AsyncWriter) run() {
	defer close(a.done)
	for job := range a.jobs {
		switch v := job.(type) {
		case []byte:
			if _, err := a.w.Write(v); err != nil {
				a.setErr(err)
			}
		case chan struct{}:
			close(v)
		}
	}
}

func (a *AsyncWriter) setErr(err error) {
	a.mu.Lock()
	if a.err == nil {
		a.err = err
	}
	a.mu.Unlock()
}

func (a *AsyncWriter) getErr() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.err
}

// Write hands buf to the background worker, blocking only if the
// worker is still busy with a previous batch (double-buffering depth
// of one). The caller must not reuse buf until Write returns.
func (a *AsyncWriter) Write(buf []byte) (int, error) {
	if err := a.getErr(); err != nil {
		return 0, err
	}
	cp := make([]byte, len(buf))
	copy(cp, buf)
	a.jobs <- cp
	return len(buf), nil
}

// Flush blocks until every write handed to the worker so far has been
// applied, then flushes complete blocks to the sink.
func (a *AsyncWriter) Flush() error {
	a.barrier()
	if err := a.getErr(); err != nil {
		return err
	}
	return a.w.Flush()
}

// barrier blocks until the worker has drained every job enqueued
// before the call.
func (a *AsyncWriter) barrier() {
	signal := make(chan struct{})
	a.jobs <- signal
	<-signal
}

// Close drains the worker, closes the underlying Writer (emitting the
// terminator), and releases the worker goroutine.
func (a *AsyncWriter) Close() error {
	var err error
	a.closeOnce.Do(func() {
		close(a.jobs)
		<-a.done
		if werr := a.getErr(); werr != nil {
			err = werr
			return
		}
		err = a.w.Close()
	})
	return err
}
