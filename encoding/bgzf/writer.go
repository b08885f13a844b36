// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package bgzf implements the .bgzf (block gzipped) file format: a
// sequence of independent gzip members, each carrying a BC extra
// subfield that declares its own total size, so that a reader never
// needs to decompress member N to find member N+1. Uncompressed
// payload is the in-order concatenation of every member's inflated
// bytes. A valid stream ends with the 28-byte BGZF terminator, itself
// a legal member with an empty payload.
//
// The .bgzf format is used by .bam files and Illumina .bcl.bgzf files
// from Nextseq instruments. For more information, see the SAM/BAM
// spec: https://samtools.github.io/hts-specs/SAMv1.pdf
//
// Reads and writes are batched: up to BlockBatchSize blocks are
// inflated or deflated in one dynamically-scheduled parallel pass, so
// throughput scales with numThreads on multi-block input.
//
// Example:
//   var bgzfFile bytes.Buffer
//   w := NewWriter(&bgzfFile, 0, 4)
//   _, err := w.Write([]byte("Foo bar"))
//   err = w.Close()
//
//   r := NewReader(&bgzfFile, 0, 4)
//   data, err := ioutil.ReadAll(r)
//
// Example with multiple compression shards:
//   // In goroutine 1
//   var shard1 bytes.Buffer
//   w := NewWriter(&shard1, 0, 4)
//   _, err := w.Write([]byte("Foo bar"))
//   err = w.CloseWithoutTerminator()
//
//   // In goroutine 2
//   var shard2 bytes.Buffer
//   w := NewWriter(&shard2, 0, 4)
//   _, err := w.Write([]byte(" baz!"))
//   err = w.Close() // Terminator goes at the end of the last shard.
//
//   // Merge shards into the final .bgzf file.
//   var bgzfFile bytes.Buffer
//   _, err = io.Copy(&bgzfFile, &shard1)
//   _, err = io.Copy(&bgzfFile, &shard2)
package bgzf

import (
	"bytes"
	"fmt"
	"io"

	"github.com/grailbio/base/log"
)

// Writer implements push-based BGZF compression. Callers fill it with
// uncompressed bytes via Write; once enough input has accumulated, the
// Writer deflates a batch of blocks in parallel and flushes them to
// the underlying io.Writer in order. A Writer is not safe for
// concurrent use by multiple goroutines.
type Writer struct {
	w          io.Writer
	batchSize  int
	numThreads int

	pending bytes.Buffer // uncompressed bytes not yet batched
	outputs [][]byte     // scratch buffers reused across batches

	closed bool
	err    error
}

// NewWriter returns a Writer that writes BGZF blocks to w. batchSize
// is clamped to (0, BlockBatchSize]; a non-positive or over-large
// value is replaced by BlockBatchSize. numThreads is clamped to a
// minimum of 1.
func NewWriter(w io.Writer, batchSize, numThreads int) *Writer {
	if batchSize <= 0 || batchSize > BlockBatchSize {
		batchSize = BlockBatchSize
	}
	if numThreads <= 0 {
		numThreads = defaultNumThreads
	}
	return &Writer{w: w, batchSize: batchSize, numThreads: numThreads}
}

// Write appends buf to the .bgzf payload, flushing full batches of
// BlockDataInflatedSize-sized blocks as they accumulate. It always
// consumes the entire buf unless it returns a non-nil error.
func (w *Writer) Write(buf []byte) (int, error) {
	if w.err != nil {
		return 0, w.err
	}
	if w.closed {
		return 0, fmt.Errorf("bgzf: write to closed Writer")
	}
	n, _ := w.pending.Write(buf)
	for w.pending.Len() >= BlockDataInflatedSize*w.batchSize {
		if err := w.flushBatch(w.batchSize); err != nil {
			w.err = err
			return n, err
		}
	}
	return n, nil
}

// flushBatch deflates up to n full BlockDataInflatedSize chunks (or
// fewer, if pending holds less) and writes the resulting blocks to
// w.w in order, leaving any true remainder in pending.
func (w *Writer) flushBatch(n int) error {
	avail := w.pending.Len() / BlockDataInflatedSize
	if avail < n {
		n = avail
	}
	if n == 0 {
		return nil
	}
	chunk := w.pending.Next(n * BlockDataInflatedSize)
	return w.deflateAndWrite(chunk, n)
}

// deflateAndWrite splits chunk into numBlocks pieces (the last may be
// shorter), deflates them in one parallel batch, and writes the
// resulting BGZF blocks to w.w in order.
func (w *Writer) deflateAndWrite(chunk []byte, numBlocks int) error {
	if len(w.outputs) < numBlocks {
		grown := make([][]byte, numBlocks)
		copy(grown, w.outputs)
		for i := range grown {
			if grown[i] == nil {
				grown[i] = make([]byte, MaxBlockSize)
			}
		}
		w.outputs = grown
	}
	bufs := w.outputs[:numBlocks]

	log.Debug.Printf("bgzf: write flushing %d blocks (%d bytes)", numBlocks, len(chunk))
	sizes, err := DeflateToBuffers(chunk, bufs, w.numThreads)
	if err != nil {
		return err
	}
	for i, sz := range sizes {
		if _, err := w.w.Write(bufs[i][:sz]); err != nil {
			return err
		}
	}
	return nil
}

// Flush deflates and writes out every complete BlockDataInflatedSize
// chunk currently buffered. Unlike Close, it leaves a true remainder
// (fewer than BlockDataInflatedSize bytes) pending, and never writes a
// partial block or the terminator.
func (w *Writer) Flush() error {
	if w.err != nil {
		return w.err
	}
	for w.pending.Len() >= BlockDataInflatedSize {
		if err := w.flushBatch(w.batchSize); err != nil {
			w.err = err
			return err
		}
	}
	return nil
}

// CloseWithoutTerminator flushes all buffered bytes, including a
// final short block if necessary, but does not append the BGZF
// terminator. The output is not a complete BGZF stream until the
// terminator is appended, e.g. by a final shard's Close.
func (w *Writer) CloseWithoutTerminator() error {
	if w.err != nil {
		return w.err
	}
	if w.closed {
		return nil
	}
	w.closed = true
	for w.pending.Len() > 0 {
		before := w.pending.Len()
		n := (before + BlockDataInflatedSize - 1) / BlockDataInflatedSize
		if n > w.batchSize {
			n = w.batchSize
		}
		if err := w.flushRemainder(n); err != nil {
			w.err = err
			return err
		}
		if w.pending.Len() == before {
			break
		}
	}
	return nil
}

// flushRemainder deflates up to n chunks from pending, where the last
// chunk may be shorter than BlockDataInflatedSize.
func (w *Writer) flushRemainder(n int) error {
	size := n * BlockDataInflatedSize
	if size > w.pending.Len() {
		size = w.pending.Len()
	}
	chunk := w.pending.Next(size)
	actualBlocks := (len(chunk) + BlockDataInflatedSize - 1) / BlockDataInflatedSize
	if actualBlocks == 0 {
		return nil
	}
	return w.deflateAndWrite(chunk, actualBlocks)
}

// Close flushes all buffered bytes and appends the BGZF terminator.
func (w *Writer) Close() error {
	if err := w.CloseWithoutTerminator(); err != nil {
		return err
	}
	_, err := w.w.Write(terminatorBlock)
	return err
}
