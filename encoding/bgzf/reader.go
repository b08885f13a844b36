// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package bgzf

import (
	"bufio"
	"fmt"
	"io"

	"github.com/grailbio/base/log"
)

// defaultNumThreads is used whenever a caller passes numThreads <= 0.
const defaultNumThreads = 1

// Reader implements pull-based BGZF decompression. It repeatedly scans
// a raw input stream for complete blocks, schedules batches of up to
// batchSize inflations in parallel, and serves the resulting
// uncompressed bytes to callers in file order. Block boundaries are
// not observable through Read except at EOF. A Reader is not safe for
// concurrent use by multiple goroutines.
type Reader struct {
	r          *bufio.Reader
	batchSize  int
	numThreads int

	pending [][]byte // blocks of the current batch not yet begun
	cur     []byte   // undelivered suffix of the block currently draining
	err     error    // sticky terminal error (including io.EOF)
}

// NewReader returns a Reader over r. batchSize is clamped to
// (0, BlockBatchSize]; a non-positive or over-large value is replaced
// by BlockBatchSize. numThreads is clamped to a minimum of 1.
func NewReader(r io.Reader, batchSize, numThreads int) *Reader {
	if batchSize <= 0 || batchSize > BlockBatchSize {
		batchSize = BlockBatchSize
	}
	if numThreads <= 0 {
		numThreads = defaultNumThreads
	}
	return &Reader{r: bufio.NewReader(r), batchSize: batchSize, numThreads: numThreads}
}

// Read implements io.Reader. It returns up to len(p) bytes and never
// interleaves bytes from different blocks incorrectly. If the raw
// stream ends exactly at a block boundary, Read reports io.EOF once
// all preceding bytes have been delivered; if it ends mid-header or
// mid-block, Read fails with ErrInsufficientBytes and the Reader
// becomes unusable.
func (r *Reader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	total := 0
	for total < len(p) {
		if len(r.cur) == 0 {
			if len(r.pending) > 0 {
				r.advance()
				continue
			}
			if err := r.refill(); err != nil {
				if total > 0 && err == io.EOF {
					return total, nil
				}
				return total, err
			}
			continue
		}
		n := copy(p[total:], r.cur)
		r.cur = r.cur[n:]
		total += n
	}
	return total, nil
}

// advance pulls the next non-empty block (if any) out of r.pending and
// into r.cur, discarding any legitimate zero-byte blocks (e.g. the
// terminator, or any other block whose declared inflated size is
// zero) along the way.
func (r *Reader) advance() {
	for len(r.pending) > 0 {
		b := r.pending[0]
		r.pending = r.pending[1:]
		if len(b) > 0 {
			r.cur = b
			return
		}
	}
}

// refill scans, batches, and inflates the next batch of blocks,
// installing the results as the new pending queue. It returns io.EOF
// once the raw stream is exhausted at a block boundary. Any error,
// io.EOF included, sticks on the Reader (every subsequent call returns
// it too).
func (r *Reader) refill() error {
	if r.err != nil {
		return r.err
	}
	blocks, err := r.refillBatch()
	if err != nil {
		r.err = err
		return err
	}
	r.pending = blocks
	r.advance()
	return nil
}

// refillBatch performs one batch's worth of frame-scanning and
// inflation without mutating the Reader's delivery state (pending,
// cur). It is split out from refill so AsyncReader can drive the same
// scan-then-inflate engine from a background goroutine while managing
// batch delivery on its own terms.
func (r *Reader) refillBatch() ([][]byte, error) {
	var descs []blockDescriptor
	var dsts [][]byte

	for len(descs) < r.batchSize {
		prefix := make([]byte, headerSize+subfieldSize)
		if _, err := io.ReadFull(r.r, prefix); err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("%w: %v", ErrInsufficientBytes, err)
		}

		blockSize, ferr := parsePrefix(prefix)
		if ferr != nil {
			return nil, ferr
		}

		rest := make([]byte, blockSize+1-len(prefix))
		if _, err := io.ReadFull(r.r, rest); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInsufficientBytes, err)
		}

		deflated := rest[:len(rest)-tailerSize]
		crc, size := parseTailer(rest[len(rest)-tailerSize:])
		descs = append(descs, blockDescriptor{deflated: deflated, inflatedSize: int(size), crc: crc})
		dsts = append(dsts, make([]byte, size))
	}

	if len(descs) == 0 {
		return nil, io.EOF
	}

	log.Debug.Printf("bgzf: read refill scheduling %d blocks", len(descs))
	if err := InflateParts(descs, dsts, r.numThreads); err != nil {
		return nil, err
	}
	return dsts, nil
}
