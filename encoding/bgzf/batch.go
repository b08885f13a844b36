// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package bgzf

import (
	"fmt"

	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
)

// InflateParts inflates up to BlockBatchSize blocks in parallel,
// dynamically scheduled across numThreads workers. dstParts[i] must
// have length blocks[i].inflatedSize; it receives blocks[i]'s
// decompressed bytes. InflateParts fails fast, before scheduling any
// work, if len(blocks) exceeds BlockBatchSize or the two slices have
// different lengths. Once any worker reports an error, traverse stops
// dispatching new indices, so a failing batch may finish some blocks
// and leave others never attempted; either way the whole batch's
// results are discarded by the caller, and the first error reported is
// returned once every in-flight worker has joined.
func InflateParts(blocks []blockDescriptor, dstParts [][]byte, numThreads int) error {
	if len(blocks) > BlockBatchSize {
		return fmt.Errorf("%w: %d blocks", ErrBatchTooLarge, len(blocks))
	}
	if len(blocks) != len(dstParts) {
		return fmt.Errorf("%w: %d blocks, %d destinations", ErrBatchShapeMismatch, len(blocks), len(dstParts))
	}
	if len(blocks) == 0 {
		return nil
	}
	if numThreads <= 0 {
		numThreads = 1
	}
	log.Debug.Printf("bgzf: inflating %d blocks across %d threads", len(blocks), numThreads)
	return traverse.Parallel(len(blocks)).Limit(numThreads).Do(func(i int) error {
		return inflateBlock(blocks[i].deflated, dstParts[i], blocks[i].inflatedSize, blocks[i].crc)
	})
}

// DeflateToBuffers splits input into chunks of at most
// BlockDataInflatedSize bytes, bounded by len(deflatedBuffers), and
// deflates each chunk in parallel into the correspondingly-indexed
// output buffer as a complete BGZF block. Only the last chunk may be
// shorter than BlockDataInflatedSize. It returns, in chunk order, the
// number of bytes written to each buffer; the caller is responsible
// for writing deflatedBuffers[i][:sizes[i]] to the sink, in order. As
// with InflateParts, a failing chunk stops traverse from dispatching
// further indices, so not every chunk is guaranteed to run; the first
// error reported is returned once every in-flight worker has joined.
func DeflateToBuffers(input []byte, deflatedBuffers [][]byte, numThreads int) ([]int, error) {
	numChunks := (len(input) + BlockDataInflatedSize - 1) / BlockDataInflatedSize
	if numChunks > len(deflatedBuffers) {
		numChunks = len(deflatedBuffers)
	}
	if numChunks == 0 {
		return nil, nil
	}
	if numThreads <= 0 {
		numThreads = 1
	}

	jobs := make([]compressJob, numChunks)
	for i := range jobs {
		start := i * BlockDataInflatedSize
		end := start + BlockDataInflatedSize
		if end > len(input) {
			end = len(input)
		}
		jobs[i] = compressJob{input: input[start:end], output: deflatedBuffers[i]}
	}

	log.Debug.Printf("bgzf: deflating %d chunks across %d threads", numChunks, numThreads)
	if err := traverse.Parallel(numChunks).Limit(numThreads).Do(func(i int) error {
		return compressBlock(&jobs[i])
	}); err != nil {
		return nil, err
	}

	sizes := make([]int, numChunks)
	for i := range jobs {
		sizes[i] = jobs[i].size
	}
	return sizes, nil
}
