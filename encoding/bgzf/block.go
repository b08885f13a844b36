// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package bgzf

import (
	"fmt"
	"hash/crc32"

	"github.com/grailbio/base/compress/libdeflate"
	"v.io/x/lib/vlog"
)

// blockDescriptor groups one block's deflated bytes with the inflated
// size and CRC-32 declared in its tailer, as produced by a Reader's
// frame scan. It is valid only while its backing buffer (typically a
// window into the raw stream's read buffer) is alive, and only for the
// duration of one batch call.
type blockDescriptor struct {
	deflated     []byte
	inflatedSize int
	crc          uint32
}

// compressJob describes one chunk of uncompressed data to be deflated
// into a complete BGZF block. output must be at least
// BlockMetadataSize bytes, and large enough to hold the header,
// subfield, worst-case deflated payload, and tailer; MaxBlockSize
// always suffices. size receives the number of bytes of output
// actually used once compressBlock returns successfully.
type compressJob struct {
	input  []byte
	output []byte
	size   int
}

// inflateBlock inflates src, the raw-deflate payload of a BGZF block,
// into dst, verifying that it produces exactly inflatedSize bytes
// whose CRC-32 equals expectedCRC. dst must have length exactly
// inflatedSize. Each call initialises and frees its own libdeflate
// decompressor, so it allocates codec state per call but shares none;
// it is safe to call concurrently from multiple goroutines provided
// each call's src/dst are disjoint.
func inflateBlock(src, dst []byte, inflatedSize int, expectedCRC uint32) error {
	if len(dst) != inflatedSize {
		// dst is sized by our own batch code from the already-parsed
		// tailer, never by wire bytes directly; a mismatch here is a
		// caller bug, not malformed input.
		vlog.Fatalf("bgzf: inflateBlock: dst has length %d, want %d", len(dst), inflatedSize)
	}
	if inflatedSize == 0 {
		// libdeflate's C binding indexes into dst unconditionally, so
		// zero-length blocks (the end-of-stream terminator, or any
		// other declared-empty block) are handled without entering
		// the codec at all; CRC-32 of the empty string is always 0.
		if expectedCRC != 0 {
			return fmt.Errorf("%w: got %08x want %08x (empty block)", ErrCRCMismatch, uint32(0), expectedCRC)
		}
		return nil
	}

	var dd libdeflate.Decompressor
	if err := dd.Init(); err != nil {
		return fmt.Errorf("%w: %v", ErrZlibInitialization, err)
	}
	defer dd.Cleanup()

	n, err := dd.Decompress(dst, src)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrZlib, err)
	}
	if n != inflatedSize {
		return fmt.Errorf("%w: inflated %d bytes, want %d", ErrBlockSizeMismatch, n, inflatedSize)
	}
	if crc := crc32.ChecksumIEEE(dst); crc != expectedCRC {
		return fmt.Errorf("%w: got %08x want %08x", ErrCRCMismatch, crc, expectedCRC)
	}
	return nil
}

// compressBlock deflates job.input into job.output as a complete BGZF
// block: header, BC subfield, raw-deflate payload, then tailer.
// job.size is set to the number of bytes written. Each call with
// non-empty input initialises and frees its own libdeflate compressor,
// so it allocates codec state per call but shares none; it is safe to
// call concurrently from multiple goroutines provided each call's job
// fields are disjoint.
func compressBlock(job *compressJob) error {
	if len(job.output) < BlockMetadataSize {
		// output is allocated by our own writer/batch code, sized from
		// MaxBlockSize; an undersized buffer here is a caller bug, not
		// something wire data can trigger.
		vlog.Fatalf("bgzf: compressBlock: output buffer has %d bytes, need at least %d", len(job.output), BlockMetadataSize)
	}

	putHeader(job.output)
	payload := job.output[headerSize+subfieldSize : len(job.output)-tailerSize]

	var n int
	if len(job.input) == 0 {
		n = copy(payload, emptyDeflatePayload[:])
	} else {
		var cc libdeflate.Compressor
		if err := cc.Init(libdeflate.BestCompression); err != nil {
			return fmt.Errorf("%w: %v", ErrZlibInitialization, err)
		}
		defer cc.Cleanup()
		n = cc.Compress(payload, job.input)
		if n == 0 {
			return fmt.Errorf("%w: compression produced no output (buffer too small?)", ErrZlib)
		}
	}

	deflatedEnd := headerSize + subfieldSize + n
	crc := crc32.ChecksumIEEE(job.input)
	putTailer(job.output[deflatedEnd:deflatedEnd+tailerSize], crc, uint32(len(job.input)))

	blockSize := deflatedEnd + tailerSize
	putSubfield(job.output[headerSize:headerSize+subfieldSize], uint16(blockSize-1))
	job.size = blockSize
	return nil
}
