// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package bgzf

import (
	"encoding/binary"
	"fmt"
)

// BGZF block layout constants. See the SAM/BAM spec for the BC
// extra-field this package relies on.
const (
	headerSize   = 12
	subfieldSize = 6
	tailerSize   = 8

	// BlockMetadataSize is the number of non-payload bytes in every
	// BGZF block: 12 byte header + 6 byte BC subfield + 8 byte tailer.
	BlockMetadataSize = headerSize + subfieldSize + tailerSize

	// BlockDataInflatedSize is the largest number of uncompressed
	// bytes a single BGZF block may carry.
	BlockDataInflatedSize = 0xff00

	// MaxBlockSize is the largest a single BGZF block can be, since the
	// BC block_size field holds the total length minus one in 16 bits.
	// It leaves room for the few bytes deflate adds when a full
	// BlockDataInflatedSize payload is incompressible.
	MaxBlockSize = 0x10000

	// BlockBatchSize bounds the number of blocks processed by one
	// call to InflateParts or DeflateToBuffers.
	BlockBatchSize = 300
)

var le = binary.LittleEndian

var (
	// magic is the fixed gzip/BGZF header prefix: ID1, ID2, CM=deflate,
	// FLG=FEXTRA.
	magic = [4]byte{0x1f, 0x8b, 0x08, 0x04}

	// subfieldID identifies the BC extra-field that carries a block's
	// total size.
	subfieldID = [2]byte{'B', 'C'}

	// emptyDeflatePayload is the raw-deflate encoding of a zero-length
	// input: a single final fixed-Huffman block holding only the
	// end-of-block code. It is the payload of
	// the canonical BGZF terminator and of any other block whose
	// declared inflated size is zero.
	emptyDeflatePayload = [2]byte{0x03, 0x00}

	// terminatorBlock is the 28-byte BGZF end-of-stream marker: a
	// legal, empty-payload BGZF block appended by Close.
	terminatorBlock = []byte{
		0x1f, 0x8b, 0x08, 0x04, 0x00, 0x00, 0x00, 0x00, 0x00, 0xff, 0x06, 0x00,
		'B', 'C', 0x02, 0x00, 0x1b, 0x00,
		0x03, 0x00,
		0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
	}
)

// putHeader writes the fixed 12-byte BGZF block header into buf[:12].
func putHeader(buf []byte) {
	copy(buf[0:4], magic[:])
	// mod_time
	buf[4], buf[5], buf[6], buf[7] = 0, 0, 0, 0
	// extra_flags
	buf[8] = 0
	// os_type: unknown
	buf[9] = 0xff
	// extra_len: size of the BC subfield
	le.PutUint16(buf[10:12], subfieldSize)
}

// putSubfield writes the 6-byte BC subfield into buf[:6]. blockSize is
// the total block length minus one.
func putSubfield(buf []byte, blockSize uint16) {
	copy(buf[0:2], subfieldID[:])
	le.PutUint16(buf[2:4], 2)
	le.PutUint16(buf[4:6], blockSize)
}

// putTailer writes the 8-byte block tailer into buf[:8].
func putTailer(buf []byte, crc uint32, inflatedSize uint32) {
	le.PutUint32(buf[0:4], crc)
	le.PutUint32(buf[4:8], inflatedSize)
}

// parsePrefix parses the 18-byte header+subfield prefix of a block and
// returns its declared block_size field (total block length minus
// one). It fails with ErrMalformedHeader if the magic bytes or BC
// subfield identifiers do not match, or if the declared block_size is
// too small to hold the prefix and tailer already read and expected;
// it fails with ErrInsufficientBytes if buf itself is too short.
func parsePrefix(buf []byte) (blockSize int, err error) {
	if len(buf) < headerSize+subfieldSize {
		return 0, fmt.Errorf("%w: need %d bytes, have %d", ErrInsufficientBytes, headerSize+subfieldSize, len(buf))
	}
	if buf[0] != magic[0] || buf[1] != magic[1] || buf[2] != magic[2] || buf[3] != magic[3] {
		return 0, fmt.Errorf("%w: bad magic bytes", ErrMalformedHeader)
	}
	if extraLen := le.Uint16(buf[10:12]); extraLen != subfieldSize {
		return 0, fmt.Errorf("%w: extra_len %d != %d", ErrMalformedHeader, extraLen, subfieldSize)
	}
	sub := buf[headerSize : headerSize+subfieldSize]
	if sub[0] != subfieldID[0] || sub[1] != subfieldID[1] {
		return 0, fmt.Errorf("%w: missing BC subfield id", ErrMalformedHeader)
	}
	if subLen := le.Uint16(sub[2:4]); subLen != 2 {
		return 0, fmt.Errorf("%w: BC subfield length %d != 2", ErrMalformedHeader, subLen)
	}
	bsize := int(le.Uint16(sub[4:6]))
	if bsize+1 < BlockMetadataSize {
		return 0, fmt.Errorf("%w: declared block_size %d too small for header/subfield/tailer", ErrMalformedHeader, bsize)
	}
	return bsize, nil
}

// parseTailer parses an 8-byte block tailer into its CRC-32 and
// inflated-size fields.
func parseTailer(buf []byte) (crc uint32, inflatedSize uint32) {
	return le.Uint32(buf[0:4]), le.Uint32(buf[4:8])
}
