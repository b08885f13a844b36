package bgzf

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeflateInflateBatchRoundTrip(t *testing.T) {
	for _, numThreads := range []int{1, 2, 4, 8} {
		input := make([]byte, 5*BlockDataInflatedSize+123)
		_, err := rand.Read(input)
		require.Nil(t, err)

		numChunks := (len(input) + BlockDataInflatedSize - 1) / BlockDataInflatedSize
		bufs := make([][]byte, numChunks)
		for i := range bufs {
			bufs[i] = make([]byte, MaxBlockSize)
		}
		sizes, err := DeflateToBuffers(input, bufs, numThreads)
		require.Nil(t, err)
		require.Equal(t, numChunks, len(sizes))

		descs := make([]blockDescriptor, numChunks)
		dsts := make([][]byte, numChunks)
		offset := 0
		for i, sz := range sizes {
			deflated := bufs[i][headerSize+subfieldSize : sz-tailerSize]
			crc, isize := parseTailer(bufs[i][sz-tailerSize : sz])
			descs[i] = blockDescriptor{deflated: deflated, inflatedSize: int(isize), crc: crc}
			dsts[i] = make([]byte, isize)
			offset += int(isize)
		}
		assert.Equal(t, len(input), offset)

		require.Nil(t, InflateParts(descs, dsts, numThreads))
		var reassembled []byte
		for _, d := range dsts {
			reassembled = append(reassembled, d...)
		}
		assert.Equal(t, input, reassembled)
	}
}

func TestInflatePartsBatchTooLarge(t *testing.T) {
	descs := make([]blockDescriptor, BlockBatchSize+1)
	dsts := make([][]byte, BlockBatchSize+1)
	err := InflateParts(descs, dsts, 1)
	assert.ErrorIs(t, err, ErrBatchTooLarge)
}

func TestInflatePartsShapeMismatch(t *testing.T) {
	descs := make([]blockDescriptor, 2)
	dsts := make([][]byte, 1)
	err := InflateParts(descs, dsts, 1)
	assert.ErrorIs(t, err, ErrBatchShapeMismatch)
}

func TestInflatePartsEmpty(t *testing.T) {
	assert.Nil(t, InflateParts(nil, nil, 1))
}

// TestInflatePartsFailureIsolation checks that a single corrupted
// block's error is reported for the whole batch even though every
// other block in the batch is well-formed.
func TestInflatePartsFailureIsolation(t *testing.T) {
	input := make([]byte, 3*BlockDataInflatedSize)
	_, err := rand.Read(input)
	require.Nil(t, err)

	bufs := make([][]byte, 3)
	for i := range bufs {
		bufs[i] = make([]byte, MaxBlockSize)
	}
	sizes, err := DeflateToBuffers(input, bufs, 1)
	require.Nil(t, err)

	descs := make([]blockDescriptor, 3)
	dsts := make([][]byte, 3)
	for i, sz := range sizes {
		deflated := bufs[i][headerSize+subfieldSize : sz-tailerSize]
		crc, isize := parseTailer(bufs[i][sz-tailerSize : sz])
		if i == 1 {
			crc ^= 0xff // corrupt the middle block's declared CRC
		}
		descs[i] = blockDescriptor{deflated: deflated, inflatedSize: int(isize), crc: crc}
		dsts[i] = make([]byte, isize)
	}

	err = InflateParts(descs, dsts, 4)
	assert.ErrorIs(t, err, ErrCRCMismatch)
}
