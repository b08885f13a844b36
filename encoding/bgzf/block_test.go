package bgzf

import (
	"hash/crc32"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressInflateRoundTrip(t *testing.T) {
	for _, length := range []int{0, 1, 100, BlockDataInflatedSize - 1, BlockDataInflatedSize} {
		input := make([]byte, length)
		_, err := rand.Read(input)
		require.Nil(t, err)

		job := compressJob{input: input, output: make([]byte, MaxBlockSize)}
		require.Nil(t, compressBlock(&job))

		blockSize, err := parsePrefix(job.output)
		require.Nil(t, err)
		assert.Equal(t, job.size-1, blockSize)

		deflated := job.output[headerSize+subfieldSize : job.size-tailerSize]
		crc, size := parseTailer(job.output[job.size-tailerSize : job.size])
		assert.Equal(t, uint32(length), size)
		assert.Equal(t, crc32.ChecksumIEEE(input), crc)

		dst := make([]byte, length)
		require.Nil(t, inflateBlock(deflated, dst, length, crc))
		assert.Equal(t, input, dst)
	}
}

func TestInflateBlockCRCMismatch(t *testing.T) {
	input := []byte("hello, bgzf")
	job := compressJob{input: input, output: make([]byte, MaxBlockSize)}
	require.Nil(t, compressBlock(&job))

	deflated := job.output[headerSize+subfieldSize : job.size-tailerSize]
	dst := make([]byte, len(input))
	err := inflateBlock(deflated, dst, len(input), 0xffffffff)
	assert.ErrorIs(t, err, ErrCRCMismatch)
}

func TestInflateBlockSizeMismatch(t *testing.T) {
	input := []byte("hello, bgzf")
	job := compressJob{input: input, output: make([]byte, MaxBlockSize)}
	require.Nil(t, compressBlock(&job))

	deflated := job.output[headerSize+subfieldSize : job.size-tailerSize]
	dst := make([]byte, len(input)+1)
	err := inflateBlock(deflated, dst, len(input)+1, crc32.ChecksumIEEE(input))
	assert.NotNil(t, err)
}
