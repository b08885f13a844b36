package bgzf

import (
	"bytes"
	"context"
	"io/ioutil"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAsyncWriterRoundTrip(t *testing.T) {
	input := make([]byte, 4*BlockDataInflatedSize+17)
	_, err := rand.Read(input)
	require.Nil(t, err)

	var buf bytes.Buffer
	w := NewAsyncWriter(&buf, 2, 4)
	half := len(input) / 2
	_, err = w.Write(input[:half])
	require.Nil(t, err)
	_, err = w.Write(input[half:])
	require.Nil(t, err)
	require.Nil(t, w.Close())

	r := NewReader(&buf, 2, 4)
	actual, err := ioutil.ReadAll(r)
	require.Nil(t, err)
	assert.Equal(t, input, actual)
}

func TestAsyncWriterFlush(t *testing.T) {
	var buf bytes.Buffer
	w := NewAsyncWriter(&buf, 0, 2)
	_, err := w.Write([]byte("hello async bgzf"))
	require.Nil(t, err)
	require.Nil(t, w.Flush())
	require.Nil(t, w.Close())

	r := NewReader(&buf, 0, 2)
	actual, err := ioutil.ReadAll(r)
	require.Nil(t, err)
	assert.Equal(t, "hello async bgzf", string(actual))
}

func TestAsyncReaderRoundTrip(t *testing.T) {
	input := make([]byte, 4*BlockDataInflatedSize+99)
	_, err := rand.Read(input)
	require.Nil(t, err)

	var buf bytes.Buffer
	w := NewWriter(&buf, 2, 4)
	_, err = w.Write(input)
	require.Nil(t, err)
	require.Nil(t, w.Close())

	r := NewAsyncReader(context.Background(), &buf, 2, 4)
	defer r.Close()

	actual, err := ioutil.ReadAll(r)
	require.Nil(t, err)
	assert.Equal(t, input, actual)
}

func TestAsyncReaderCancel(t *testing.T) {
	input := make([]byte, 10*BlockDataInflatedSize)
	_, err := rand.Read(input)
	require.Nil(t, err)

	var buf bytes.Buffer
	w := NewWriter(&buf, 1, 2)
	_, err = w.Write(input)
	require.Nil(t, err)
	require.Nil(t, w.Close())

	ctx, cancel := context.WithCancel(context.Background())
	r := NewAsyncReader(ctx, &buf, 1, 2)
	p := make([]byte, 16)
	_, err = r.Read(p)
	require.Nil(t, err)
	cancel()
	require.Nil(t, r.Close())
}
