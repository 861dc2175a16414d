package cache

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swdee/go-dope/postprocess/result"
)

func TestMapper(t *testing.T) {

	tests := []struct {
		name   string
		home   string
		root   string
		image  string
		tensor string
		png    string
	}{
		{"absolute home", "/tmp/_cache", "/data/testset", "/data/testset/000.png",
			"/tmp/_cache/000.png.tensor", "/tmp/_cache/000.png.png"},
		{"absolute home sub directory", "/tmp/_cache", "/data/testset", "/data/testset/a/000.png",
			"/tmp/_cache/a/000.png.tensor", "/tmp/_cache/a/000.png.png"},
		{"absolute home outside root", "/tmp/_cache", "/data/testset", "/other/000.png",
			"/tmp/_cache/other/000.png.tensor", "/tmp/_cache/other/000.png.png"},
		{"absolute home no root", "/tmp/_cache", "", "/data/testset/000.png",
			"/tmp/_cache/data/testset/000.png.tensor", "/tmp/_cache/data/testset/000.png.png"},
		{"relative home", "_cache", "/data/testset", "/data/testset/000.png",
			"/data/testset/_cache/000.png.tensor", "/data/testset/_cache/000.png.png"},
		{"relative image", "_cache", "testset", "testset/a.jpg",
			"testset/_cache/a.jpg.tensor", "testset/_cache/a.jpg.png"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m := NewMapper(tc.home, tc.root)
			assert.Equal(t, tc.tensor, m.TensorFile(tc.image))
			assert.Equal(t, tc.png, m.ProcessedImageFile(tc.image))
		})
	}
}

func TestMapperSameName(t *testing.T) {

	root := t.TempDir()
	m := NewMapper(t.TempDir(), root)

	a := filepath.Join(root, "a", "000.png")
	b := filepath.Join(root, "b", "000.png")

	assert.NotEqual(t, m.TensorFile(a), m.TensorFile(b))
	assert.NotEqual(t, m.ProcessedImageFile(a), m.ProcessedImageFile(b))

	store := NewStore(m)
	want := testTensor(t)
	require.NoError(t, store.Save(a, want))

	got, err := store.Load(a)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = store.Load(b)
	assert.ErrorIs(t, err, ErrNotCached)
}

func testTensor(t *testing.T) *result.Tensor {
	data := make([]float32, result.TensorChannels*3*4)

	for i := range data {
		// values exactly representable as float16
		data[i] = float32(i%64) / 8
	}

	tensor, err := result.NewTensor(result.TensorChannels, 3, 4, data)
	require.NoError(t, err)

	return tensor
}

func TestTensorCodec(t *testing.T) {

	want := testTensor(t)

	var buf bytes.Buffer
	require.NoError(t, WriteTensor(&buf, want))

	// header plus three dimensions plus two bytes per value
	assert.Equal(t, 4+12+2*len(want.Data), buf.Len())

	got, err := ReadTensor(&buf)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestReadTensorErrors(t *testing.T) {

	_, err := ReadTensor(bytes.NewReader([]byte("PNG\x00")))
	assert.Error(t, err)

	_, err = ReadTensor(bytes.NewReader(nil))
	assert.Error(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteTensor(&buf, testTensor(t)))

	_, err = ReadTensor(bytes.NewReader(buf.Bytes()[:buf.Len()-1]))
	assert.Error(t, err, "truncated data")

	shapes := [][]uint32{
		{result.TensorChannels, 0xFFFFFFFF, 0xFFFFFFFF},
		{result.TensorChannels, 0, 4},
		{result.TensorChannels, 3, 1<<12 + 1},
		{0xFFFFFFFF, 3, 4},
	}

	for _, dims := range shapes {
		var head bytes.Buffer
		head.Write(magic[:])
		require.NoError(t, binary.Write(&head, binary.LittleEndian, dims))

		assert.NotPanics(t, func() {
			_, err = ReadTensor(bytes.NewReader(head.Bytes()))
		})
		assert.ErrorContains(t, err, "invalid tensor shape", "%v", dims)
	}
}

func TestStore(t *testing.T) {

	dir := t.TempDir()
	image := filepath.Join(dir, "000.png")

	store := NewStore(NewMapper("_cache", dir))

	_, err := store.Load(image)
	assert.ErrorIs(t, err, ErrNotCached)

	want := testTensor(t)
	require.NoError(t, store.Save(image, want))

	_, err = os.Stat(filepath.Join(dir, "_cache", "000.png.tensor"))
	require.NoError(t, err)

	got, err := store.Load(image)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
