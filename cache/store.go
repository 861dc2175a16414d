package cache

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/swdee/go-dope/postprocess/result"
	"github.com/x448/float16"
)

// magic identifies a tensor cache file, the last byte is the format version
var magic = [4]byte{'D', 'P', 'T', 1}

// maxMapSide bounds the rows and columns of a cached belief map
const maxMapSide = 1 << 12

// ErrNotCached is returned by Load when no tensor is cached for an image
var ErrNotCached = errors.New("tensor not cached")

// Store reads and writes network output tensors so repeated runs over a
// test set can skip inference.  Values are stored as float16.
type Store struct {
	mapper Mapper
}

// NewStore returns a Store placing files with mapper
func NewStore(mapper Mapper) *Store {
	return &Store{mapper: mapper}
}

// Mapper returns the file mapper of the store
func (s *Store) Mapper() Mapper {
	return s.mapper
}

// Load returns the cached tensor of image or ErrNotCached
func (s *Store) Load(image string) (*result.Tensor, error) {

	f, err := os.Open(s.mapper.TensorFile(image))

	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotCached
	}

	if err != nil {
		return nil, fmt.Errorf("error opening tensor cache: %w", err)
	}

	defer f.Close()

	t, err := ReadTensor(bufio.NewReader(f))

	if err != nil {
		return nil, fmt.Errorf("error reading tensor cache %s: %w", f.Name(), err)
	}

	return t, nil
}

// Save writes the tensor of image to the cache, creating the cache
// directory as needed
func (s *Store) Save(image string, t *result.Tensor) error {

	path := s.mapper.TensorFile(image)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("error creating cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*")

	if err != nil {
		return fmt.Errorf("error creating tensor cache file: %w", err)
	}

	w := bufio.NewWriter(tmp)

	if err = WriteTensor(w, t); err == nil {
		err = w.Flush()
	}

	if cerr := tmp.Close(); err == nil {
		err = cerr
	}

	if err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("error writing tensor cache: %w", err)
	}

	return os.Rename(tmp.Name(), path)
}

// WriteTensor encodes t as the magic header, the channel, row and column
// counts as little endian uint32 and the float16 data
func WriteTensor(w io.Writer, t *result.Tensor) error {

	if _, err := w.Write(magic[:]); err != nil {
		return err
	}

	dims := []uint32{uint32(t.Channels), uint32(t.Rows), uint32(t.Cols)}

	if err := binary.Write(w, binary.LittleEndian, dims); err != nil {
		return err
	}

	bits := make([]uint16, len(t.Data))

	for i, v := range t.Data {
		bits[i] = float16.Fromfloat32(v).Bits()
	}

	return binary.Write(w, binary.LittleEndian, bits)
}

// ReadTensor decodes a tensor written by WriteTensor
func ReadTensor(r io.Reader) (*result.Tensor, error) {

	var head [4]byte

	if _, err := io.ReadFull(r, head[:]); err != nil {
		return nil, err
	}

	if head != magic {
		return nil, fmt.Errorf("not a tensor cache file")
	}

	dims := make([]uint32, 3)

	if err := binary.Read(r, binary.LittleEndian, dims); err != nil {
		return nil, err
	}

	// bound each dimension before multiplying so a corrupt header cannot
	// overflow the allocation size
	if dims[0] != result.TensorChannels || dims[1] == 0 || dims[2] == 0 ||
		dims[1] > maxMapSide || dims[2] > maxMapSide {
		return nil, fmt.Errorf("invalid tensor shape %dx%dx%d", dims[0], dims[1], dims[2])
	}

	channels, rows, cols := int(dims[0]), int(dims[1]), int(dims[2])

	bits := make([]uint16, channels*rows*cols)

	if err := binary.Read(r, binary.LittleEndian, bits); err != nil {
		return nil, err
	}

	data := make([]float32, len(bits))

	for i, b := range bits {
		data[i] = float16.Frombits(b).Float32()
	}

	return result.NewTensor(channels, rows, cols, data)
}
