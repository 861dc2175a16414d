package dope

import (
	"fmt"
	"sync"

	"go.uber.org/multierr"
)

// Pool holds several instances of the same network spread across the NPU
// cores so images can be processed in parallel
type Pool struct {
	// models waiting to be borrowed
	models chan *Model
	// size of pool
	size  int
	close sync.Once
	// closeErr is the combined error of closing every model
	closeErr error
}

// NewPool loads size copies of modelFile.  When cores is empty the models are
// assigned round robin to cores 0, 1 and 2, otherwise to the given masks in
// turn.
func NewPool(size int, name, modelFile string, cores []CoreMask) (*Pool, error) {

	if size < 1 {
		return nil, fmt.Errorf("pool size must be at least 1, got %d", size)
	}

	p := &Pool{
		models: make(chan *Model, size),
		size:   size,
	}

	for i := 0; i < size; i++ {
		m, err := LoadModel(name, modelFile, poolCore(i, cores))

		if err != nil {
			// close any instances that may have been created before receiving
			// the error
			p.Close()
			return nil, fmt.Errorf("error loading pool model %d: %w", i, err)
		}

		p.Return(m)
	}

	return p, nil
}

// Size returns the number of models in the pool
func (p *Pool) Size() int {
	return p.size
}

// SetInputTypeFloat32 sets the input type of every model.  It must be called
// before the pool is shared.
func (p *Pool) SetInputTypeFloat32(val bool) {

	models := make([]*Model, p.size)

	for i := range models {
		models[i] = p.Get()
		models[i].SetInputTypeFloat32(val)
	}

	for _, m := range models {
		p.Return(m)
	}
}

// Get borrows a model from the pool, blocking until one is free
func (p *Pool) Get() *Model {
	return <-p.models
}

// Return a model to the pool
func (p *Pool) Return(m *Model) {
	select {
	case p.models <- m:
	default:
		// pool is full or closed
	}
}

// Close the pool and all models in it
func (p *Pool) Close() error {
	p.close.Do(func() {
		close(p.models)

		for next := range p.models {
			p.closeErr = multierr.Append(p.closeErr, next.Close())
		}
	})

	return p.closeErr
}

// poolCore returns the core mask for the i'th model of a pool
func poolCore(i int, cores []CoreMask) CoreMask {

	if len(cores) > 0 {
		return cores[i%len(cores)]
	}

	switch i % 3 {
	case 0:
		return NPUCore0
	case 1:
		return NPUCore1
	default:
		return NPUCore2
	}
}
