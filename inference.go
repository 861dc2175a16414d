package dope

/*
#include "rknn_api.h"
#include <stdlib.h>
#include <string.h>
*/
import "C"
import (
	"fmt"
	"gocv.io/x/gocv"
	"sync"
	"unsafe"
)

// Input represents the C.rknn_input struct and defines the Input used for
// inference
type Input struct {
	// Index is the input index
	Index uint32
	// Buf is the gocv Mat input
	Buf unsafe.Pointer
	// Size is the number of bytes of Buf
	Size uint32
	// PassThrough defines the mode, if True the buf data is passed directly to
	// the input node of the rknn model without any conversion
	PassThrough bool
	// Type is the data type of Buf
	Type TensorType
	// Fmt is the data format of Buf
	Fmt TensorFormat
}

// Inference runs the network on a single RGB image that has already been
// resized to the model input size
func (m *Model) Inference(mat gocv.Mat) (*Outputs, error) {

	// make mat continuous
	if !mat.IsContinuous() {
		mat = mat.Clone()
		defer mat.Close()
	}

	var input Input

	if m.inputTypeFloat32 {
		data, err := mat.DataPtrFloat32()

		if err != nil {
			return nil, fmt.Errorf("error getting data pointer to Mat: %w", err)
		}

		input = Input{
			Type: TensorFloat32,
			// multiply by 4 for size of float32
			Size: uint32(mat.Cols() * mat.Rows() * mat.Channels() * 4),
			Fmt:  TensorNHWC,
			Buf:  unsafe.Pointer(&data[0]),
		}

	} else {
		data, err := mat.DataPtrUint8()

		if err != nil {
			return nil, fmt.Errorf("error getting data pointer to Mat: %w", err)
		}

		input = Input{
			Type: TensorUint8,
			Size: uint32(mat.Cols() * mat.Rows() * mat.Channels()),
			Fmt:  TensorNHWC,
			Buf:  unsafe.Pointer(&data[0]),
		}
	}

	err := m.SetInputs([]Input{input})

	if err != nil {
		return nil, fmt.Errorf("error setting inputs: %w", err)
	}

	err = m.RunModel()

	if err != nil {
		return nil, fmt.Errorf("error running model: %w", err)
	}

	return m.GetOutputs(m.ioNum.NumberOutput)
}

// SetInputs wraps C.rknn_inputs_set
func (m *Model) SetInputs(inputs []Input) error {

	nInputs := C.uint32_t(len(inputs))
	cInputs := make([]C.rknn_input, len(inputs))

	for i, input := range inputs {
		cInputs[i].index = C.uint32_t(input.Index)
		cInputs[i].buf = input.Buf
		cInputs[i].size = C.uint32_t(input.Size)
		cInputs[i].pass_through = C.uint8_t(0)
		if input.PassThrough {
			cInputs[i].pass_through = C.uint8_t(1)
		}
		cInputs[i]._type = C.rknn_tensor_type(input.Type)
		cInputs[i].fmt = C.rknn_tensor_format(input.Fmt)
	}

	ret := C.rknn_inputs_set(m.ctx, nInputs, &cInputs[0])

	if ret != 0 {
		return fmt.Errorf("C.rknn_inputs_set failed with code %d, error: %s",
			int(ret), ErrorCodes(ret).String())
	}

	return nil
}

// RunModel wraps C.rknn_run
func (m *Model) RunModel() error {

	ret := C.rknn_run(m.ctx, nil)

	if ret < 0 {
		return fmt.Errorf("C.rknn_run failed with code %d, error: %s",
			int(ret), ErrorCodes(ret).String())
	}

	return nil
}

// Output wraps C.rknn_output
type Output struct {
	Index uint32 // the output index
	// Buf is the output data as float32.  When the RKNN toolkit converted
	// the data itself this is a slice header pointing to C memory
	Buf  []float32
	Size uint32 // the size of output buf in bytes
}

// Outputs is a struct containing Go and C output data
type Outputs struct {
	Output   []Output
	cOutputs []C.rknn_output
	// freed is a flag to indicate if the cOutputs have been released from
	// memory or not
	freed bool
	sync.Mutex
	model *Model
}

// GetOutputs returns the Output results as float32 data
func (m *Model) GetOutputs(nOutputs uint32) (*Outputs, error) {

	outputs := &Outputs{
		Output:   make([]Output, nOutputs),
		cOutputs: make([]C.rknn_output, nOutputs),
		model:    m,
	}

	for idx := range outputs.cOutputs {
		outputs.cOutputs[idx].index = C.uint32_t(idx)
		// float16 outputs are converted in Go with the lookup table
		want := C.uint8_t(1)
		if m.outputAttrs[idx].Type == TensorFloat16 {
			want = 0
		}
		outputs.cOutputs[idx].want_float = want
	}

	ret := C.rknn_outputs_get(m.ctx, C.uint32_t(nOutputs),
		(*C.rknn_output)(unsafe.Pointer(&outputs.cOutputs[0])), nil)

	if ret < 0 {
		return nil, fmt.Errorf("C.rknn_outputs_get failed with code %d, error: %s",
			int(ret), ErrorCodes(ret).String())
	}

	for i, cOutput := range outputs.cOutputs {
		outputs.Output[i] = Output{
			Index: uint32(cOutput.index),
			Size:  uint32(cOutput.size),
		}

		if cOutput.want_float == 1 {
			outputs.Output[i].Buf = (*[1 << 30]float32)(cOutput.buf)[:cOutput.size/4]
		} else {
			float16Buf := (*[1 << 30]uint16)(cOutput.buf)[:cOutput.size/2]
			outputs.Output[i].Buf = Float16ToFloat32(float16Buf)
		}
	}

	return outputs, nil
}

// Free C memory buffer holding RKNN inference outputs
func (o *Outputs) Free() error {
	o.Lock()
	defer o.Unlock()

	if o.freed {
		// C memory already released
		return nil
	}

	o.freed = true
	return o.model.releaseOutputs(o.cOutputs)
}

// Shape returns the channels, rows and cols of output idx.  Outputs are
// NCHW with a batch size of one.
func (o *Outputs) Shape(idx int) (channels, rows, cols int) {

	attr := o.model.outputAttrs[idx]

	if attr.Fmt == TensorNHWC {
		return int(attr.Dims[3]), int(attr.Dims[1]), int(attr.Dims[2])
	}

	return int(attr.Dims[1]), int(attr.Dims[2]), int(attr.Dims[3])
}

// IsNHWC reports if output idx is laid out channels last
func (o *Outputs) IsNHWC(idx int) bool {
	return o.model.outputAttrs[idx].Fmt == TensorNHWC
}

// releaseOutputs releases the memory allocated for the outputs by the RKNN
// toolkit
func (m *Model) releaseOutputs(cOutputs []C.rknn_output) error {

	outputsPtr := (*C.rknn_output)(unsafe.Pointer(&cOutputs[0]))

	ret := C.rknn_outputs_release(m.ctx, C.uint32_t(len(cOutputs)), outputsPtr)

	if ret != 0 {
		return fmt.Errorf("C.rknn_outputs_release failed with code %d, error: %s",
			ret, ErrorCodes(ret).String())
	}

	return nil
}
