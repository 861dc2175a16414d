package dope

/*
#include "rknn_api.h"
#include <stdlib.h>
*/
import "C"
import (
	"fmt"
	"strings"
	"unsafe"
)

// TensorFormat wraps C.rknn_tensor_format
type TensorFormat int

const (
	TensorNCHW      TensorFormat = C.RKNN_TENSOR_NCHW
	TensorNHWC      TensorFormat = C.RKNN_TENSOR_NHWC
	TensorNC1HWC2   TensorFormat = C.RKNN_TENSOR_NC1HWC2
	TensorUndefined TensorFormat = C.RKNN_TENSOR_UNDEFINED
)

// TensorType wraps C.rknn_tensor_type.  Only the types a pose network
// produces or consumes are named.
type TensorType int

const (
	TensorFloat32 TensorType = C.RKNN_TENSOR_FLOAT32
	TensorFloat16 TensorType = C.RKNN_TENSOR_FLOAT16
	TensorInt8    TensorType = C.RKNN_TENSOR_INT8
	TensorUint8   TensorType = C.RKNN_TENSOR_UINT8
)

// maxDims is the maximum number of dimensions of a tensor
const maxDims = C.RKNN_MAX_DIMS

// TensorAttr holds the parts of C.rknn_tensor_attr needed to shape the
// belief map and affinity field outputs
type TensorAttr struct {
	Index  uint32
	NDims  uint32
	Dims   [maxDims]uint32
	Name   string
	NElems uint32
	Size   uint32
	Fmt    TensorFormat
	Type   TensorType
	ZP     int32
	Scale  float32
}

// tensorAttr converts a C.rknn_tensor_attr to a Go TensorAttr
func tensorAttr(cAttr *C.rknn_tensor_attr) TensorAttr {

	name := C.GoString(&cAttr.name[0])

	// guard against a name that is not null terminated
	if idx := strings.IndexByte(name, 0); idx != -1 {
		name = name[:idx]
	}

	return TensorAttr{
		Index:  uint32(cAttr.index),
		NDims:  uint32(cAttr.n_dims),
		Dims:   *(*[maxDims]uint32)(unsafe.Pointer(&cAttr.dims)),
		Name:   name,
		NElems: uint32(cAttr.n_elems),
		Size:   uint32(cAttr.size),
		Fmt:    TensorFormat(cAttr.fmt),
		Type:   TensorType(cAttr._type),
		ZP:     int32(cAttr.zp),
		Scale:  float32(cAttr.scale),
	}
}

// queryTensors runs the rknn_query command cmd for count tensors
func (m *Model) queryTensors(cmd C.rknn_query_cmd, count uint32) ([]TensorAttr, error) {

	attrs := make([]TensorAttr, count)

	for i := uint32(0); i < count; i++ {
		var cAttr C.rknn_tensor_attr
		cAttr.index = C.uint32_t(i)

		ret := C.rknn_query(m.ctx, cmd, unsafe.Pointer(&cAttr),
			C.uint(unsafe.Sizeof(cAttr)))

		if ret != C.RKNN_SUCC {
			return nil, fmt.Errorf("C.rknn_query of tensor %d failed with code %d, error: %s",
				i, int(ret), ErrorCodes(ret).String())
		}

		attrs[i] = tensorAttr(&cAttr)
	}

	return attrs, nil
}

// QueryInputTensors gets the model Input Tensor attributes
func (m *Model) QueryInputTensors() ([]TensorAttr, error) {
	return m.queryTensors(C.RKNN_QUERY_INPUT_ATTR, m.ioNum.NumberInput)
}

// QueryOutputTensors gets the model Output Tensor attributes
func (m *Model) QueryOutputTensors() ([]TensorAttr, error) {
	return m.queryTensors(C.RKNN_QUERY_OUTPUT_ATTR, m.ioNum.NumberOutput)
}

// String returns the TensorAttr's attributes formatted as a string
func (a TensorAttr) String() string {
	return fmt.Sprintf("index=%d, name=%s, n_dims=%d, "+
		"dims=[%d, %d, %d, %d], n_elems=%d, size=%d, fmt=%s, type=%s, zp=%d, scale=%f",
		a.Index, a.Name, a.NDims, a.Dims[0], a.Dims[1], a.Dims[2], a.Dims[3],
		a.NElems, a.Size, a.Fmt, a.Type, a.ZP, a.Scale,
	)
}

// String returns a readable description of the TensorType
func (t TensorType) String() string {
	switch t {
	case TensorFloat32:
		return "FP32"
	case TensorFloat16:
		return "FP16"
	case TensorInt8:
		return "INT8"
	case TensorUint8:
		return "UINT8"
	default:
		return fmt.Sprintf("TYPE(%d)", int(t))
	}
}

// String returns a readable description of the TensorFormat
func (t TensorFormat) String() string {
	switch t {
	case TensorNCHW:
		return "NCHW"
	case TensorNHWC:
		return "NHWC"
	case TensorNC1HWC2:
		return "NC1HWC2"
	case TensorUndefined:
		return "UNDEFINED"
	default:
		return "UNKNOWN"
	}
}
