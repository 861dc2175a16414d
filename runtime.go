package dope

/*
#include "rknn_api.h"
#include <stdlib.h>
*/
import "C"
import (
	"fmt"
	"os"
	"unsafe"
)

// CoreMask wraps C.rknn_core_mask
type CoreMask int

// rknn_core_mask values used to target which NPU cores the pose model runs
// on.  Auto picks an idle core, the others pin the model to a specific core.
const (
	NPUCoreAuto    CoreMask = C.RKNN_NPU_CORE_AUTO
	NPUCore0       CoreMask = C.RKNN_NPU_CORE_0
	NPUCore1       CoreMask = C.RKNN_NPU_CORE_1
	NPUCore2       CoreMask = C.RKNN_NPU_CORE_2
	NPUCore01      CoreMask = C.RKNN_NPU_CORE_0_1
	NPUCore012     CoreMask = C.RKNN_NPU_CORE_0_1_2
	NPUSkipSetCore CoreMask = 9999
)

// ParseCoreMask converts a configuration value such as "auto", "0", "1",
// "2", "01", "012" or "skip" into a CoreMask
func ParseCoreMask(val string) (CoreMask, error) {
	switch val {
	case "", "auto":
		return NPUCoreAuto, nil
	case "0":
		return NPUCore0, nil
	case "1":
		return NPUCore1, nil
	case "2":
		return NPUCore2, nil
	case "01":
		return NPUCore01, nil
	case "012":
		return NPUCore012, nil
	case "skip":
		return NPUSkipSetCore, nil
	}

	return NPUCoreAuto, fmt.Errorf("unknown NPU core mask %q", val)
}

// ErrorCodes
type ErrorCodes int

// error code values returned by the C API
const (
	Success                ErrorCodes = C.RKNN_SUCC
	ErrFail                ErrorCodes = C.RKNN_ERR_FAIL
	ErrTimeout             ErrorCodes = C.RKNN_ERR_TIMEOUT
	ErrDeviceUnavailable   ErrorCodes = C.RKNN_ERR_DEVICE_UNAVAILABLE
	ErrMallocFail          ErrorCodes = C.RKNN_ERR_MALLOC_FAIL
	ErrParamInvalid        ErrorCodes = C.RKNN_ERR_PARAM_INVALID
	ErrModelInvalid        ErrorCodes = C.RKNN_ERR_MODEL_INVALID
	ErrCtxInvalid          ErrorCodes = C.RKNN_ERR_CTX_INVALID
	ErrInputInvalid        ErrorCodes = C.RKNN_ERR_INPUT_INVALID
	ErrOutputInvalid       ErrorCodes = C.RKNN_ERR_OUTPUT_INVALID
	ErrDeviceMismatch      ErrorCodes = C.RKNN_ERR_DEVICE_UNMATCH
	ErrPreCompiledModel    ErrorCodes = C.RKNN_ERR_INCOMPATILE_PRE_COMPILE_MODEL
	ErrOptimizationVersion ErrorCodes = C.RKNN_ERR_INCOMPATILE_OPTIMIZATION_LEVEL_VERSION
	ErrPlatformMismatch    ErrorCodes = C.RKNN_ERR_TARGET_PLATFORM_UNMATCH
)

// String returns a readable description of the error code
func (e ErrorCodes) String() string {
	switch e {
	case Success:
		return "execution successful"
	case ErrFail:
		return "execution failed"
	case ErrTimeout:
		return "execution timed out"
	case ErrDeviceUnavailable:
		return "device is unavailable"
	case ErrMallocFail:
		return "C memory allocation failed"
	case ErrParamInvalid:
		return "parameter is invalid"
	case ErrModelInvalid:
		return "model file is invalid"
	case ErrCtxInvalid:
		return "context is invalid"
	case ErrInputInvalid:
		return "input is invalid"
	case ErrOutputInvalid:
		return "output is invalid"
	case ErrDeviceMismatch:
		return "device mismatch, please update rknn sdk and npu driver/firmware"
	case ErrPreCompiledModel:
		return "the RKNN model uses pre_compile mode, but is not compatible with current driver"
	case ErrOptimizationVersion:
		return "the RKNN model optimization level is not compatible with current driver"
	case ErrPlatformMismatch:
		return "the RKNN model target platform is not compatible with the current platform"
	default:
		return fmt.Sprintf("unknown error code %d", e)
	}
}

// Model is a loaded pose estimation network.  It is created once per run
// and is not modified by inference, however the underlying RKNN context must
// only be used by one goroutine at a time, use a Pool for parallel work.
type Model struct {
	// name is the object the network was trained on, eg: ChocolatePudding
	name string
	// file is the path to the compiled RKNN model
	file string
	// ctx is the C runtime context
	ctx C.rknn_context
	// ioNum caches the IONumber of Model Input/Output tensors
	ioNum IONumber
	// inputAttrs caches the Input Tensor Attributes of the Model
	inputAttrs []TensorAttr
	// outputAttrs caches the Output Tensor Attributes of the Model
	outputAttrs []TensorAttr
	// inputTypeFloat32 indicates if we pass the input gocv.Mat's data as
	// float32 to the RKNN backend
	inputTypeFloat32 bool
}

// LoadModel loads the RKNN compiled network at modelFile and names it after
// the object it detects.  A missing file or weights incompatible with the
// NPU driver return an error.
func LoadModel(name, modelFile string, core CoreMask) (*Model, error) {

	m := &Model{
		name: name,
		file: modelFile,
	}

	err := m.init(modelFile)

	if err != nil {
		return nil, err
	}

	// setCoreMask is only supported on RK3588, allow skipping for other
	// Rockchip models like RK3566
	if core != NPUSkipSetCore {
		err = m.setCoreMask(core)

		if err != nil {
			m.Close()
			return nil, err
		}
	}

	m.ioNum, err = m.QueryModelIONumber()

	if err != nil {
		m.Close()
		return nil, err
	}

	m.inputAttrs, err = m.QueryInputTensors()

	if err != nil {
		m.Close()
		return nil, err
	}

	m.outputAttrs, err = m.QueryOutputTensors()

	if err != nil {
		m.Close()
		return nil, err
	}

	return m, nil
}

// init wraps C.rknn_init which initializes the RKNN context with the given
// model file
func (m *Model) init(modelFile string) error {

	// check file exists in Go, before passing to C
	info, err := os.Stat(modelFile)

	if err != nil {
		return fmt.Errorf("model file does not exist at %s, error: %w",
			modelFile, err)
	}

	if info.IsDir() {
		return fmt.Errorf("model file %s is a directory", modelFile)
	}

	cModelFile := C.CString(modelFile)
	defer C.free(unsafe.Pointer(cModelFile))

	ret := C.rknn_init(&m.ctx, unsafe.Pointer(cModelFile), 0, 0, nil)

	if ret != C.RKNN_SUCC {
		return fmt.Errorf("C.rknn_init call failed with code %d, error: %s",
			ret, ErrorCodes(ret).String())
	}

	return nil
}

// setCoreMask wraps C.rknn_set_core_mask and specifies the NPU core
// configuration to run the model on
func (m *Model) setCoreMask(mask CoreMask) error {

	ret := C.rknn_set_core_mask(m.ctx, C.rknn_core_mask(mask))

	if ret != C.RKNN_SUCC {
		return fmt.Errorf("C.rknn_set_core_mask failed with code %d, error: %s",
			ret, ErrorCodes(ret).String())
	}

	return nil
}

// Close wraps C.rknn_destroy which unloads the network and releases all
// C resources
func (m *Model) Close() error {

	ret := C.rknn_destroy(m.ctx)

	if ret != C.RKNN_SUCC {
		return fmt.Errorf("C.rknn_destroy failed with code %d, error: %s",
			ret, ErrorCodes(ret).String())
	}

	return nil
}

// Name returns the name of the object the network detects
func (m *Model) Name() string {
	return m.name
}

// File returns the path the network was loaded from
func (m *Model) File() string {
	return m.file
}

// SetInputTypeFloat32 defines if the Model requires Inference() to pass the
// gocv.Mat's as float32 data to the RKNN backend.  The default is Uint8 with
// normalisation compiled into the model.
func (m *Model) SetInputTypeFloat32(val bool) {
	m.inputTypeFloat32 = val
}

// SDKVersion represents the C.rknn_sdk_version struct
type SDKVersion struct {
	DriverVersion string
	APIVersion    string
}

// SDKVersion returns the RKNN API and Driver versions
func (m *Model) SDKVersion() (SDKVersion, error) {

	var cSdkVer C.rknn_sdk_version

	ret := C.rknn_query(
		m.ctx,
		C.RKNN_QUERY_SDK_VERSION,
		unsafe.Pointer(&cSdkVer),
		C.uint(C.sizeof_rknn_sdk_version),
	)

	if ret != C.RKNN_SUCC {
		return SDKVersion{}, fmt.Errorf("rknn_query failed with return code %d", int(ret))
	}

	version := SDKVersion{
		DriverVersion: C.GoString(&(cSdkVer.drv_version[0])),
		APIVersion:    C.GoString(&(cSdkVer.api_version[0])),
	}

	return version, nil
}

// InputAttrs returns the loaded model's input tensor attributes
func (m *Model) InputAttrs() []TensorAttr {
	return m.inputAttrs
}

// OutputAttrs returns the loaded model's output tensor attributes
func (m *Model) OutputAttrs() []TensorAttr {
	return m.outputAttrs
}

// InputSize returns the width and height of the image the network expects
func (m *Model) InputSize() (width, height int) {

	attr := m.inputAttrs[0]

	if attr.Fmt == TensorNHWC {
		return int(attr.Dims[2]), int(attr.Dims[1])
	}

	// NCHW
	return int(attr.Dims[3]), int(attr.Dims[2])
}
