package onnx

// package onnx is a wrapper around https://github.com/microsoft/onnxruntime, via onnxruntime_go.
// Only the CPU execution provider is used.

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/cyclopcam/henhouse/pkg/buildinfo"
	"github.com/cyclopcam/henhouse/pkg/nn"
	ort "github.com/yalue/onnxruntime_go"
)

var initLock sync.Mutex

// Initialize loads the onnxruntime shared library. It is safe to call more than once.
// If sharedLibPath is empty, we use the platform default name.
func Initialize(sharedLibPath string) error {
	initLock.Lock()
	defer initLock.Unlock()
	if ort.IsInitialized() {
		return nil
	}
	if sharedLibPath == "" {
		sharedLibPath = DefaultSharedLibPath()
	}
	ort.SetSharedLibraryPath(sharedLibPath)
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("Failed to initialize onnxruntime from '%v': %w", sharedLibPath, err)
	}
	return nil
}

// Shutdown releases the onnxruntime environment
func Shutdown() {
	initLock.Lock()
	defer initLock.Unlock()
	if ort.IsInitialized() {
		ort.DestroyEnvironment()
	}
}

// DefaultSharedLibPath returns the onnxruntime library for this platform.
// If we were installed as a package, this is the copy that ships with the package.
// Otherwise it's a bare name, which the dynamic loader resolves via the usual search path.
func DefaultSharedLibPath() string {
	if dir := buildinfo.PackagedLibDir(); dir != "" && runtime.GOOS == "linux" {
		packaged := filepath.Join(dir, "libonnxruntime.so")
		if _, err := os.Stat(packaged); err == nil {
			return packaged
		}
	}
	switch runtime.GOOS {
	case "windows":
		return "onnxruntime.dll"
	case "darwin":
		return "libonnxruntime.dylib"
	}
	return "libonnxruntime.so"
}

type Detector struct {
	lock      sync.Mutex // onnxruntime sessions are not safe for concurrent Run()
	config    nn.ModelConfig
	session   *ort.AdvancedSession
	input     *ort.Tensor[float32]
	output    *ort.Tensor[float32]
	layout    outputLayout
	modelFile string
}

// NewDetector creates a YOLO (v8/11 style head) object detector from an ONNX file.
// config.Width and config.Height must match the model's input tensor.
func NewDetector(config *nn.ModelConfig, threadingMode nn.ThreadingMode, modelFile string) (*Detector, error) {
	inputs, outputs, err := ort.GetInputOutputInfo(modelFile)
	if err != nil {
		return nil, fmt.Errorf("Failed to read inputs/outputs of '%v': %w", modelFile, err)
	}
	if len(inputs) != 1 || len(outputs) < 1 {
		return nil, fmt.Errorf("Expected 1 input and at least 1 output in '%v', but found %v and %v", modelFile, len(inputs), len(outputs))
	}

	inputShape := ort.NewShape(1, 3, int64(config.Height), int64(config.Width))
	inDims := inputs[0].Dimensions
	if len(inDims) == 4 && inDims[2] > 0 && inDims[3] > 0 && (inDims[2] != int64(config.Height) || inDims[3] != int64(config.Width)) {
		return nil, fmt.Errorf("Model input is %vx%v, but config says %vx%v", inDims[3], inDims[2], config.Width, config.Height)
	}

	layout, err := newOutputLayout(outputs[0].Dimensions, len(config.Classes))
	if err != nil {
		return nil, fmt.Errorf("Unsupported output of '%v': %w", modelFile, err)
	}

	inputTensor, err := ort.NewTensor(inputShape, make([]float32, inputShape.FlattenedSize()))
	if err != nil {
		return nil, err
	}
	outputTensor, err := ort.NewEmptyTensor[float32](layout.shape())
	if err != nil {
		inputTensor.Destroy()
		return nil, err
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, err
	}
	defer options.Destroy()
	if threadingMode == nn.ThreadingModeSingle {
		options.SetIntraOpNumThreads(1)
		options.SetInterOpNumThreads(1)
	}

	session, err := ort.NewAdvancedSession(modelFile,
		[]string{inputs[0].Name}, []string{outputs[0].Name},
		[]ort.Value{inputTensor}, []ort.Value{outputTensor},
		options)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("Failed to create onnxruntime session for '%v': %w", modelFile, err)
	}

	return &Detector{
		config:    *config,
		session:   session,
		input:     inputTensor,
		output:    outputTensor,
		layout:    layout,
		modelFile: modelFile,
	}, nil
}

func (d *Detector) Close() {
	d.lock.Lock()
	defer d.lock.Unlock()
	if d.session != nil {
		d.session.Destroy()
		d.input.Destroy()
		d.output.Destroy()
		d.session = nil
	}
}

func (d *Detector) DetectObjects(img nn.ImageCrop, params *nn.DetectionParams) ([]nn.ObjectDetection, error) {
	if img.NChan != 3 {
		return nil, fmt.Errorf("Expected 3 channel RGB image, but got %v channels", img.NChan)
	}
	if img.CropWidth == 0 || img.CropHeight == 0 {
		return nil, errors.New("Image is empty")
	}

	d.lock.Lock()
	defer d.lock.Unlock()
	if d.session == nil {
		return nil, errors.New("Detector is closed")
	}

	nnImg, xform := nn.Letterbox(img, d.config.Width, d.config.Height)
	fillPlanarInput(d.input.GetData(), nnImg.Pixels, nnImg.Width, nnImg.Height, nnImg.Stride)

	if err := d.session.Run(); err != nil {
		return nil, fmt.Errorf("onnxruntime Run failed: %w", err)
	}

	objects := d.layout.decode(d.output.GetData(), params.Probability())
	objects = nn.NonMaxSuppression(objects, params.NmsIou())
	xform.ApplyBackward(objects)
	if !params.Unclipped {
		for i := range objects {
			objects[i].Box = objects[i].Box.Clip(img.CropWidth, img.CropHeight)
		}
	}
	return objects, nil
}

func (d *Detector) Config() *nn.ModelConfig {
	return &d.config
}

// Convert interleaved RGB bytes into planar (CHW) float32 in [0,1]
func fillPlanarInput(dst []float32, rgb []byte, width, height, stride int) {
	plane := width * height
	for y := 0; y < height; y++ {
		row := rgb[y*stride:]
		out := y * width
		for x := 0; x < width; x++ {
			dst[out+x] = float32(row[x*3]) / 255
			dst[plane+out+x] = float32(row[x*3+1]) / 255
			dst[2*plane+out+x] = float32(row[x*3+2]) / 255
		}
	}
}
