package onnx

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/cyclopcam/henhouse/pkg/nn"
	ort "github.com/yalue/onnxruntime_go"
)

var classNameRegex = regexp.MustCompile(`(\d+)\s*:\s*(?:'((?:[^'\\]|\\.)*)'|"((?:[^"\\]|\\.)*)")`)
var intRegex = regexp.MustCompile(`\d+`)

// ReadModelConfig builds a ModelConfig out of the custom metadata that the Ultralytics
// exporter writes into the ONNX file. The keys we use are:
//
//	names  {0: 'chicken', 1: 'egg'}
//	imgsz  [640, 640]
//
// If imgsz is missing, the size is taken from the input tensor.
func ReadModelConfig(modelFile string) (*nn.ModelConfig, error) {
	meta, err := ort.GetModelMetadata(modelFile)
	if err != nil {
		return nil, fmt.Errorf("Failed to read metadata of '%v': %w", modelFile, err)
	}
	defer meta.Destroy()

	names, ok, err := meta.LookupCustomMetadataMap("names")
	if err != nil {
		return nil, err
	} else if !ok {
		return nil, fmt.Errorf("Model '%v' has no class names in its metadata", modelFile)
	}
	classes, err := ParseClassNames(names)
	if err != nil {
		return nil, err
	}

	config := &nn.ModelConfig{
		Architecture: "yolo",
		Classes:      classes,
	}

	if imgsz, ok, _ := meta.LookupCustomMetadataMap("imgsz"); ok {
		config.Width, config.Height, err = ParseImageSize(imgsz)
		if err != nil {
			return nil, err
		}
	} else {
		inputs, _, err := ort.GetInputOutputInfo(modelFile)
		if err != nil {
			return nil, err
		}
		if len(inputs) != 1 || len(inputs[0].Dimensions) != 4 || inputs[0].Dimensions[2] <= 0 || inputs[0].Dimensions[3] <= 0 {
			return nil, fmt.Errorf("Unable to determine input size of '%v'", modelFile)
		}
		config.Height = int(inputs[0].Dimensions[2])
		config.Width = int(inputs[0].Dimensions[3])
	}
	return config, nil
}

// ParseClassNames parses a python dict literal of the form {0: 'egg', 1: 'chicken'}.
// The indices must be contiguous from zero.
func ParseClassNames(s string) ([]string, error) {
	matches := classNameRegex.FindAllStringSubmatch(s, -1)
	if len(matches) == 0 {
		return nil, fmt.Errorf("No class names found in '%v'", s)
	}
	byIndex := map[int]string{}
	for _, m := range matches {
		idx, err := strconv.Atoi(m[1])
		if err != nil {
			return nil, err
		}
		name := m[2]
		if name == "" {
			name = m[3]
		}
		if _, exists := byIndex[idx]; exists {
			return nil, fmt.Errorf("Class index %v appears twice", idx)
		}
		byIndex[idx] = unescapePython(name)
	}
	classes := make([]string, len(byIndex))
	for i := range classes {
		name, ok := byIndex[i]
		if !ok {
			return nil, fmt.Errorf("Class index %v is missing from '%v'", i, s)
		}
		classes[i] = name
	}
	return classes, nil
}

// ParseImageSize parses "[640, 640]" (height, width) or "640" (square).
// Returns width, height.
func ParseImageSize(s string) (width, height int, err error) {
	nums := intRegex.FindAllString(s, -1)
	switch len(nums) {
	case 1:
		v, _ := strconv.Atoi(nums[0])
		return v, v, nil
	case 2:
		h, _ := strconv.Atoi(nums[0])
		w, _ := strconv.Atoi(nums[1])
		return w, h, nil
	}
	return 0, 0, fmt.Errorf("Invalid image size '%v'", s)
}

func unescapePython(s string) string {
	r := strings.NewReplacer(`\'`, `'`, `\"`, `"`, `\\`, `\`)
	return r.Replace(s)
}
