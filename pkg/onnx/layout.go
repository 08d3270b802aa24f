package onnx

import (
	"fmt"

	"github.com/cyclopcam/henhouse/pkg/nn"
	ort "github.com/yalue/onnxruntime_go"
)

// outputLayout describes the output tensor of a YOLOv8/YOLO11 detection head.
// Each candidate box has 4 box attributes (cx, cy, w, h in NN pixels) followed by one score per class.
// Ultralytics exports this as [1, 4+classes, boxes]. Some third party exports transpose
// it to [1, boxes, 4+classes], which we also accept.
type outputLayout struct {
	numAttributes int
	numBoxes      int
	numClasses    int
	transposed    bool
}

func newOutputLayout(dims ort.Shape, numClasses int) (outputLayout, error) {
	if len(dims) != 3 {
		return outputLayout{}, fmt.Errorf("Expected 3 output dimensions, but got %v", dims)
	}
	if numClasses == 0 {
		return outputLayout{}, fmt.Errorf("Model has no classes")
	}
	numAttributes := int64(4 + numClasses)
	if dims[1] == numAttributes && dims[2] > 0 {
		return outputLayout{
			numAttributes: int(numAttributes),
			numBoxes:      int(dims[2]),
			numClasses:    numClasses,
		}, nil
	} else if dims[2] == numAttributes && dims[1] > 0 {
		return outputLayout{
			numAttributes: int(numAttributes),
			numBoxes:      int(dims[1]),
			numClasses:    numClasses,
			transposed:    true,
		}, nil
	}
	return outputLayout{}, fmt.Errorf("Output shape %v does not match %v classes", dims, numClasses)
}

func (l *outputLayout) shape() ort.Shape {
	if l.transposed {
		return ort.NewShape(1, int64(l.numBoxes), int64(l.numAttributes))
	}
	return ort.NewShape(1, int64(l.numAttributes), int64(l.numBoxes))
}

func (l *outputLayout) at(output []float32, box, attrib int) float32 {
	if l.transposed {
		return output[box*l.numAttributes+attrib]
	}
	return output[attrib*l.numBoxes+box]
}

// Decode the raw output into boxes in NN coordinates. Each box takes its most likely class.
// No NMS is performed here.
func (l *outputLayout) decode(output []float32, threshold float32) []nn.ObjectDetection {
	objects := []nn.ObjectDetection{}
	if len(output) < l.numAttributes*l.numBoxes {
		return objects
	}
	for i := 0; i < l.numBoxes; i++ {
		bestClass := -1
		bestScore := float32(0)
		for c := 0; c < l.numClasses; c++ {
			if score := l.at(output, i, 4+c); score > bestScore {
				bestScore = score
				bestClass = c
			}
		}
		if bestClass < 0 || bestScore < threshold {
			continue
		}
		cx := l.at(output, i, 0)
		cy := l.at(output, i, 1)
		w := l.at(output, i, 2)
		h := l.at(output, i, 3)
		objects = append(objects, nn.ObjectDetection{
			Class:      bestClass,
			Confidence: bestScore,
			Box:        nn.RectFromCenter(cx, cy, w, h),
		})
	}
	return objects
}
