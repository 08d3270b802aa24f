package main

// predict runs the henhouse model over still images, and prints the detections as JSON.
// Useful for checking a newly exported model before deploying it.

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/akamensky/argparse"
	"github.com/cyclopcam/henhouse/pkg/nn"
	"github.com/cyclopcam/henhouse/pkg/nnload"
	"github.com/cyclopcam/henhouse/pkg/onnx"
	"github.com/cyclopcam/henhouse/server/config"
	"github.com/cyclopcam/henhouse/server/counter"
	"github.com/cyclopcam/henhouse/server/snapshot"
	"github.com/cyclopcam/logs"
)

type labeledObject struct {
	Class      string  `json:"class"`
	Confidence float32 `json:"confidence"`
	Box        nn.Rect `json:"box"`
}

type imageLabels struct {
	Filename string           `json:"filename"`
	Width    int              `json:"width"`
	Height   int              `json:"height"`
	Counts   counter.CountMap `json:"counts"`
	Objects  []labeledObject  `json:"objects"`
}

func check(err error) {
	if err != nil {
		panic(err)
	}
}

func main() {
	parser := argparse.NewParser("predict", "Count eggs and chickens in still images")
	inputs := parser.StringList("i", "input", &argparse.Options{Help: "Input image file (may be repeated)", Required: true})
	modelFile := parser.String("n", "model", &argparse.Options{Help: "Path to NN model file", Default: config.DefaultModelFile})
	threshold := parser.Float("t", "threshold", &argparse.Options{Help: "Minimum confidence", Default: float64(nn.DefaultProbabilityThreshold)})
	err := parser.Parse(os.Args)
	if err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	logger, _ := logs.NewLog()

	model, err := nnload.LoadModel(logger, *modelFile, nnload.Options{
		SharedLibPath: os.Getenv("ONNXRUNTIME_LIB"),
		ThreadingMode: nn.ThreadingModeParallel,
	})
	check(err)
	defer onnx.Shutdown()
	defer model.Close()

	params := nn.NewDetectionParams()
	params.ProbabilityThreshold = float32(*threshold)

	all := []imageLabels{}
	for _, fn := range *inputs {
		raw, err := os.ReadFile(fn)
		check(err)
		img, err := snapshot.Decode(raw)
		check(err)
		objects, err := model.DetectObjects(nn.WholeImage(img.NChan(), img.Pixels, img.Width, img.Height), params)
		check(err)
		counts, err := counter.Count(model.Config(), objects)
		check(err)
		labels := imageLabels{
			Filename: fn,
			Width:    img.Width,
			Height:   img.Height,
			Counts:   counts,
			Objects:  []labeledObject{},
		}
		for _, obj := range objects {
			labels.Objects = append(labels.Objects, labeledObject{
				Class:      model.Config().Classes[obj.Class],
				Confidence: obj.Confidence,
				Box:        obj.Box,
			})
		}
		all = append(all, labels)
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	check(encoder.Encode(all))
}
