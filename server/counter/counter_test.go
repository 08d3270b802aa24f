package counter

import (
	"testing"

	"github.com/cyclopcam/henhouse/pkg/nn"
	"github.com/stretchr/testify/require"
)

func det(cls int) nn.ObjectDetection {
	return nn.ObjectDetection{Class: cls, Confidence: 0.9}
}

func TestCount(t *testing.T) {
	classes := &nn.ModelConfig{Classes: []string{"egg", "chicken", "feeder"}}

	counts, err := Count(classes, []nn.ObjectDetection{det(0), det(0), det(0), det(1), det(1), det(0)})
	require.NoError(t, err)
	require.Equal(t, CountMap{"egg": 4, "chicken": 2, "feeder": 0}, counts)
	require.Equal(t, "Eggs: 4, Chickens: 2", counts.String())

	counts, err = Count(classes, nil)
	require.NoError(t, err)
	require.Equal(t, CountMap{"egg": 0, "chicken": 0, "feeder": 0}, counts)

	_, err = Count(classes, []nn.ObjectDetection{det(3)})
	require.Error(t, err)
	_, err = Count(classes, []nn.ObjectDetection{det(-1)})
	require.Error(t, err)
}

func TestAbsentIsZero(t *testing.T) {
	counts, err := Count(&nn.ModelConfig{Classes: []string{"fox"}}, []nn.ObjectDetection{det(0)})
	require.NoError(t, err)
	require.Equal(t, 0, counts.Get(ClassEgg))
	require.Equal(t, 0, counts.Get(ClassChicken))
	require.Equal(t, 1, counts.Get("fox"))

	require.Equal(t, CountMap{"egg": 0, "chicken": 0}, FallbackCounts())
}
