package perfstats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTimeAccumulator(t *testing.T) {
	a := TimeAccumulator{}
	require.Equal(t, time.Duration(0), a.Average())
	a.AddSample(10 * time.Millisecond)
	a.AddSample(30 * time.Millisecond)
	require.Equal(t, 20*time.Millisecond, a.Average())
	require.Equal(t, 30*time.Millisecond, a.Max)
	require.Equal(t, "avg 20ms, max 30ms (2 samples)", a.String())
	a.Reset()
	require.Equal(t, int64(0), a.Samples)
}
